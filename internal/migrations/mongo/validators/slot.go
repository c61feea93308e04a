package validators

import "go.mongodb.org/mongo-driver/bson"

var nullableString = bson.M{"bsonType": []string{"string", "null"}}

var DateSlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"datetime",
			"therapist_id",
			"therapist_name",
			"allowed_product_ids",
			"is_free",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"datetime": bson.M{
				"bsonType": "date",
			},

			"therapist_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"therapist_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"allowed_product_ids": bson.M{
				"bsonType":    "array",
				"minItems":    1,
				"uniqueItems": true,
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 1,
				},
			},

			"is_free": bson.M{
				"bsonType": "bool",
			},

			"occupying_user_id": nullableString,
			"visit_id":          nullableString,
		},
	},
}
