package validators

import "go.mongodb.org/mongo-driver/bson"

var requiredString = bson.M{"bsonType": "string", "minLength": 1}

var CategoryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "full_name"},
		"properties": bson.M{
			"name":      requiredString,
			"full_name": requiredString,
		},
	},
}

var ProductValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"category_id", "name", "for_adults", "for_children", "visit_mode_ids"},
		"properties": bson.M{
			"category_id":  requiredString,
			"name":         requiredString,
			"full_name":    bson.M{"bsonType": "string"},
			"for_adults":   bson.M{"bsonType": "bool"},
			"for_children": bson.M{"bsonType": "bool"},
			"visit_mode_ids": bson.M{
				"bsonType": "array",
				"items":    requiredString,
			},
		},
	},
}

var VisitModeValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name"},
		"properties": bson.M{
			"name":      requiredString,
			"full_name": bson.M{"bsonType": "string"},
		},
	},
}

// PatientValidator leaves therapist_ids optional; legacy records omit it.
var PatientValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"owner_id", "name", "is_adult"},
		"properties": bson.M{
			"owner_id": requiredString,
			"name":     requiredString,
			"age": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  130,
			},
			"is_adult": bson.M{"bsonType": "bool"},
			"therapist_ids": bson.M{
				"bsonType": "array",
				"items":    requiredString,
			},
		},
	},
}
