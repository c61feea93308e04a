package validators

import (
	"go.mongodb.org/mongo-driver/bson"

	"clinicbook/pkg/model"
)

var VisitValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_creating_id",
			"therapist_id",
			"is_adult",
			"patient_id",
			"category_id",
			"product_id",
			"visit_mode_id",
			"date_slot_id",
			"payment_method",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"user_creating_id": requiredString,
			"therapist_id":     requiredString,
			"patient_id":       requiredString,
			"category_id":      requiredString,
			"product_id":       requiredString,
			"visit_mode_id":    requiredString,
			"date_slot_id":     requiredString,

			"is_adult": bson.M{
				"bsonType": "bool",
			},

			"payment_method": bson.M{
				"bsonType": "string",
				"enum":     model.PaymentMethods,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
