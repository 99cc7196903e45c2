package validators

import "go.mongodb.org/mongo-driver/bson"

var VehicleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"make",
			"model",
			"year",
			"status",
			"price_per_day_cents",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"make": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 60,
			},

			"model": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 60,
			},

			"year": bson.M{
				"bsonType": "int",
				"minimum":  1900,
				"maximum":  2100,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"rented",
					"maintenance",
				},
			},

			"price_per_day_cents": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"deleted_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
