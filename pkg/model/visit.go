package model

import "time"

// Visit is the confirmed booking created from a completed session.
type Visit struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" firestore:"-" validate:"omitempty"`
	UserCreatingID string    `json:"user_creating_id" bson:"user_creating_id" firestore:"userCreatingId" validate:"required"`
	TherapistID    string    `json:"therapist_id" bson:"therapist_id" firestore:"therapistId" validate:"required"`
	IsAdult        bool      `json:"is_adult" bson:"is_adult" firestore:"isAdult"`
	PatientID      string    `json:"patient_id" bson:"patient_id" firestore:"patientId" validate:"required"`
	CategoryID     string    `json:"category_id" bson:"category_id" firestore:"type" validate:"required"`
	ProductID      string    `json:"product_id" bson:"product_id" firestore:"productId" validate:"required"`
	VisitModeID    string    `json:"visit_mode_id" bson:"visit_mode_id" firestore:"mode" validate:"required"`
	DateSlotID     string    `json:"date_slot_id" bson:"date_slot_id" firestore:"dateSlotId" validate:"required"`
	PaymentMethod  string    `json:"payment_method" bson:"payment_method" firestore:"paymentMethod" validate:"required,payment_method"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" firestore:"createdAt"`
}
