package model

const VisitModeRemote = "remote"

const (
	PaymentOnline     = "online"
	PaymentOnPremises = "onPremises"
)

var PaymentMethods = []string{PaymentOnline, PaymentOnPremises}

type Category struct {
	ID       string `json:"id" bson:"_id,omitempty" firestore:"-"`
	Name     string `json:"name" bson:"name" firestore:"name"`
	FullName string `json:"full_name" bson:"full_name" firestore:"fullName"`
}

type Product struct {
	ID           string   `json:"id" bson:"_id,omitempty" firestore:"-"`
	CategoryID   string   `json:"category_id" bson:"category_id" firestore:"categoryId"`
	Name         string   `json:"name" bson:"name" firestore:"name"`
	FullName     string   `json:"full_name" bson:"full_name" firestore:"fullName"`
	ForAdults    bool     `json:"for_adults" bson:"for_adults" firestore:"forAdults"`
	ForChildren  bool     `json:"for_children" bson:"for_children" firestore:"forChildren"`
	VisitModeIDs []string `json:"visit_mode_ids" bson:"visit_mode_ids" firestore:"visitModeIds"`
}

type VisitMode struct {
	ID       string `json:"id" bson:"_id,omitempty" firestore:"-"`
	Name     string `json:"name" bson:"name" firestore:"name"`
	FullName string `json:"full_name" bson:"full_name" firestore:"fullName"`
}

func (m *VisitMode) IsRemote() bool {
	return m != nil && m.Name == VisitModeRemote
}

type Patient struct {
	ID           string   `json:"id" bson:"_id,omitempty" firestore:"-"`
	OwnerID      string   `json:"owner_id" bson:"owner_id" firestore:"ownerId"`
	Name         string   `json:"name" bson:"name" firestore:"name"`
	Age          int      `json:"age" bson:"age" firestore:"age"`
	IsAdult      bool     `json:"is_adult" bson:"is_adult" firestore:"isAdult"`
	TherapistIDs []string `json:"therapist_ids,omitempty" bson:"therapist_ids,omitempty" firestore:"therapistsIds"`
}

type Therapist struct {
	ID                string   `json:"id" bson:"_id,omitempty" firestore:"-"`
	NameSurname       string   `json:"name_surname" bson:"name_surname" firestore:"nameSurname"`
	AllowedProductIDs []string `json:"allowed_product_ids" bson:"allowed_product_ids" firestore:"allowedProductsIds"`
}
