package model

import "time"

type SessionField string

const (
	FieldIsAdult       SessionField = "isAdult"
	FieldCategoryID    SessionField = "categoryId"
	FieldProductID     SessionField = "productId"
	FieldVisitModeID   SessionField = "visitModeId"
	FieldPatientID     SessionField = "patientId"
	FieldSlotID        SessionField = "slotId"
	FieldPaymentMethod SessionField = "paymentMethod"
)

// DependencyChain lists session fields in invalidation order. Each field
// depends on every field before it.
var DependencyChain = []SessionField{
	FieldIsAdult,
	FieldCategoryID,
	FieldProductID,
	FieldVisitModeID,
	FieldPatientID,
	FieldSlotID,
	FieldPaymentMethod,
}

func chainIndex(field SessionField) int {
	for i, f := range DependencyChain {
		if f == field {
			return i
		}
	}
	return -1
}

// BookingSession accumulates wizard answers for one booking attempt.
// All mutation goes through the Set methods so that downstream answers
// never outlive a change upstream.
type BookingSession struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	IsAdult       *bool     `json:"is_adult"`
	CategoryID    string    `json:"category_id"`
	ProductID     string    `json:"product_id"`
	VisitModeID   string    `json:"visit_mode_id"`
	VisitModeName string    `json:"visit_mode_name,omitempty"`
	PatientID     string    `json:"patient_id"`
	SlotID        string    `json:"slot_id"`
	PaymentMethod string    `json:"payment_method"`
	ActiveStep    int       `json:"active_step"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *BookingSession) SetIsAdult(isAdult *bool) {
	if isAdult != nil {
		v := *isAdult
		isAdult = &v
	}
	s.IsAdult = isAdult
	s.resetAfter(FieldIsAdult)
}

// SetCategory and the setters after it leave the session untouched when given
// the value already held. Only an actual change resets downstream answers.
func (s *BookingSession) SetCategory(categoryID string) {
	if categoryID == s.CategoryID {
		return
	}
	s.CategoryID = categoryID
	s.resetAfter(FieldCategoryID)
}

func (s *BookingSession) SetProduct(productID string) {
	if productID == s.ProductID {
		return
	}
	s.ProductID = productID
	s.resetAfter(FieldProductID)
}

// SetVisitMode records the chosen mode together with its name. A mode named
// "remote" pins the payment method to online. Re-selecting the held mode only
// refreshes its name.
func (s *BookingSession) SetVisitMode(modeID, modeName string) {
	if modeID == s.VisitModeID {
		if modeID != "" {
			s.VisitModeName = modeName
			s.enforceRemotePayment()
		}
		return
	}
	s.VisitModeID = modeID
	s.VisitModeName = modeName
	if modeID == "" {
		s.VisitModeName = ""
	}
	s.resetAfter(FieldVisitModeID)
}

func (s *BookingSession) SetPatient(patientID string) {
	if patientID == s.PatientID {
		return
	}
	s.PatientID = patientID
	s.resetAfter(FieldPatientID)
}

func (s *BookingSession) SetSlot(slotID string) {
	if slotID == s.SlotID {
		return
	}
	s.SlotID = slotID
	s.resetAfter(FieldSlotID)
}

func (s *BookingSession) SetPaymentMethod(method string) {
	s.PaymentMethod = method
	s.enforceRemotePayment()
}

// IsRemote reports whether the chosen visit mode is the remote one.
func (s *BookingSession) IsRemote() bool {
	return s.VisitModeID != "" && s.VisitModeName == VisitModeRemote
}

// IsSet reports whether a chain field holds a value.
func (s *BookingSession) IsSet(field SessionField) bool {
	switch field {
	case FieldIsAdult:
		return s.IsAdult != nil
	case FieldCategoryID:
		return s.CategoryID != ""
	case FieldProductID:
		return s.ProductID != ""
	case FieldVisitModeID:
		return s.VisitModeID != ""
	case FieldPatientID:
		return s.PatientID != ""
	case FieldSlotID:
		return s.SlotID != ""
	case FieldPaymentMethod:
		return s.PaymentMethod != ""
	}
	return false
}

func (s *BookingSession) Clone() *BookingSession {
	c := *s
	if s.IsAdult != nil {
		v := *s.IsAdult
		c.IsAdult = &v
	}
	return &c
}

func (s *BookingSession) resetAfter(field SessionField) {
	idx := chainIndex(field)
	for _, f := range DependencyChain[idx+1:] {
		s.clear(f)
	}
	s.enforceRemotePayment()
}

func (s *BookingSession) clear(field SessionField) {
	switch field {
	case FieldIsAdult:
		s.IsAdult = nil
	case FieldCategoryID:
		s.CategoryID = ""
	case FieldProductID:
		s.ProductID = ""
	case FieldVisitModeID:
		s.VisitModeID = ""
		s.VisitModeName = ""
	case FieldPatientID:
		s.PatientID = ""
	case FieldSlotID:
		s.SlotID = ""
	case FieldPaymentMethod:
		s.PaymentMethod = ""
	}
}

func (s *BookingSession) enforceRemotePayment() {
	if s.IsRemote() {
		s.PaymentMethod = PaymentOnline
	}
}
