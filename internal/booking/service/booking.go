package service

import (
	"context"
	"errors"
	"reflect"
	"time"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/internal/booking/reference"
	"clinicbook/internal/booking/repository"
	"clinicbook/internal/booking/steps"
	"clinicbook/internal/booking/validator"
	"clinicbook/pkg/config"
	apperrors "clinicbook/pkg/errors"
	"clinicbook/pkg/model"
	"clinicbook/pkg/validation"

	"github.com/google/uuid"
)

const patientPageSize = 50

// Wizard is the client-facing view of a booking session after every
// derived value has been recomputed.
type Wizard struct {
	Session         *model.BookingSession `json:"session"`
	Steps           []steps.Key           `json:"steps"`
	ActiveStep      steps.Key             `json:"active_step"`
	Options         Options               `json:"options"`
	CanAdvance      bool                  `json:"can_advance"`
	SubmissionReady bool                  `json:"submission_ready"`
}

// Options lists the choices for the active step. Only the slice matching
// the step is filled. The date step has no inline options: slots are paged
// through the slot API with SlotFilter.
type Options struct {
	Categories     []model.Category  `json:"categories,omitempty"`
	Products       []model.Product   `json:"products,omitempty"`
	Patients       []model.Patient   `json:"patients,omitempty"`
	VisitModes     []model.VisitMode `json:"visit_modes,omitempty"`
	PaymentMethods []string          `json:"payment_methods,omitempty"`
	SlotFilter     *model.SlotFilter `json:"slot_filter,omitempty"`
}

// SlotGateway is the part of the slot service the wizard drives.
type SlotGateway interface {
	GetByID(ctx context.Context, userID, id string) (*model.SlotView, error)
	Claim(ctx context.Context, userID, slotID, previousSlotID string) error
	ReleaseIfHeld(ctx context.Context, userID, slotID string) (bool, error)
}

type VisitBooker interface {
	Book(ctx context.Context, visit *model.Visit) (*model.Visit, error)
}

type BookingService interface {
	Start(ctx context.Context, userID string) (*Wizard, error)
	Get(ctx context.Context, userID, id string) (*Wizard, error)
	Answer(ctx context.Context, userID, id, field string, value any) (*Wizard, error)
	SelectSlot(ctx context.Context, userID, id, slotID string) (*Wizard, error)
	Advance(ctx context.Context, userID, id string) (*Wizard, error)
	Back(ctx context.Context, userID, id string) (*Wizard, error)
	Submit(ctx context.Context, userID, id string) (*model.Visit, error)
	Abandon(ctx context.Context, userID, id string) error

	Categories(ctx context.Context) ([]model.Category, error)
	VisitModes(ctx context.Context) ([]model.VisitMode, error)
	Patients(ctx context.Context, userID string, isAdult *bool, limit, offset int) ([]model.Patient, error)
}

type bookingService struct {
	sessions  repository.SessionRepository
	catalog   reference.Catalog
	slots     SlotGateway
	visits    VisitBooker
	validator *validator.AnswerValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	sessions repository.SessionRepository,
	catalog reference.Catalog,
	slots SlotGateway,
	visits VisitBooker,
	validator *validator.AnswerValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		sessions:  sessions,
		catalog:   catalog,
		slots:     slots,
		visits:    visits,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Start(ctx context.Context, userID string) (*Wizard, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("User identity is required")
	}

	now := s.now().UTC()
	sess := &model.BookingSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data := s.referenceData(ctx, sess)
	keys := steps.ComputeSteps(sess, data)

	if err := s.sessions.Create(ctx, sess); err != nil {
		s.cfg.Log.Error("Failed to create booking session", "user_id", userID, "error", err)
		return nil, mapRepoError(sess.ID, err)
	}

	s.cfg.Log.Info("Booking session started", "id", sess.ID, "user_id", userID)
	return s.view(ctx, sess, data, keys), nil
}

func (s *bookingService) Get(ctx context.Context, userID, id string) (*Wizard, error) {
	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	before := sess.Clone()
	data, keys := s.refresh(ctx, sess)
	// A view built from partial reference data is served but never stored.
	if !data.Degraded() && !reflect.DeepEqual(before, sess) {
		if err := s.save(ctx, sess, before.SlotID); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, sess, data, keys), nil
}

// Answer applies one field through the cascading setters, then re-derives
// the step list. A slot held before the change and cleared by the cascade
// is released.
func (s *bookingService) Answer(ctx context.Context, userID, id, field string, value any) (*Wizard, error) {
	answer, err := s.validator.Parse(field, value)
	if err != nil {
		return nil, validationError(err)
	}

	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	heldBefore := sess.SlotID

	if err := s.apply(ctx, sess, answer); err != nil {
		return nil, err
	}

	data, keys, err := s.refreshForWrite(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess, heldBefore); err != nil {
		return nil, err
	}

	s.cfg.Log.Debug("Booking answer applied",
		"id", sess.ID,
		"field", answer.Field,
		"active_step", steps.Active(sess, keys),
	)
	return s.view(ctx, sess, data, keys), nil
}

func (s *bookingService) apply(ctx context.Context, sess *model.BookingSession, answer *validator.Answer) error {
	value := answer.Value

	switch answer.Field {
	case model.FieldIsAdult:
		sess.SetIsAdult(answer.IsAdult)

	case model.FieldCategoryID:
		if value != "" {
			ok, err := s.hasCategory(ctx, value)
			if err != nil {
				return err
			}
			if !ok {
				return notAnOption(answer.Field)
			}
		}
		sess.SetCategory(value)

	case model.FieldProductID:
		if value != "" {
			data := s.referenceData(ctx, sess)
			if data.ProductsFailed {
				return apperrors.Unavailable("Reference catalog")
			}
			if data.Product(value) == nil {
				return notAnOption(answer.Field)
			}
		}
		sess.SetProduct(value)

	case model.FieldVisitModeID:
		if value == "" {
			sess.SetVisitMode("", "")
			return nil
		}
		data := s.referenceData(ctx, sess)
		if data.Degraded() {
			return apperrors.Unavailable("Reference catalog")
		}
		mode := findMode(data.ModesFor(sess.ProductID), value)
		if mode == nil {
			return notAnOption(answer.Field)
		}
		sess.SetVisitMode(mode.ID, mode.Name)

	case model.FieldPatientID:
		if value != "" {
			if err := s.checkPatient(ctx, sess, value); err != nil {
				return err
			}
		}
		sess.SetPatient(value)

	case model.FieldPaymentMethod:
		if sess.IsRemote() && value != "" && value != model.PaymentOnline {
			return apperrors.Validation("Remote visits are paid online", map[string]any{
				"fields": map[string]any{string(answer.Field): "must be " + model.PaymentOnline},
			})
		}
		sess.SetPaymentMethod(value)
	}
	return nil
}

// SelectSlot claims slotID for the session's user, handing over the slot
// held so far.
func (s *bookingService) SelectSlot(ctx context.Context, userID, id, slotID string) (*Wizard, error) {
	if slotID == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	data, keys, err := s.refreshForWrite(ctx, sess)
	if err != nil {
		return nil, err
	}

	if !sess.IsSet(model.FieldProductID) {
		return nil, apperrors.StepIncomplete(string(steps.Product))
	}

	view, err := s.slots.GetByID(ctx, userID, slotID)
	if err != nil {
		return nil, err
	}
	switch {
	case view.IsBooked():
		return nil, apperrors.Conflict("Slot already has a confirmed visit")
	case !view.Selectable(userID):
		return nil, apperrors.Conflict("Slot is held by another user")
	case !view.AllowsProduct(sess.ProductID):
		return nil, apperrors.Validation("Slot does not offer the chosen product", map[string]any{
			"slot_id":    slotID,
			"product_id": sess.ProductID,
		})
	}

	previous := sess.SlotID
	if err := s.slots.Claim(ctx, userID, slotID, previous); err != nil {
		s.cfg.Log.Warn("Slot claim failed",
			"id", sess.ID,
			"slot_id", slotID,
			"previous_slot_id", previous,
			"error", err,
		)
		return nil, err
	}

	sess.SetSlot(slotID)
	keys = steps.ComputeSteps(sess, data)
	steps.Clamp(sess, keys)

	// The previous slot was already released by the claim.
	if err := s.save(ctx, sess, ""); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Slot selected", "id", sess.ID, "slot_id", slotID, "previous_slot_id", previous)
	return s.view(ctx, sess, data, keys), nil
}

func (s *bookingService) Advance(ctx context.Context, userID, id string) (*Wizard, error) {
	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	heldBefore := sess.SlotID
	data, keys, err := s.refreshForWrite(ctx, sess)
	if err != nil {
		return nil, err
	}

	if _, err := steps.Advance(sess, keys); err != nil {
		if errors.Is(err, steps.ErrIncomplete) {
			return nil, apperrors.StepIncomplete(string(steps.Active(sess, keys)))
		}
		return nil, apperrors.Internal("Failed to advance", err)
	}

	if err := s.save(ctx, sess, heldBefore); err != nil {
		return nil, err
	}
	return s.view(ctx, sess, data, keys), nil
}

func (s *bookingService) Back(ctx context.Context, userID, id string) (*Wizard, error) {
	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	heldBefore := sess.SlotID
	data, keys, err := s.refreshForWrite(ctx, sess)
	if err != nil {
		return nil, err
	}

	if err := steps.Back(sess); err != nil {
		return nil, apperrors.Conflict("Already at the first step")
	}

	if err := s.save(ctx, sess, heldBefore); err != nil {
		return nil, err
	}
	return s.view(ctx, sess, data, keys), nil
}

// Submit books the visit and discards the session. The held slot stays
// with the visit.
func (s *bookingService) Submit(ctx context.Context, userID, id string) (*model.Visit, error) {
	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	_, keys, err := s.refreshForWrite(ctx, sess)
	if err != nil {
		return nil, err
	}

	if !steps.SubmissionReady(sess, keys) {
		return nil, apperrors.StepIncomplete(string(firstIncomplete(sess, keys)))
	}

	view, err := s.slots.GetByID(ctx, userID, sess.SlotID)
	if err != nil {
		return nil, err
	}

	visit := &model.Visit{
		UserCreatingID: userID,
		TherapistID:    view.TherapistID,
		IsAdult:        *sess.IsAdult,
		PatientID:      sess.PatientID,
		CategoryID:     sess.CategoryID,
		ProductID:      sess.ProductID,
		VisitModeID:    sess.VisitModeID,
		DateSlotID:     sess.SlotID,
		PaymentMethod:  sess.PaymentMethod,
	}
	if err := s.validator.Visit(visit); err != nil {
		return nil, validationError(err)
	}

	booked, err := s.visits.Book(ctx, visit)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		s.cfg.Log.Warn("Failed to delete submitted booking session", "id", sess.ID, "error", err)
	}

	s.cfg.Log.Info("Booking submitted", "id", sess.ID, "visit_id", booked.ID, "slot_id", booked.DateSlotID)
	return booked, nil
}

func (s *bookingService) Abandon(ctx context.Context, userID, id string) error {
	sess, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}

	if sess.SlotID != "" {
		s.releaseHeld(ctx, userID, sess.SlotID)
	}

	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return mapRepoError(sess.ID, err)
	}

	s.cfg.Log.Info("Booking session abandoned", "id", sess.ID, "user_id", userID)
	return nil
}

func (s *bookingService) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list categories", "error", err)
		return nil, mapCatalogError("categories", err)
	}
	return categories, nil
}

func (s *bookingService) VisitModes(ctx context.Context) ([]model.VisitMode, error) {
	modes, err := s.catalog.VisitModes(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list visit modes", "error", err)
		return nil, mapCatalogError("visit modes", err)
	}
	return modes, nil
}

// Patients pages through the caller's patients ordered by name.
func (s *bookingService) Patients(ctx context.Context, userID string, isAdult *bool, limit, offset int) ([]model.Patient, error) {
	if limit <= 0 || limit > patientPageSize {
		limit = patientPageSize
	}
	if offset < 0 {
		offset = 0
	}

	patients, err := s.catalog.PatientsByOwner(ctx, userID, isAdult, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list patients", "user_id", userID, "error", err)
		return nil, mapCatalogError("patients", err)
	}
	return patients, nil
}

// load hides sessions that belong to another user.
func (s *bookingService) load(ctx context.Context, userID, id string) (*model.BookingSession, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(id, err)
	}
	if sess.UserID != userID {
		return nil, apperrors.NotFoundWithID("Booking session", id)
	}
	return sess, nil
}

// refresh applies the selections implied by the current reference data and
// returns the resulting step list with the active index clamped to it.
func (s *bookingService) refresh(ctx context.Context, sess *model.BookingSession) (steps.ReferenceData, []steps.Key) {
	data := s.referenceData(ctx, sess)
	steps.AutoSelect(sess, data)
	keys := steps.ComputeSteps(sess, data)
	steps.Clamp(sess, keys)
	return data, keys
}

// refreshForWrite is refresh for calls that persist the session. Partial
// reference data would let missing options read as withdrawn ones, so the
// call fails instead.
func (s *bookingService) refreshForWrite(ctx context.Context, sess *model.BookingSession) (steps.ReferenceData, []steps.Key, error) {
	data, keys := s.refresh(ctx, sess)
	if data.Degraded() {
		return data, keys, apperrors.Unavailable("Reference catalog")
	}
	return data, keys, nil
}

// save persists sess and releases heldBefore when the session no longer
// holds it.
func (s *bookingService) save(ctx context.Context, sess *model.BookingSession, heldBefore string) error {
	sess.UpdatedAt = s.now().UTC()

	if err := s.sessions.Save(ctx, sess); err != nil {
		s.cfg.Log.Error("Failed to save booking session", "id", sess.ID, "error", err)
		return mapRepoError(sess.ID, err)
	}

	if heldBefore != "" && sess.SlotID != heldBefore {
		s.releaseHeld(ctx, sess.UserID, heldBefore)
	}
	return nil
}

func (s *bookingService) releaseHeld(ctx context.Context, userID, slotID string) {
	released, err := s.slots.ReleaseIfHeld(ctx, userID, slotID)
	if err != nil {
		s.cfg.Log.Warn("Failed to release slot", "slot_id", slotID, "user_id", userID, "error", err)
		return
	}
	if released {
		s.cfg.Log.Debug("Released slot", "slot_id", slotID, "user_id", userID)
	}
}

// referenceData loads the products for the chosen category and age plus
// every visit mode. A failed lookup leaves its list empty and sets the
// matching Failed flag.
func (s *bookingService) referenceData(ctx context.Context, sess *model.BookingSession) steps.ReferenceData {
	var data steps.ReferenceData

	if sess.IsSet(model.FieldIsAdult) && sess.IsSet(model.FieldCategoryID) {
		isAdult := *sess.IsAdult
		products, err := s.catalog.ProductsByCategoryAndAge(ctx, sess.CategoryID, isAdult, !isAdult)
		if err != nil {
			s.cfg.Log.Warn("Failed to load products", "category_id", sess.CategoryID, "error", err)
			data.ProductsFailed = true
		}
		data.Products = products
	}

	modes, err := s.catalog.VisitModes(ctx)
	if err != nil {
		s.cfg.Log.Warn("Failed to load visit modes", "error", err)
		data.ModesFailed = true
	}
	data.VisitModes = modes

	return data
}

func (s *bookingService) view(ctx context.Context, sess *model.BookingSession, data steps.ReferenceData, keys []steps.Key) *Wizard {
	active := steps.Active(sess, keys)
	return &Wizard{
		Session:         sess,
		Steps:           keys,
		ActiveStep:      active,
		Options:         s.options(ctx, sess, data, active),
		CanAdvance:      steps.CanAdvance(sess, keys),
		SubmissionReady: steps.SubmissionReady(sess, keys),
	}
}

func (s *bookingService) options(ctx context.Context, sess *model.BookingSession, data steps.ReferenceData, active steps.Key) Options {
	var opts Options

	switch active {
	case steps.Category:
		categories, err := s.catalog.Categories(ctx)
		if err != nil {
			s.cfg.Log.Warn("Failed to load categories", "error", err)
		}
		opts.Categories = categories
	case steps.Product:
		opts.Products = data.Products
	case steps.Patient:
		patients, err := s.catalog.PatientsByOwner(ctx, sess.UserID, sess.IsAdult, patientPageSize, 0)
		if err != nil {
			s.cfg.Log.Warn("Failed to load patients", "user_id", sess.UserID, "error", err)
		}
		opts.Patients = patients
	case steps.Mode:
		opts.VisitModes = data.ModesFor(sess.ProductID)
	case steps.Date:
		opts.SlotFilter = &model.SlotFilter{ProductID: sess.ProductID}
	case steps.Payment:
		opts.PaymentMethods = model.PaymentMethods
	}
	return opts
}

func (s *bookingService) hasCategory(ctx context.Context, id string) (bool, error) {
	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		s.cfg.Log.Warn("Failed to load categories", "error", err)
		return false, mapCatalogError("categories", err)
	}
	for _, c := range categories {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *bookingService) checkPatient(ctx context.Context, sess *model.BookingSession, id string) error {
	patient, err := s.catalog.Patient(ctx, id)
	if err != nil {
		if errors.Is(err, bookingerrors.ErrNotFound) {
			return notAnOption(model.FieldPatientID)
		}
		s.cfg.Log.Warn("Failed to load patient", "patient_id", id, "error", err)
		return apperrors.Unavailable("Patient directory")
	}
	if patient.OwnerID != sess.UserID {
		return notAnOption(model.FieldPatientID)
	}
	if sess.IsAdult != nil && patient.IsAdult != *sess.IsAdult {
		return notAnOption(model.FieldPatientID)
	}
	return nil
}

func findMode(modes []model.VisitMode, id string) *model.VisitMode {
	for i := range modes {
		if modes[i].ID == id {
			return &modes[i]
		}
	}
	return nil
}

func firstIncomplete(sess *model.BookingSession, keys []steps.Key) steps.Key {
	for _, k := range keys {
		if !steps.Complete(k, sess) {
			return k
		}
	}
	return steps.Active(sess, keys)
}

func notAnOption(field model.SessionField) error {
	return apperrors.Validation("Answer is not an available option", map[string]any{
		"fields": map[string]any{string(field): "not an available option"},
	})
}

func validationError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Answer validation failed", verrs.Details())
	}
	return apperrors.Validation("Answer validation failed", map[string]any{"error": err.Error()})
}

func mapCatalogError(what string, err error) error {
	switch {
	case errors.Is(err, bookingerrors.ErrStoreUnavailable):
		return apperrors.Unavailable("Reference catalog")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out loading " + what)
	default:
		return apperrors.Internal("Failed to load "+what, err)
	}
}

func mapRepoError(id string, err error) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, bookingerrors.ErrSessionNotFound):
		return apperrors.NotFoundWithID("Booking session", id)
	case errors.Is(err, bookingerrors.ErrStoreUnavailable):
		return apperrors.Unavailable("Booking session store")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out accessing booking session")
	default:
		return apperrors.Internal("Booking session store failure", err)
	}
}
