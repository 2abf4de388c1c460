package booking

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendou/api/internal/availability"
	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/outbox"
	"github.com/agendou/api/internal/storage"
	"github.com/agendou/api/internal/whatsapp"
)

const DefaultPendingTTL = 15 * time.Minute

// AppointmentStore is the slice of the appointment repository the
// orchestrator needs. Tests substitute a fake.
type AppointmentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ListOccupying(ctx context.Context, professionalID string, start, end, pendingCutoff time.Time) ([]availability.Interval, error)
	OverlapExistsTx(ctx context.Context, tx pgx.Tx, professionalID string, start, end, pendingCutoff time.Time, excludeID string) (bool, error)
	DiscardLapsedOverlapping(ctx context.Context, tx pgx.Tx, professionalID string, start, end, cutoff time.Time) ([]model.Appointment, error)
	FindPendingForParty(ctx context.Context, tx pgx.Tx, appt model.Appointment) (string, string, error)
	CreatePending(ctx context.Context, tx pgx.Tx, appt model.Appointment) (string, error)
	RefreshPendingCode(ctx context.Context, tx pgx.Tx, id, code string) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	Confirm(ctx context.Context, tx pgx.Tx, id string) error
	Delete(ctx context.Context, id string) error
	Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id string) error
	GetViewByID(ctx context.Context, id string) (model.AppointmentView, error)
	ListViewsByClient(ctx context.Context, clientID string) ([]model.AppointmentView, error)
	ListViewsByGuest(ctx context.Context, guestClientID string) ([]model.AppointmentView, error)
	ListViewsByProfessional(ctx context.Context, professionalID string) ([]model.AppointmentView, error)
}

type ServiceStore interface {
	GetByID(ctx context.Context, id string) (model.Service, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

type HourStore interface {
	ListForDay(ctx context.Context, professionalID string, dayOfWeek int) ([]model.BusinessHour, error)
}

type EventStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Service orchestrates availability, the verification handshake, and the
// appointment lifecycle. Caller identity always arrives as an explicit
// value, never as ambient state.
type Service struct {
	appts      AppointmentStore
	services   ServiceStore
	users      UserStore
	hours      HourStore
	events     EventStore
	sender     whatsapp.Sender
	logger     *slog.Logger
	pendingTTL time.Duration
	now        func() time.Time
}

type Config struct {
	PendingTTL time.Duration
}

func NewService(
	appts AppointmentStore,
	services ServiceStore,
	users UserStore,
	hours HourStore,
	events EventStore,
	sender whatsapp.Sender,
	logger *slog.Logger,
	cfg Config,
) *Service {
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &Service{
		appts:      appts,
		services:   services,
		users:      users,
		hours:      hours,
		events:     events,
		sender:     sender,
		logger:     logger,
		pendingTTL: ttl,
		now:        time.Now,
	}
}

type AvailabilityResult struct {
	Service     model.Service
	Windows     []model.BusinessHour
	Slots       []string
	BookedTimes []string
}

// Availability computes the open slots for a service on a calendar day.
// A weekday without configured hours yields an empty result, not an error.
func (s *Service) Availability(ctx context.Context, serviceID, date string) (AvailabilityResult, error) {
	if serviceID == "" {
		return AvailabilityResult{}, validationf("serviceId is required")
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return AvailabilityResult{}, validationf("date must be YYYY-MM-DD")
	}

	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return AvailabilityResult{}, wrapf(ErrNotFound, "service %s", serviceID)
		}
		return AvailabilityResult{}, err
	}

	windows, err := s.hours.ListForDay(ctx, svc.ProfessionalID, int(day.Weekday()))
	if err != nil {
		return AvailabilityResult{}, err
	}
	if len(windows) == 0 {
		return AvailabilityResult{Service: svc}, nil
	}

	lists := make([][]string, 0, len(windows))
	for _, w := range windows {
		lists = append(lists, availability.GenerateSlots(w.StartMinute, w.EndMinute, svc.DurationMin))
	}
	slots := availability.MergeSlots(lists...)

	busy, err := s.appts.ListOccupying(ctx, svc.ProfessionalID, day, day.AddDate(0, 0, 1), s.pendingCutoff())
	if err != nil {
		return AvailabilityResult{}, err
	}

	// bookedTimes carries full start instants, not HH:MM labels, so the
	// client can compare them against appointmentDate values directly.
	bookedSet := availability.BookedSlots(slots, day, svc.DurationMin, busy)
	var booked []string
	for _, slot := range slots {
		if !bookedSet[slot] {
			continue
		}
		at, err := availability.SlotTime(day, slot)
		if err != nil {
			return AvailabilityResult{}, err
		}
		booked = append(booked, at.UTC().Format(time.RFC3339))
	}

	return AvailabilityResult{
		Service:     svc,
		Windows:     windows,
		Slots:       slots,
		BookedTimes: booked,
	}, nil
}

// ListForCaller returns the caller's appointments joined with display
// data, soonest first. Professionals see their whole agenda.
func (s *Service) ListForCaller(ctx context.Context, caller identity.Caller) ([]model.AppointmentView, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}
	if caller.Role == model.RoleProfessional {
		return s.appts.ListViewsByProfessional(ctx, caller.UserID)
	}
	return s.appts.ListViewsByClient(ctx, caller.UserID)
}

// ViewForCaller fetches one appointment with display data, restricted
// to the booking client or the appointment's professional.
func (s *Service) ViewForCaller(ctx context.Context, caller identity.Caller, appointmentID string) (model.AppointmentView, error) {
	if caller.Anonymous() {
		return model.AppointmentView{}, ErrUnauthorized
	}
	if appointmentID == "" {
		return model.AppointmentView{}, validationf("appointmentId is required")
	}
	view, err := s.appts.GetViewByID(ctx, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.AppointmentView{}, wrapf(ErrNotFound, "appointment %s", appointmentID)
		}
		return model.AppointmentView{}, err
	}
	if view.ClientID != caller.UserID && view.ProfessionalID != caller.UserID {
		return model.AppointmentView{}, ErrForbidden
	}
	return view, nil
}

func (s *Service) ListForGuest(ctx context.Context, guestClientID string) ([]model.AppointmentView, error) {
	if guestClientID == "" {
		return nil, validationf("guestClientId is required")
	}
	return s.appts.ListViewsByGuest(ctx, guestClientID)
}

// Cancel flips a confirmed appointment to cancelled. Only the booking
// client or the appointment's professional may cancel.
func (s *Service) Cancel(ctx context.Context, caller identity.Caller, appointmentID, reason string) error {
	if caller.Anonymous() {
		return ErrUnauthorized
	}
	if appointmentID == "" {
		return validationf("appointmentId is required")
	}

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appts.GetForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return wrapf(ErrNotFound, "appointment %s", appointmentID)
		}
		return err
	}
	if appt.ClientID != caller.UserID && appt.ProfessionalID != caller.UserID {
		return ErrForbidden
	}
	if appt.Status != model.StatusConfirmed {
		return validationf("only confirmed appointments can be cancelled")
	}

	if _, err := s.appts.Cancel(ctx, tx, appointmentID, reason); err != nil {
		return err
	}

	evt, err := outbox.AppointmentCancelled(appt, reason)
	if err != nil {
		return err
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkPaid moves the payment axis of a confirmed appointment from
// pending to paid. Professionals mark their own appointments; clients
// use ConfirmPayment for theirs.
func (s *Service) MarkPaid(ctx context.Context, caller identity.Caller, appointmentID string) error {
	return s.settlePayment(ctx, caller, appointmentID, func(appt model.Appointment) error {
		if caller.Role != model.RoleProfessional || appt.ProfessionalID != caller.UserID {
			return ErrForbidden
		}
		return nil
	})
}

// ConfirmPayment is the client-side path: a client reports the deposit
// for their own appointment as settled.
func (s *Service) ConfirmPayment(ctx context.Context, caller identity.Caller, appointmentID string) error {
	return s.settlePayment(ctx, caller, appointmentID, func(appt model.Appointment) error {
		if appt.ClientID != caller.UserID {
			return ErrForbidden
		}
		return nil
	})
}

func (s *Service) settlePayment(ctx context.Context, caller identity.Caller, appointmentID string, authorize func(model.Appointment) error) error {
	if caller.Anonymous() {
		return ErrUnauthorized
	}
	if appointmentID == "" {
		return validationf("appointmentId is required")
	}

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appts.GetForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return wrapf(ErrNotFound, "appointment %s", appointmentID)
		}
		return err
	}
	if err := authorize(appt); err != nil {
		return err
	}
	if appt.Status != model.StatusConfirmed {
		return validationf("appointment is not confirmed")
	}
	if appt.PaymentStatus == model.PaymentPaid {
		return validationf("appointment is already paid")
	}

	if err := s.appts.MarkPaid(ctx, tx, appointmentID); err != nil {
		return err
	}

	evt, err := outbox.PaymentMarked(appt)
	if err != nil {
		return err
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) pendingCutoff() time.Time {
	return s.now().Add(-s.pendingTTL)
}

// generateCode draws a uniform 6-digit verification code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	code := 100000 + n.Int64()
	return formatCode(code), nil
}

func formatCode(n int64) string {
	digits := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
