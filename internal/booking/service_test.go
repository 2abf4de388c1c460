package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendou/api/internal/availability"
	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/outbox"
)

// fakeTx satisfies pgx.Tx for fakes that never touch the database.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeStore struct {
	appts  map[string]*model.Appointment
	nextID int
	clock  func() time.Time
}

func newFakeStore(clock func() time.Time) *fakeStore {
	return &fakeStore{appts: map[string]*model.Appointment{}, clock: clock}
}

func (f *fakeStore) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeStore) occupying(professionalID string, start, end, cutoff time.Time, excludeID string) []availability.Interval {
	var busy []availability.Interval
	for id, a := range f.appts {
		if a.ProfessionalID != professionalID || id == excludeID {
			continue
		}
		occupies := a.Status == model.StatusConfirmed ||
			(a.Status == model.StatusPendingVerification && a.CreatedAt.After(cutoff))
		if !occupies {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
		}
	}
	return busy
}

func (f *fakeStore) ListOccupying(_ context.Context, professionalID string, start, end, cutoff time.Time) ([]availability.Interval, error) {
	return f.occupying(professionalID, start, end, cutoff, ""), nil
}

func (f *fakeStore) OverlapExistsTx(_ context.Context, _ pgx.Tx, professionalID string, start, end, cutoff time.Time, excludeID string) (bool, error) {
	return len(f.occupying(professionalID, start, end, cutoff, excludeID)) > 0, nil
}

func (f *fakeStore) DiscardLapsedOverlapping(_ context.Context, _ pgx.Tx, professionalID string, start, end, cutoff time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.ProfessionalID != professionalID || a.Status != model.StatusPendingVerification {
			continue
		}
		if a.CreatedAt.After(cutoff) {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			a.Status = model.StatusDiscarded
			a.VerificationCode = ""
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) FindPendingForParty(_ context.Context, _ pgx.Tx, appt model.Appointment) (string, string, error) {
	for id, a := range f.appts {
		if a.Status != model.StatusPendingVerification || a.ServiceID != appt.ServiceID || !a.StartTime.Equal(appt.StartTime) {
			continue
		}
		if appt.ClientID != "" && a.ClientID == appt.ClientID {
			return id, a.GuestClientID, nil
		}
		if appt.ClientID == "" && a.ClientID == "" && a.GuestPhone == appt.GuestPhone {
			return id, a.GuestClientID, nil
		}
	}
	return "", "", pgx.ErrNoRows
}

func (f *fakeStore) CreatePending(_ context.Context, _ pgx.Tx, appt model.Appointment) (string, error) {
	f.nextID++
	id := fmt.Sprintf("appt-%d", f.nextID)
	appt.ID = id
	appt.Status = model.StatusPendingVerification
	appt.PaymentStatus = model.PaymentPending
	appt.CreatedAt = f.clock()
	f.appts[id] = &appt
	return id, nil
}

func (f *fakeStore) RefreshPendingCode(_ context.Context, _ pgx.Tx, id, code string) error {
	a, ok := f.appts[id]
	if !ok || a.Status != model.StatusPendingVerification {
		return pgx.ErrNoRows
	}
	a.VerificationCode = code
	a.CreatedAt = f.clock()
	return nil
}

func (f *fakeStore) GetForUpdate(_ context.Context, _ pgx.Tx, id string) (model.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return *a, nil
}

func (f *fakeStore) Confirm(_ context.Context, _ pgx.Tx, id string) error {
	a, ok := f.appts[id]
	if !ok || a.Status != model.StatusPendingVerification {
		return pgx.ErrNoRows
	}
	a.Status = model.StatusConfirmed
	a.VerificationCode = ""
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.appts, id)
	return nil
}

func (f *fakeStore) Cancel(_ context.Context, _ pgx.Tx, id, reason string) (time.Time, error) {
	a, ok := f.appts[id]
	if !ok || a.Status != model.StatusConfirmed {
		return time.Time{}, pgx.ErrNoRows
	}
	now := f.clock()
	a.Status = model.StatusCancelled
	a.CancelledAt = &now
	a.CancelReason = reason
	return now, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, _ pgx.Tx, id string) error {
	a, ok := f.appts[id]
	if !ok || a.Status != model.StatusConfirmed {
		return pgx.ErrNoRows
	}
	a.PaymentStatus = model.PaymentPaid
	return nil
}

func (f *fakeStore) DiscardExpiredPending(_ context.Context, _ pgx.Tx, cutoff time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Status == model.StatusPendingVerification && !a.CreatedAt.After(cutoff) {
			a.Status = model.StatusDiscarded
			a.VerificationCode = ""
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) views(filter func(*model.Appointment) bool) []model.AppointmentView {
	var out []model.AppointmentView
	for _, a := range f.appts {
		if filter(a) {
			out = append(out, model.AppointmentView{Appointment: *a})
		}
	}
	return out
}

func (f *fakeStore) GetViewByID(_ context.Context, id string) (model.AppointmentView, error) {
	a, ok := f.appts[id]
	if !ok {
		return model.AppointmentView{}, pgx.ErrNoRows
	}
	return model.AppointmentView{Appointment: *a}, nil
}

func (f *fakeStore) ListViewsByClient(_ context.Context, clientID string) ([]model.AppointmentView, error) {
	return f.views(func(a *model.Appointment) bool { return a.ClientID == clientID }), nil
}

func (f *fakeStore) ListViewsByGuest(_ context.Context, guestClientID string) ([]model.AppointmentView, error) {
	return f.views(func(a *model.Appointment) bool { return a.GuestClientID == guestClientID }), nil
}

func (f *fakeStore) ListViewsByProfessional(_ context.Context, professionalID string) ([]model.AppointmentView, error) {
	return f.views(func(a *model.Appointment) bool { return a.ProfessionalID == professionalID }), nil
}

type fakeServices struct{ services map[string]model.Service }

func (f *fakeServices) GetByID(_ context.Context, id string) (model.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return model.Service{}, pgx.ErrNoRows
	}
	return s, nil
}

type fakeUsers struct{ users map[string]model.User }

func (f *fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return u, nil
}

type fakeHours struct{ hours []model.BusinessHour }

func (f *fakeHours) ListForDay(_ context.Context, professionalID string, dayOfWeek int) ([]model.BusinessHour, error) {
	var out []model.BusinessHour
	for _, h := range f.hours {
		if h.ProfessionalID == professionalID && h.DayOfWeek == dayOfWeek {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeEvents struct{ events []outbox.Event }

func (f *fakeEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, phone, message string) error {
	if f.fail {
		return errors.New("provider down")
	}
	f.sent = append(f.sent, phone+": "+message)
	return nil
}

func (f *fakeSender) ProviderID() string { return "whatsapp-fake" }

type fixture struct {
	svc    *Service
	store  *fakeStore
	events *fakeEvents
	sender *fakeSender
	now    time.Time
}

// monday is a Monday; the professional works 09:00-12:00 that weekday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: monday.Add(8 * time.Hour)}
	clock := func() time.Time { return f.now }

	f.store = newFakeStore(clock)
	f.events = &fakeEvents{}
	f.sender = &fakeSender{}

	services := &fakeServices{services: map[string]model.Service{
		"svc-cut": {ID: "svc-cut", ProfessionalID: "pro-1", Name: "Corte", Price: "50.00", DurationMin: 30},
	}}
	users := &fakeUsers{users: map[string]model.User{
		"pro-1":    {ID: "pro-1", Name: "Paulo", Phone: "5511911110000", Role: model.RoleProfessional},
		"client-1": {ID: "client-1", Name: "Clara", Phone: "5511922220000", Role: model.RoleClient},
	}}
	hours := &fakeHours{hours: []model.BusinessHour{
		{ProfessionalID: "pro-1", DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}}

	f.svc = NewService(f.store, services, users, hours, f.events, f.sender, slog.Default(), Config{})
	f.svc.now = clock
	return f
}

func (f *fixture) requestGuest(t *testing.T, start time.Time) VerificationResult {
	t.Helper()
	res, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID:  "svc-cut",
		StartTime:  start,
		Phone:      "5511933330000",
		GuestName:  "Gui",
		GuestEmail: "gui@example.com",
	})
	if err != nil {
		t.Fatalf("request verification: %v", err)
	}
	return res
}

func (f *fixture) codeOf(t *testing.T, appointmentID string) string {
	t.Helper()
	a, ok := f.store.appts[appointmentID]
	if !ok {
		t.Fatalf("appointment %s not stored", appointmentID)
	}
	return a.VerificationCode
}

func TestAvailability_GeneratesSlotsForWindow(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Availability(context.Background(), "svc-cut", "2026-03-02")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if len(res.Slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), res.Slots)
	}
	for i, s := range want {
		if res.Slots[i] != s {
			t.Fatalf("slot %d: expected %s, got %s", i, s, res.Slots[i])
		}
	}
	if len(res.BookedTimes) != 0 {
		t.Fatalf("expected no booked times, got %v", res.BookedTimes)
	}
}

func TestAvailability_UnknownService(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Availability(context.Background(), "svc-nope", "2026-03-02")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailability_NoHoursForWeekday(t *testing.T) {
	f := newFixture(t)
	// 2026-03-01 is a Sunday; no windows are configured.
	res, err := f.svc.Availability(context.Background(), "svc-cut", "2026-03-01")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(res.Slots) != 0 {
		t.Fatalf("expected no slots, got %v", res.Slots)
	}
}

func TestAvailability_BadDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Availability(context.Background(), "svc-cut", "02/03/2026")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRequestVerification_SendsCode(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))

	if res.AppointmentID == "" || res.GuestClientID == "" {
		t.Fatalf("expected ids, got %+v", res)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(f.sender.sent))
	}
	code := f.codeOf(t, res.AppointmentID)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
}

func TestRequestVerification_GuestFieldsRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID: "svc-cut",
		StartTime: monday.Add(9 * time.Hour),
		Phone:     "5511933330000",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(f.store.appts) != 0 {
		t.Fatalf("no appointment should be stored")
	}
}

func TestRequestVerification_OccupiedSlotConflicts(t *testing.T) {
	f := newFixture(t)
	start := monday.Add(9 * time.Hour)
	res := f.requestGuest(t, start)
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, f.codeOf(t, res.AppointmentID)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID:  "svc-cut",
		StartTime:  start.Add(15 * time.Minute), // off-grid, still overlaps
		Phone:      "5511944440000",
		GuestName:  "Outra",
		GuestEmail: "outra@example.com",
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
}

func TestRequestVerification_SendFailureLeavesNoResidue(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = true

	_, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID:  "svc-cut",
		StartTime:  monday.Add(9 * time.Hour),
		Phone:      "5511933330000",
		GuestName:  "Gui",
		GuestEmail: "gui@example.com",
	})
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	if len(f.store.appts) != 0 {
		t.Fatalf("tentative appointment must be deleted, got %d rows", len(f.store.appts))
	}

	// The slot is bookable again immediately.
	f.sender.fail = false
	f.requestGuest(t, monday.Add(9*time.Hour))
}

func TestRequestVerification_RerequestRefreshesCode(t *testing.T) {
	f := newFixture(t)
	start := monday.Add(9 * time.Hour)
	first := f.requestGuest(t, start)
	firstCode := f.codeOf(t, first.AppointmentID)

	second, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID:  "svc-cut",
		StartTime:  start,
		Phone:      "5511933330000",
		GuestName:  "Gui",
		GuestEmail: "gui@example.com",
	})
	if err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if second.AppointmentID != first.AppointmentID {
		t.Fatalf("re-request must reuse the pending row, got %s and %s", first.AppointmentID, second.AppointmentID)
	}
	if len(f.store.appts) != 1 {
		t.Fatalf("expected a single pending row, got %d", len(f.store.appts))
	}
	if f.codeOf(t, first.AppointmentID) == firstCode {
		t.Logf("codes may collide by chance, but a stale-looking code is suspicious")
	}

	// The refreshed row keeps its original guest id, and that is the id
	// handed back, even when the guest did not resend it.
	if second.GuestClientID != first.GuestClientID {
		t.Fatalf("re-request returned guest id %s, row keeps %s", second.GuestClientID, first.GuestClientID)
	}
	views, err := f.svc.ListForGuest(context.Background(), second.GuestClientID)
	if err != nil {
		t.Fatalf("list for guest: %v", err)
	}
	if len(views) != 1 || views[0].ID != first.AppointmentID {
		t.Fatalf("guest id from re-request must resolve to the pending row, got %d views", len(views))
	}
}

func TestVerifyCode_ConfirmsAndClearsCode(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))
	code := f.codeOf(t, res.AppointmentID)

	out, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.GuestClientID != res.GuestClientID {
		t.Fatalf("guest id changed across handshake")
	}

	a := f.store.appts[res.AppointmentID]
	if a.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", a.Status)
	}
	if a.VerificationCode != "" {
		t.Fatalf("code must be cleared after confirmation")
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != outbox.TopicAppointmentConfirmed {
		t.Fatalf("expected a confirmed event, got %+v", f.events.events)
	}
}

func TestVerifyCode_MismatchIsRetryable(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))
	code := f.codeOf(t, res.AppointmentID)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, wrong); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}

	a := f.store.appts[res.AppointmentID]
	if a.Status != model.StatusPendingVerification {
		t.Fatalf("mismatch must leave the row pending, got %s", a.Status)
	}

	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, code); err != nil {
		t.Fatalf("retry with correct code: %v", err)
	}
}

func TestVerifyCode_ExpiredPendingRejected(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))
	code := f.codeOf(t, res.AppointmentID)

	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, code); !errors.Is(err, ErrVerificationExpired) {
		t.Fatalf("expected ErrVerificationExpired, got %v", err)
	}
}

func TestVerifyCode_ExpiredPendingFreesSlot(t *testing.T) {
	f := newFixture(t)
	start := monday.Add(9 * time.Hour)
	f.requestGuest(t, start)

	// Once the TTL lapses the slot is treated as free again.
	f.now = f.now.Add(16 * time.Minute)
	res, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID:  "svc-cut",
		StartTime:  start,
		Phone:      "5511944440000",
		GuestName:  "Outra",
		GuestEmail: "outra@example.com",
	})
	if err != nil {
		t.Fatalf("expected lapsed pending not to block, got %v", err)
	}
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, f.codeOf(t, res.AppointmentID)); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestEndToEnd_BookedSlotShowsInAvailability(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, f.codeOf(t, res.AppointmentID)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	avail, err := f.svc.Availability(context.Background(), "svc-cut", "2026-03-02")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(avail.BookedTimes) != 1 || avail.BookedTimes[0] != "2026-03-02T09:00:00Z" {
		t.Fatalf("expected the 09:00 start instant booked, got %v", avail.BookedTimes)
	}
}

func TestGuestIdentity_StableAndIsolated(t *testing.T) {
	f := newFixture(t)
	first := f.requestGuest(t, monday.Add(9*time.Hour))
	if _, err := f.svc.VerifyCode(context.Background(), first.AppointmentID, f.codeOf(t, first.AppointmentID)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Same guest books again, passing their id back.
	second, err := f.svc.RequestVerification(context.Background(), VerificationRequest{
		ServiceID:     "svc-cut",
		StartTime:     monday.Add(10 * time.Hour),
		Phone:         "5511933330000",
		GuestName:     "Gui",
		GuestEmail:    "gui@example.com",
		GuestClientID: first.GuestClientID,
	})
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if second.GuestClientID != first.GuestClientID {
		t.Fatalf("guest id must be stable across bookings")
	}

	views, err := f.svc.ListForGuest(context.Background(), first.GuestClientID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 appointments for guest, got %d", len(views))
	}

	other := f.requestGuest(t, monday.Add(11*time.Hour))
	if other.GuestClientID == first.GuestClientID {
		t.Fatalf("distinct guests must get distinct ids")
	}
	views, err = f.svc.ListForGuest(context.Background(), other.GuestClientID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("guest listings must be isolated, got %d", len(views))
	}
}

func TestCancel_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, f.codeOf(t, res.AppointmentID)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	stranger := identity.Caller{UserID: "client-1", Role: model.RoleClient}
	if err := f.svc.Cancel(context.Background(), stranger, res.AppointmentID, "mudou de ideia"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	pro := identity.Caller{UserID: "pro-1", Role: model.RoleProfessional}
	if err := f.svc.Cancel(context.Background(), pro, res.AppointmentID, "imprevisto"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.store.appts[res.AppointmentID].Status != model.StatusCancelled {
		t.Fatalf("expected cancelled status")
	}
}

func TestMarkPaid_ProfessionalOnly(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))
	if _, err := f.svc.VerifyCode(context.Background(), res.AppointmentID, f.codeOf(t, res.AppointmentID)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	client := identity.Caller{UserID: "client-1", Role: model.RoleClient}
	if err := f.svc.MarkPaid(context.Background(), client, res.AppointmentID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	pro := identity.Caller{UserID: "pro-1", Role: model.RoleProfessional}
	if err := f.svc.MarkPaid(context.Background(), pro, res.AppointmentID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if f.store.appts[res.AppointmentID].PaymentStatus != model.PaymentPaid {
		t.Fatalf("expected paid status")
	}
	if err := f.svc.MarkPaid(context.Background(), pro, res.AppointmentID); !errors.Is(err, ErrValidation) {
		t.Fatalf("double mark-paid should fail validation, got %v", err)
	}
}

func TestSweeper_DiscardsLapsedPending(t *testing.T) {
	f := newFixture(t)
	res := f.requestGuest(t, monday.Add(9*time.Hour))

	sweeper := NewSweeper(f.store, f.events, slog.Default(), SweeperConfig{})
	sweeper.now = func() time.Time { return f.now }

	// Still inside the window: nothing happens.
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if f.store.appts[res.AppointmentID].Status != model.StatusPendingVerification {
		t.Fatalf("fresh pending row must survive the sweep")
	}

	f.now = f.now.Add(16 * time.Minute)
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := f.store.appts[res.AppointmentID].Status; got != model.StatusDiscarded {
		t.Fatalf("expected discarded, got %s", got)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != outbox.TopicAppointmentDiscarded {
		t.Fatalf("expected a discarded event, got %+v", f.events.events)
	}
}

func TestFormatCode(t *testing.T) {
	if got := formatCode(100000); got != "100000" {
		t.Fatalf("expected 100000, got %s", got)
	}
	if got := formatCode(999999); got != "999999" {
		t.Fatalf("expected 999999, got %s", got)
	}
}
