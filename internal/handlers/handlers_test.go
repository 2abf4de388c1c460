package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendou/api/internal/booking"
	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/payments"
	"github.com/agendou/api/libs/auth"
)

const testSecret = "handler-test-secret"

type memUsers struct {
	byEmail map[string]model.User
	byID    map[string]model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]model.User{}, byID: map[string]model.User{}}
}

func (m *memUsers) Create(_ context.Context, u model.User) error {
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memUsers) UpdatePushToken(_ context.Context, id, token string) error {
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PushToken = token
	m.byID[id] = u
	return nil
}

type stubBooking struct {
	availability booking.AvailabilityResult
	requestErr   error
	verifyErr    error
	markPaidErr  error
	confirmErr   error
	views        []model.AppointmentView
	view         model.AppointmentView
}

func (s *stubBooking) Availability(context.Context, string, string) (booking.AvailabilityResult, error) {
	return s.availability, nil
}

func (s *stubBooking) RequestVerification(context.Context, booking.VerificationRequest) (booking.VerificationResult, error) {
	if s.requestErr != nil {
		return booking.VerificationResult{}, s.requestErr
	}
	return booking.VerificationResult{AppointmentID: "appt-1", GuestClientID: "guest-1"}, nil
}

func (s *stubBooking) VerifyCode(context.Context, string, string) (booking.VerificationResult, error) {
	if s.verifyErr != nil {
		return booking.VerificationResult{}, s.verifyErr
	}
	return booking.VerificationResult{AppointmentID: "appt-1"}, nil
}

func (s *stubBooking) ListForCaller(context.Context, identity.Caller) ([]model.AppointmentView, error) {
	return s.views, nil
}

func (s *stubBooking) ListForGuest(context.Context, string) ([]model.AppointmentView, error) {
	return s.views, nil
}

func (s *stubBooking) Cancel(context.Context, identity.Caller, string, string) error { return nil }

func (s *stubBooking) MarkPaid(context.Context, identity.Caller, string) error { return s.markPaidErr }

func (s *stubBooking) ConfirmPayment(context.Context, identity.Caller, string) error {
	return s.confirmErr
}

func (s *stubBooking) ViewForCaller(context.Context, identity.Caller, string) (model.AppointmentView, error) {
	return s.view, nil
}

type stubCatalog struct {
	services []model.Service
	hours    []model.BusinessHour
}

func (s *stubCatalog) Create(_ context.Context, svc model.Service) (string, error) {
	s.services = append(s.services, svc)
	return "svc-new", nil
}

func (s *stubCatalog) List(context.Context) ([]model.Service, error) { return s.services, nil }

func (s *stubCatalog) CreateHour(_ context.Context, h model.BusinessHour) (string, error) {
	s.hours = append(s.hours, h)
	return "hour-new", nil
}

func (s *stubCatalog) ListByProfessional(context.Context, string) ([]model.BusinessHour, error) {
	return s.hours, nil
}

// hourStore adapts stubCatalog to the HourStore interface.
type hourStore struct{ c *stubCatalog }

func (h hourStore) Create(ctx context.Context, bh model.BusinessHour) (string, error) {
	return h.c.CreateHour(ctx, bh)
}

func (h hourStore) ListByProfessional(ctx context.Context, id string) ([]model.BusinessHour, error) {
	return h.c.ListByProfessional(ctx, id)
}

type stubNotifications struct {
	items   []model.Notification
	readAll bool
	read    []string
}

func (s *stubNotifications) ListByUser(context.Context, string, int) ([]model.Notification, error) {
	return s.items, nil
}

func (s *stubNotifications) MarkRead(_ context.Context, _, id string) error {
	s.read = append(s.read, id)
	return nil
}

func (s *stubNotifications) MarkAllRead(context.Context, string) error {
	s.readAll = true
	return nil
}

type stubDeposits struct{}

func (stubDeposits) CreateDepositIntent(appointmentID, price string) (payments.Intent, error) {
	return payments.Intent{ID: "sim_test", AmountCents: 5000, Currency: "brl", Simulated: true}, nil
}

type fixture struct {
	mux           *http.ServeMux
	users         *memUsers
	booking       *stubBooking
	catalog       *stubCatalog
	notifications *stubNotifications
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()
	f := &fixture{
		mux:           http.NewServeMux(),
		users:         newMemUsers(),
		booking:       &stubBooking{},
		catalog:       &stubCatalog{},
		notifications: &stubNotifications{},
	}
	catalog := f.catalog
	Routes{
		Auth:          NewAuthHandler(f.users, testSecret, time.Hour, logger),
		Catalog:       NewCatalogHandler(catalog, hourStore{catalog}, logger),
		Appointments:  NewAppointmentHandler(f.booking, logger),
		Payments:      NewPaymentHandler(f.booking, stubDeposits{}, logger),
		Notifications: NewNotificationHandler(f.notifications, logger),
		JWTSecret:     testSecret,
	}.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, userID string, role model.Role) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{
		Sub:  userID,
		Role: string(role),
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Paulo",
		"email":    "paulo@example.com",
		"password": "segredo",
		"role":     "professional",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var reg authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.Token == "" || reg.User.Role != "professional" {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "paulo@example.com",
		"password": "segredo",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "paulo@example.com",
		"password": "errada",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}
}

func TestRegisterRejectsBadRole(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "X",
		"email":    "x@example.com",
		"password": "p",
		"role":     "admin",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAvailableEndpoint(t *testing.T) {
	f := newFixture(t)
	f.booking.availability = booking.AvailabilityResult{
		Windows: []model.BusinessHour{
			{ID: "h1", DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 12 * 60},
		},
		Slots:       []string{"09:00", "09:30"},
		BookedTimes: []string{"2026-03-02T09:00:00Z"},
	}

	rec := f.do(t, http.MethodGet, "/api/appointments/available?serviceId=svc-1&date=2026-03-02", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Slots) != 2 || len(res.BookedTimes) != 1 {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.BusinessHours[0].StartTime != "09:00" || res.BusinessHours[0].EndTime != "12:00" {
		t.Fatalf("unexpected window: %+v", res.BusinessHours[0])
	}
}

func TestRequestVerificationAsGuest(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/appointments/request-verification", map[string]string{
		"serviceId":       "svc-1",
		"appointmentDate": "2026-03-02T09:00:00Z",
		"phone":           "5511933330000",
		"guestName":       "Gui",
		"guestEmail":      "gui@example.com",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var res requestVerificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.AppointmentID == "" || res.GuestClientID == "" {
		t.Fatalf("missing ids: %+v", res)
	}
}

func TestRequestVerificationConflict(t *testing.T) {
	f := newFixture(t)
	f.booking.requestErr = booking.ErrSlotConflict
	rec := f.do(t, http.MethodPost, "/api/appointments/request-verification", map[string]string{
		"serviceId":       "svc-1",
		"appointmentDate": "2026-03-02T09:00:00Z",
		"phone":           "5511933330000",
		"guestName":       "Gui",
		"guestEmail":      "gui@example.com",
	}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestVerifyCodeErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{booking.ErrCodeMismatch, http.StatusBadRequest},
		{booking.ErrVerificationExpired, http.StatusGone},
		{booking.ErrSlotConflict, http.StatusConflict},
		{booking.ErrNotFound, http.StatusNotFound},
		{booking.ErrNotificationFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.booking.verifyErr = tc.err
		rec := f.do(t, http.MethodPost, "/api/appointments/verify-code", map[string]string{
			"appointmentId":    "appt-1",
			"verificationCode": "123456",
		}, "")
		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}

func TestMarkPaidRequiresProfessional(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/appointments/appt-1/mark-paid", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/appointments/appt-1/mark-paid", nil, tokenFor(t, "client-1", model.RoleClient))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("client: expected 403, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/appointments/appt-1/mark-paid", nil, tokenFor(t, "pro-1", model.RoleProfessional))
	if rec.Code != http.StatusOK {
		t.Fatalf("professional: expected 200, got %d: %s", rec.Code, rec.Body)
	}
}

func TestGuestListingPath(t *testing.T) {
	f := newFixture(t)
	f.booking.views = []model.AppointmentView{{
		Appointment: model.Appointment{
			ID:            "appt-1",
			StartTime:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			EndTime:       time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
			Status:        model.StatusConfirmed,
			PaymentStatus: model.PaymentPending,
			GuestClientID: "guest-1",
		},
		ServiceName: "Corte",
	}}

	rec := f.do(t, http.MethodGet, "/api/appointments/guest/guest-1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res []appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res) != 1 || res[0].ServiceName != "Corte" {
		t.Fatalf("unexpected listing: %+v", res)
	}
}

func TestServicesCreateRequiresProfessional(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"name": "Corte", "price": "50.00", "duration": 30}

	rec := f.do(t, http.MethodPost, "/api/services", body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/services", body, tokenFor(t, "client-1", model.RoleClient))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("client: expected 403, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/services", body, tokenFor(t, "pro-1", model.RoleProfessional))
	if rec.Code != http.StatusCreated {
		t.Fatalf("professional: expected 201, got %d: %s", rec.Code, rec.Body)
	}
}

func TestServicesListShowsProfessional(t *testing.T) {
	f := newFixture(t)
	f.catalog.services = []model.Service{{
		ID:               "svc-1",
		ProfessionalID:   "pro-1",
		Name:             "Corte",
		Price:            "50.00",
		DurationMin:      30,
		ProfessionalName: "Paulo",
	}}

	rec := f.do(t, http.MethodGet, "/api/services", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res []serviceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res) != 1 || res[0].ProfessionalName != "Paulo" || res[0].ProfessionalID != "pro-1" {
		t.Fatalf("listing must carry the offering professional, got %+v", res)
	}
}

func TestBusinessHoursValidation(t *testing.T) {
	f := newFixture(t)
	token := tokenFor(t, "pro-1", model.RoleProfessional)

	rec := f.do(t, http.MethodPost, "/api/business-hours", map[string]any{
		"dayOfWeek": 1, "startTime": "12:00", "endTime": "09:00",
	}, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted window: expected 400, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/business-hours", map[string]any{
		"dayOfWeek": 1, "startTime": "09:00", "endTime": "12:00",
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
}

func TestNotificationsReadAll(t *testing.T) {
	f := newFixture(t)
	token := tokenFor(t, "client-1", model.RoleClient)

	rec := f.do(t, http.MethodPut, "/api/notifications/read-all", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if !f.notifications.readAll {
		t.Fatalf("read-all not applied")
	}

	rec = f.do(t, http.MethodPut, "/api/notifications/n-1/read", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if len(f.notifications.read) != 1 || f.notifications.read[0] != "n-1" {
		t.Fatalf("unexpected read ids: %v", f.notifications.read)
	}
}

func TestDepositIntent(t *testing.T) {
	f := newFixture(t)
	f.booking.view = model.AppointmentView{
		Appointment: model.Appointment{
			ID:            "appt-1",
			Status:        model.StatusConfirmed,
			PaymentStatus: model.PaymentPending,
		},
		ServicePrice: "50.00",
	}

	rec := f.do(t, http.MethodPost, "/api/payments/deposit-intent", map[string]string{
		"appointmentId": "appt-1",
	}, tokenFor(t, "client-1", model.RoleClient))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var intent payments.Intent
	if err := json.Unmarshal(rec.Body.Bytes(), &intent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !intent.Simulated || intent.AmountCents != 5000 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}
