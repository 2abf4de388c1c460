package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agendou/api/internal/booking"
	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
)

// BookingService is what the appointment endpoints need from the
// orchestrator.
type BookingService interface {
	Availability(ctx context.Context, serviceID, date string) (booking.AvailabilityResult, error)
	RequestVerification(ctx context.Context, req booking.VerificationRequest) (booking.VerificationResult, error)
	VerifyCode(ctx context.Context, appointmentID, code string) (booking.VerificationResult, error)
	ListForCaller(ctx context.Context, caller identity.Caller) ([]model.AppointmentView, error)
	ListForGuest(ctx context.Context, guestClientID string) ([]model.AppointmentView, error)
	Cancel(ctx context.Context, caller identity.Caller, appointmentID, reason string) error
	MarkPaid(ctx context.Context, caller identity.Caller, appointmentID string) error
}

type AppointmentHandler struct {
	svc    BookingService
	logger *slog.Logger
}

func NewAppointmentHandler(svc BookingService, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type availabilityResponse struct {
	BusinessHours []businessHourResponse `json:"businessHours"`
	Slots         []string               `json:"slots"`
	BookedTimes   []string               `json:"bookedTimes"`
}

func (h *AppointmentHandler) Available(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	res, err := h.svc.Availability(r.Context(), q.Get("serviceId"), q.Get("date"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	hours := make([]businessHourResponse, 0, len(res.Windows))
	for _, bh := range res.Windows {
		hours = append(hours, businessHourResponse{
			ID:        bh.ID,
			DayOfWeek: bh.DayOfWeek,
			StartTime: minuteToHHMM(bh.StartMinute),
			EndTime:   minuteToHHMM(bh.EndMinute),
		})
	}
	out := availabilityResponse{
		BusinessHours: hours,
		Slots:         res.Slots,
		BookedTimes:   res.BookedTimes,
	}
	if out.Slots == nil {
		out.Slots = []string{}
	}
	if out.BookedTimes == nil {
		out.BookedTimes = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

type requestVerificationRequest struct {
	ServiceID       string `json:"serviceId"`
	AppointmentDate string `json:"appointmentDate"`
	Phone           string `json:"phone"`
	GuestName       string `json:"guestName"`
	GuestEmail      string `json:"guestEmail"`
	GuestClientID   string `json:"guestClientId"`
}

type requestVerificationResponse struct {
	AppointmentID string `json:"appointmentId"`
	GuestClientID string `json:"guestClientId,omitempty"`
}

func (h *AppointmentHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req requestVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.AppointmentDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "appointmentDate must be RFC 3339")
		return
	}

	caller, _ := identity.CallerFrom(r.Context())
	res, err := h.svc.RequestVerification(r.Context(), booking.VerificationRequest{
		ServiceID:     strings.TrimSpace(req.ServiceID),
		StartTime:     start,
		Caller:        caller,
		Phone:         req.Phone,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		GuestClientID: req.GuestClientID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, requestVerificationResponse{
		AppointmentID: res.AppointmentID,
		GuestClientID: res.GuestClientID,
	})
}

type verifyCodeRequest struct {
	AppointmentID    string `json:"appointmentId"`
	VerificationCode string `json:"verificationCode"`
}

type verifyCodeResponse struct {
	Message       string `json:"message"`
	GuestClientID string `json:"guestClientId,omitempty"`
}

func (h *AppointmentHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := h.svc.VerifyCode(r.Context(), strings.TrimSpace(req.AppointmentID), strings.TrimSpace(req.VerificationCode))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyCodeResponse{
		Message:       "Código verificado com sucesso e agendamento confirmado",
		GuestClientID: res.GuestClientID,
	})
}

func (h *AppointmentHandler) My(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	caller, _ := identity.CallerFrom(r.Context())
	views, err := h.svc.ListForCaller(r.Context(), caller)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(views))
}

// Guest serves GET /api/appointments/guest/{guestClientId}.
func (h *AppointmentHandler) Guest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/appointments/guest/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "guestClientId is required")
		return
	}
	views, err := h.svc.ListForGuest(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(views))
}

type cancelRequest struct {
	AppointmentID string `json:"appointmentId"`
	Reason        string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	caller, _ := identity.CallerFrom(r.Context())
	if err := h.svc.Cancel(r.Context(), caller, strings.TrimSpace(req.AppointmentID), strings.TrimSpace(req.Reason)); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// MarkPaid serves POST /api/appointments/{id}/mark-paid.
func (h *AppointmentHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/appointments/")
	id, ok := strings.CutSuffix(path, "/mark-paid")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	caller, _ := identity.CallerFrom(r.Context())
	if err := h.svc.MarkPaid(r.Context(), caller, id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentStatus": string(model.PaymentPaid)})
}
