package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/payments"
)

type PaymentService interface {
	ConfirmPayment(ctx context.Context, caller identity.Caller, appointmentID string) error
	ViewForCaller(ctx context.Context, caller identity.Caller, appointmentID string) (model.AppointmentView, error)
}

type DepositProvider interface {
	CreateDepositIntent(appointmentID, price string) (payments.Intent, error)
}

type PaymentHandler struct {
	svc      PaymentService
	deposits DepositProvider
	logger   *slog.Logger
}

func NewPaymentHandler(svc PaymentService, deposits DepositProvider, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, deposits: deposits, logger: logger}
}

type confirmPaymentRequest struct {
	AppointmentID string `json:"appointmentId"`
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	caller, _ := identity.CallerFrom(r.Context())
	if err := h.svc.ConfirmPayment(r.Context(), caller, strings.TrimSpace(req.AppointmentID)); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pagamento confirmado e agendamento aprovado"})
}

type depositIntentRequest struct {
	AppointmentID string `json:"appointmentId"`
}

// DepositIntent opens a payment intent for the service price of a
// confirmed appointment.
func (h *PaymentHandler) DepositIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req depositIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	caller, _ := identity.CallerFrom(r.Context())
	view, err := h.svc.ViewForCaller(r.Context(), caller, strings.TrimSpace(req.AppointmentID))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if view.Status != model.StatusConfirmed {
		writeError(w, http.StatusBadRequest, "appointment is not confirmed")
		return
	}
	if view.PaymentStatus == model.PaymentPaid {
		writeError(w, http.StatusBadRequest, "appointment is already paid")
		return
	}

	intent, err := h.deposits.CreateDepositIntent(view.ID, view.ServicePrice)
	if err != nil {
		h.logger.Error("deposit intent failed", "appointment_id", view.ID, "err", err)
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}
