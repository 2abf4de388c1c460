// Package handlers exposes the REST surface. JSON field names follow
// the mobile client (camelCase), and domain errors map onto status
// codes in one place.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agendou/api/internal/booking"
	"github.com/agendou/api/internal/model"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeDomainError translates booking errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrValidation), errors.Is(err, booking.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrVerificationExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, booking.ErrNotificationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
		Role:  string(u.Role),
	}
}

type appointmentResponse struct {
	ID               string `json:"id"`
	ServiceID        string `json:"serviceId"`
	ServiceName      string `json:"serviceName"`
	ServicePrice     string `json:"servicePrice"`
	Duration         int    `json:"duration"`
	ProfessionalName string `json:"professionalName"`
	AppointmentDate  string `json:"appointmentDate"`
	EndTime          string `json:"endTime"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"paymentStatus"`
	GuestName        string `json:"guestName,omitempty"`
	GuestClientID    string `json:"guestClientId,omitempty"`
	CancelReason     string `json:"cancelReason,omitempty"`
}

func toAppointmentResponse(v model.AppointmentView) appointmentResponse {
	return appointmentResponse{
		ID:               v.ID,
		ServiceID:        v.ServiceID,
		ServiceName:      v.ServiceName,
		ServicePrice:     v.ServicePrice,
		Duration:         v.DurationMin,
		ProfessionalName: v.ProfessionalName,
		AppointmentDate:  v.StartTime.UTC().Format(time.RFC3339),
		EndTime:          v.EndTime.UTC().Format(time.RFC3339),
		Status:           string(v.Status),
		PaymentStatus:    string(v.PaymentStatus),
		GuestName:        v.GuestName,
		GuestClientID:    v.GuestClientID,
		CancelReason:     v.CancelReason,
	}
}

func toAppointmentResponses(views []model.AppointmentView) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toAppointmentResponse(v))
	}
	return out
}
