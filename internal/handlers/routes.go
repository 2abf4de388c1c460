package handlers

import (
	"net/http"

	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
)

type Routes struct {
	Auth          *AuthHandler
	Catalog       *CatalogHandler
	Appointments  *AppointmentHandler
	Payments      *PaymentHandler
	Notifications *NotificationHandler
	JWTSecret     string
}

// Register mounts the API on mux. Auth requirements are applied here,
// once per route, so handlers can assume what the middleware enforced.
func (rt Routes) Register(mux *http.ServeMux) {
	secret := rt.JWTSecret
	authed := func(h http.HandlerFunc) http.Handler {
		return identity.RequireAuth(h, secret)
	}
	professional := func(h http.HandlerFunc) http.Handler {
		return identity.RequireAuth(identity.RequireRole(h, model.RoleProfessional), secret)
	}
	optional := func(h http.HandlerFunc) http.Handler {
		return identity.OptionalAuth(h, secret)
	}

	mux.HandleFunc("/api/auth/register", rt.Auth.Register)
	mux.HandleFunc("/api/auth/login", rt.Auth.Login)
	mux.Handle("/api/auth/me", authed(rt.Auth.Me))
	mux.Handle("/api/auth/push-token", authed(rt.Auth.PushToken))

	// GET is public, POST requires a professional; the handler sorts
	// that out per method.
	mux.Handle("/api/services", optional(rt.Catalog.Services))
	mux.Handle("/api/business-hours", authed(rt.Catalog.BusinessHours))

	mux.HandleFunc("/api/appointments/available", rt.Appointments.Available)
	mux.Handle("/api/appointments/request-verification", optional(rt.Appointments.RequestVerification))
	mux.HandleFunc("/api/appointments/verify-code", rt.Appointments.VerifyCode)
	mux.HandleFunc("/api/appointments/guest/", rt.Appointments.Guest)
	mux.Handle("/api/appointments/my", authed(rt.Appointments.My))
	mux.Handle("/api/appointments/cancel", authed(rt.Appointments.Cancel))
	// Catch-all for /api/appointments/{id}/mark-paid.
	mux.Handle("/api/appointments/", professional(rt.Appointments.MarkPaid))

	mux.Handle("/api/payments/confirm", authed(rt.Payments.Confirm))
	mux.Handle("/api/payments/deposit-intent", authed(rt.Payments.DepositIntent))

	mux.Handle("/api/notifications", authed(rt.Notifications.List))
	mux.Handle("/api/notifications/", authed(rt.Notifications.MarkRead))
}
