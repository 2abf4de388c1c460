package model

import "time"

type Role string

const (
	RoleProfessional Role = "professional"
	RoleClient       Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleProfessional || r == RoleClient
}

type AppointmentStatus string

const (
	StatusPendingVerification AppointmentStatus = "pending_verification"
	StatusConfirmed           AppointmentStatus = "confirmed"
	StatusCancelled           AppointmentStatus = "cancelled"
	StatusDiscarded           AppointmentStatus = "discarded"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Role         Role
	PushToken    string
	CreatedAt    time.Time
}

type Service struct {
	ID             string
	ProfessionalID string
	Name           string
	Description    string
	Price          string
	DurationMin    int
	CreatedAt      time.Time

	// Display name of the offering professional, filled on reads.
	ProfessionalName string
}

// BusinessHour is one open window on a weekday, minute precision.
// DayOfWeek follows time.Weekday numbering (0 = Sunday).
type BusinessHour struct {
	ID             string
	ProfessionalID string
	DayOfWeek      int
	StartMinute    int
	EndMinute      int
}

type Appointment struct {
	ID             string
	ServiceID      string
	ProfessionalID string
	StartTime      time.Time
	EndTime        time.Time
	Status         AppointmentStatus
	PaymentStatus  PaymentStatus

	// Exactly one of ClientID or the guest tuple is set.
	ClientID      string
	GuestName     string
	GuestEmail    string
	GuestPhone    string
	GuestClientID string

	VerificationCode string
	CreatedAt        time.Time
	CancelledAt      *time.Time
	CancelReason     string
}

// Phone returns the contact number for the booking party.
func (a Appointment) Phone(clientPhone string) string {
	if a.ClientID != "" {
		return clientPhone
	}
	return a.GuestPhone
}

// IsGuest reports whether the appointment was booked without an account.
func (a Appointment) IsGuest() bool {
	return a.ClientID == ""
}

// AppointmentView is an appointment joined with display data for listings.
type AppointmentView struct {
	Appointment
	ServiceName      string
	ServicePrice     string
	DurationMin      int
	ProfessionalName string
}

type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      string
	Data      []byte
	Read      bool
	CreatedAt time.Time
}
