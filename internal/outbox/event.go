package outbox

import (
	"encoding/json"
	"time"

	"github.com/agendou/api/internal/model"
)

// Topics. The Kafka topic name equals the event type, one topic per event.
const (
	TopicAppointmentConfirmed = "booking.appointment.confirmed.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicAppointmentDiscarded = "booking.appointment.discarded.v1"
	TopicPaymentMarked        = "booking.payment.marked.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentPayload is the wire body shared by the appointment events.
type AppointmentPayload struct {
	AppointmentID  string    `json:"appointmentId"`
	ServiceID      string    `json:"serviceId"`
	ProfessionalID string    `json:"professionalId"`
	ClientID       string    `json:"clientId,omitempty"`
	GuestName      string    `json:"guestName,omitempty"`
	GuestPhone     string    `json:"guestPhone,omitempty"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Reason         string    `json:"reason,omitempty"`
}

func appointmentEvent(eventType string, appt model.Appointment, reason string) (Event, error) {
	payload, err := json.Marshal(AppointmentPayload{
		AppointmentID:  appt.ID,
		ServiceID:      appt.ServiceID,
		ProfessionalID: appt.ProfessionalID,
		ClientID:       appt.ClientID,
		GuestName:      appt.GuestName,
		GuestPhone:     appt.GuestPhone,
		StartTime:      appt.StartTime,
		EndTime:        appt.EndTime,
		Reason:         reason,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

func AppointmentConfirmed(appt model.Appointment) (Event, error) {
	return appointmentEvent(TopicAppointmentConfirmed, appt, "")
}

func AppointmentCancelled(appt model.Appointment, reason string) (Event, error) {
	return appointmentEvent(TopicAppointmentCancelled, appt, reason)
}

func AppointmentDiscarded(appt model.Appointment) (Event, error) {
	return appointmentEvent(TopicAppointmentDiscarded, appt, "verification expired")
}

func PaymentMarked(appt model.Appointment) (Event, error) {
	return appointmentEvent(TopicPaymentMarked, appt, "")
}
