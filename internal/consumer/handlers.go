package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/outbox"
	"github.com/agendou/api/internal/storage"
	"github.com/agendou/api/internal/whatsapp"
)

// Handlers fan confirmed and payment events out to in-app notifications
// and WhatsApp. They run behind the inbox dedupe, so a redelivered
// message never notifies twice.
type Handlers struct {
	users         *storage.UserRepository
	services      *storage.ServiceRepository
	notifications *storage.NotificationRepository
	sender        whatsapp.Sender
	logger        *slog.Logger
}

func NewHandlers(
	users *storage.UserRepository,
	services *storage.ServiceRepository,
	notifications *storage.NotificationRepository,
	sender whatsapp.Sender,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		users:         users,
		services:      services,
		notifications: notifications,
		sender:        sender,
		logger:        logger,
	}
}

// AppointmentConfirmed alerts the professional in-app and over WhatsApp.
func (h *Handlers) AppointmentConfirmed(ctx context.Context, msg kafka.Message) error {
	var payload outbox.AppointmentPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("decode confirmed payload: %w", err)
	}

	svc, err := h.services.GetByID(ctx, payload.ServiceID)
	if err != nil {
		return fmt.Errorf("service lookup: %w", err)
	}

	clientName, clientPhone := h.clientContact(ctx, payload)

	data, _ := json.Marshal(map[string]string{"appointmentId": payload.AppointmentID})
	if _, err := h.notifications.Create(ctx, model.Notification{
		UserID:  payload.ProfessionalID,
		Title:   "Novo Agendamento Confirmado! 📅",
		Message: fmt.Sprintf("%s confirmou agendamento de %s", clientName, svc.Name),
		Type:    "appointment",
		Data:    data,
	}); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	professional, err := h.users.GetByID(ctx, payload.ProfessionalID)
	if err != nil {
		return fmt.Errorf("professional lookup: %w", err)
	}
	if professional.Phone == "" {
		return nil
	}
	text := whatsapp.ProfessionalConfirmationMessage(clientName, clientPhone, svc.Name, svc.Price, payload.StartTime)
	if err := h.sender.Send(ctx, professional.Phone, text); err != nil {
		// Delivery is best effort; the notification row already exists.
		h.logger.Error("professional whatsapp failed", "appointment_id", payload.AppointmentID, "err", err)
	}
	return nil
}

// PaymentMarked tells the counterpart the deposit was settled.
func (h *Handlers) PaymentMarked(ctx context.Context, msg kafka.Message) error {
	var payload outbox.AppointmentPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("decode payment payload: %w", err)
	}

	svc, err := h.services.GetByID(ctx, payload.ServiceID)
	if err != nil {
		return fmt.Errorf("service lookup: %w", err)
	}
	clientName, _ := h.clientContact(ctx, payload)
	data, _ := json.Marshal(map[string]string{"appointmentId": payload.AppointmentID})

	if _, err := h.notifications.Create(ctx, model.Notification{
		UserID:  payload.ProfessionalID,
		Title:   "Pagamento Confirmado! 💰",
		Message: fmt.Sprintf("Pagamento do serviço confirmado por %s", clientName),
		Type:    "payment",
		Data:    data,
	}); err != nil {
		return fmt.Errorf("create professional notification: %w", err)
	}

	if payload.ClientID != "" {
		if _, err := h.notifications.Create(ctx, model.Notification{
			UserID:  payload.ClientID,
			Title:   "Pagamento Registrado ✅",
			Message: fmt.Sprintf("O pagamento de %s foi registrado", svc.Name),
			Type:    "payment",
			Data:    data,
		}); err != nil {
			return fmt.Errorf("create client notification: %w", err)
		}
	}
	return nil
}

// AppointmentCancelled records an in-app notice for the professional.
func (h *Handlers) AppointmentCancelled(ctx context.Context, msg kafka.Message) error {
	var payload outbox.AppointmentPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("decode cancelled payload: %w", err)
	}
	clientName, _ := h.clientContact(ctx, payload)
	data, _ := json.Marshal(map[string]string{"appointmentId": payload.AppointmentID})
	_, err := h.notifications.Create(ctx, model.Notification{
		UserID:  payload.ProfessionalID,
		Title:   "Agendamento Cancelado",
		Message: fmt.Sprintf("%s cancelou o agendamento", clientName),
		Type:    "appointment",
		Data:    data,
	})
	return err
}

func (h *Handlers) clientContact(ctx context.Context, payload outbox.AppointmentPayload) (string, string) {
	if payload.ClientID == "" {
		name := payload.GuestName
		if name == "" {
			name = "Cliente"
		}
		return name, payload.GuestPhone
	}
	client, err := h.users.GetByID(ctx, payload.ClientID)
	if err != nil {
		h.logger.Error("client lookup failed", "client_id", payload.ClientID, "err", err)
		return "Cliente", ""
	}
	return client.Name, client.Phone
}
