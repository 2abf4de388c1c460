package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/outbox"
	"github.com/agendou/api/internal/storage"
	"github.com/agendou/api/internal/whatsapp"
)

type VerificationRequest struct {
	ServiceID string
	StartTime time.Time
	Caller    identity.Caller

	// Contact number for the code. Authenticated clients may omit it;
	// their profile phone is used then.
	Phone string

	// Guest booking party. GuestClientID correlates repeat bookings by
	// the same guest and is minted on first use.
	GuestName     string
	GuestEmail    string
	GuestClientID string
}

type VerificationResult struct {
	AppointmentID string
	GuestClientID string
}

// RequestVerification reserves a slot tentatively and sends the 6-digit
// code over WhatsApp. The overlap check and the insert share one
// transaction; the send happens after commit, with the row deleted when
// delivery fails so no residue blocks the slot.
func (s *Service) RequestVerification(ctx context.Context, req VerificationRequest) (VerificationResult, error) {
	appt, clientName, phone, err := s.buildTentative(ctx, req)
	if err != nil {
		return VerificationResult{}, err
	}

	svc, err := s.services.GetByID(ctx, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return VerificationResult{}, wrapf(ErrNotFound, "service %s", req.ServiceID)
		}
		return VerificationResult{}, err
	}
	appt.ProfessionalID = svc.ProfessionalID
	appt.EndTime = appt.StartTime.Add(time.Duration(svc.DurationMin) * time.Minute)

	code, err := generateCode()
	if err != nil {
		return VerificationResult{}, err
	}
	appt.VerificationCode = code

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return VerificationResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A re-request by the same party for the same slot refreshes the
	// code on the existing pending row instead of inserting a twin.
	id, storedGuestID, err := s.appts.FindPendingForParty(ctx, tx, appt)
	switch {
	case err == nil:
		if err := s.appts.RefreshPendingCode(ctx, tx, id, code); err != nil {
			return VerificationResult{}, err
		}
		// The row keeps the guest id it was created with; hand that one
		// back so repeat guests stay under a single identity.
		if storedGuestID != "" {
			appt.GuestClientID = storedGuestID
		}
	case storage.IsNotFound(err):
		// Lapsed pending rows still sit under the exclusion constraint,
		// so reclaim them here before the insert.
		lapsed, err := s.appts.DiscardLapsedOverlapping(ctx, tx, appt.ProfessionalID, appt.StartTime, appt.EndTime, s.pendingCutoff())
		if err != nil {
			return VerificationResult{}, err
		}
		for _, stale := range lapsed {
			evt, err := outbox.AppointmentDiscarded(stale)
			if err != nil {
				return VerificationResult{}, err
			}
			if err := s.events.Insert(ctx, tx, evt); err != nil {
				return VerificationResult{}, err
			}
		}

		occupied, err := s.appts.OverlapExistsTx(ctx, tx, appt.ProfessionalID, appt.StartTime, appt.EndTime, s.pendingCutoff(), "")
		if err != nil {
			return VerificationResult{}, err
		}
		if occupied {
			return VerificationResult{}, ErrSlotConflict
		}
		id, err = s.appts.CreatePending(ctx, tx, appt)
		if err != nil {
			if storage.IsConflict(err) {
				return VerificationResult{}, ErrSlotConflict
			}
			return VerificationResult{}, err
		}
	default:
		return VerificationResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return VerificationResult{}, err
	}

	text := whatsapp.VerificationCodeMessage(clientName, svc.Name, svc.Price, appt.StartTime, code)
	if err := s.sender.Send(ctx, phone, text); err != nil {
		s.logger.Error("verification code delivery failed", "appointment_id", id, "provider", s.sender.ProviderID(), "err", err)
		if delErr := s.appts.Delete(ctx, id); delErr != nil {
			s.logger.Error("tentative appointment cleanup failed", "appointment_id", id, "err", delErr)
		}
		return VerificationResult{}, ErrNotificationFailed
	}

	return VerificationResult{AppointmentID: id, GuestClientID: appt.GuestClientID}, nil
}

// VerifyCode confirms a pending appointment when the submitted code
// matches. A mismatch leaves the row pending so the caller can retry.
func (s *Service) VerifyCode(ctx context.Context, appointmentID, code string) (VerificationResult, error) {
	if appointmentID == "" || code == "" {
		return VerificationResult{}, validationf("appointmentId and verificationCode are required")
	}

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return VerificationResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.appts.GetForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return VerificationResult{}, wrapf(ErrNotFound, "appointment %s", appointmentID)
		}
		return VerificationResult{}, err
	}
	if appt.Status != model.StatusPendingVerification {
		return VerificationResult{}, validationf("appointment is not awaiting verification")
	}
	if s.now().Sub(appt.CreatedAt) > s.pendingTTL {
		return VerificationResult{}, ErrVerificationExpired
	}
	if appt.VerificationCode != code {
		return VerificationResult{}, ErrCodeMismatch
	}

	// Last-resort guard: a confirmed appointment may have landed on the
	// slot while this one sat pending past other defenses.
	occupied, err := s.appts.OverlapExistsTx(ctx, tx, appt.ProfessionalID, appt.StartTime, appt.EndTime, s.pendingCutoff(), appt.ID)
	if err != nil {
		return VerificationResult{}, err
	}
	if occupied {
		return VerificationResult{}, ErrSlotConflict
	}

	if err := s.appts.Confirm(ctx, tx, appointmentID); err != nil {
		return VerificationResult{}, err
	}

	evt, err := outbox.AppointmentConfirmed(appt)
	if err != nil {
		return VerificationResult{}, err
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return VerificationResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return VerificationResult{}, err
	}

	s.sendClientConfirmation(ctx, appt)

	return VerificationResult{AppointmentID: appt.ID, GuestClientID: appt.GuestClientID}, nil
}

// sendClientConfirmation is best effort; the booking stands either way.
func (s *Service) sendClientConfirmation(ctx context.Context, appt model.Appointment) {
	name, phone := appt.GuestName, appt.GuestPhone
	if !appt.IsGuest() {
		client, err := s.users.GetByID(ctx, appt.ClientID)
		if err != nil {
			s.logger.Error("client lookup for confirmation failed", "appointment_id", appt.ID, "err", err)
			return
		}
		name, phone = client.Name, client.Phone
	}
	if phone == "" {
		return
	}
	text := whatsapp.ClientConfirmationMessage(name, appt.StartTime)
	if err := s.sender.Send(ctx, phone, text); err != nil {
		s.logger.Error("confirmation message failed", "appointment_id", appt.ID, "err", err)
	}
}

func (s *Service) buildTentative(ctx context.Context, req VerificationRequest) (model.Appointment, string, string, error) {
	if req.ServiceID == "" {
		return model.Appointment{}, "", "", validationf("serviceId is required")
	}
	if req.StartTime.IsZero() {
		return model.Appointment{}, "", "", validationf("appointmentDate is required")
	}

	appt := model.Appointment{
		ServiceID: req.ServiceID,
		StartTime: req.StartTime,
	}

	if !req.Caller.Anonymous() {
		client, err := s.users.GetByID(ctx, req.Caller.UserID)
		if err != nil {
			if storage.IsNotFound(err) {
				return model.Appointment{}, "", "", ErrUnauthorized
			}
			return model.Appointment{}, "", "", err
		}
		phone := strings.TrimSpace(req.Phone)
		if phone == "" {
			phone = client.Phone
		}
		if phone == "" {
			return model.Appointment{}, "", "", validationf("phone is required")
		}
		appt.ClientID = client.ID
		return appt, client.Name, phone, nil
	}

	name := strings.TrimSpace(req.GuestName)
	email := strings.TrimSpace(req.GuestEmail)
	phone := strings.TrimSpace(req.Phone)
	if name == "" || email == "" || phone == "" {
		return model.Appointment{}, "", "", validationf("guestName, guestEmail and phone are required for guest bookings")
	}
	appt.GuestName = name
	appt.GuestEmail = email
	appt.GuestPhone = phone
	appt.GuestClientID = strings.TrimSpace(req.GuestClientID)
	if appt.GuestClientID == "" {
		appt.GuestClientID = uuid.NewString()
	}
	return appt, name, phone, nil
}
