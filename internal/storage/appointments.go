package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agendou/api/internal/availability"
	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/libs/db"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// occupyingFilter matches rows that block a slot: confirmed appointments
// and pending ones whose verification window has not lapsed. Lapsed
// pending rows are reclaimed lazily here and discarded by the sweeper.
const occupyingFilter = `
	(status = 'confirmed'
		OR (status = 'pending_verification' AND created_at > $4))`

// ListOccupying returns the busy intervals for a professional that
// overlap [start, end). pendingCutoff is now minus the verification TTL.
func (r *AppointmentRepository) ListOccupying(ctx context.Context, professionalID string, start, end, pendingCutoff time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE professional_id = $1
			AND start_time < $3
			AND end_time > $2
			AND `+occupyingFilter+`
		ORDER BY start_time ASC
	`, professionalID, start, end, pendingCutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		busy = append(busy, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return busy, nil
}

// OverlapExistsTx re-runs the occupancy check inside the booking
// transaction. excludeID skips the row being confirmed.
func (r *AppointmentRepository) OverlapExistsTx(ctx context.Context, tx pgx.Tx, professionalID string, start, end, pendingCutoff time.Time, excludeID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE professional_id = $1
				AND start_time < $3
				AND end_time > $2
				AND `+occupyingFilter+`
				AND ($5 = '' OR id::text <> $5)
		)
	`, professionalID, start, end, pendingCutoff, excludeID).Scan(&exists)
	return exists, err
}

// FindPendingForParty returns an existing pending appointment for the
// same service, slot, and booking party, so a re-request can refresh the
// code instead of inserting a duplicate row.
func (r *AppointmentRepository) FindPendingForParty(ctx context.Context, tx pgx.Tx, appt model.Appointment) (string, string, error) {
	var id, guestClientID string
	err := tx.QueryRow(ctx, `
		SELECT id::text, COALESCE(guest_client_id::text, '')
		FROM appointments
		WHERE service_id = $1
			AND start_time = $2
			AND status = 'pending_verification'
			AND (
				(client_id IS NOT NULL AND client_id::text = $3)
				OR (client_id IS NULL AND guest_phone = $4)
			)
		FOR UPDATE
	`, appt.ServiceID, appt.StartTime, appt.ClientID, appt.GuestPhone).Scan(&id, &guestClientID)
	return id, guestClientID, err
}

func (r *AppointmentRepository) CreatePending(ctx context.Context, tx pgx.Tx, appt model.Appointment) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, service_id, professional_id, start_time, end_time, status, payment_status,
			client_id, guest_name, guest_email, guest_phone, guest_client_id, verification_code)
		VALUES ($1, $2, $3, $4, $5, 'pending_verification', 'pending',
			NULLIF($6, '')::uuid, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, '')::uuid, $11)
	`, id, appt.ServiceID, appt.ProfessionalID, appt.StartTime, appt.EndTime,
		appt.ClientID, appt.GuestName, appt.GuestEmail, appt.GuestPhone, appt.GuestClientID,
		appt.VerificationCode)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RefreshPendingCode replaces the code on an existing pending row and
// restarts its verification window.
func (r *AppointmentRepository) RefreshPendingCode(ctx context.Context, tx pgx.Tx, id, code string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET verification_code = $2, created_at = now()
		WHERE id = $1 AND status = 'pending_verification'
	`, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	var appt model.Appointment
	var status, paymentStatus string
	err := tx.QueryRow(ctx, `
		SELECT id::text, service_id::text, professional_id::text, start_time, end_time,
			status, payment_status,
			COALESCE(client_id::text, ''), COALESCE(guest_name, ''), COALESCE(guest_email, ''),
			COALESCE(guest_phone, ''), COALESCE(guest_client_id::text, ''),
			COALESCE(verification_code, ''), created_at, cancelled_at, COALESCE(cancel_reason, '')
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&appt.ID,
		&appt.ServiceID,
		&appt.ProfessionalID,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&paymentStatus,
		&appt.ClientID,
		&appt.GuestName,
		&appt.GuestEmail,
		&appt.GuestPhone,
		&appt.GuestClientID,
		&appt.VerificationCode,
		&appt.CreatedAt,
		&appt.CancelledAt,
		&appt.CancelReason,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.AppointmentStatus(status)
	appt.PaymentStatus = model.PaymentStatus(paymentStatus)
	return appt, nil
}

// Confirm flips a pending row to confirmed and clears its code.
func (r *AppointmentRepository) Confirm(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'confirmed', verification_code = NULL
		WHERE id = $1 AND status = 'pending_verification'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a tentative pending row whose verification message
// could not be delivered.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return err
}

func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = now(), cancel_reason = $2
		WHERE id = $1 AND status = 'confirmed'
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *AppointmentRepository) MarkPaid(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET payment_status = 'paid'
		WHERE id = $1 AND status = 'confirmed'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DiscardLapsedOverlapping reclaims TTL-lapsed pending rows in the
// requested range so the exclusion constraint accepts a new insert.
func (r *AppointmentRepository) DiscardLapsedOverlapping(ctx context.Context, tx pgx.Tx, professionalID string, start, end, cutoff time.Time) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		UPDATE appointments
		SET status = 'discarded', verification_code = NULL
		WHERE professional_id = $1
			AND status = 'pending_verification'
			AND created_at <= $4
			AND start_time < $3
			AND end_time > $2
		RETURNING id::text, service_id::text, professional_id::text, start_time, end_time
	`, professionalID, start, end, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.ProfessionalID, &a.StartTime, &a.EndTime); err != nil {
			return nil, err
		}
		a.Status = model.StatusDiscarded
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// DiscardExpiredPending flips pending rows older than cutoff to
// discarded and returns the affected rows for event emission.
func (r *AppointmentRepository) DiscardExpiredPending(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, `
		UPDATE appointments
		SET status = 'discarded', verification_code = NULL
		WHERE status = 'pending_verification' AND created_at <= $1
		RETURNING id::text, service_id::text, professional_id::text, start_time, end_time
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.ProfessionalID, &a.StartTime, &a.EndTime); err != nil {
			return nil, err
		}
		a.Status = model.StatusDiscarded
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

const viewSelect = `
	SELECT a.id::text, a.service_id::text, a.professional_id::text, a.start_time, a.end_time,
		a.status, a.payment_status,
		COALESCE(a.client_id::text, ''), COALESCE(a.guest_name, ''), COALESCE(a.guest_email, ''),
		COALESCE(a.guest_phone, ''), COALESCE(a.guest_client_id::text, ''),
		a.created_at, a.cancelled_at, COALESCE(a.cancel_reason, ''),
		s.name, s.price::text, s.duration_minutes, p.name
	FROM appointments a
	JOIN services s ON s.id = a.service_id
	JOIN users p ON p.id = a.professional_id`

func (r *AppointmentRepository) GetViewByID(ctx context.Context, id string) (model.AppointmentView, error) {
	views, err := r.listViews(ctx, viewSelect+`
		WHERE a.id = $1
	`, id)
	if err != nil {
		return model.AppointmentView{}, err
	}
	if len(views) == 0 {
		return model.AppointmentView{}, pgx.ErrNoRows
	}
	return views[0], nil
}

func (r *AppointmentRepository) ListViewsByClient(ctx context.Context, clientID string) ([]model.AppointmentView, error) {
	return r.listViews(ctx, viewSelect+`
		WHERE a.client_id = $1
		ORDER BY a.start_time ASC
	`, clientID)
}

func (r *AppointmentRepository) ListViewsByGuest(ctx context.Context, guestClientID string) ([]model.AppointmentView, error) {
	return r.listViews(ctx, viewSelect+`
		WHERE a.guest_client_id = $1
		ORDER BY a.start_time ASC
	`, guestClientID)
}

func (r *AppointmentRepository) ListViewsByProfessional(ctx context.Context, professionalID string) ([]model.AppointmentView, error) {
	return r.listViews(ctx, viewSelect+`
		WHERE a.professional_id = $1
		ORDER BY a.start_time ASC
	`, professionalID)
}

func (r *AppointmentRepository) listViews(ctx context.Context, query string, args ...any) ([]model.AppointmentView, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentView
	for rows.Next() {
		var v model.AppointmentView
		var status, paymentStatus string
		if err := rows.Scan(
			&v.ID,
			&v.ServiceID,
			&v.ProfessionalID,
			&v.StartTime,
			&v.EndTime,
			&status,
			&paymentStatus,
			&v.ClientID,
			&v.GuestName,
			&v.GuestEmail,
			&v.GuestPhone,
			&v.GuestClientID,
			&v.CreatedAt,
			&v.CancelledAt,
			&v.CancelReason,
			&v.ServiceName,
			&v.ServicePrice,
			&v.DurationMin,
			&v.ProfessionalName,
		); err != nil {
			return nil, err
		}
		v.Status = model.AppointmentStatus(status)
		v.PaymentStatus = model.PaymentStatus(paymentStatus)
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// IsConflict reports whether err is the appointments overlap exclusion
// constraint firing, the database-level backstop for double booking.
func IsConflict(err error) bool {
	return db.IsExclusionViolation(err)
}
