package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/libs/db"
)

type BusinessHourRepository struct {
	pool *db.Pool
}

func NewBusinessHourRepository(pool *db.Pool) *BusinessHourRepository {
	return &BusinessHourRepository{pool: pool}
}

func (r *BusinessHourRepository) Create(ctx context.Context, h model.BusinessHour) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours (id, professional_id, day_of_week, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
	`, id, h.ProfessionalID, h.DayOfWeek, h.StartMinute, h.EndMinute)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BusinessHourRepository) ListByProfessional(ctx context.Context, professionalID string) ([]model.BusinessHour, error) {
	return r.list(ctx, `
		SELECT id::text, professional_id::text, day_of_week, start_minute, end_minute
		FROM business_hours
		WHERE professional_id = $1
		ORDER BY day_of_week ASC, start_minute ASC
	`, professionalID)
}

func (r *BusinessHourRepository) ListForDay(ctx context.Context, professionalID string, dayOfWeek int) ([]model.BusinessHour, error) {
	return r.list(ctx, `
		SELECT id::text, professional_id::text, day_of_week, start_minute, end_minute
		FROM business_hours
		WHERE professional_id = $1 AND day_of_week = $2
		ORDER BY start_minute ASC
	`, professionalID, dayOfWeek)
}

func (r *BusinessHourRepository) list(ctx context.Context, query string, args ...any) ([]model.BusinessHour, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BusinessHour
	for rows.Next() {
		var h model.BusinessHour
		if err := rows.Scan(&h.ID, &h.ProfessionalID, &h.DayOfWeek, &h.StartMinute, &h.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
