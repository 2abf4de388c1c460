package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/libs/db"
)

type ServiceRepository struct {
	pool *db.Pool
}

func NewServiceRepository(pool *db.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

func (r *ServiceRepository) Create(ctx context.Context, svc model.Service) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, professional_id, name, description, price, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, svc.ProfessionalID, svc.Name, svc.Description, svc.Price, svc.DurationMin)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Reads join the offering professional so listings can show who
// provides each service.
const serviceSelect = `
	SELECT s.id::text, s.professional_id::text, s.name, COALESCE(s.description, ''),
		s.price::text, s.duration_minutes, s.created_at, p.name
	FROM services s
	JOIN users p ON p.id = s.professional_id`

func (r *ServiceRepository) GetByID(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, serviceSelect+`
		WHERE s.id = $1
	`, id).Scan(&s.ID, &s.ProfessionalID, &s.Name, &s.Description, &s.Price, &s.DurationMin, &s.CreatedAt, &s.ProfessionalName)
	if err != nil {
		return model.Service{}, err
	}
	return s, nil
}

func (r *ServiceRepository) List(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, serviceSelect+`
		ORDER BY s.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ProfessionalID, &s.Name, &s.Description, &s.Price, &s.DurationMin, &s.CreatedAt, &s.ProfessionalName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
