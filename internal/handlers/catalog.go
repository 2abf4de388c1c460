package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agendou/api/internal/identity"
	"github.com/agendou/api/internal/model"
)

type ServiceStore interface {
	Create(ctx context.Context, svc model.Service) (string, error)
	List(ctx context.Context) ([]model.Service, error)
}

type HourStore interface {
	Create(ctx context.Context, h model.BusinessHour) (string, error)
	ListByProfessional(ctx context.Context, professionalID string) ([]model.BusinessHour, error)
}

// CatalogHandler serves the service list and the professional's working
// hours.
type CatalogHandler struct {
	services ServiceStore
	hours    HourStore
	logger   *slog.Logger
}

func NewCatalogHandler(services ServiceStore, hours HourStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{services: services, hours: hours, logger: logger}
}

type serviceResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	Price            string `json:"price"`
	Duration         int    `json:"duration"`
	ProfessionalID   string `json:"professionalId"`
	ProfessionalName string `json:"professionalName"`
}

type createServiceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Duration    int    `json:"duration"`
}

func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listServices(w, r)
	case http.MethodPost:
		h.createService(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *CatalogHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.services.List(r.Context())
	if err != nil {
		h.logger.Error("service list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	out := make([]serviceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, serviceResponse{
			ID:               s.ID,
			Name:             s.Name,
			Description:      s.Description,
			Price:            s.Price,
			Duration:         s.DurationMin,
			ProfessionalID:   s.ProfessionalID,
			ProfessionalName: s.ProfessionalName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) createService(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if caller.Role != model.RoleProfessional {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Duration <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive duration are required")
		return
	}
	if strings.TrimSpace(req.Price) == "" {
		writeError(w, http.StatusBadRequest, "price is required")
		return
	}

	id, err := h.services.Create(r.Context(), model.Service{
		ProfessionalID: caller.UserID,
		Name:           req.Name,
		Description:    strings.TrimSpace(req.Description),
		Price:          strings.TrimSpace(req.Price),
		DurationMin:    req.Duration,
	})
	if err != nil {
		h.logger.Error("service create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type businessHourResponse struct {
	ID        string `json:"id"`
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type createHourRequest struct {
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (h *CatalogHandler) BusinessHours(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if caller.Role != model.RoleProfessional {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.listHours(w, r, caller.UserID)
	case http.MethodPost:
		h.createHour(w, r, caller.UserID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *CatalogHandler) listHours(w http.ResponseWriter, r *http.Request, professionalID string) {
	hours, err := h.hours.ListByProfessional(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("business hours list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	out := make([]businessHourResponse, 0, len(hours))
	for _, bh := range hours {
		out = append(out, businessHourResponse{
			ID:        bh.ID,
			DayOfWeek: bh.DayOfWeek,
			StartTime: minuteToHHMM(bh.StartMinute),
			EndTime:   minuteToHHMM(bh.EndMinute),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) createHour(w http.ResponseWriter, r *http.Request, professionalID string) {
	var req createHourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		writeError(w, http.StatusBadRequest, "dayOfWeek must be 0..6")
		return
	}
	start, err := hhmmToMinute(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "startTime must be HH:MM")
		return
	}
	end, err := hhmmToMinute(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "endTime must be HH:MM")
		return
	}
	if end <= start {
		writeError(w, http.StatusBadRequest, "endTime must be after startTime")
		return
	}

	id, err := h.hours.Create(r.Context(), model.BusinessHour{
		ProfessionalID: professionalID,
		DayOfWeek:      req.DayOfWeek,
		StartMinute:    start,
		EndMinute:      end,
	})
	if err != nil {
		h.logger.Error("business hour create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func minuteToHHMM(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func hhmmToMinute(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hh, &mm); err != nil {
		return 0, err
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return hh*60 + mm, nil
}
