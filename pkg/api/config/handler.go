package config

import (
	"encoding/json"
	"net/http"

	coreConfig "equity_valuation/pkg/core/config"
	"equity_valuation/pkg/core/projection"

	"github.com/go-chi/chi/v5"
)

type Response struct {
	Config         coreConfig.Config `json:"config"`
	DecaySchedules []string          `json:"decay_schedules"`
	StrictRanges   bool              `json:"strict_ranges"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	cfg *coreConfig.Config
}

// NewHandler creates a new config handler
func NewHandler(cfg *coreConfig.Config) *Handler {
	return &Handler{
		cfg: cfg,
	}
}

// RegisterRoutes mounts GET /config.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.HandleConfig)
}

// HandleConfig reports the active settings with credentials masked.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Config:         h.cfg.Redacted(),
		DecaySchedules: []string{projection.ScheduleFlat, projection.ScheduleCompounding},
		StrictRanges:   h.cfg.RangePolicy() != nil,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
