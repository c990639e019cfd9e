package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/sensitivity"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// maxCaseBytes bounds an uploaded case document.
const maxCaseBytes = 1 << 20

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// Handler serves valuation reports and sensitivity grids.
type Handler struct {
	orch *pipeline.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(orch *pipeline.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		orch: orch,
		log:  log.With().Str("module", "valuation_handlers").Logger(),
	}
}

// RegisterRoutes mounts the endpoints under /valuation.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/valuation", func(r chi.Router) {
		r.Post("/report", h.HandleReport)
		r.Post("/sensitivity", h.HandleSensitivity)
		r.Get("/cases/{name}", h.HandleCase)
	})
}

// SensitivityResponse wraps a grid with the case it was built for.
type SensitivityResponse struct {
	RunID  string               `json:"run_id"`
	Case   string               `json:"case"`
	Matrix sensitivity.Snapshot `json:"matrix"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string   `json:"error"`
	Field string   `json:"field,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Rule  string   `json:"rule,omitempty"`
}

// HandleReport values the case in the request body (JSON, YAML, HJSON or TOML
// by Content-Type) and returns the full outcome.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCase(w, r)
	if !ok {
		return
	}

	out, err := h.orch.Run(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, out)
}

// HandleSensitivity builds only the grid for the posted case.
func (h *Handler) HandleSensitivity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCase(w, r)
	if !ok {
		return
	}

	m, err := h.orch.Sensitivity(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, SensitivityResponse{
		RunID:  uuid.NewString(),
		Case:   c.Name,
		Matrix: m.Snapshot(),
	})
}

// HandleCase runs a stored case by name.
func (h *Handler) HandleCase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	out, err := h.orch.RunNamed(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, http.StatusOK, out)
}

func (h *Handler) decodeCase(w http.ResponseWriter, r *http.Request) (*pipeline.Case, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCaseBytes+1))
	if err != nil {
		h.write(w, r, http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) > maxCaseBytes {
		h.write(w, r, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "case document too large"})
		return nil, false
	}

	c, err := pipeline.ParseCase(body, caseFormat(r.Header.Get("Content-Type")))
	if err != nil {
		var aerr *assumption.Error
		if errors.As(err, &aerr) {
			h.writeError(w, r, err)
			return nil, false
		}
		h.write(w, r, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid case document: %v", err)})
		return nil, false
	}
	return c, true
}

func caseFormat(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "yaml"):
		return "yaml"
	case strings.Contains(ct, "hjson"):
		return "hjson"
	case strings.Contains(ct, "toml"):
		return "toml"
	}
	return "json"
}

// writeError maps engine errors to status codes: invalid or out-of-range
// inputs are 422, bad case names 400, unknown cases 404.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var aerr *assumption.Error
	switch {
	case errors.As(err, &aerr):
		status = http.StatusUnprocessableEntity
		resp.Field = aerr.Field
		resp.Rule = aerr.Rule
		if assumption.IsFinite(aerr.Value) {
			v := aerr.Value
			resp.Value = &v
		}
	case errors.Is(err, assumption.ErrInvalidAssumption), errors.Is(err, assumption.ErrOutOfRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrInvalidCaseName):
		status = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrCaseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("valuation request failed")
	} else {
		h.log.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("valuation request rejected")
	}
	h.write(w, r, status, resp)
}

// write encodes v as msgpack when the client asks for it, JSON otherwise.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if wantsMsgpack(r.Header.Get("Accept")) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			h.log.Error().Err(err).Msg("failed to encode msgpack response")
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func wantsMsgpack(accept string) bool {
	accept = strings.ToLower(accept)
	return strings.Contains(accept, "msgpack")
}
