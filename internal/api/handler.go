// Package api exposes the acquisition request over HTTP for UI clients.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/speedwagon-io/co2hook/internal/collector"
	"github.com/speedwagon-io/co2hook/internal/config"
	"github.com/speedwagon-io/co2hook/internal/model"
)

type Acquirer interface {
	HandleAcquisitionRequest(ctx context.Context, src config.SourceConfig) (*collector.Acquisition, error)
}

type ReadingResponse struct {
	ID        string        `json:"id"`
	Value     model.Reading `json:"value"`
	Source    model.Kind    `json:"source"`
	Timestamp time.Time     `json:"timestamp"`
	Hooks     []HookResult  `json:"hooks"`
}

type HookResult struct {
	Hook  string `json:"hook"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type ErrorResponse struct {
	ID       string         `json:"id"`
	Error    string         `json:"error"`
	Category model.Category `json:"category,omitempty"`
}

type Handler struct {
	log      *slog.Logger
	acquirer Acquirer
	source   config.SourceConfig
}

func NewHandler(log *slog.Logger, acquirer Acquirer, source config.SourceConfig) *Handler {
	return &Handler{
		log:      log.With(slog.String("component", "api")),
		acquirer: acquirer,
		source:   source,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/reading", h.handleReading)
}

func (h *Handler) handleReading(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	ctx := collector.ContextWithID(r.Context(), id)

	acq, err := h.acquirer.HandleAcquisitionRequest(ctx, h.source)
	if err != nil {
		category := model.CategoryOf(err)
		writeJSON(w, statusFor(category), ErrorResponse{
			ID:       id,
			Error:    err.Error(),
			Category: category,
		})
		return
	}

	resp := ReadingResponse{
		ID:        acq.ID,
		Value:     acq.Reading,
		Source:    acq.Source,
		Timestamp: acq.At,
		Hooks:     make([]HookResult, 0, len(acq.Hooks)),
	}
	for _, inv := range acq.Hooks {
		hr := HookResult{Hook: inv.Hook, OK: inv.Succeeded()}
		if inv.Err != nil {
			hr.Error = inv.Err.Error()
		}
		resp.Hooks = append(resp.Hooks, hr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps an error category onto an HTTP status.
func statusFor(c model.Category) int {
	switch c {
	case model.CategoryPort, model.CategoryNetwork:
		return http.StatusServiceUnavailable
	case model.CategoryFraming, model.CategoryParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
