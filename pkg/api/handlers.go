package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/events"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

// EnvironmentController is the part of the environment manager the API exposes
type EnvironmentController interface {
	Info() environment.Info
	Reset(ctx context.Context) error
}

// Handlers contains HTTP handlers for the size checker API
type Handlers struct {
	checker sizecheck.SizeChecker
	env     EnvironmentController
	bus     *events.Bus
	logger  *slog.Logger
}

// NewHandlers creates a new handlers instance. bus may be nil, in which case
// /events reports 404.
func NewHandlers(checker sizecheck.SizeChecker, env EnvironmentController, bus *events.Bus, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		checker: checker,
		env:     env,
		bus:     bus,
		logger:  logger,
	}
}

// Routes registers every handler on mux
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/status", h.HandleStatus)
	mux.HandleFunc("/checks", h.HandleChecks)
	mux.HandleFunc("/environment/reset", h.HandleReset)
	mux.HandleFunc("/events", h.HandleEvents)
}

// HandleHealth handles health check requests
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.json(w, map[string]string{
		"status": "healthy",
	})
}

// HandleStatus returns the checker snapshot and environment info
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}

	h.json(w, StatusResponse{
		Check:       h.checker.Snapshot(),
		Environment: h.env.Info(),
	})
}

// HandleChecks runs one size check per request
func (h *Handlers) HandleChecks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorWithCode(w, err, CodeInvalidRequest, http.StatusBadRequest)
		return
	}

	// A check runs to completion even if the client goes away; the outcome
	// stays visible through /status and /events.
	report, err := h.checker.CheckSize(context.WithoutCancel(r.Context()), req.Package)
	if err != nil {
		if errors.Is(err, sizecheck.ErrEmptyIdentifier) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.checkError(w, req.Package, err)
		return
	}

	h.json(w, CheckResponse{Report: report})
}

func (h *Handlers) checkError(w http.ResponseWriter, pkg string, err error) {
	h.logger.Warn("size check failed", "package", pkg, "error", err)

	switch {
	case sizecheck.IsNotReady(err):
		h.errorWithCode(w, "environment not ready", CodeNotReady, http.StatusServiceUnavailable)
	case sizecheck.IsInProgress(err):
		h.errorWithCode(w, err, CodeInProgress, http.StatusConflict)
	case sizecheck.IsTimeout(err):
		h.errorWithCode(w, err, CodeTimeout, http.StatusGatewayTimeout)
	case errors.Is(err, sizecheck.ErrManifestWriteFailed):
		h.errorWithCode(w, err, CodeManifestFailed, http.StatusInternalServerError)
	case errors.Is(err, sizecheck.ErrSpawnFailed):
		h.errorWithCode(w, err, CodeCommandFailed, http.StatusInternalServerError)
	default:
		h.error(w, err, http.StatusInternalServerError)
	}
}

// HandleReset tears down and re-provisions the environment
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}

	if err := h.env.Reset(context.WithoutCancel(r.Context())); err != nil {
		h.logger.Error("environment reset failed", "error", err)
		if environment.IsBootFailed(err) {
			h.errorWithCode(w, err, CodeBootFailed, http.StatusInternalServerError)
		} else {
			h.error(w, err, http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents streams bus events as server-sent events until the client
// goes away
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, r)
		return
	}
	if h.bus == nil {
		h.notFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorWithCode(w, "streaming unsupported", CodeStreamingFailed, http.StatusInternalServerError)
		return
	}

	ch, cancel := h.bus.Subscribe(32)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Source, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Helper methods

func (h *Handlers) json(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) error(w http.ResponseWriter, err interface{}, status int) {
	h.errorWithCode(w, err, "", status)
}

func (h *Handlers) errorWithCode(w http.ResponseWriter, err interface{}, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{
		Code: code,
	}

	switch v := err.(type) {
	case string:
		resp.Error = v
	case error:
		resp.Error = v.Error()
	default:
		resp.Error = "unknown error"
	}

	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request) {
	h.error(w, "not found", http.StatusNotFound)
}
