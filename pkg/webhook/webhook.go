// Package webhook receives the job notifications AlterLab posts to the
// webhook_url of a batch.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alterlab/alterlab-go/pkg/client"

	"github.com/go-chi/chi/v5"
)

const DefaultMaxBodySize = 10 << 20

type HandlerFunc func(ctx context.Context, event Event) error

type Handler struct {
	fn HandlerFunc

	token  string
	logger *slog.Logger

	maxBodySize int64

	router chi.Router
}

type Option func(*Handler)

// WithToken requires requests to carry "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(h *Handler) {
		h.token = token
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMaxBodySize(size int64) Option {
	return func(h *Handler) {
		h.maxBodySize = size
	}
}

func New(fn HandlerFunc, opts ...Option) (*Handler, error) {
	if fn == nil {
		return nil, errors.New("webhook: handler func is required")
	}

	h := &Handler{
		fn: fn,

		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = slog.Default()
	}

	h.router = chi.NewRouter()
	h.router.Post("/*", h.handleEvent)

	return h, nil
}

// Attach registers the receiver on an existing router, for example inside
// r.Route("/hooks/alterlab", h.Attach).
func (h *Handler) Attach(r chi.Router) {
	r.Post("/", h.handleEvent)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := authenticate(h.token, r); err != nil {
		h.logger.WarnContext(ctx, "alterlab.webhook.unauthorized", "error", err)
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var event Event

	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if event.JobID == "" {
		writeError(w, http.StatusBadRequest, errors.New("job_id is required"))
		return
	}

	event.Status = normalizeStatus(event.Status)

	h.logger.DebugContext(ctx, "alterlab.webhook.event",
		"event", event.Type,
		"batch_id", event.BatchID,
		"job_id", event.JobID,
		"status", event.Status,
	)

	if err := h.fn(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "alterlab.webhook.handler_error",
			"job_id", event.JobID,
			"error", err,
		)

		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func normalizeStatus(status client.JobState) client.JobState {
	switch status {
	case "":
		return client.JobPending
	case "completed":
		return client.JobSucceeded
	}

	return status
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	enc.Encode(map[string]string{
		"detail": err.Error(),
	})
}
