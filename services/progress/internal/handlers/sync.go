// Package handlers exposes the progress service over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/api"
	"github.com/example/membership-portal/internal/platform/auth"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/progress"
	"github.com/example/membership-portal/services/progress/internal/syncer"
)

// Syncer is the slice of *syncer.Service the handlers use.
type Syncer interface {
	Sync(ctx context.Context, userID string, req progress.SyncRequest, src syncer.Source) (syncer.Result, error)
	Get(ctx context.Context, userID, contentItemID string) (*progress.Record, error)
	Continue(ctx context.Context, userID string, limit int, cursor string) (syncer.Page, error)
}

type Handler struct {
	svc       Syncer
	publisher *EventPublisher
	log       *zap.Logger
}

func New(svc Syncer, publisher *EventPublisher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, publisher: publisher, log: log}
}

// PostSync handles POST /progress/sync. With ?transport=beacon and async
// writes enabled the body is queued and answered 202.
func (h *Handler) PostSync(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, api.CodeAuthMissing, "Missing auth", rid)
		return
	}

	var req progress.SyncRequest
	if !decodeJSON(w, r, rid, &req) {
		return
	}

	beacon := strings.EqualFold(r.URL.Query().Get("transport"), "beacon")
	if beacon && h.publisher.Enabled() {
		eventID, err := h.publisher.PublishSync(uid, req)
		if err == nil {
			w.Header().Set("X-Event-ID", eventID)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// Nobody waits on a beacon response; apply it now rather than lose it.
		httpserver.LoggerFor(r.Context(), h.log).Warn("beacon publish failed, applying synchronously", zap.Error(err))
	}

	transport := syncer.TransportHTTP
	if beacon {
		transport = syncer.TransportBeacon
	}
	res, err := h.svc.Sync(r.Context(), uid, req, syncer.Source{Transport: transport})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, progress.SyncResponse{
		Success:  true,
		Progress: res.Record.ToView(),
		Applied:  res.Applied,
	})
}

// GetSync handles GET /progress/sync?contentItemId=.
func (h *Handler) GetSync(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, api.CodeAuthMissing, "Missing auth", rid)
		return
	}

	rec, err := h.svc.Get(r.Context(), uid, r.URL.Query().Get("contentItemId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var out progress.ReadResponse
	if rec != nil {
		v := rec.ResumeView()
		out.Progress = &v
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// Continue handles GET /progress/continue.
func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, api.CodeAuthMissing, "Missing auth", rid)
		return
	}

	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	page, err := h.svc.Continue(r.Context(), uid, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	if ve, ok := progress.IsValidation(err); ok {
		api.ValidationFailed(w, rid, ve.Fields)
		return
	}
	switch {
	case errors.Is(err, progress.ErrUnauthenticated):
		api.Unauthorized(w, api.CodeAuthMissing, "Missing auth", rid)
	case errors.Is(err, progress.ErrTransientStore):
		httpserver.LoggerFor(r.Context(), h.log).Warn("progress store unavailable", zap.Error(err))
		api.Unavailable(w, api.CodeStoreUnavailable, "Progress store unavailable, retry later", rid)
	default:
		httpserver.LoggerFor(r.Context(), h.log).Error("progress request failed", zap.Error(err))
		api.Internal(w, rid)
	}
}
