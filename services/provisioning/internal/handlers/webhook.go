package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/api"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/platform/metrics"
	"github.com/example/membership-portal/services/provisioning/internal/ghl"
	"github.com/example/membership-portal/services/provisioning/internal/idempotency"
	"github.com/example/membership-portal/services/provisioning/internal/publisher"
	"github.com/example/membership-portal/services/provisioning/internal/store"
)

const maxBodyBytes = 65536

type eventPublisher interface {
	Publish(ctx context.Context, subject string, evt publisher.MemberEvent) error
}

// WebhookHandler handles CRM contact webhooks.
type WebhookHandler struct {
	verifier      ghl.Verifier
	membershipTag string
	log           *zap.Logger
	idempotent    idempotency.Store
	members       store.MemberStore
	pub           eventPublisher
	analytics     *analytics.Publisher
}

type WebhookOptions struct {
	Verifier      ghl.Verifier
	MembershipTag string
	Logger        *zap.Logger
	Idempotency   idempotency.Store
	Members       store.MemberStore
	Publisher     eventPublisher
	Analytics     *analytics.Publisher
}

func NewWebhookHandler(opts WebhookOptions) *WebhookHandler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{
		verifier:      opts.Verifier,
		membershipTag: opts.MembershipTag,
		log:           log,
		idempotent:    opts.Idempotency,
		members:       opts.Members,
		pub:           opts.Publisher,
		analytics:     opts.Analytics,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		api.BadRequest(w, "READ_ERROR", "cannot read body", rid, nil)
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(ghl.SignatureHeader)); err != nil {
		h.log.Warn("ghl signature verification failed", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		api.BadRequest(w, "INVALID_SIGNATURE", "webhook signature verification failed", rid, nil)
		return
	}

	ev, err := ghl.Decode(body)
	if errors.Is(err, ghl.ErrMissingWebhookID) {
		api.BadRequest(w, "MISSING_WEBHOOK_ID", "webhookId is required", rid, nil)
		return
	}
	if err != nil {
		api.BadRequest(w, "INVALID_JSON", "cannot parse event", rid, nil)
		return
	}

	if !handled(ev.Type) {
		h.log.Debug("unhandled event type", zap.String("type", ev.Type), zap.String("webhook_id", ev.WebhookID))
		metrics.WebhookEvents.WithLabelValues(ev.Type, "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}
	if fields := validateContact(ev); len(fields) > 0 {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "invalid").Inc()
		api.ValidationFailed(w, rid, fields)
		return
	}

	dup, err := h.idempotent.Check(r.Context(), ev.WebhookID)
	if err != nil {
		h.log.Error("idempotency check failed", zap.Error(err))
		api.Internal(w, rid)
		return
	}
	if dup {
		h.log.Debug("duplicate webhook, skipping", zap.String("webhook_id", ev.WebhookID))
		metrics.WebhookEvents.WithLabelValues(ev.Type, "duplicate").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.apply(r.Context(), ev); err != nil {
		h.log.Error("provision member failed",
			zap.String("type", ev.Type),
			zap.String("webhook_id", ev.WebhookID),
			zap.Error(err),
		)
		// Let the CRM redeliver.
		if ferr := h.idempotent.Forget(r.Context(), ev.WebhookID); ferr != nil {
			h.log.Warn("idempotency release failed", zap.Error(ferr))
		}
		metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		api.Internal(w, rid)
		return
	}

	metrics.WebhookEvents.WithLabelValues(ev.Type, "processed").Inc()
	w.WriteHeader(http.StatusOK)
}

func handled(eventType string) bool {
	switch eventType {
	case ghl.ContactCreate, ghl.ContactUpdate, ghl.ContactTagUpdate, ghl.ContactDelete:
		return true
	}
	return false
}

func validateContact(ev ghl.Event) map[string]string {
	fields := map[string]string{}
	if ev.ContactID == "" {
		fields["id"] = "required"
	}
	if ev.Type != ghl.ContactDelete && ev.Email == "" {
		fields["email"] = "required"
	}
	return fields
}

func (h *WebhookHandler) apply(ctx context.Context, ev ghl.Event) error {
	if ev.Type == ghl.ContactDelete {
		m, err := h.members.Deactivate(ctx, ev.ContactID)
		if errors.Is(err, store.ErrNotFound) {
			h.log.Info("delete for unknown contact", zap.String("ghl_contact_id", ev.ContactID))
			return nil
		}
		if err != nil {
			return err
		}
		return h.emit(ctx, ev.WebhookID, m)
	}

	m, created, err := h.members.Upsert(ctx, store.Member{
		GHLContactID: ev.ContactID,
		Email:        ev.Email,
		FirstName:    ev.FirstName,
		LastName:     ev.LastName,
		Active:       ev.HasTag(h.membershipTag),
	})
	if err != nil {
		return err
	}
	h.log.Info("member provisioned",
		zap.String("member_id", m.ID),
		zap.String("ghl_contact_id", m.GHLContactID),
		zap.Bool("created", created),
		zap.Bool("active", m.Active),
	)
	return h.emit(ctx, ev.WebhookID, m)
}

// emit publishes after the member row is saved; the analytics copy is fire-and-forget.
func (h *WebhookHandler) emit(ctx context.Context, webhookID string, m store.Member) error {
	subject, analyticsSubject, name := publisher.SubjectMemberProvisioned, analytics.SubjectMemberProvisioned, "member_provisioned"
	if !m.Active {
		subject, analyticsSubject, name = publisher.SubjectMemberDeactivated, analytics.SubjectMemberDeactivated, "member_deactivated"
	}

	if err := h.pub.Publish(ctx, subject, publisher.MemberEvent{
		EventID:      webhookID,
		MemberID:     m.ID,
		GHLContactID: m.GHLContactID,
		Email:        m.Email,
		Active:       m.Active,
		OccurredAt:   m.UpdatedAt,
	}); err != nil {
		return err
	}

	h.analytics.Publish(analyticsSubject, name, m.ID, map[string]any{"ghl_contact_id": m.GHLContactID})
	return nil
}
