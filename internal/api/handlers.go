package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kmcoleman/bajarun-notify/internal/archive"
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/observability"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/httputil"
	"github.com/kmcoleman/bajarun-notify/internal/store"
)

// IdentityFunc resolves the caller's identity from a request. With auth
// enabled this reads the session; local mode falls back to a header.
type IdentityFunc func(r *http.Request) string

// Handlers carries the dependencies for all API endpoints.
type Handlers struct {
	store     store.Store
	templates store.TemplateStore // cache-wrapped in production
	svc       *notify.Service
	processor *notify.EventProcessor
	exporter  *archive.Exporter // nil when archiving is disabled
	identity  IdentityFunc
}

// NewHandlers wires the endpoint dependencies. templates may be a caching
// decorator around the store; both views must agree on ids.
func NewHandlers(st store.Store, templates store.TemplateStore, svc *notify.Service, processor *notify.EventProcessor, exporter *archive.Exporter, identity IdentityFunc) *Handlers {
	return &Handlers{
		store:     st,
		templates: templates,
		svc:       svc,
		processor: processor,
		exporter:  exporter,
		identity:  identity,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) track(endpoint string, status int) {
	observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// --- Templates ---

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		h.track("templates.list", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("templates.list", http.StatusOK)
	httputil.OK(w, map[string]any{"templates": templates, "count": len(templates)})
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, notify.ErrTemplateNotFound) {
			h.track("templates.get", http.StatusNotFound)
			httputil.NotFound(w, "template not found")
			return
		}
		h.track("templates.get", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("templates.get", http.StatusOK)
	httputil.OK(w, t)
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.Template
	if !httputil.Decode(w, r, &t) {
		return
	}
	if err := t.Validate(); err != nil {
		h.track("templates.create", http.StatusBadRequest)
		httputil.BadRequest(w, err.Error())
		return
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := h.templates.CreateTemplate(r.Context(), &t); err != nil {
		h.track("templates.create", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("templates.create", http.StatusCreated)
	httputil.Created(w, t)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.Template
	if !httputil.Decode(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "id")
	if err := t.Validate(); err != nil {
		h.track("templates.update", http.StatusBadRequest)
		httputil.BadRequest(w, err.Error())
		return
	}
	t.UpdatedAt = time.Now().UTC()

	if err := h.templates.UpdateTemplate(r.Context(), &t); err != nil {
		if errors.Is(err, notify.ErrTemplateNotFound) {
			h.track("templates.update", http.StatusNotFound)
			httputil.NotFound(w, "template not found")
			return
		}
		h.track("templates.update", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("templates.update", http.StatusOK)
	httputil.OK(w, t)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, notify.ErrTemplateNotFound) {
			h.track("templates.delete", http.StatusNotFound)
			httputil.NotFound(w, "template not found")
			return
		}
		h.track("templates.delete", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("templates.delete", http.StatusNoContent)
	httputil.NoContent(w)
}

type previewRequest struct {
	Bindings map[string]any `json:"bindings"`
}

// PreviewTemplate renders a template against caller-supplied bindings.
// Nothing is sent and no outcome entry is written.
func (h *Handlers) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.svc.Preview(r.Context(), h.identity(r), chi.URLParam(r, "id"), req.Bindings)
	if err != nil {
		h.writeServiceError(w, "templates.preview", err)
		return
	}
	h.track("templates.preview", http.StatusOK)
	httputil.OK(w, result)
}

// --- Triggers ---

func (h *Handlers) ListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.store.ListTriggers(r.Context())
	if err != nil {
		h.track("triggers.list", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("triggers.list", http.StatusOK)
	httputil.OK(w, map[string]any{"triggers": triggers, "count": len(triggers)})
}

func (h *Handlers) GetTrigger(w http.ResponseWriter, r *http.Request) {
	tr, err := h.store.GetTrigger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, notify.ErrTriggerNotFound) {
			h.track("triggers.get", http.StatusNotFound)
			httputil.NotFound(w, "trigger not found")
			return
		}
		h.track("triggers.get", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("triggers.get", http.StatusOK)
	httputil.OK(w, tr)
}

func (h *Handlers) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	var tr domain.Trigger
	if !httputil.Decode(w, r, &tr) {
		return
	}
	if err := tr.Validate(); err != nil {
		h.track("triggers.create", http.StatusBadRequest)
		httputil.BadRequest(w, err.Error())
		return
	}
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tr.CreatedAt = now
	tr.UpdatedAt = now
	tr.SendCount = 0
	tr.LastTriggered = nil

	if err := h.store.CreateTrigger(r.Context(), &tr); err != nil {
		h.track("triggers.create", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("triggers.create", http.StatusCreated)
	httputil.Created(w, tr)
}

func (h *Handlers) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	var tr domain.Trigger
	if !httputil.Decode(w, r, &tr) {
		return
	}
	tr.ID = chi.URLParam(r, "id")
	if err := tr.Validate(); err != nil {
		h.track("triggers.update", http.StatusBadRequest)
		httputil.BadRequest(w, err.Error())
		return
	}
	tr.UpdatedAt = time.Now().UTC()

	// Usage stats are preserved by the store, not taken from the payload.
	if err := h.store.UpdateTrigger(r.Context(), &tr); err != nil {
		if errors.Is(err, notify.ErrTriggerNotFound) {
			h.track("triggers.update", http.StatusNotFound)
			httputil.NotFound(w, "trigger not found")
			return
		}
		h.track("triggers.update", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("triggers.update", http.StatusOK)
	httputil.OK(w, tr)
}

func (h *Handlers) DeleteTrigger(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTrigger(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, notify.ErrTriggerNotFound) {
			h.track("triggers.delete", http.StatusNotFound)
			httputil.NotFound(w, "trigger not found")
			return
		}
		h.track("triggers.delete", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("triggers.delete", http.StatusNoContent)
	httputil.NoContent(w)
}

func (h *Handlers) EnableTrigger(w http.ResponseWriter, r *http.Request) {
	h.setTriggerEnabled(w, r, true)
}

func (h *Handlers) DisableTrigger(w http.ResponseWriter, r *http.Request) {
	h.setTriggerEnabled(w, r, false)
}

func (h *Handlers) setTriggerEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	if err := h.store.SetTriggerEnabled(r.Context(), id, enabled); err != nil {
		if errors.Is(err, notify.ErrTriggerNotFound) {
			h.track("triggers.toggle", http.StatusNotFound)
			httputil.NotFound(w, "trigger not found")
			return
		}
		h.track("triggers.toggle", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("triggers.toggle", http.StatusOK)
	httputil.OK(w, map[string]any{"id": id, "enabled": enabled})
}

// --- Notifications ---

type sendRequest struct {
	TemplateID string         `json:"template_id"`
	Recipient  string         `json:"recipient"`
	Bindings   map[string]any `json:"bindings"`
}

func (h *Handlers) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	err := h.svc.Send(r.Context(), h.identity(r), req.TemplateID, req.Recipient, req.Bindings)
	if err != nil {
		h.writeServiceError(w, "notifications.send", err)
		return
	}
	h.track("notifications.send", http.StatusOK)
	httputil.OK(w, map[string]string{"status": "sent"})
}

type bulkSendRequest struct {
	TemplateID string                 `json:"template_id"`
	Recipients []notify.BulkRecipient `json:"recipients"`
}

func (h *Handlers) BulkSendNotifications(w http.ResponseWriter, r *http.Request) {
	var req bulkSendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Recipients) == 0 {
		h.track("notifications.bulk", http.StatusBadRequest)
		httputil.BadRequest(w, "recipients list is empty")
		return
	}

	result, err := h.svc.BulkSend(r.Context(), h.identity(r), req.TemplateID, req.Recipients)
	if err != nil {
		h.writeServiceError(w, "notifications.bulk", err)
		return
	}
	h.track("notifications.bulk", http.StatusOK)
	httputil.OK(w, result)
}

// --- Outcomes ---

func (h *Handlers) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	f := store.OutcomeFilter{
		Status:            domain.DispatchStatus(r.URL.Query().Get("status")),
		TriggerID:         r.URL.Query().Get("trigger_id"),
		RecipientContains: r.URL.Query().Get("recipient"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			h.track("outcomes.list", http.StatusBadRequest)
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	entries, err := h.store.ListOutcomes(r.Context(), f)
	if err != nil {
		h.track("outcomes.list", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("outcomes.list", http.StatusOK)
	httputil.OK(w, map[string]any{"outcomes": entries, "count": len(entries)})
}

// ExportOutcomes snapshots the current outcome listing to S3.
func (h *Handlers) ExportOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.track("outcomes.export", http.StatusNotImplemented)
		httputil.Error(w, http.StatusNotImplemented, "archiving is not configured")
		return
	}

	entries, err := h.store.ListOutcomes(r.Context(), store.OutcomeFilter{Limit: 10000})
	if err != nil {
		h.track("outcomes.export", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}

	key, err := h.exporter.ExportOutcomes(r.Context(), entries)
	if err != nil {
		h.track("outcomes.export", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("outcomes.export", http.StatusOK)
	httputil.OK(w, map[string]any{"key": key, "entries": len(entries)})
}

// --- Events ---

// InjectEvent feeds a change event straight to the processor. Intended for
// local development and integration tests when the SQS feed is disabled.
func (h *Handlers) InjectEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.ChangeEvent
	if !httputil.Decode(w, r, &ev) {
		return
	}
	if ev.Collection == "" || ev.Event == "" {
		h.track("events.inject", http.StatusBadRequest)
		httputil.BadRequest(w, "collection and event are required")
		return
	}

	observability.EventsProcessed.WithLabelValues(ev.Collection, string(ev.Event)).Inc()
	if err := h.processor.HandleEvent(r.Context(), ev); err != nil {
		h.track("events.inject", http.StatusInternalServerError)
		httputil.InternalError(w, err)
		return
	}
	h.track("events.inject", http.StatusAccepted)
	httputil.JSON(w, http.StatusAccepted, map[string]string{"status": "processed"})
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, notify.ErrNotAuthorized):
		h.track(endpoint, http.StatusForbidden)
		httputil.Forbidden(w, "administrator access required")
	case errors.Is(err, notify.ErrRecipientEmpty):
		h.track(endpoint, http.StatusBadRequest)
		httputil.BadRequest(w, "recipient is required")
	case errors.Is(err, notify.ErrTemplateNotFound):
		h.track(endpoint, http.StatusNotFound)
		httputil.NotFound(w, "template not found")
	default:
		h.track(endpoint, http.StatusInternalServerError)
		httputil.InternalError(w, err)
	}
}
