package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/render"
	"github.com/kmcoleman/bajarun-notify/internal/store/memory"
)

const testAdmin = "admin@bajarun.app"

// captureDeliverer records outbound messages instead of sending.
type captureDeliverer struct {
	mu   sync.Mutex
	sent []notify.OutboundMessage
}

func (d *captureDeliverer) Send(_ context.Context, msg notify.OutboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

func (d *captureDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func setupTestServer(t *testing.T) (http.Handler, *memory.Store, *captureDeliverer) {
	t.Helper()

	st := memory.New()
	deliverer := &captureDeliverer{}

	layout, err := render.NewLayout("")
	require.NoError(t, err)

	dispatcher := notify.NewDispatcher(st, st, deliverer, layout)
	processor := notify.NewEventProcessor(st, dispatcher)
	svc := notify.NewService(dispatcher, st, notify.AdminList{testAdmin})

	identity := func(r *http.Request) string {
		return r.Header.Get("X-User-Email")
	}

	handlers := NewHandlers(st, st, svc, processor, nil, identity)
	return SetupRoutes(handlers, nil), st, deliverer
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, asAdmin bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asAdmin {
		req.Header.Set("X-User-Email", testAdmin)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func seedTemplate(t *testing.T, st *memory.Store) {
	t.Helper()
	require.NoError(t, st.CreateTemplate(context.Background(), &domain.Template{
		ID:      "tpl-1",
		Name:    "Trip Confirmation",
		Subject: "Your {{trip_name}} registration",
		Body:    "<p>Hi {{name}}</p>",
	}))
}

func TestHealthCheck(t *testing.T) {
	handler, _, _ := setupTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestTemplateCRUDEndpoints(t *testing.T) {
	handler, _, _ := setupTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/templates", map[string]any{
		"name":    "Welcome",
		"subject": "Hi {{name}}",
		"body":    "<p>Welcome {{name}}</p>",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	rec = doJSON(t, handler, http.MethodGet, "/api/templates/"+created.ID, nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/templates", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	rec = doJSON(t, handler, http.MethodPut, "/api/templates/"+created.ID, map[string]any{
		"name":    "Welcome v2",
		"subject": "Hi {{name}}",
		"body":    "<p>Hello {{name}}</p>",
	}, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/templates/"+created.ID, nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/templates/"+created.ID, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTemplateValidation(t *testing.T) {
	handler, _, _ := setupTestServer(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/templates", map[string]any{
		"subject": "no name",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	handler, st, deliverer := setupTestServer(t)
	seedTemplate(t, st)

	rec := doJSON(t, handler, http.MethodPost, "/api/templates/tpl-1/preview", map[string]any{
		"bindings": map[string]any{"trip_name": "Baja Run"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var result notify.PreviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Your Baja Run registration", result.Subject)
	assert.Equal(t, []string{"name"}, result.Unresolved)
	assert.Zero(t, deliverer.count())

	// Preview writes nothing to the outcome log.
	rec = doJSON(t, handler, http.MethodGet, "/api/outcomes", nil, true)
	var outcomes struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcomes))
	assert.Zero(t, outcomes.Count)
}

func TestPreviewRequiresAdmin(t *testing.T) {
	handler, st, _ := setupTestServer(t)
	seedTemplate(t, st)

	rec := doJSON(t, handler, http.MethodPost, "/api/templates/tpl-1/preview", map[string]any{}, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTriggerEndpoints(t *testing.T) {
	handler, _, _ := setupTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/triggers", map[string]any{
		"name":            "Registration confirmed",
		"template_id":     "tpl-1",
		"trigger_type":    "event-driven",
		"collection":      "registrations",
		"event":           "create",
		"recipient_field": "email",
		"enabled":         true,
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Trigger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.SendCount)

	rec = doJSON(t, handler, http.MethodPost, "/api/triggers/"+created.ID+"/disable", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/triggers/"+created.ID, nil, true)
	var got domain.Trigger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Enabled)

	rec = doJSON(t, handler, http.MethodPost, "/api/triggers/missing/enable", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendEndpoint(t *testing.T) {
	handler, st, deliverer := setupTestServer(t)
	seedTemplate(t, st)

	rec := doJSON(t, handler, http.MethodPost, "/api/notifications/send", map[string]any{
		"template_id": "tpl-1",
		"recipient":   "maria@example.com",
		"bindings":    map[string]any{"name": "Maria", "trip_name": "Baja Run"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, deliverer.count())

	rec = doJSON(t, handler, http.MethodGet, "/api/outcomes", nil, true)
	var outcomes struct {
		Outcomes []domain.OutcomeLogEntry `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcomes))
	require.Len(t, outcomes.Outcomes, 1)
	assert.Equal(t, testAdmin, outcomes.Outcomes[0].SentBy)
	assert.Equal(t, domain.DispatchSent, outcomes.Outcomes[0].Status)
}

func TestSendEndpointAuthorization(t *testing.T) {
	handler, st, deliverer := setupTestServer(t)
	seedTemplate(t, st)

	rec := doJSON(t, handler, http.MethodPost, "/api/notifications/send", map[string]any{
		"template_id": "tpl-1",
		"recipient":   "maria@example.com",
	}, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, deliverer.count())
}

func TestSendEndpointEmptyRecipient(t *testing.T) {
	handler, st, _ := setupTestServer(t)
	seedTemplate(t, st)

	rec := doJSON(t, handler, http.MethodPost, "/api/notifications/send", map[string]any{
		"template_id": "tpl-1",
		"recipient":   "",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkSendEndpoint(t *testing.T) {
	handler, st, deliverer := setupTestServer(t)
	seedTemplate(t, st)

	rec := doJSON(t, handler, http.MethodPost, "/api/notifications/bulk", map[string]any{
		"template_id": "tpl-1",
		"recipients": []map[string]any{
			{"recipient": "one@example.com"},
			{"recipient": ""},
			{"recipient": "two@example.com"},
		},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var result notify.BulkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, deliverer.count())
}

func TestBulkSendEmptyList(t *testing.T) {
	handler, _, _ := setupTestServer(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/notifications/bulk", map[string]any{
		"template_id": "tpl-1",
		"recipients":  []map[string]any{},
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInjectEventEndpoint(t *testing.T) {
	handler, st, deliverer := setupTestServer(t)
	seedTemplate(t, st)
	require.NoError(t, st.CreateTrigger(context.Background(), &domain.Trigger{
		ID:             "trg-1",
		Name:           "Registration confirmed",
		Enabled:        true,
		TemplateID:     "tpl-1",
		TriggerType:    domain.TriggerEventDriven,
		Collection:     "registrations",
		Event:          domain.EventCreate,
		RecipientField: "email",
		DataMapping:    map[string]string{"name": "first_name", "trip_name": "trip_name"},
	}))

	rec := doJSON(t, handler, http.MethodPost, "/api/events", map[string]any{
		"collection":  "registrations",
		"event":       "create",
		"document_id": "reg-1",
		"document": map[string]any{
			"email":      "maria@example.com",
			"first_name": "Maria",
			"trip_name":  "Baja Run",
		},
	}, true)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, deliverer.count())

	trg, err := st.GetTrigger(context.Background(), "trg-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, trg.SendCount)
}

func TestInjectEventValidation(t *testing.T) {
	handler, _, _ := setupTestServer(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/events", map[string]any{
		"document_id": "x",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportWithoutExporter(t *testing.T) {
	handler, _, _ := setupTestServer(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/outcomes/export", nil, true)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestListOutcomesFilterValidation(t *testing.T) {
	handler, _, _ := setupTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/outcomes?limit=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
