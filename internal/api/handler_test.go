package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/db"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/gateway"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/processor"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/scheduler"
)

type fakeStore struct {
	templates map[uuid.UUID]*models.EmailTemplate
	drafts    []models.QueueDraft
	logs      []models.LogDraft
	queue     []models.EmailQueueItem
	entries   []models.EmailLogEntry
	stats     models.EmailStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{templates: map[uuid.UUID]*models.EmailTemplate{}}
}

func (f *fakeStore) TemplateByID(_ context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrTemplateNotFound, id)
	}
	return t, nil
}

func (f *fakeStore) ListTemplates(context.Context) ([]models.EmailTemplate, error) {
	var out []models.EmailTemplate
	for _, t := range f.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeStore) EnqueueEmail(_ context.Context, d models.QueueDraft) (uuid.UUID, bool, error) {
	f.drafts = append(f.drafts, d)
	return uuid.New(), true, nil
}

func (f *fakeStore) RecordLog(_ context.Context, d models.LogDraft) (uuid.UUID, error) {
	f.logs = append(f.logs, d)
	return uuid.New(), nil
}

func (f *fakeStore) RecentLogs(context.Context, int) ([]models.EmailLogEntry, error) {
	return f.entries, nil
}

func (f *fakeStore) PendingQueue(context.Context, int) ([]models.EmailQueueItem, error) {
	return f.queue, nil
}

func (f *fakeStore) LogStats(context.Context) (models.EmailStats, error) {
	return f.stats, nil
}

type fakeGateway struct {
	sent []gateway.Message
	err  error
}

func (g *fakeGateway) Send(_ context.Context, msg gateway.Message) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.sent = append(g.sent, msg)
	return "msg_1", nil
}

type fakeProcessor struct{ rep processor.Report }

func (p *fakeProcessor) Run(context.Context) (processor.Report, error) { return p.rep, nil }

type fakeScheduler struct{ rep scheduler.Report }

func (s *fakeScheduler) Run(context.Context) (scheduler.Report, error) { return s.rep, nil }

func newHandler(store *fakeStore, gw *fakeGateway) *Handler {
	return &Handler{
		Store:     store,
		Gateway:   gw,
		Processor: &fakeProcessor{rep: processor.Report{Processed: 3, Sent: 2, Failed: 1}},
		Scheduler: &fakeScheduler{rep: scheduler.Report{Enrolled: 4}},
		From:      "TMT <from@example.com>",
		Log:       zap.NewNop(),
	}
}

func addTemplate(store *fakeStore) *models.EmailTemplate {
	tmpl := &models.EmailTemplate{
		ID:          uuid.New(),
		Name:        "welcome",
		Subject:     "Hi {first_name}",
		HTMLContent: "<p>Hello {first_name}</p>",
	}
	store.templates[tmpl.ID] = tmpl
	return tmpl
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSendEmailValidation(t *testing.T) {
	store := newFakeStore()
	tmpl := addTemplate(store)
	h := newHandler(store, &fakeGateway{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing template id", `{"recipient":"a@b.com"}`},
		{"bad template id", `{"templateId":"nope","recipient":"a@b.com"}`},
		{"missing recipient", fmt.Sprintf(`{"templateId":%q}`, tmpl.ID)},
		{"bad recipient", fmt.Sprintf(`{"templateId":%q,"recipient":"not-an-email"}`, tmpl.ID)},
		{"bad lead id", fmt.Sprintf(`{"templateId":%q,"recipient":"a@b.com","leadId":"xyz"}`, tmpl.ID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/send", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// Rejected requests never reach the queue or the log.
	assert.Empty(t, store.drafts)
	assert.Empty(t, store.logs)
}

func TestSendEmailTemplateNotFound(t *testing.T) {
	store := newFakeStore()
	h := newHandler(store, &fakeGateway{})

	body := fmt.Sprintf(`{"templateId":%q,"recipient":"a@b.com"}`, uuid.New())
	rec := doRequest(t, h, http.MethodPost, "/send", body)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.drafts)
}

func TestSendEmailImmediate(t *testing.T) {
	store := newFakeStore()
	tmpl := addTemplate(store)
	gw := &fakeGateway{}
	h := newHandler(store, gw)

	body := fmt.Sprintf(
		`{"templateId":%q,"recipient":"ana@acme.com","templateData":{"first_name":"Ana"}}`,
		tmpl.ID,
	)
	rec := doRequest(t, h, http.MethodPost, "/send", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "Hi Ana", gw.sent[0].Subject)
	assert.Equal(t, "<p>Hello Ana</p>", gw.sent[0].HTML)
	assert.Equal(t, []string{"ana@acme.com"}, gw.sent[0].To)

	require.Len(t, store.logs, 1)
	assert.Equal(t, models.LogStatusSent, store.logs[0].Status)
	assert.Empty(t, store.drafts, "immediate sends bypass the queue")
}

func TestSendEmailImmediateFailureIsLogged(t *testing.T) {
	store := newFakeStore()
	tmpl := addTemplate(store)
	gw := &fakeGateway{err: &gateway.DeliveryError{Provider: "resend", Reason: "quota exceeded"}}
	h := newHandler(store, gw)

	body := fmt.Sprintf(`{"templateId":%q,"recipient":"ana@acme.com"}`, tmpl.ID)
	rec := doRequest(t, h, http.MethodPost, "/send", body)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "quota exceeded")

	require.Len(t, store.logs, 1)
	assert.Equal(t, models.LogStatusFailed, store.logs[0].Status)
	require.NotNil(t, store.logs[0].ErrorMessage)
	assert.Contains(t, *store.logs[0].ErrorMessage, "quota exceeded")
}

func TestSendEmailScheduledEnqueues(t *testing.T) {
	store := newFakeStore()
	tmpl := addTemplate(store)
	gw := &fakeGateway{}
	h := newHandler(store, gw)

	at := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(
		`{"templateId":%q,"recipient":"ana@acme.com","templateData":{"first_name":"Ana"},"scheduleAt":%q}`,
		tmpl.ID, at,
	)
	rec := doRequest(t, h, http.MethodPost, "/send", body)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Empty(t, gw.sent, "scheduled sends must not hit the gateway")

	require.Len(t, store.drafts, 1)
	d := store.drafts[0]
	assert.Equal(t, "Hi Ana", d.Subject)
	assert.Equal(t, models.OriginAdHoc, d.Origin.Kind)
	assert.Equal(t, tmpl.ID, *d.TemplateID)
}

func TestProcessQueueReportsCounts(t *testing.T) {
	h := newHandler(newFakeStore(), &fakeGateway{})

	rec := doRequest(t, h, http.MethodPost, "/process-queue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got["processed"])
	assert.Equal(t, 2, got["sent"])
	assert.Equal(t, 1, got["failed"])
	assert.Equal(t, 4, got["enrolled"])
}

func TestProjections(t *testing.T) {
	store := newFakeStore()
	addTemplate(store)
	store.entries = []models.EmailLogEntry{{ID: uuid.New(), RecipientEmail: "a@b.com"}}
	store.queue = []models.EmailQueueItem{{ID: uuid.New(), RecipientEmail: "a@b.com"}}
	store.stats = models.EmailStats{TotalSent: 10, Delivered: 9, Failed: 1, DeliveryRate: 0.9}

	h := newHandler(store, &fakeGateway{})

	rec := doRequest(t, h, http.MethodGet, "/templates", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "welcome"))

	rec = doRequest(t, h, http.MethodGet, "/logs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/queue", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats models.EmailStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.InDelta(t, 0.9, stats.DeliveryRate, 1e-9)

	rec = doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
