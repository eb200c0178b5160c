package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/db"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/gateway"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/metrics"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/processor"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/scheduler"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/template"
)

// Store is the storage slice the HTTP boundary needs.
type Store interface {
	TemplateByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
	ListTemplates(ctx context.Context) ([]models.EmailTemplate, error)
	EnqueueEmail(ctx context.Context, d models.QueueDraft) (uuid.UUID, bool, error)
	RecordLog(ctx context.Context, d models.LogDraft) (uuid.UUID, error)
	RecentLogs(ctx context.Context, limit int) ([]models.EmailLogEntry, error)
	PendingQueue(ctx context.Context, limit int) ([]models.EmailQueueItem, error)
	LogStats(ctx context.Context) (models.EmailStats, error)
}

type QueueRunner interface {
	Run(ctx context.Context) (processor.Report, error)
}

type SequenceRunner interface {
	Run(ctx context.Context) (scheduler.Report, error)
}

type Handler struct {
	Store     Store
	Gateway   gateway.Gateway
	Processor QueueRunner
	Scheduler SequenceRunner
	From      string
	Log       *zap.Logger
}

// Register wires the boundary routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", h.SendEmail)
	mux.HandleFunc("POST /process-queue", h.ProcessQueue)
	mux.HandleFunc("GET /templates", h.ListTemplates)
	mux.HandleFunc("GET /logs", h.RecentLogs)
	mux.HandleFunc("GET /queue", h.QueueEntries)
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

type sendRequest struct {
	TemplateID   string            `json:"templateId"`
	Recipient    string            `json:"recipient"`
	TemplateData map[string]string `json:"templateData"`
	LeadID       *string           `json:"leadId,omitempty"`
	ScheduleAt   *time.Time        `json:"scheduleAt,omitempty"`
}

// SendEmail renders a template for one recipient and either dispatches it
// immediately (no scheduleAt) or enqueues it for the processor. Validation
// failures never reach the queue.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		httpError(w, http.StatusBadRequest, "templateId must be a valid uuid")
		return
	}
	if _, err := mail.ParseAddress(req.Recipient); err != nil {
		httpError(w, http.StatusBadRequest, "recipient must be a valid email address")
		return
	}
	var leadID *uuid.UUID
	if req.LeadID != nil {
		id, err := uuid.Parse(*req.LeadID)
		if err != nil {
			httpError(w, http.StatusBadRequest, "leadId must be a valid uuid")
			return
		}
		leadID = &id
	}

	ctx := r.Context()

	tmpl, err := h.Store.TemplateByID(ctx, templateID)
	if errors.Is(err, db.ErrTemplateNotFound) {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("template lookup failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "template lookup failed")
		return
	}

	rendered := template.Render(tmpl, req.TemplateData)
	origin := models.Origin{Kind: models.OriginAdHoc, TemplateData: req.TemplateData}

	if req.ScheduleAt != nil {
		id, _, err := h.Store.EnqueueEmail(ctx, models.QueueDraft{
			RecipientEmail: req.Recipient,
			LeadID:         leadID,
			TemplateID:     &tmpl.ID,
			Subject:        rendered.Subject,
			HTMLContent:    rendered.HTML,
			TextContent:    rendered.Text,
			ScheduledAt:    req.ScheduleAt.UTC(),
			Origin:         origin,
		})
		if err != nil {
			h.Log.Error("enqueue failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "failed to queue email")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "id": id})
		return
	}

	// Ad-hoc path: send right now, no retry budget. The outcome is still
	// logged either way.
	providerID, sendErr := h.Gateway.Send(ctx, gateway.Message{
		From:    h.From,
		To:      []string{req.Recipient},
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})

	now := time.Now().UTC()
	logDraft := models.LogDraft{
		RecipientEmail: req.Recipient,
		LeadID:         leadID,
		TemplateID:     &tmpl.ID,
		Subject:        rendered.Subject,
		Origin:         origin,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		logDraft.Status = models.LogStatusFailed
		logDraft.ErrorMessage = &msg
	} else {
		logDraft.Status = models.LogStatusSent
		logDraft.SentAt = &now
		logDraft.ProviderMessageID = &providerID
	}
	if _, err := h.Store.RecordLog(ctx, logDraft); err != nil {
		h.Log.Error("failed to record email log", zap.Error(err))
	}

	if sendErr != nil {
		metrics.EmailFailures.Inc()
		h.Log.Warn("ad-hoc send failed",
			zap.String("recipient", req.Recipient),
			zap.Error(sendErr),
		)
		httpError(w, http.StatusBadGateway, sendErr.Error())
		return
	}

	metrics.EmailsSent.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": providerID})
}

// ProcessQueue triggers one queue-processor cycle and one sequence-scheduler
// cycle. The two stages are independent and run concurrently.
func (h *Handler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	var (
		procRep  processor.Report
		schedRep scheduler.Report
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		procRep, err = h.Processor.Run(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		schedRep, err = h.Scheduler.Run(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		h.Log.Error("queue cycle failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"processed": procRep.Processed,
		"sent":      procRep.Sent,
		"failed":    procRep.Failed,
		"reaped":    procRep.Reaped,
		"enrolled":  schedRep.Enrolled,
	})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		h.Log.Error("list templates failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.RecentLogs(r.Context(), 100)
	if err != nil {
		h.Log.Error("list logs failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (h *Handler) QueueEntries(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.PendingQueue(r.Context(), 50)
	if err != nil {
		h.Log.Error("list queue failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": items})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.LogStats(r.Context())
	if err != nil {
		h.Log.Error("stats failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
