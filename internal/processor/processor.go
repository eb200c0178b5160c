package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/gateway"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/metrics"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
)

const (
	DefaultBatchLimit = 50
	DefaultStaleAfter = 10 * time.Minute
)

// Store is the slice of the queue/log storage the processor needs.
type Store interface {
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
	DueEmails(ctx context.Context, limit int, now time.Time) ([]models.EmailQueueItem, error)
	ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkRetryOrFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	RecordLog(ctx context.Context, d models.LogDraft) (uuid.UUID, error)
}

// Report summarizes one processor cycle.
type Report struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Reaped    int `json:"reaped"`
}

// Processor drains due queue items in run-to-completion cycles. All durable
// state lives in the store; concurrent cycles coordinate through the
// conditional queued → processing claim, so overlapping invocations are safe.
type Processor struct {
	store      Store
	gw         gateway.Gateway
	limiter    *rate.Limiter
	log        *zap.Logger
	from       string
	batchLimit int
	staleAfter time.Duration
}

type Option func(*Processor)

// WithBatchLimit caps how many due items one cycle will fetch.
func WithBatchLimit(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.batchLimit = n
		}
	}
}

// WithStaleAfter sets how long an item may sit in processing before the
// recovery sweep reclaims it.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// WithRateLimiter bounds gateway calls to the provider's request budget.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(p *Processor) { p.limiter = l }
}

func New(store Store, gw gateway.Gateway, from string, log *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:      store,
		gw:         gw,
		log:        log,
		from:       from,
		batchLimit: DefaultBatchLimit,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one cycle: reap stale items, fetch due items, and dispatch
// them sequentially in ascending scheduled order. A failure on one item never
// aborts the rest of the batch; only a cancelled context or a failed fetch
// ends the cycle early.
func (p *Processor) Run(ctx context.Context) (Report, error) {
	var rep Report

	reaped, err := p.store.ReapStale(ctx, p.staleAfter)
	if err != nil {
		p.log.Warn("stale sweep failed", zap.Error(err))
	} else if reaped > 0 {
		p.log.Info("reclaimed stale processing items", zap.Int("count", reaped))
		metrics.StaleReaped.Add(float64(reaped))
		rep.Reaped = reaped
	}

	items, err := p.store.DueEmails(ctx, p.batchLimit, time.Now().UTC())
	if err != nil {
		return rep, fmt.Errorf("fetch due emails: %w", err)
	}
	if len(items) == 0 {
		return rep, nil
	}

	p.log.Info("processing email queue", zap.Int("due", len(items)))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := p.processItem(ctx, item, &rep); err != nil {
			// Isolated per item: log and move on.
			p.log.Error("queue item processing failed",
				zap.String("id", item.ID.String()),
				zap.String("recipient", item.RecipientEmail),
				zap.Error(err),
			)
		}
	}

	p.log.Info("email queue cycle complete",
		zap.Int("processed", rep.Processed),
		zap.Int("sent", rep.Sent),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

func (p *Processor) processItem(ctx context.Context, item models.EmailQueueItem, rep *Report) error {
	claimed, err := p.store.ClaimProcessing(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		// Another cycle won the item.
		return nil
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	rep.Processed++

	providerID, sendErr := p.gw.Send(ctx, gateway.Message{
		From:    p.from,
		To:      []string{item.RecipientEmail},
		Subject: item.Subject,
		HTML:    item.HTMLContent,
		Text:    item.TextContent,
	})

	now := time.Now().UTC()
	if sendErr != nil {
		rep.Failed++
		metrics.EmailFailures.Inc()
		if item.Attempts+1 >= item.MaxAttempts {
			metrics.QueueItemsFailed.Inc()
		}

		msg := sendErr.Error()
		p.recordLog(ctx, item, models.LogDraft{
			RecipientEmail: item.RecipientEmail,
			LeadID:         item.LeadID,
			CampaignID:     item.CampaignID,
			TemplateID:     item.TemplateID,
			Subject:        item.Subject,
			Status:         models.LogStatusFailed,
			ErrorMessage:   &msg,
			Origin:         item.Origin,
		})

		if err := p.store.MarkRetryOrFailed(ctx, item.ID, msg); err != nil {
			return fmt.Errorf("mark retry or failed: %w", err)
		}

		p.log.Warn("email send failed",
			zap.String("recipient", item.RecipientEmail),
			zap.Int("attempt", item.Attempts+1),
			zap.Int("max_attempts", item.MaxAttempts),
			zap.Error(sendErr),
		)
		return nil
	}

	rep.Sent++
	metrics.EmailsSent.Inc()

	p.recordLog(ctx, item, models.LogDraft{
		ProviderMessageID: &providerID,
		RecipientEmail:    item.RecipientEmail,
		LeadID:            item.LeadID,
		CampaignID:        item.CampaignID,
		TemplateID:        item.TemplateID,
		Subject:           item.Subject,
		Status:            models.LogStatusSent,
		SentAt:            &now,
		Origin:            item.Origin,
	})

	if err := p.store.MarkSent(ctx, item.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	p.log.Info("email sent",
		zap.String("recipient", item.RecipientEmail),
		zap.String("provider_id", providerID),
	)
	return nil
}

// recordLog appends the attempt row. The log must not block the queue
// transition, so a log write failure is reported but not propagated.
func (p *Processor) recordLog(ctx context.Context, item models.EmailQueueItem, d models.LogDraft) {
	if _, err := p.store.RecordLog(ctx, d); err != nil {
		p.log.Error("failed to record email log",
			zap.String("queue_id", item.ID.String()),
			zap.Error(err),
		)
	}
}
