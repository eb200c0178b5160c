package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/leads"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/metrics"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/template"
)

// DefaultWindow is the trailing lead-creation window considered for
// enrollment.
const DefaultWindow = 24 * time.Hour

// Store is the storage slice the scheduler needs.
type Store interface {
	ActiveSequences(ctx context.Context, trigger string) ([]models.EmailSequence, error)
	EnqueueEmail(ctx context.Context, d models.QueueDraft) (uuid.UUID, bool, error)
}

// LeadDirectory is the external lead collaborator, read-only.
type LeadDirectory interface {
	NotEnrolled(ctx context.Context, sequenceID uuid.UUID, since time.Time) ([]leads.Lead, error)
}

type Report struct {
	Enrolled int `json:"enrolled"`
}

// Scheduler expands active lead_created sequences into queue items for
// recently created leads. Enrollment is idempotent: the queue's unique
// (sequence, lead, step) index turns duplicate inserts into no-ops, so
// concurrent scheduler cycles cannot double-enroll a lead.
type Scheduler struct {
	store  Store
	leads  LeadDirectory
	log    *zap.Logger
	window time.Duration
}

func New(store Store, dir LeadDirectory, log *zap.Logger, window time.Duration) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scheduler{store: store, leads: dir, log: log, window: window}
}

// Run executes one scheduling cycle. Errors are isolated: a bad sequence,
// lead, or step never stops the remaining work.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	var rep Report

	sequences, err := s.store.ActiveSequences(ctx, models.TriggerLeadCreated)
	if err != nil {
		return rep, fmt.Errorf("fetch active sequences: %w", err)
	}
	if len(sequences) == 0 {
		return rep, nil
	}

	since := time.Now().UTC().Add(-s.window)

	for _, seq := range sequences {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		newLeads, err := s.leads.NotEnrolled(ctx, seq.ID, since)
		if err != nil {
			s.log.Error("failed to fetch leads for sequence",
				zap.String("sequence", seq.Name),
				zap.Error(err),
			)
			continue
		}
		if len(newLeads) == 0 {
			continue
		}

		s.log.Info("enrolling leads in sequence",
			zap.String("sequence", seq.Name),
			zap.Int("leads", len(newLeads)),
		)

		for _, lead := range newLeads {
			rep.Enrolled += s.enrollLead(ctx, seq, lead)
		}
	}
	return rep, nil
}

// enrollLead queues one item per sequence step, each scheduled relative to
// the lead's creation time. Returns how many items were actually inserted.
func (s *Scheduler) enrollLead(ctx context.Context, seq models.EmailSequence, lead leads.Lead) int {
	data := lead.TemplateData()
	inserted := 0

	for i := range seq.Steps {
		step := seq.Steps[i]
		if step.Template == nil {
			s.log.Warn("sequence step has no template, skipping",
				zap.String("sequence", seq.Name),
				zap.Int("step", step.StepNumber),
			)
			continue
		}

		rendered := template.Render(step.Template, data)
		leadID := lead.ID

		_, ok, err := s.store.EnqueueEmail(ctx, models.QueueDraft{
			RecipientEmail: lead.Email,
			LeadID:         &leadID,
			TemplateID:     &step.TemplateID,
			SequenceID:     &step.SequenceID,
			SequenceStepID: &step.ID,
			Subject:        rendered.Subject,
			HTMLContent:    rendered.HTML,
			TextContent:    rendered.Text,
			ScheduledAt:    lead.CreatedAt.Add(step.Offset()),
			Origin: models.Origin{
				Kind:         models.OriginSequenceStep,
				TemplateData: data,
			},
		})
		if err != nil {
			// One step failing must not block the remaining steps.
			s.log.Error("failed to enqueue sequence step",
				zap.String("sequence", seq.Name),
				zap.Int("step", step.StepNumber),
				zap.String("lead", lead.Email),
				zap.Error(err),
			)
			continue
		}
		if ok {
			inserted++
			metrics.SequenceEnrollments.Inc()
		}
	}
	return inserted
}
