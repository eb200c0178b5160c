package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
)

const DefaultMaxAttempts = 3

const queueColumns = `id, recipient_email, lead_id, template_id, campaign_id,
	sequence_id, sequence_step_id, subject, html_content, text_content,
	scheduled_at, status, attempts, max_attempts, error_message, origin,
	created_at, updated_at`

// EnqueueEmail inserts a queue item. For sequence-origin drafts the unique
// enrollment index may reject the insert as a duplicate; that is reported as
// inserted=false with a nil error, per the idempotent-enrollment contract.
func (s *Store) EnqueueEmail(ctx context.Context, d models.QueueDraft) (uuid.UUID, bool, error) {
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var id uuid.UUID
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO email_queue
		 (recipient_email, lead_id, template_id, campaign_id, sequence_id,
		  sequence_step_id, subject, html_content, text_content, scheduled_at,
		  status, attempts, max_attempts, origin)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,$12,$13)
		 ON CONFLICT (sequence_id, lead_id, sequence_step_id)
		    WHERE sequence_id IS NOT NULL
		    DO NOTHING
		 RETURNING id`,
		d.RecipientEmail, d.LeadID, d.TemplateID, d.CampaignID, d.SequenceID,
		d.SequenceStepID, d.Subject, d.HTMLContent, d.TextContent, d.ScheduledAt,
		models.QueueStatusQueued, maxAttempts, d.Origin,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict with an existing enrollment: a no-op, not an error.
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("enqueue email: %w", err)
	}
	return id, true, nil
}

// DueEmails selects up to limit items that are queued, due, and still inside
// their retry budget, earliest-due first.
func (s *Store) DueEmails(ctx context.Context, limit int, now time.Time) ([]models.EmailQueueItem, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+queueColumns+`
		 FROM email_queue
		 WHERE status = $1
		   AND scheduled_at <= $2
		   AND attempts < max_attempts
		 ORDER BY scheduled_at
		 LIMIT $3`,
		models.QueueStatusQueued, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due emails: %w", err)
	}
	return scanQueueItems(rows)
}

// ClaimProcessing transitions queued → processing for exactly one winner.
// A false return means another processor run already claimed the item.
func (s *Store) ClaimProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = $3`,
		models.QueueStatusProcessing, id, models.QueueStatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim queue item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent moves an item to its terminal sent state.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET status = $1, error_message = NULL, updated_at = now()
		 WHERE id = $2`,
		models.QueueStatusSent, id,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkRetryOrFailed increments attempts and either re-queues the item for the
// next polling cycle or, once the budget is exhausted, parks it in the
// terminal failed state. One statement, so the transition is atomic.
func (s *Store) MarkRetryOrFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET attempts = attempts + 1,
		     status = CASE WHEN attempts + 1 >= max_attempts THEN $1 ELSE $2 END,
		     error_message = $3,
		     updated_at = now()
		 WHERE id = $4`,
		models.QueueStatusFailed, models.QueueStatusQueued, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark retry or failed: %w", err)
	}
	return nil
}

// ReapStale resets items stuck in processing longer than olderThan back to
// queued, charging one attempt. Covers runs killed mid-batch by their host.
func (s *Store) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE email_queue
		 SET attempts = attempts + 1,
		     status = CASE WHEN attempts + 1 >= max_attempts THEN $1 ELSE $2 END,
		     error_message = 'reclaimed from stale processing state',
		     updated_at = now()
		 WHERE status = $3
		   AND updated_at < now() - make_interval(secs => $4)`,
		models.QueueStatusFailed, models.QueueStatusQueued,
		models.QueueStatusProcessing, olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("reap stale items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PendingQueue is the admin projection: up to limit items by scheduled time.
func (s *Store) PendingQueue(ctx context.Context, limit int) ([]models.EmailQueueItem, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+queueColumns+`
		 FROM email_queue
		 ORDER BY scheduled_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	return scanQueueItems(rows)
}

func scanQueueItems(rows pgx.Rows) ([]models.EmailQueueItem, error) {
	defer rows.Close()

	var items []models.EmailQueueItem
	for rows.Next() {
		var it models.EmailQueueItem
		if err := rows.Scan(
			&it.ID, &it.RecipientEmail, &it.LeadID, &it.TemplateID,
			&it.CampaignID, &it.SequenceID, &it.SequenceStepID, &it.Subject,
			&it.HTMLContent, &it.TextContent, &it.ScheduledAt, &it.Status,
			&it.Attempts, &it.MaxAttempts, &it.ErrorMessage, &it.Origin,
			&it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
