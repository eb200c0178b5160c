package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
)

const logColumns = `id, provider_message_id, recipient_email, lead_id,
	campaign_id, template_id, subject, status, error_message, sent_at,
	delivered_at, opened_at, clicked_at, origin, created_at`

// RecordLog appends one delivery-attempt row. The log is append-only and must
// succeed independently of the send outcome it records.
func (s *Store) RecordLog(ctx context.Context, d models.LogDraft) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO email_logs
		 (provider_message_id, recipient_email, lead_id, campaign_id,
		  template_id, subject, status, error_message, sent_at, origin)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 RETURNING id`,
		d.ProviderMessageID, d.RecipientEmail, d.LeadID, d.CampaignID,
		d.TemplateID, d.Subject, d.Status, d.ErrorMessage, d.SentAt, d.Origin,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record email log: %w", err)
	}
	return id, nil
}

// RecentLogs is the admin projection: newest entries first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]models.EmailLogEntry, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+logColumns+`
		 FROM email_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query email logs: %w", err)
	}
	defer rows.Close()

	var entries []models.EmailLogEntry
	for rows.Next() {
		var e models.EmailLogEntry
		if err := rows.Scan(
			&e.ID, &e.ProviderMessageID, &e.RecipientEmail, &e.LeadID,
			&e.CampaignID, &e.TemplateID, &e.Subject, &e.Status,
			&e.ErrorMessage, &e.SentAt, &e.DeliveredAt, &e.OpenedAt,
			&e.ClickedAt, &e.Origin, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LogStats aggregates the log into the delivery-rate figures the dashboard
// shows. The log, not the queue, is the source of truth here.
func (s *Store) LogStats(ctx context.Context) (models.EmailStats, error) {
	var st models.EmailStats
	err := s.Pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE status IN ($1, $2)),
		   count(*) FILTER (WHERE status = $2),
		   count(*) FILTER (WHERE status = $3)
		 FROM email_logs`,
		models.LogStatusSent, models.LogStatusDelivered, models.LogStatusFailed,
	).Scan(&st.TotalSent, &st.Delivered, &st.Failed)
	if err != nil {
		return models.EmailStats{}, fmt.Errorf("query email stats: %w", err)
	}
	if st.TotalSent > 0 {
		st.DeliveryRate = float64(st.Delivered) / float64(st.TotalSent)
	}
	return st, nil
}
