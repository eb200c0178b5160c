package models

import (
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// Terminal reports whether no further transitions can happen for the status.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusSent || s == QueueStatusFailed
}

type LogStatus string

const (
	LogStatusPending    LogStatus = "pending"
	LogStatusSent       LogStatus = "sent"
	LogStatusDelivered  LogStatus = "delivered"
	LogStatusBounced    LogStatus = "bounced"
	LogStatusComplained LogStatus = "complained"
	LogStatusFailed     LogStatus = "failed"
)

type OriginKind string

const (
	OriginAdHoc        OriginKind = "ad_hoc"
	OriginSequenceStep OriginKind = "sequence_step"
	OriginCampaign     OriginKind = "campaign"
)

// Origin tags a queue item or log entry with the purpose it was created for,
// plus the template data that produced its rendered content.
type Origin struct {
	Kind         OriginKind        `json:"kind"`
	TemplateData map[string]string `json:"template_data,omitempty"`
}

// EmailQueueItem is one scheduled, retryable send request. Rows are never
// deleted; terminal rows double as an audit trail.
type EmailQueueItem struct {
	ID             uuid.UUID   `json:"id"`
	RecipientEmail string      `json:"recipient_email"`
	LeadID         *uuid.UUID  `json:"lead_id,omitempty"`
	TemplateID     *uuid.UUID  `json:"template_id,omitempty"`
	CampaignID     *uuid.UUID  `json:"campaign_id,omitempty"`
	SequenceID     *uuid.UUID  `json:"sequence_id,omitempty"`
	SequenceStepID *uuid.UUID  `json:"sequence_step_id,omitempty"`
	Subject        string      `json:"subject"`
	HTMLContent    string      `json:"html_content"`
	TextContent    *string     `json:"text_content,omitempty"`
	ScheduledAt    time.Time   `json:"scheduled_at"`
	Status         QueueStatus `json:"status"`
	Attempts       int         `json:"attempts"`
	MaxAttempts    int         `json:"max_attempts"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
	Origin         Origin      `json:"origin"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// QueueDraft is the caller-supplied part of a queue item.
type QueueDraft struct {
	RecipientEmail string
	LeadID         *uuid.UUID
	TemplateID     *uuid.UUID
	CampaignID     *uuid.UUID
	SequenceID     *uuid.UUID
	SequenceStepID *uuid.UUID
	Subject        string
	HTMLContent    string
	TextContent    *string
	ScheduledAt    time.Time
	MaxAttempts    int // zero means the default of 3
	Origin         Origin
}

// EmailLogEntry records one delivery attempt. A retried queue item produces a
// new row per attempt; rows are write-once apart from delivery callbacks
// filling DeliveredAt/OpenedAt/ClickedAt.
type EmailLogEntry struct {
	ID                uuid.UUID  `json:"id"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	RecipientEmail    string     `json:"recipient_email"`
	LeadID            *uuid.UUID `json:"lead_id,omitempty"`
	CampaignID        *uuid.UUID `json:"campaign_id,omitempty"`
	TemplateID        *uuid.UUID `json:"template_id,omitempty"`
	Subject           string     `json:"subject"`
	Status            LogStatus  `json:"status"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	ClickedAt         *time.Time `json:"clicked_at,omitempty"`
	Origin            Origin     `json:"origin"`
	CreatedAt         time.Time  `json:"created_at"`
}

type LogDraft struct {
	ProviderMessageID *string
	RecipientEmail    string
	LeadID            *uuid.UUID
	CampaignID        *uuid.UUID
	TemplateID        *uuid.UUID
	Subject           string
	Status            LogStatus
	ErrorMessage      *string
	SentAt            *time.Time
	Origin            Origin
}

// EmailStats is the aggregate the admin dashboard reads off the log.
type EmailStats struct {
	TotalSent    int64   `json:"total_sent"`
	Delivered    int64   `json:"delivered"`
	Failed       int64   `json:"failed"`
	DeliveryRate float64 `json:"delivery_rate"`
}
