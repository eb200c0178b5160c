package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailTemplate holds the subject/body of a send. Templates are authored by
// the admin UI; queued sends snapshot the rendered content at enqueue time,
// so later edits only affect future sends.
type EmailTemplate struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	HTMLContent  string    `json:"html_content"`
	TextContent  *string   `json:"text_content,omitempty"`
	TemplateType string    `json:"template_type"`
	Variables    []string  `json:"variables"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const TriggerLeadCreated = "lead_created"

// EmailSequence is a drip campaign. Read-only to this service; authored
// externally.
type EmailSequence struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Description *string             `json:"description,omitempty"`
	TriggerType string              `json:"trigger_type"`
	IsActive    bool                `json:"is_active"`
	Steps       []EmailSequenceStep `json:"steps"`
}

type EmailSequenceStep struct {
	ID         uuid.UUID `json:"id"`
	SequenceID uuid.UUID `json:"sequence_id"`
	StepNumber int       `json:"step_number"`
	TemplateID uuid.UUID `json:"template_id"`
	DelayDays  int       `json:"delay_days"`
	DelayHours int       `json:"delay_hours"`

	Template *EmailTemplate `json:"-"`
}

// Offset is the delay of the step relative to the trigger event.
func (s EmailSequenceStep) Offset() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}
