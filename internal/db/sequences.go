package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
)

// ActiveSequences returns every active sequence for the given trigger, with
// its steps ordered by step number and each step's template loaded. Sequences
// are read-only to this service.
func (s *Store) ActiveSequences(ctx context.Context, trigger string) ([]models.EmailSequence, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, name, description, trigger_type, is_active
		 FROM email_sequences
		 WHERE is_active AND trigger_type = $1
		 ORDER BY name`,
		trigger,
	)
	if err != nil {
		return nil, fmt.Errorf("query sequences: %w", err)
	}

	var sequences []models.EmailSequence
	for rows.Next() {
		var sq models.EmailSequence
		if err := rows.Scan(&sq.ID, &sq.Name, &sq.Description, &sq.TriggerType, &sq.IsActive); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		sequences = append(sequences, sq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sequences {
		steps, err := s.sequenceSteps(ctx, sequences[i].ID)
		if err != nil {
			return nil, err
		}
		sequences[i].Steps = steps
	}
	return sequences, nil
}

func (s *Store) sequenceSteps(ctx context.Context, sequenceID uuid.UUID) ([]models.EmailSequenceStep, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT st.id, st.sequence_id, st.step_number, st.template_id,
		        st.delay_days, st.delay_hours,
		        t.id, t.name, t.subject, t.html_content, t.text_content,
		        t.template_type, t.variables, t.created_at, t.updated_at
		 FROM email_sequence_steps st
		 JOIN email_templates t ON t.id = st.template_id
		 WHERE st.sequence_id = $1
		 ORDER BY st.step_number`,
		sequenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sequence steps: %w", err)
	}
	defer rows.Close()

	var steps []models.EmailSequenceStep
	for rows.Next() {
		var st models.EmailSequenceStep
		var t models.EmailTemplate
		if err := rows.Scan(
			&st.ID, &st.SequenceID, &st.StepNumber, &st.TemplateID,
			&st.DelayDays, &st.DelayHours,
			&t.ID, &t.Name, &t.Subject, &t.HTMLContent, &t.TextContent,
			&t.TemplateType, &t.Variables, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sequence step: %w", err)
		}
		st.Template = &t
		steps = append(steps, st)
	}
	return steps, rows.Err()
}
