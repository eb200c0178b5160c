package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/models"
)

// ErrTemplateNotFound is returned when a referenced template id does not
// exist. Callers surface it synchronously; nothing enters the queue.
var ErrTemplateNotFound = errors.New("email template not found")

const templateColumns = `id, name, subject, html_content, text_content,
	template_type, variables, created_at, updated_at`

func (s *Store) TemplateByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	err := s.Pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.Name, &t.Subject, &t.HTMLContent, &t.TextContent,
		&t.TemplateType, &t.Variables, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+templateColumns+` FROM email_templates ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []models.EmailTemplate
	for rows.Next() {
		var t models.EmailTemplate
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Subject, &t.HTMLContent, &t.TextContent,
			&t.TemplateType, &t.Variables, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
