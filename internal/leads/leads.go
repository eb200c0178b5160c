package leads

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lead is the external CRM entity the email core reads but never mutates.
type Lead struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	FirstName     *string   `json:"first_name,omitempty"`
	LastName      *string   `json:"last_name,omitempty"`
	CompanyName   *string   `json:"company_name,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	MonthlyBudget *string   `json:"monthly_budget,omitempty"`
	BusinessGoals *string   `json:"business_goals,omitempty"`
	Challenges    *string   `json:"challenges,omitempty"`
	Score         int       `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}

// TemplateData flattens the lead into the standard variable map used for
// template substitution. Absent fields become empty strings.
func (l Lead) TemplateData() map[string]string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return map[string]string{
		"first_name":     str(l.FirstName),
		"last_name":      str(l.LastName),
		"email":          l.Email,
		"company_name":   str(l.CompanyName),
		"phone":          str(l.Phone),
		"monthly_budget": str(l.MonthlyBudget),
		"business_goals": str(l.BusinessGoals),
		"challenges":     str(l.Challenges),
		"score":          strconv.Itoa(l.Score),
	}
}

// Directory reads leads out of the shared CRM table.
type Directory struct {
	Pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{Pool: pool}
}

const leadColumns = `id, email, first_name, last_name, company_name, phone,
	monthly_budget, business_goals, challenges, score, created_at`

// CreatedSince returns leads created at or after the given time, oldest first.
func (d *Directory) CreatedSince(ctx context.Context, since time.Time) ([]Lead, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE created_at >= $1
		 ORDER BY created_at`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	return scanLeads(rows)
}

// NotEnrolled returns leads created at or after since that have no queue entry
// for the given sequence. The definitive duplicate guard is the unique index
// on the queue table; this query only narrows the candidate set.
func (d *Directory) NotEnrolled(ctx context.Context, sequenceID uuid.UUID, since time.Time) ([]Lead, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+leadColumns+`
		 FROM leads l
		 WHERE l.created_at >= $2
		   AND NOT EXISTS (
		       SELECT 1 FROM email_queue q
		       WHERE q.sequence_id = $1 AND q.lead_id = l.id
		   )
		 ORDER BY l.created_at`,
		sequenceID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query unenrolled leads: %w", err)
	}
	return scanLeads(rows)
}

func scanLeads(rows pgx.Rows) ([]Lead, error) {
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(
			&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.CompanyName,
			&l.Phone, &l.MonthlyBudget, &l.BusinessGoals, &l.Challenges,
			&l.Score, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
