// Package postgres is the durable draft gateway on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"grant-intake/internal/common/database"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"
	"grant-intake/internal/store"
	"grant-intake/internal/wizard/registry"
)

var ErrDatabaseWriteFailed = errors.New("DATABASE_WRITE_FAILED")

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

// Migrate creates the draft tables if they do not exist.
func Migrate(ctx context.Context, client *database.PostgresClient) error {
	return client.Migrate(ctx, Schema...)
}

const upsertDraft = `
	INSERT INTO application_drafts (
		id, slug, status, current_step, completed_steps, answers, derived_scores,
		total_score, organization_name, created_at, updated_at, last_saved_at, submitted_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		slug = EXCLUDED.slug,
		status = EXCLUDED.status,
		current_step = EXCLUDED.current_step,
		completed_steps = EXCLUDED.completed_steps,
		answers = EXCLUDED.answers,
		derived_scores = EXCLUDED.derived_scores,
		total_score = EXCLUDED.total_score,
		organization_name = EXCLUDED.organization_name,
		updated_at = EXCLUDED.updated_at,
		last_saved_at = EXCLUDED.last_saved_at,
		submitted_at = EXCLUDED.submitted_at`

func (s *Store) Save(ctx context.Context, id string, d *models.ApplicationDraft) error {
	answersJSON, err := json.Marshal(d.Answers)
	if err != nil {
		return fmt.Errorf("%w: marshal answers: %v", ErrDatabaseWriteFailed, err)
	}
	stepsJSON, err := json.Marshal(d.CompletedSteps)
	if err != nil {
		return fmt.Errorf("%w: marshal completed steps: %v", ErrDatabaseWriteFailed, err)
	}
	scoresJSON, err := json.Marshal(d.DerivedScores)
	if err != nil {
		return fmt.Errorf("%w: marshal scores: %v", ErrDatabaseWriteFailed, err)
	}

	_, err = s.db.ExecContext(ctx, upsertDraft,
		id,
		d.Slug,
		string(d.Status),
		d.CurrentStep,
		stepsJSON,
		answersJSON,
		scoresJSON,
		d.DerivedScores.TotalScore,
		d.Answers[registry.OrganizationName].String(),
		d.CreatedAt,
		d.UpdatedAt,
		nullTime(d.LastSavedAt),
		nullTime(d.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert draft: %v", ErrDatabaseWriteFailed, err)
	}

	if d.Status == models.StatusSubmitted {
		s.audit(ctx, id, d)
	}
	return nil
}

// audit records the submission. It is non-critical: failures are logged.
func (s *Store) audit(ctx context.Context, id string, d *models.ApplicationDraft) {
	details, err := json.Marshal(map[string]interface{}{
		"slug":       d.Slug,
		"totalScore": d.DerivedScores.TotalScore,
	})
	if err != nil {
		details = []byte("{}")
	}

	at := d.UpdatedAt
	if d.SubmittedAt != nil {
		at = *d.SubmittedAt
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"application_submitted",
		"application",
		id,
		details,
		at,
	)
	if err != nil {
		s.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":   err,
			"draftId": id,
		})
	}
}

func (s *Store) Load(ctx context.Context, id string) (*models.ApplicationDraft, error) {
	var (
		d                                  models.ApplicationDraft
		status                             string
		stepsJSON, answersJSON, scoresJSON []byte
		lastSavedAt, submittedAt           sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, status, current_step, completed_steps, answers, derived_scores,
			created_at, updated_at, last_saved_at, submitted_at
		FROM application_drafts
		WHERE id = $1`, id).Scan(
		&d.ID, &d.Slug, &status, &d.CurrentStep, &stepsJSON, &answersJSON, &scoresJSON,
		&d.CreatedAt, &d.UpdatedAt, &lastSavedAt, &submittedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query draft: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &d.CompletedSteps); err != nil {
		return nil, fmt.Errorf("decode completed steps: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &d.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal(scoresJSON, &d.DerivedScores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	if d.Answers == nil {
		d.Answers = map[models.FieldKey]models.Value{}
	}

	d.Status = models.DraftStatus(status)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	d.LastSavedAt = timePtr(lastSavedAt)
	d.SubmittedAt = timePtr(submittedAt)
	return &d, nil
}

func (s *Store) List(ctx context.Context, filter store.ListFilter) ([]models.DraftSummary, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `
		SELECT id, slug, status, current_step, jsonb_array_length(completed_steps),
			total_score, organization_name, updated_at, submitted_at
		FROM application_drafts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.PageSize(), max(filter.Offset, 0))
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	out := []models.DraftSummary{}
	for rows.Next() {
		var (
			row         models.DraftSummary
			status      string
			submittedAt sql.NullTime
		)
		if err := rows.Scan(&row.ID, &row.Slug, &status, &row.CurrentStep, &row.CompletedCount,
			&row.TotalScore, &row.OrganizationName, &row.UpdatedAt, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan draft summary: %w", err)
		}
		row.Status = models.DraftStatus(status)
		row.UpdatedAt = row.UpdatedAt.UTC()
		row.SubmittedAt = timePtr(submittedAt)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
