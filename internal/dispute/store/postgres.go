package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexushq/internal/dispute/models"
	"nexushq/internal/platform/postgres"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/sentinel"
	txcontext "nexushq/pkg/platform/tx"
)

const disputeColumns = `id, client_id, ref_type, ref_id, card_name, system_grade, reported_grade, status, resolution, created_at, under_review_at, resolved_at, rejected_at`

// PostgresStore persists disputes in the grading_disputes table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, d *models.Dispute) error {
	return txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := postgres.BumpVersion(ctx, tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grading_disputes (id, client_id, ref_type, ref_id, card_name, system_grade, reported_grade, status, resolution, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, uuid.UUID(d.ID), uuid.UUID(d.ClientID), string(d.Ref.Type), d.Ref.ID, d.CardName, d.SystemGrade,
			d.ReportedGrade, string(d.Status), d.Resolution, d.CreatedAt)
		if err != nil {
			switch {
			case postgres.IsUniqueViolation(err):
				return sentinel.ErrAlreadyUsed
			case postgres.IsForeignKeyViolation(err):
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("insert dispute: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, disputeID id.DisputeID) (*models.Dispute, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	d, err := scanDispute(q.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM grading_disputes WHERE id = $1`, uuid.UUID(disputeID)))
	if err != nil {
		return nil, fmt.Errorf("find dispute: %w", err)
	}
	return d, nil
}

// Execute locks the row, validates and writes back the mutated dispute in
// one transaction.
func (s *PostgresStore) Execute(ctx context.Context, disputeID id.DisputeID, validate func(*models.Dispute) error, mutate func(*models.Dispute)) (*models.Dispute, error) {
	var out *models.Dispute
	err := txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := postgres.BumpVersion(ctx, tx); err != nil {
			return err
		}
		d, err := scanDispute(tx.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM grading_disputes WHERE id = $1 FOR UPDATE`, uuid.UUID(disputeID)))
		if err != nil {
			return err
		}
		if err := validate(d); err != nil {
			return err
		}
		mutate(d)
		_, err = tx.ExecContext(ctx, `
			UPDATE grading_disputes
			SET status = $2, resolution = $3, under_review_at = $4, resolved_at = $5, rejected_at = $6
			WHERE id = $1
		`, uuid.UUID(d.ID), string(d.Status), d.Resolution, nullTime(d.UnderReviewAt), nullTime(d.ResolvedAt), nullTime(d.RejectedAt))
		if err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter, after models.Cursor, limit int) ([]*models.Dispute, error) {
	var clientID, status, afterAt, afterID any
	if filter.ClientID != nil {
		clientID = uuid.UUID(*filter.ClientID)
	}
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	if !after.CreatedAt.IsZero() {
		afterAt, afterID = after.CreatedAt, uuid.UUID(after.ID)
	}

	q := txcontext.QuerierFor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+disputeColumns+` FROM grading_disputes
		WHERE ($1::uuid IS NULL OR client_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::timestamptz IS NULL OR (created_at, id) > ($3, $4::uuid))
		ORDER BY created_at, id
		LIMIT $5
	`, clientID, status, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var out []*models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM grading_disputes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count disputes: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan dispute count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row rowScanner) (*models.Dispute, error) {
	var (
		d                               models.Dispute
		disputeID, clientID             uuid.UUID
		refType, status                 string
		underReview, resolved, rejected sql.NullTime
	)
	err := row.Scan(&disputeID, &clientID, &refType, &d.Ref.ID, &d.CardName, &d.SystemGrade, &d.ReportedGrade,
		&status, &d.Resolution, &d.CreatedAt, &underReview, &resolved, &rejected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	d.ID = id.DisputeID(disputeID)
	d.ClientID = id.ClientID(clientID)
	d.Ref.Type = models.RefType(refType)
	d.Status = models.Status(status)
	d.UnderReviewAt = timePtr(underReview)
	d.ResolvedAt = timePtr(resolved)
	d.RejectedAt = timePtr(rejected)
	return &d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
