package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexushq/internal/commission"
	"nexushq/internal/platform/postgres"
	"nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/sentinel"
	txcontext "nexushq/pkg/platform/tx"
)

// registrationLockKey serializes duplicate checks with inserts across connections.
const registrationLockKey = 7_317_001

const clientColumns = `id, name, email, location, tier, api_key_id, api_key_hash, status, created_at, updated_at, last_seen_at`

// PostgresStore persists clients in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfUnique(ctx context.Context, c *models.Client, policy models.DuplicatePolicy) error {
	return txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := postgres.BumpVersion(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockKey); err != nil {
			return fmt.Errorf("acquire registration lock: %w", err)
		}

		if query, args := duplicateQuery(policy, c); query != "" {
			var exists bool
			if err := tx.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
				return fmt.Errorf("check duplicate client: %w", err)
			}
			if exists {
				return sentinel.ErrAlreadyUsed
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (`+clientColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, uuid.UUID(c.ID), c.Name, c.Email, c.Location, int16(c.Tier), c.APIKeyID, c.APIKeyHash,
			string(c.Status), c.CreatedAt, c.UpdatedAt, c.LastSeenAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert client: %w", err)
		}
		return nil
	})
}

func duplicateQuery(policy models.DuplicatePolicy, c *models.Client) (string, []any) {
	switch policy {
	case models.DuplicateByName:
		return `SELECT EXISTS (SELECT 1 FROM clients WHERE lower(name) = lower($1))`, []any{c.Name}
	case models.DuplicateByEmail:
		if c.Email == "" {
			return "", nil
		}
		return `SELECT EXISTS (SELECT 1 FROM clients WHERE email <> '' AND lower(email) = lower($1))`, []any{c.Email}
	case models.DuplicateByNameOrEmail:
		return `SELECT EXISTS (
			SELECT 1 FROM clients
			WHERE lower(name) = lower($1) OR ($2 <> '' AND email <> '' AND lower(email) = lower($2))
		)`, []any{c.Name, c.Email}
	default:
		return "", nil
	}
}

func (s *PostgresStore) FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, uuid.UUID(clientID))
	c, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("find client by id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByAPIKeyID(ctx context.Context, keyID string) (*models.Client, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE api_key_id = $1`, keyID)
	c, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("find client by api key id: %w", err)
	}
	return c, nil
}

// List returns every client ordered by id, which is registration order for v7 ids.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Client, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return out, nil
}

// Execute loads the client FOR UPDATE, validates, mutates and writes it back in one transaction.
func (s *PostgresStore) Execute(ctx context.Context, clientID id.ClientID, validate func(*models.Client) error, mutate func(*models.Client)) (*models.Client, error) {
	var updated *models.Client
	err := txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := postgres.BumpVersion(ctx, tx); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, uuid.UUID(clientID))
		c, err := scanClient(row)
		if err != nil {
			return err
		}
		if err := validate(c); err != nil {
			return err
		}
		mutate(c)
		_, err = tx.ExecContext(ctx, `
			UPDATE clients SET tier = $2, status = $3, updated_at = $4
			WHERE id = $1
		`, uuid.UUID(c.ID), int16(c.Tier), string(c.Status), c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update client: %w", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) TouchLastSeen(ctx context.Context, clientID id.ClientID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients SET last_seen_at = $2
		WHERE id = $1 AND (last_seen_at IS NULL OR last_seen_at < $2)
	`, uuid.UUID(clientID), at)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, uuid.UUID(clientID)).Scan(&exists); err != nil {
			return fmt.Errorf("touch last seen: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	var (
		c        models.Client
		clientID uuid.UUID
		tier     int16
		status   string
		lastSeen sql.NullTime
	)
	err := row.Scan(&clientID, &c.Name, &c.Email, &c.Location, &tier, &c.APIKeyID, &c.APIKeyHash,
		&status, &c.CreatedAt, &c.UpdatedAt, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	c.ID = id.ClientID(clientID)
	c.Tier = commission.Tier(tier)
	c.Status = models.ClientStatus(status)
	if lastSeen.Valid {
		t := lastSeen.Time
		c.LastSeenAt = &t
	}
	return &c, nil
}
