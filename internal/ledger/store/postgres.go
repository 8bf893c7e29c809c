package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexushq/internal/commission"
	"nexushq/internal/ledger/models"
	"nexushq/internal/platform/postgres"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/platform/sentinel"
	txcontext "nexushq/pkg/platform/tx"
)

const saleColumns = `id, client_id, deck_name, format, card_count, cards, sale_value, tier, nexus_fee, client_keeps, submitted_at, idempotency_token`

const scanColumns = `id, client_id, card_name, set_code, rarity, price, confidence, scanned_at, sale_id`

// PostgresStore persists the ledger in PostgreSQL. Ids come from BIGSERIAL
// sequences, idempotency from a partial unique index on
// (client_id, idempotency_token), and client_totals is updated in the same
// transaction as the entries it summarizes.
//
// Every append bumps the data version before drawing an id. The version row
// lock serializes appends, so ids commit in ascending order and a reader that
// has seen id n has seen every committed id below it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// errReplayed rolls back an append that lost to an earlier commit with the
// same token, taking the version bump with it.
var errReplayed = errors.New("sale replayed")

func (s *PostgresStore) AppendSale(ctx context.Context, sale *models.Sale) (*models.Sale, bool, error) {
	cards, err := json.Marshal(sale.Cards)
	if err != nil {
		return nil, false, fmt.Errorf("marshal cards: %w", err)
	}

	var (
		committed *models.Sale
		created   bool
	)
	err = txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := postgres.BumpVersion(ctx, tx); err != nil {
			return err
		}
		var saleID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO sales (client_id, deck_name, format, card_count, cards, sale_value, tier, nexus_fee, client_keeps, submitted_at, idempotency_token)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (client_id, idempotency_token) WHERE idempotency_token IS NOT NULL DO NOTHING
			RETURNING id
		`, uuid.UUID(sale.ClientID), sale.DeckName, sale.Format, sale.CardCount, cards, sale.SaleValue,
			int16(sale.Tier), sale.NexusFee, sale.ClientKeeps, sale.SubmittedAt, nullString(sale.IdempotencyToken),
		).Scan(&saleID)
		if errors.Is(err, sql.ErrNoRows) {
			return errReplayed
		}
		if err != nil {
			if postgres.IsForeignKeyViolation(err) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("insert sale: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO client_totals (client_id, sale_count, sale_value, nexus_fees, client_keeps, last_sale_at)
			VALUES ($1, 1, $2, $3, $4, $5)
			ON CONFLICT (client_id) DO UPDATE SET
				sale_count   = client_totals.sale_count + 1,
				sale_value   = client_totals.sale_value + EXCLUDED.sale_value,
				nexus_fees   = client_totals.nexus_fees + EXCLUDED.nexus_fees,
				client_keeps = client_totals.client_keeps + EXCLUDED.client_keeps,
				last_sale_at = GREATEST(client_totals.last_sale_at, EXCLUDED.last_sale_at)
		`, uuid.UUID(sale.ClientID), sale.SaleValue, sale.NexusFee, sale.ClientKeeps, sale.SubmittedAt)
		if err != nil {
			return fmt.Errorf("update client totals: %w", err)
		}

		c := *sale
		c.ID = id.SaleID(saleID)
		committed, created = &c, true
		return nil
	})
	if err != nil && !errors.Is(err, errReplayed) {
		return nil, false, err
	}
	if created {
		return committed, true, nil
	}

	canonical, err := s.FindSaleByToken(ctx, sale.ClientID, sale.IdempotencyToken)
	if err != nil {
		return nil, false, fmt.Errorf("load canonical sale: %w", err)
	}
	return canonical, false, nil
}

func (s *PostgresStore) AppendScans(ctx context.Context, scans []*models.Scan) ([]*models.Scan, error) {
	out := make([]*models.Scan, 0, len(scans))
	err := txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := postgres.BumpVersion(ctx, tx); err != nil {
			return err
		}
		perClient := make(map[id.ClientID]int64)
		for _, sc := range scans {
			var scanID int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO scans (client_id, card_name, set_code, rarity, price, confidence, scanned_at, sale_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id
			`, uuid.UUID(sc.ClientID), sc.CardName, sc.SetCode, sc.Rarity, sc.Price, sc.Confidence,
				sc.ScannedAt, nullSaleID(sc.SaleID),
			).Scan(&scanID)
			if err != nil {
				if postgres.IsForeignKeyViolation(err) {
					return sentinel.ErrNotFound
				}
				return fmt.Errorf("insert scan: %w", err)
			}
			c := *sc
			c.ID = id.ScanID(scanID)
			out = append(out, &c)
			perClient[sc.ClientID]++
		}

		for clientID, n := range perClient {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO client_totals (client_id, scan_count)
				VALUES ($1, $2)
				ON CONFLICT (client_id) DO UPDATE SET scan_count = client_totals.scan_count + EXCLUDED.scan_count
			`, uuid.UUID(clientID), n)
			if err != nil {
				return fmt.Errorf("update client scan totals: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) FindSale(ctx context.Context, saleID id.SaleID) (*models.Sale, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	sale, err := scanSale(q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, int64(saleID)))
	if err != nil {
		return nil, fmt.Errorf("find sale: %w", err)
	}
	return sale, nil
}

func (s *PostgresStore) FindScan(ctx context.Context, scanID id.ScanID) (*models.Scan, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	scan, err := scanScan(q.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, int64(scanID)))
	if err != nil {
		return nil, fmt.Errorf("find scan: %w", err)
	}
	return scan, nil
}

func (s *PostgresStore) FindSaleByToken(ctx context.Context, clientID id.ClientID, token string) (*models.Sale, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	sale, err := scanSale(q.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE client_id = $1 AND idempotency_token = $2
	`, uuid.UUID(clientID), token))
	if err != nil {
		return nil, fmt.Errorf("find sale by token: %w", err)
	}
	return sale, nil
}

func (s *PostgresStore) ListSales(ctx context.Context, filter models.Filter, afterID int64, limit int) ([]*models.Sale, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE id > $1
		  AND ($2::uuid IS NULL OR client_id = $2)
		  AND ($3::timestamptz IS NULL OR submitted_at >= $3)
		  AND ($4::timestamptz IS NULL OR submitted_at < $4)
		ORDER BY id
		LIMIT $5
	`, afterID, nullClientID(filter.ClientID), nullTime(filter.Since), nullTime(filter.Until), limit)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []*models.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListScans(ctx context.Context, filter models.Filter, afterID int64, limit int) ([]*models.Scan, error) {
	q := txcontext.QuerierFor(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+scanColumns+` FROM scans
		WHERE id > $1
		  AND ($2::uuid IS NULL OR client_id = $2)
		  AND ($3::timestamptz IS NULL OR scanned_at >= $3)
		  AND ($4::timestamptz IS NULL OR scanned_at < $4)
		ORDER BY id
		LIMIT $5
	`, afterID, nullClientID(filter.ClientID), nullTime(filter.Since), nullTime(filter.Until), limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*models.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		out = append(out, scan)
	}
	return out, rows.Err()
}

// Version returns the latest committed data version.
func (s *PostgresStore) Version(ctx context.Context) (dataversion.Version, error) {
	return postgres.ReadVersion(ctx, s.db)
}

// Read runs fn inside a REPEATABLE READ read-only transaction so every query
// fn issues sees the same committed state.
func (s *PostgresStore) Read(ctx context.Context, fn func(ctx context.Context, r Reader) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return txcontext.Run(ctx, s.db, opts, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, pgReader{q: tx})
	})
}

type pgReader struct {
	q txcontext.Querier
}

func (r pgReader) Version(ctx context.Context) (dataversion.Version, error) {
	return postgres.ReadVersion(ctx, r.q)
}

func (r pgReader) Watermark(ctx context.Context) (models.Watermark, error) {
	var w models.Watermark
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT MAX(id) FROM sales), 0), COALESCE((SELECT MAX(id) FROM scans), 0)
	`).Scan(&w.LastSaleID, &w.LastScanID)
	if err != nil {
		return models.Watermark{}, fmt.Errorf("read watermark: %w", err)
	}
	return w, nil
}

const totalsColumns = `client_id, sale_count, sale_value, nexus_fees, client_keeps, scan_count, last_sale_at`

func (r pgReader) AllTotals(ctx context.Context) ([]models.ClientTotals, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+totalsColumns+` FROM client_totals ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}
	defer rows.Close()

	var out []models.ClientTotals
	for rows.Next() {
		t, err := scanTotals(rows)
		if err != nil {
			return nil, fmt.Errorf("scan totals row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r pgReader) Totals(ctx context.Context, clientID id.ClientID) (models.ClientTotals, error) {
	t, err := scanTotals(r.q.QueryRowContext(ctx, `SELECT `+totalsColumns+` FROM client_totals WHERE client_id = $1`, uuid.UUID(clientID)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClientTotals{ClientID: clientID}, nil
	}
	if err != nil {
		return models.ClientTotals{}, fmt.Errorf("read client totals: %w", err)
	}
	return t, nil
}

func (r pgReader) SalesWindow(ctx context.Context, since, until time.Time) (models.WindowTotals, error) {
	var w models.WindowTotals
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(sale_value), 0), COALESCE(SUM(nexus_fee), 0)
		FROM sales
		WHERE ($1::timestamptz IS NULL OR submitted_at >= $1)
		  AND ($2::timestamptz IS NULL OR submitted_at < $2)
	`, nullTime(since), nullTime(until)).Scan(&w.SaleCount, &w.SaleValue, &w.NexusFees)
	if err != nil {
		return models.WindowTotals{}, fmt.Errorf("read sales window: %w", err)
	}
	return w, nil
}

func (r pgReader) RecentSales(ctx context.Context, limit int) ([]*models.Sale, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("read recent sales: %w", err)
	}
	defer rows.Close()

	var out []*models.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*models.Sale, error) {
	var (
		sale     models.Sale
		clientID uuid.UUID
		cards    []byte
		tier     int16
		token    sql.NullString
	)
	err := row.Scan(&sale.ID, &clientID, &sale.DeckName, &sale.Format, &sale.CardCount, &cards,
		&sale.SaleValue, &tier, &sale.NexusFee, &sale.ClientKeeps, &sale.SubmittedAt, &token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(cards, &sale.Cards); err != nil {
		return nil, fmt.Errorf("unmarshal cards: %w", err)
	}
	sale.ClientID = id.ClientID(clientID)
	sale.Tier = commission.Tier(tier)
	sale.IdempotencyToken = token.String
	return &sale, nil
}

func scanScan(row rowScanner) (*models.Scan, error) {
	var (
		scan     models.Scan
		clientID uuid.UUID
		saleID   sql.NullInt64
	)
	err := row.Scan(&scan.ID, &clientID, &scan.CardName, &scan.SetCode, &scan.Rarity, &scan.Price,
		&scan.Confidence, &scan.ScannedAt, &saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	scan.ClientID = id.ClientID(clientID)
	if saleID.Valid {
		sid := id.SaleID(saleID.Int64)
		scan.SaleID = &sid
	}
	return &scan, nil
}

func scanTotals(row rowScanner) (models.ClientTotals, error) {
	var (
		t        models.ClientTotals
		clientID uuid.UUID
		lastSale sql.NullTime
	)
	if err := row.Scan(&clientID, &t.SaleCount, &t.SaleValue, &t.NexusFees, &t.ClientKeeps, &t.ScanCount, &lastSale); err != nil {
		return models.ClientTotals{}, err
	}
	t.ClientID = id.ClientID(clientID)
	if lastSale.Valid {
		at := lastSale.Time
		t.LastSaleAt = &at
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullSaleID(saleID *id.SaleID) sql.NullInt64 {
	if saleID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*saleID), Valid: true}
}

func nullClientID(clientID *id.ClientID) any {
	if clientID == nil {
		return nil
	}
	return uuid.UUID(*clientID)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
