package postgres

import (
	"context"
	"fmt"

	"nexushq/pkg/platform/dataversion"
	txcontext "nexushq/pkg/platform/tx"
)

// BumpVersion advances the data_version row inside the caller's transaction.
// It must be the first statement of every writing transaction: the row lock
// is held until commit, so writers commit in bump order and ids drawn from a
// sequence after it become visible in ascending order.
func BumpVersion(ctx context.Context, q txcontext.Querier) error {
	res, err := q.ExecContext(ctx, `UPDATE data_version SET version = version + 1`)
	if err != nil {
		return fmt.Errorf("bump data version: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("bump data version: %d rows", n)
	}
	return nil
}

// ReadVersion returns the data version visible to q. Inside a REPEATABLE READ
// transaction it matches the snapshot every other query in it sees.
func ReadVersion(ctx context.Context, q txcontext.Querier) (dataversion.Version, error) {
	var v dataversion.Version
	if err := q.QueryRowContext(ctx, `SELECT epoch::text, version FROM data_version`).Scan(&v.Epoch, &v.N); err != nil {
		return dataversion.Version{}, fmt.Errorf("read data version: %w", err)
	}
	return v, nil
}
