// Package store persists the sale and scan ledger together with the running
// per-client totals derived from it.
package store

import (
	"context"
	"time"

	"nexushq/internal/ledger/models"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/dataversion"
)

// Reader reads from one consistent ledger snapshot: every value it returns
// reflects the same set of committed entries. Version is the data version the
// snapshot was taken at.
type Reader interface {
	Version(ctx context.Context) (dataversion.Version, error)
	Watermark(ctx context.Context) (models.Watermark, error)
	AllTotals(ctx context.Context) ([]models.ClientTotals, error)
	Totals(ctx context.Context, clientID id.ClientID) (models.ClientTotals, error)
	SalesWindow(ctx context.Context, since, until time.Time) (models.WindowTotals, error)
	RecentSales(ctx context.Context, limit int) ([]*models.Sale, error)
}
