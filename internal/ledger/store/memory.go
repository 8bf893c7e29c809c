package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"nexushq/internal/ledger/models"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/platform/sentinel"
)

// snapshot is an immutable view of the ledger. Writers build a new snapshot
// and publish it atomically; the sales and scans slices share backing arrays
// with older snapshots but only ever grow past their length.
type snapshot struct {
	sales  []*models.Sale
	scans  []*models.Scan
	totals map[id.ClientID]models.ClientTotals
}

type tokenKey struct {
	clientID id.ClientID
	token    string
}

// ClientChecker reports whether a client exists. The memory store uses it in
// place of the foreign key the Postgres schema enforces.
type ClientChecker func(ctx context.Context, clientID id.ClientID) bool

// InMemory is a ledger held in process. Writes are serialized by one mutex;
// reads load the published snapshot and never lock. Returned entries are
// shared with the snapshot and must not be modified.
type InMemory struct {
	mu      sync.Mutex
	tokens  map[tokenKey]id.SaleID
	snap    atomic.Pointer[snapshot]
	exists  ClientChecker
	version *dataversion.Counter
}

type MemoryOption func(*InMemory)

// WithVersionCounter shares the data version with the other in-memory
// stores. Without it the ledger counts its own writes.
func WithVersionCounter(c *dataversion.Counter) MemoryOption {
	return func(s *InMemory) {
		s.version = c
	}
}

func NewInMemory(exists ClientChecker, opts ...MemoryOption) *InMemory {
	s := &InMemory{tokens: make(map[tokenKey]id.SaleID), exists: exists}
	for _, opt := range opts {
		opt(s)
	}
	if s.version == nil {
		s.version = dataversion.NewCounter()
	}
	s.snap.Store(&snapshot{totals: map[id.ClientID]models.ClientTotals{}})
	return s
}

func (s *InMemory) clientExists(ctx context.Context, clientID id.ClientID) bool {
	return s.exists == nil || s.exists(ctx, clientID)
}

// AppendSale commits sale and returns it with its assigned id and created=true.
// When sale carries a token already used by the same client, the committed
// sale is returned unchanged with created=false.
func (s *InMemory) AppendSale(ctx context.Context, sale *models.Sale) (*models.Sale, bool, error) {
	if !s.clientExists(ctx, sale.ClientID) {
		return nil, false, sentinel.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	if sale.IdempotencyToken != "" {
		if existing, ok := s.tokens[tokenKey{sale.ClientID, sale.IdempotencyToken}]; ok {
			return cur.sales[existing-1], false, nil
		}
	}

	committed := *sale
	committed.ID = id.SaleID(len(cur.sales) + 1)

	totals := maps.Clone(cur.totals)
	t := totals[sale.ClientID]
	t.ClientID = sale.ClientID
	t.ApplySale(&committed)
	totals[sale.ClientID] = t

	s.snap.Store(&snapshot{
		sales:  append(cur.sales, &committed),
		scans:  cur.scans,
		totals: totals,
	})
	if sale.IdempotencyToken != "" {
		s.tokens[tokenKey{sale.ClientID, sale.IdempotencyToken}] = committed.ID
	}
	s.version.Bump()
	return &committed, true, nil
}

// AppendScans commits every scan or none.
func (s *InMemory) AppendScans(ctx context.Context, scans []*models.Scan) ([]*models.Scan, error) {
	for _, sc := range scans {
		if !s.clientExists(ctx, sc.ClientID) {
			return nil, sentinel.ErrNotFound
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	for _, sc := range scans {
		if sc.SaleID != nil && (*sc.SaleID < 1 || int(*sc.SaleID) > len(cur.sales)) {
			return nil, sentinel.ErrNotFound
		}
	}

	next := cur.scans
	out := make([]*models.Scan, 0, len(scans))
	totals := maps.Clone(cur.totals)
	for _, sc := range scans {
		committed := *sc
		committed.ID = id.ScanID(len(next) + 1)
		next = append(next, &committed)
		out = append(out, &committed)

		t := totals[sc.ClientID]
		t.ClientID = sc.ClientID
		t.ScanCount++
		totals[sc.ClientID] = t
	}

	s.snap.Store(&snapshot{sales: cur.sales, scans: next, totals: totals})
	s.version.Bump()
	return out, nil
}

func (s *InMemory) FindSale(_ context.Context, saleID id.SaleID) (*models.Sale, error) {
	cur := s.snap.Load()
	if saleID < 1 || int(saleID) > len(cur.sales) {
		return nil, sentinel.ErrNotFound
	}
	return cur.sales[saleID-1], nil
}

func (s *InMemory) FindScan(_ context.Context, scanID id.ScanID) (*models.Scan, error) {
	cur := s.snap.Load()
	if scanID < 1 || int(scanID) > len(cur.scans) {
		return nil, sentinel.ErrNotFound
	}
	return cur.scans[scanID-1], nil
}

func (s *InMemory) FindSaleByToken(_ context.Context, clientID id.ClientID, token string) (*models.Sale, error) {
	s.mu.Lock()
	saleID, ok := s.tokens[tokenKey{clientID, token}]
	s.mu.Unlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.snap.Load().sales[saleID-1], nil
}

// ListSales returns up to limit sales with id > afterID matching filter, ascending.
func (s *InMemory) ListSales(_ context.Context, filter models.Filter, afterID int64, limit int) ([]*models.Sale, error) {
	cur := s.snap.Load()
	var out []*models.Sale
	for i := max(afterID, 0); i < int64(len(cur.sales)) && len(out) < limit; i++ {
		sale := cur.sales[i]
		if filter.Matches(sale.ClientID, sale.SubmittedAt) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// ListScans returns up to limit scans with id > afterID matching filter, ascending.
func (s *InMemory) ListScans(_ context.Context, filter models.Filter, afterID int64, limit int) ([]*models.Scan, error) {
	cur := s.snap.Load()
	var out []*models.Scan
	for i := max(afterID, 0); i < int64(len(cur.scans)) && len(out) < limit; i++ {
		scan := cur.scans[i]
		if filter.Matches(scan.ClientID, scan.ScannedAt) {
			out = append(out, scan)
		}
	}
	return out, nil
}

// Version returns the current data version.
func (s *InMemory) Version(context.Context) (dataversion.Version, error) {
	return s.version.Current(), nil
}

// Read runs fn against the snapshot published at call time. The version is
// loaded first, so the snapshot holds at least every write up to it.
func (s *InMemory) Read(ctx context.Context, fn func(ctx context.Context, r Reader) error) error {
	v := s.version.Current()
	return fn(ctx, versionedSnapshot{snapshot: s.snap.Load(), version: v})
}

type versionedSnapshot struct {
	*snapshot
	version dataversion.Version
}

func (v versionedSnapshot) Version(context.Context) (dataversion.Version, error) {
	return v.version, nil
}

func (v *snapshot) Watermark(context.Context) (models.Watermark, error) {
	return models.Watermark{
		LastSaleID: id.SaleID(len(v.sales)),
		LastScanID: id.ScanID(len(v.scans)),
	}, nil
}

func (v *snapshot) AllTotals(context.Context) ([]models.ClientTotals, error) {
	out := slices.Collect(maps.Values(v.totals))
	slices.SortFunc(out, func(a, b models.ClientTotals) int { return a.ClientID.Compare(b.ClientID) })
	return out, nil
}

func (v *snapshot) Totals(_ context.Context, clientID id.ClientID) (models.ClientTotals, error) {
	t, ok := v.totals[clientID]
	if !ok {
		return models.ClientTotals{ClientID: clientID}, nil
	}
	return t, nil
}

func (v *snapshot) SalesWindow(_ context.Context, since, until time.Time) (models.WindowTotals, error) {
	var w models.WindowTotals
	filter := models.Filter{Since: since, Until: until}
	for _, sale := range v.sales {
		if filter.Matches(sale.ClientID, sale.SubmittedAt) {
			w.SaleCount++
			w.SaleValue = w.SaleValue.Add(sale.SaleValue)
			w.NexusFees = w.NexusFees.Add(sale.NexusFee)
		}
	}
	return w, nil
}

func (v *snapshot) RecentSales(_ context.Context, limit int) ([]*models.Sale, error) {
	n := min(limit, len(v.sales))
	out := make([]*models.Sale, 0, n)
	for i := len(v.sales) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, v.sales[i])
	}
	return out, nil
}
