// Package memstore is an in-process Store used for --dry-run style runs and
// as the reference backend in tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

// Store keeps the ledger and the catalog in memory.
type Store struct {
	mu       sync.RWMutex
	history  []types.ImportHistory
	products map[string]types.Product
	closed   bool
}

var _ interfaces.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{products: make(map[string]types.Product)}
}

func (s *Store) Name() string { return store.BackendMemory }

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen()
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errors.New(errors.ErrStoreUnavailable, "memory store is closed")
	}
	return nil
}

// =============================================================================
// HistoryStore
// =============================================================================

func (s *Store) LastOffset(ctx context.Context, source string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, false, err
	}
	row, ok := s.lastLocked(source)
	return row.Offset, ok, nil
}

func (s *Store) lastLocked(source string) (types.ImportHistory, bool) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Source == source {
			return s.history[i], true
		}
	}
	return types.ImportHistory{}, false
}

func (s *Store) Save(ctx context.Context, row types.ImportHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	last, ok := s.lastLocked(row.Source)
	if err := store.CheckOffset(row, last.Offset, ok); err != nil {
		return err
	}
	s.history = append(s.history, row)
	return nil
}

func (s *Store) Latest(ctx context.Context) (types.ImportHistory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return types.ImportHistory{}, false, err
	}
	if len(s.history) == 0 {
		return types.ImportHistory{}, false, nil
	}
	return s.history[len(s.history)-1], true, nil
}

func (s *Store) History(ctx context.Context, source string) ([]types.ImportHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var out []types.ImportHistory
	for _, row := range s.history {
		if row.Source == source {
			out = append(out, row)
		}
	}
	return out, nil
}

// =============================================================================
// CatalogStore
// =============================================================================

func (s *Store) SaveMany(ctx context.Context, products []types.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	for _, p := range products {
		s.products[p.Code] = p
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, page, limit int) ([]types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(s.products))
	for code := range s.products {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	skip, n := store.Page(page, limit)
	if skip >= len(codes) {
		return []types.Product{}, nil
	}
	codes = codes[skip:]
	if len(codes) > n {
		codes = codes[:n]
	}
	out := make([]types.Product, len(codes))
	for i, code := range codes {
		out[i] = s.products[code]
	}
	return out, nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (types.Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return types.Product{}, false, err
	}
	p, ok := s.products[code]
	return p, ok, nil
}

func (s *Store) Update(ctx context.Context, code string, patch types.Patch) (types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return types.Product{}, err
	}
	p, ok := s.products[code]
	if !ok {
		return types.Product{}, errors.Newf(errors.ErrNotFound, "product %s not found", code)
	}
	updated, err := patch.Apply(p)
	if err != nil {
		return types.Product{}, err
	}
	s.products[code] = updated
	return updated, nil
}

func (s *Store) Trash(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	p, ok := s.products[code]
	if !ok {
		return errors.Newf(errors.ErrNotFound, "product %s not found", code)
	}
	p.Status = types.StatusTrash
	s.products[code] = p
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return int64(len(s.products)), nil
}
