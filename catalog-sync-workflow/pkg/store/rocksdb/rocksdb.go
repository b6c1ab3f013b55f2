// =============================================================================
// pkg/store/rocksdb/rocksdb.go - RocksDB Store Implementation
// =============================================================================
//
// This package implements interfaces.Store on an embedded RocksDB instance
// with two data column families:
//
//	history   append-only ledger rows (see codec for the key layout)
//	products  catalog records keyed by code, zstd-compressed JSON values
//
// The "default" CF holds the ledger sequence counter and a copy of the newest
// ledger row, written in the same WriteBatch as the row itself so the three
// keys are always consistent after a crash.
//
// =============================================================================

package rocksdb

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/codec"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
	"github.com/linxGnu/grocksdb"
)

// =============================================================================
// Column Families
// =============================================================================

const (
	cfDefault  = "default"
	cfHistory  = "history"
	cfProducts = "products"
)

// cfNames is the open order; "default" is required by RocksDB.
var cfNames = []string{cfDefault, cfHistory, cfProducts}

// =============================================================================
// Store
// =============================================================================

// Store implements interfaces.Store using RocksDB.
type Store struct {
	mu sync.RWMutex

	db         *grocksdb.DB
	opts       *grocksdb.Options
	cfHandles  []*grocksdb.ColumnFamilyHandle
	cfOpts     []*grocksdb.Options
	writeOpts  *grocksdb.WriteOptions
	readOpts   *grocksdb.ReadOptions
	blockCache *grocksdb.Cache
	cfIndexMap map[string]int

	products *codec.ProductCodec
	path     string
	logger   interfaces.Logger
}

var _ interfaces.Store = (*Store)(nil)

// Open opens or creates a RocksDB store at path.
func Open(path string, settings types.RocksDBSettings, logger interfaces.Logger) (*Store, error) {
	if err := helpers.EnsureDir(path); err != nil {
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "creating store directory")
	}

	var blockCache *grocksdb.Cache
	if settings.BlockCacheSizeMB > 0 {
		blockCache = grocksdb.NewLRUCache(uint64(settings.BlockCacheSizeMB * types.MB))
	}

	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCreateIfMissingColumnFamilies(true)
	opts.SetErrorIfExists(false)
	opts.SetMaxOpenFiles(settings.MaxOpenFiles)

	// Reduce RocksDB log noise
	opts.SetInfoLogLevel(grocksdb.WarnInfoLogLevel)
	opts.SetMaxLogFileSize(20 * types.MB)
	opts.SetKeepLogFileNum(3)

	cfOptsList := make([]*grocksdb.Options, len(cfNames))
	cfOptsList[0] = grocksdb.NewDefaultOptions()
	cfOptsList[1] = createCFOptions(settings, blockCache, false)
	cfOptsList[2] = createCFOptions(settings, blockCache, true)

	logger.Info("Opening RocksDB store at: %s", path)

	db, cfHandles, err := grocksdb.OpenDbColumnFamilies(opts, path, cfNames, cfOptsList)
	if err != nil {
		opts.Destroy()
		for _, cfOpt := range cfOptsList {
			cfOpt.Destroy()
		}
		if blockCache != nil {
			blockCache.Destroy()
		}
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "failed to open RocksDB store at "+path)
	}

	productCodec, err := codec.NewProductCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	writeOpts := grocksdb.NewDefaultWriteOptions()
	writeOpts.SetSync(settings.SyncWrites)

	cfIndexMap := make(map[string]int, len(cfNames))
	for i, name := range cfNames {
		cfIndexMap[name] = i
	}

	logger.Info("RocksDB store opened:")
	logger.Info("  Column Families: %d", len(cfHandles)-1)
	logger.Info("  Block Cache:     %d MB", settings.BlockCacheSizeMB)
	logger.Info("  Sync Writes:     %v", settings.SyncWrites)

	return &Store{
		db:         db,
		opts:       opts,
		cfHandles:  cfHandles,
		cfOpts:     cfOptsList,
		writeOpts:  writeOpts,
		readOpts:   grocksdb.NewDefaultReadOptions(),
		blockCache: blockCache,
		cfIndexMap: cfIndexMap,
		products:   productCodec,
		path:       path,
		logger:     logger,
	}, nil
}

// createCFOptions creates options for a data column family. Product values
// are already zstd-compressed, so block compression is left off.
func createCFOptions(settings types.RocksDBSettings, blockCache *grocksdb.Cache, pointLookups bool) *grocksdb.Options {
	opts := grocksdb.NewDefaultOptions()

	opts.SetWriteBufferSize(uint64(settings.WriteBufferSizeMB * types.MB))
	opts.SetMaxWriteBufferNumber(settings.MaxWriteBufferNumber)
	opts.SetCompactionStyle(grocksdb.LevelCompactionStyle)
	opts.SetCompression(grocksdb.NoCompression)

	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	if pointLookups && settings.BloomFilterBitsPerKey > 0 {
		bbto.SetFilterPolicy(grocksdb.NewBloomFilter(float64(settings.BloomFilterBitsPerKey)))
	}
	if blockCache != nil {
		bbto.SetBlockCache(blockCache)
	}
	opts.SetBlockBasedTableFactory(bbto)

	return opts
}

func (s *Store) Name() string { return store.BackendRocksDB }

// Path returns the filesystem path to the RocksDB store.
func (s *Store) Path() string { return s.path }

// Ping reads a key to confirm the database handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}
	_, _, err := s.getLocked(cfDefault, []byte(codec.KeyHistorySeq))
	return err
}

// =============================================================================
// HistoryStore
// =============================================================================

// LastOffset returns the offset of the newest row under the source prefix.
func (s *Store) LastOffset(ctx context.Context, source string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, found, err := s.lastRowLocked(source)
	if err != nil || !found {
		return 0, false, err
	}
	return rec.Offset, true, nil
}

// Save appends a row and updates the sequence and latest-row keys in one
// atomic WriteBatch.
func (s *Store) Save(ctx context.Context, row types.ImportHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, found, err := s.lastRowLocked(row.Source)
	if err != nil {
		return err
	}
	if err := store.CheckOffset(row, last.Offset, found); err != nil {
		return err
	}

	seqBytes, _, err := s.getLocked(cfDefault, []byte(codec.KeyHistorySeq))
	if err != nil {
		return err
	}
	seq := helpers.BytesToUint64(seqBytes) + 1

	value := codec.EncodeHistory(codec.HistoryRecord{ImportHistory: row, Seq: seq})

	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()
	batch.PutCF(s.cf(cfHistory), codec.HistoryKey(row.Source, seq), value)
	batch.PutCF(s.cf(cfDefault), []byte(codec.KeyHistorySeq), helpers.Uint64ToBytes(seq))
	batch.PutCF(s.cf(cfDefault), []byte(codec.KeyHistoryLatest), value)

	if err := s.db.Write(s.writeOpts, batch); err != nil {
		return errors.WithCode(err, errors.ErrStoreUnavailable, "writing history row")
	}
	return nil
}

// Latest returns the copy of the newest row kept in the default CF.
func (s *Store) Latest(ctx context.Context) (types.ImportHistory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found, err := s.getLocked(cfDefault, []byte(codec.KeyHistoryLatest))
	if err != nil || !found {
		return types.ImportHistory{}, false, err
	}
	rec, err := codec.DecodeHistory(value)
	if err != nil {
		return types.ImportHistory{}, false, errors.WithCode(err, errors.ErrStoreUnavailable, "decoding latest history row")
	}
	return rec.ImportHistory, true, nil
}

// History scans the source prefix in key (sequence) order.
func (s *Store) History(ctx context.Context, source string) ([]types.ImportHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}

	prefix := codec.HistoryPrefix(source)
	it := s.db.NewIteratorCF(s.readOpts, s.cf(cfHistory))
	defer it.Close()

	var out []types.ImportHistory
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		value := it.Value()
		rec, err := codec.DecodeHistory(value.Data())
		value.Free()
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "decoding history row")
		}
		out = append(out, rec.ImportHistory)
	}
	if err := it.Err(); err != nil {
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "iterating history")
	}
	return out, nil
}

func (s *Store) lastRowLocked(source string) (codec.HistoryRecord, bool, error) {
	if s.db == nil {
		return codec.HistoryRecord{}, false, errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}

	it := s.db.NewIteratorCF(s.readOpts, s.cf(cfHistory))
	defer it.Close()

	it.SeekForPrev(codec.HistoryUpperBound(source))
	if !it.Valid() {
		if err := it.Err(); err != nil {
			return codec.HistoryRecord{}, false, errors.WithCode(err, errors.ErrStoreUnavailable, "seeking history")
		}
		return codec.HistoryRecord{}, false, nil
	}

	key := it.Key()
	inSource := bytes.HasPrefix(key.Data(), codec.HistoryPrefix(source))
	key.Free()
	if !inSource {
		return codec.HistoryRecord{}, false, nil
	}

	value := it.Value()
	defer value.Free()
	rec, err := codec.DecodeHistory(value.Data())
	if err != nil {
		return codec.HistoryRecord{}, false, errors.WithCode(err, errors.ErrStoreUnavailable, "decoding history row")
	}
	return rec, true, nil
}

// =============================================================================
// CatalogStore
// =============================================================================

// SaveMany writes all records in a single WriteBatch.
func (s *Store) SaveMany(ctx context.Context, products []types.Product) error {
	if len(products) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}

	batch := grocksdb.NewWriteBatch()
	defer batch.Destroy()

	handle := s.cf(cfProducts)
	for _, p := range products {
		value, err := s.products.Encode(p)
		if err != nil {
			return err
		}
		batch.PutCF(handle, []byte(p.Code), value)
	}

	if err := s.db.Write(s.writeOpts, batch); err != nil {
		return errors.WithCode(err, errors.ErrStoreUnavailable, "writing products")
	}
	return nil
}

// FindAll iterates the products CF in code order.
func (s *Store) FindAll(ctx context.Context, page, limit int) ([]types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}

	skip, n := store.Page(page, limit)

	it := s.db.NewIteratorCF(s.readOpts, s.cf(cfProducts))
	defer it.Close()

	out := make([]types.Product, 0, n)
	for it.SeekToFirst(); it.Valid() && len(out) < n; it.Next() {
		if skip > 0 {
			skip--
			continue
		}
		value := it.Value()
		p, err := s.products.Decode(value.Data())
		value.Free()
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "decoding product")
		}
		out = append(out, p)
	}
	if err := it.Err(); err != nil {
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "iterating products")
	}
	return out, nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (types.Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(code)
}

func (s *Store) findLocked(code string) (types.Product, bool, error) {
	value, found, err := s.getLocked(cfProducts, []byte(code))
	if err != nil || !found {
		return types.Product{}, false, err
	}
	p, err := s.products.Decode(value)
	if err != nil {
		return types.Product{}, false, errors.WithCode(err, errors.ErrStoreUnavailable, "decoding product")
	}
	return p, true, nil
}

// Update is a read-modify-write under the store's write lock.
func (s *Store) Update(ctx context.Context, code string, patch types.Patch) (types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found, err := s.findLocked(code)
	if err != nil {
		return types.Product{}, err
	}
	if !found {
		return types.Product{}, errors.Newf(errors.ErrNotFound, "product %s not found", code)
	}
	updated, err := patch.Apply(p)
	if err != nil {
		return types.Product{}, err
	}
	if err := s.putProductLocked(updated); err != nil {
		return types.Product{}, err
	}
	return updated, nil
}

func (s *Store) Trash(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found, err := s.findLocked(code)
	if err != nil {
		return err
	}
	if !found {
		return errors.Newf(errors.ErrNotFound, "product %s not found", code)
	}
	p.Status = types.StatusTrash
	return s.putProductLocked(p)
}

// Count walks the products CF keys.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}

	it := s.db.NewIteratorCF(s.readOpts, s.cf(cfProducts))
	defer it.Close()

	var n int64
	for it.SeekToFirst(); it.Valid(); it.Next() {
		n++
	}
	if err := it.Err(); err != nil {
		return 0, errors.WithCode(err, errors.ErrStoreUnavailable, "counting products")
	}
	return n, nil
}

func (s *Store) putProductLocked(p types.Product) error {
	value, err := s.products.Encode(p)
	if err != nil {
		return err
	}
	if err := s.db.PutCF(s.writeOpts, s.cf(cfProducts), []byte(p.Code), value); err != nil {
		return errors.WithCode(err, errors.ErrStoreUnavailable, "writing product")
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Store) cf(name string) *grocksdb.ColumnFamilyHandle {
	return s.cfHandles[s.cfIndexMap[name]]
}

// getLocked returns a copy of the value, since slice data is invalidated
// after Free().
func (s *Store) getLocked(cfName string, key []byte) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
	}

	slice, err := s.db.GetCF(s.readOpts, s.cf(cfName), key)
	if err != nil {
		return nil, false, errors.WithCode(err, errors.ErrStoreUnavailable, "reading "+cfName)
	}
	defer slice.Free()

	if !slice.Exists() {
		return nil, false, nil
	}
	value := make([]byte, slice.Size())
	copy(value, slice.Data())
	return value, true, nil
}

// =============================================================================
// Maintenance
// =============================================================================

// CFStats is a point-in-time summary of one data column family.
type CFStats struct {
	Name          string
	EstimatedKeys int64
	TotalFiles    int64
	TotalSize     int64
}

// Stats reads RocksDB properties for the history and products CFs.
// Key counts are estimates.
func (s *Store) Stats() []CFStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil
	}

	out := make([]CFStats, 0, len(cfNames)-1)
	for _, name := range cfNames[1:] {
		handle := s.cf(name)
		st := CFStats{Name: name}
		fmt.Sscanf(s.db.GetPropertyCF("rocksdb.estimate-num-keys", handle), "%d", &st.EstimatedKeys)
		fmt.Sscanf(s.db.GetPropertyCF("rocksdb.total-sst-files-size", handle), "%d", &st.TotalSize)
		for level := 0; level <= 6; level++ {
			var files int64
			fmt.Sscanf(s.db.GetPropertyCF(fmt.Sprintf("rocksdb.num-files-at-level%d", level), handle), "%d", &files)
			st.TotalFiles += files
		}
		out = append(out, st)
	}
	return out
}

// Compact runs a full manual compaction of every data CF, one after another,
// and logs per-CF timings. It returns the total time spent.
//
// The handle is looked up under the read lock; the compaction itself runs
// without the store lock since RocksDB serializes it internally.
func (s *Store) Compact() (time.Duration, error) {
	opts := grocksdb.NewCompactRangeOptions()
	opts.SetExclusiveManualCompaction(false)
	defer opts.Destroy()

	s.logger.Separator()
	s.logger.Info("                    COMPACTING ROCKSDB STORE")
	s.logger.Separator()

	var total time.Duration
	for _, name := range cfNames[1:] {
		s.mu.RLock()
		if s.db == nil {
			s.mu.RUnlock()
			return total, errors.New(errors.ErrStoreUnavailable, "rocksdb store is closed")
		}
		db, handle := s.db, s.cf(name)
		s.mu.RUnlock()

		start := time.Now()
		db.CompactRangeCFOpt(handle, grocksdb.Range{Start: nil, Limit: nil}, opts)
		elapsed := time.Since(start)
		total += elapsed

		s.logger.Info("  CF [%-8s] compacted in %s", name, helpers.FormatDuration(elapsed))
	}

	for _, st := range s.Stats() {
		s.logger.Info("  CF [%-8s] ~%s keys, %d files, %s",
			st.Name, helpers.FormatNumber(st.EstimatedKeys), st.TotalFiles, helpers.FormatBytes(st.TotalSize))
	}
	s.logger.Info("Compaction finished in %s", helpers.FormatDuration(total))
	return total, nil
}

// =============================================================================
// Close
// =============================================================================

// Close releases all resources associated with the store.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return
	}
	s.logger.Info("Closing RocksDB store...")

	s.writeOpts.Destroy()
	s.readOpts.Destroy()
	for _, cfHandle := range s.cfHandles {
		cfHandle.Destroy()
	}
	s.cfHandles = nil

	s.db.Close()
	s.db = nil

	s.opts.Destroy()
	for _, cfOpt := range s.cfOpts {
		cfOpt.Destroy()
	}
	s.cfOpts = nil

	if s.blockCache != nil {
		s.blockCache.Destroy()
		s.blockCache = nil
	}
	s.products.Close()

	s.logger.Info("RocksDB store closed")
}
