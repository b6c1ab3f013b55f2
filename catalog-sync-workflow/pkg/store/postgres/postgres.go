// =============================================================================
// pkg/store/postgres/postgres.go - PostgreSQL Store Implementation
// =============================================================================
//
// Tables (created by Open when missing):
//
//	import_history  append-only ledger, one row per committed file run
//	products        catalog records, primary key code
//
// Every call acquires a pooled connection for its own duration. Catalog
// upserts go out as one pgx.Batch per SaveMany call.
//
// =============================================================================

package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS import_history (
	id          BIGSERIAL PRIMARY KEY,
	source      TEXT        NOT NULL,
	byte_offset BIGINT      NOT NULL CHECK (byte_offset >= 0),
	quantity    INTEGER     NOT NULL CHECK (quantity >= 0),
	date        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS import_history_source_id ON import_history (source, id);

CREATE TABLE IF NOT EXISTS products (
	code             TEXT PRIMARY KEY,
	status           TEXT        NOT NULL,
	imported_t       TIMESTAMPTZ NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	creator          TEXT NOT NULL DEFAULT '',
	created_t        BIGINT NOT NULL DEFAULT 0,
	last_modified_t  BIGINT NOT NULL DEFAULT 0,
	product_name     TEXT NOT NULL DEFAULT '',
	quantity         TEXT NOT NULL DEFAULT '',
	brands           TEXT NOT NULL DEFAULT '',
	categories       TEXT NOT NULL DEFAULT '',
	labels           TEXT NOT NULL DEFAULT '',
	cities           TEXT NOT NULL DEFAULT '',
	purchase_places  TEXT NOT NULL DEFAULT '',
	stores           TEXT NOT NULL DEFAULT '',
	ingredients_text TEXT NOT NULL DEFAULT '',
	traces           TEXT NOT NULL DEFAULT '',
	serving_size     TEXT NOT NULL DEFAULT '',
	serving_quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	nutriscore_score BIGINT NOT NULL DEFAULT 0,
	nutriscore_grade TEXT NOT NULL DEFAULT '',
	main_category    TEXT NOT NULL DEFAULT '',
	image_url        TEXT NOT NULL DEFAULT ''
);`

var productColumns = []string{
	"code", "status", "imported_t", "url", "creator", "created_t", "last_modified_t",
	"product_name", "quantity", "brands", "categories", "labels", "cities",
	"purchase_places", "stores", "ingredients_text", "traces", "serving_size",
	"serving_quantity", "nutriscore_score", "nutriscore_grade", "main_category", "image_url",
}

var (
	selectProducts = "SELECT " + strings.Join(productColumns, ", ") + " FROM products"
	upsertProduct  = buildUpsert()
)

func buildUpsert() string {
	params := make([]string, len(productColumns))
	sets := make([]string, 0, len(productColumns)-1)
	for i, c := range productColumns {
		params[i] = "$" + strconv.Itoa(i+1)
		if c != "code" {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}
	return "INSERT INTO products (" + strings.Join(productColumns, ", ") + ") VALUES (" +
		strings.Join(params, ", ") + ") ON CONFLICT (code) DO UPDATE SET " + strings.Join(sets, ", ")
}

// Options configures Open.
type Options struct {
	DSN      string
	MaxConns int

	// SimpleProtocol is required behind PgBouncer in transaction mode
	SimpleProtocol bool
}

// Store implements interfaces.Store on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger interfaces.Logger
}

var _ interfaces.Store = (*Store)(nil)

// Open connects, verifies connectivity and creates missing tables.
func Open(ctx context.Context, opts Options, logger interfaces.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrInvalidArgument, "parsing PG_DSN")
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 4
	}
	cfg.MaxConns = int32(opts.MaxConns)
	if opts.SimpleProtocol {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "connecting to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "pinging postgres")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.WithCode(err, errors.ErrStoreUnavailable, "creating schema")
	}

	logger.Info("Postgres store opened: host=%s db=%s max_conns=%d",
		cfg.ConnConfig.Host, cfg.ConnConfig.Database, opts.MaxConns)

	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Name() string { return store.BackendPostgres }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.WithCode(err, errors.ErrStoreUnavailable, "pinging postgres")
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func unavailable(err error, op string) error {
	return errors.WithCode(err, errors.ErrStoreUnavailable, op)
}

// =============================================================================
// HistoryStore
// =============================================================================

func (s *Store) LastOffset(ctx context.Context, source string) (int64, bool, error) {
	var off int64
	err := s.pool.QueryRow(ctx,
		`SELECT byte_offset FROM import_history WHERE source = $1 ORDER BY id DESC LIMIT 1`, source).Scan(&off)
	if errors.IsErr(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable(err, "reading last offset")
	}
	return off, true, nil
}

// Save checks and inserts under a per-source advisory lock so two writers
// cannot both pass the offset check.
func (s *Store) Save(ctx context.Context, row types.ImportHistory) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable(err, "beginning history transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, row.Source); err != nil {
		return unavailable(err, "locking history source")
	}

	var last int64
	found := true
	err = tx.QueryRow(ctx,
		`SELECT byte_offset FROM import_history WHERE source = $1 ORDER BY id DESC LIMIT 1`, row.Source).Scan(&last)
	if errors.IsErr(err, pgx.ErrNoRows) {
		found = false
	} else if err != nil {
		return unavailable(err, "reading last offset")
	}
	if err := store.CheckOffset(row, last, found); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO import_history (source, byte_offset, quantity, date) VALUES ($1, $2, $3, $4)`,
		row.Source, row.Offset, row.Quantity, row.Date); err != nil {
		return unavailable(err, "inserting history row")
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable(err, "committing history row")
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) (types.ImportHistory, bool, error) {
	var row types.ImportHistory
	err := s.pool.QueryRow(ctx,
		`SELECT source, byte_offset, quantity, date FROM import_history ORDER BY id DESC LIMIT 1`).
		Scan(&row.Source, &row.Offset, &row.Quantity, &row.Date)
	if errors.IsErr(err, pgx.ErrNoRows) {
		return row, false, nil
	}
	if err != nil {
		return row, false, unavailable(err, "reading latest history row")
	}
	row.Date = row.Date.UTC()
	return row, true, nil
}

func (s *Store) History(ctx context.Context, source string) ([]types.ImportHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, byte_offset, quantity, date FROM import_history WHERE source = $1 ORDER BY id`, source)
	if err != nil {
		return nil, unavailable(err, "listing history")
	}
	defer rows.Close()

	var out []types.ImportHistory
	for rows.Next() {
		var row types.ImportHistory
		if err := rows.Scan(&row.Source, &row.Offset, &row.Quantity, &row.Date); err != nil {
			return nil, unavailable(err, "scanning history row")
		}
		row.Date = row.Date.UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "listing history")
	}
	return out, nil
}

// =============================================================================
// CatalogStore
// =============================================================================

func productArgs(p types.Product) []interface{} {
	return []interface{}{
		p.Code, string(p.Status), p.ImportedT, p.URL, p.Creator, p.CreatedT, p.LastModifiedT,
		p.ProductName, p.Quantity, p.Brands, p.Categories, p.Labels, p.Cities,
		p.PurchasePlaces, p.Stores, p.IngredientsText, p.Traces, p.ServingSize,
		p.ServingQuantity, p.NutriscoreScore, p.NutriscoreGrade, p.MainCategory, p.ImageURL,
	}
}

func scanProduct(row pgx.Row) (types.Product, error) {
	var p types.Product
	var status string
	err := row.Scan(
		&p.Code, &status, &p.ImportedT, &p.URL, &p.Creator, &p.CreatedT, &p.LastModifiedT,
		&p.ProductName, &p.Quantity, &p.Brands, &p.Categories, &p.Labels, &p.Cities,
		&p.PurchasePlaces, &p.Stores, &p.IngredientsText, &p.Traces, &p.ServingSize,
		&p.ServingQuantity, &p.NutriscoreScore, &p.NutriscoreGrade, &p.MainCategory, &p.ImageURL,
	)
	p.Status = types.ProductStatus(status)
	p.ImportedT = p.ImportedT.UTC()
	return p, err
}

// SaveMany upserts every record in one batch. Duplicate codes are applied in
// order, so the last one wins.
func (s *Store) SaveMany(ctx context.Context, products []types.Product) error {
	if len(products) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, p := range products {
		b.Queue(upsertProduct, productArgs(p)...)
	}

	br := s.pool.SendBatch(ctx, b)
	for range products {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return unavailable(err, "upserting products")
		}
	}
	if err := br.Close(); err != nil {
		return unavailable(err, "upserting products")
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, page, limit int) ([]types.Product, error) {
	skip, n := store.Page(page, limit)
	rows, err := s.pool.Query(ctx, selectProducts+` ORDER BY code LIMIT $1 OFFSET $2`, n, skip)
	if err != nil {
		return nil, unavailable(err, "listing products")
	}
	defer rows.Close()

	out := make([]types.Product, 0, n)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, unavailable(err, "scanning product")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "listing products")
	}
	return out, nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (types.Product, bool, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, selectProducts+` WHERE code = $1`, code))
	if errors.IsErr(err, pgx.ErrNoRows) {
		return types.Product{}, false, nil
	}
	if err != nil {
		return types.Product{}, false, unavailable(err, "reading product")
	}
	return p, true, nil
}

// Update locks the row, applies the patch and writes it back.
func (s *Store) Update(ctx context.Context, code string, patch types.Patch) (types.Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Product{}, unavailable(err, "beginning update")
	}
	defer tx.Rollback(ctx)

	p, err := scanProduct(tx.QueryRow(ctx, selectProducts+` WHERE code = $1 FOR UPDATE`, code))
	if errors.IsErr(err, pgx.ErrNoRows) {
		return types.Product{}, errors.Newf(errors.ErrNotFound, "product %s not found", code)
	}
	if err != nil {
		return types.Product{}, unavailable(err, "reading product")
	}

	updated, err := patch.Apply(p)
	if err != nil {
		return types.Product{}, err
	}
	if _, err := tx.Exec(ctx, upsertProduct, productArgs(updated)...); err != nil {
		return types.Product{}, unavailable(err, "updating product")
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Product{}, unavailable(err, "committing update")
	}
	return updated, nil
}

func (s *Store) Trash(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET status = $2 WHERE code = $1`, code, string(types.StatusTrash))
	if err != nil {
		return unavailable(err, "trashing product")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrNotFound, "product %s not found", code)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, unavailable(err, "counting products")
	}
	return n, nil
}
