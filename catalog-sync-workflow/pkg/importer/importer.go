// =============================================================================
// pkg/importer/importer.go - Import Orchestrator
// =============================================================================
//
// The Importer runs one import pass over the manifest:
//
//	1. Fetch the manifest (failure aborts the run)
//	2. For each eligible name, in manifest order:
//	   a. Look up the resume offset (no ledger row ⇒ 0)
//	   b. Open the body and pull records through the pipeline until the cap
//	   c. If any records were read: History.Save, then Catalog.SaveMany
//	3. Return a RunReport
//
// COMMIT ORDER:
//
//	The ledger row is written before the records. If the ledger write fails
//	the records are not written and the next run re-reads the same lines. If
//	the catalog write fails after the ledger moved, those lines are not
//	re-read; the failure is reported as a StoreUnavailable event.
//
// ERROR HANDLING:
//
//	- Manifest errors:   ABORT the run
//	- File errors:       SKIP the file, event emitted
//	- Malformed lines:   DROP the line, event emitted
//	- Store errors:      SKIP the commit for that file, event emitted
//
// =============================================================================

package importer

import (
	"context"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/pipeline"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/stats"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
)

// Options configures an Importer.
type Options struct {
	// MaxProducts caps the lines extracted per file per run (default 100)
	MaxProducts int

	// FileNameLength is the only manifest name length processed (default 19)
	FileNameLength int

	// ChunkSize is the line extraction read size (default 32 KiB)
	ChunkSize int

	// Now stamps imported_t, ledger dates and events (default time.Now)
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxProducts <= 0 {
		o.MaxProducts = types.DefaultMaxProducts
	}
	if o.FileNameLength <= 0 {
		o.FileNameLength = types.DefaultFileNameLength
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = types.DefaultChunkSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Importer is the import orchestrator.
//
// LIFECYCLE:
//
//	imp := importer.New(src, store, store, bus, logger, metrics, opts)
//	report := imp.ImportData(ctx)
//
// ImportData must not be called concurrently; wrap the Importer in a Guard
// when several callers may trigger runs.
type Importer struct {
	source  interfaces.Source
	history interfaces.HistoryStore
	catalog interfaces.CatalogStore
	emitter interfaces.Emitter
	logger  interfaces.Logger
	metrics *stats.Metrics
	timings *stats.FileTimings
	opts    Options

	state atomic.Int32

	mu   sync.Mutex
	last *RunReport
}

// New creates an Importer.
//
// PARAMETERS:
//   - src: manifest and file bodies
//   - history: import ledger
//   - catalog: record store
//   - emitter: receives non-fatal failures; may be nil
//   - logger: run log; scoped to IMPORT
//   - metrics: may be nil
//   - opts: limits and clock
func New(
	src interfaces.Source,
	history interfaces.HistoryStore,
	catalog interfaces.CatalogStore,
	emitter interfaces.Emitter,
	logger interfaces.Logger,
	metrics *stats.Metrics,
	opts Options,
) *Importer {
	return &Importer{
		source:  src,
		history: history,
		catalog: catalog,
		emitter: emitter,
		logger:  logger.WithScope("IMPORT"),
		metrics: metrics,
		timings: stats.NewFileTimings(0),
		opts:    opts.withDefaults(),
	}
}

// State returns the current orchestrator state.
func (imp *Importer) State() State {
	return State(imp.state.Load())
}

// LastReport returns the report of the last finished run.
func (imp *Importer) LastReport() (RunReport, bool) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if imp.last == nil {
		return RunReport{}, false
	}
	return *imp.last, true
}

// Timings returns per-file duration percentiles across runs.
func (imp *Importer) Timings() stats.TimingSummary {
	return imp.timings.Summary()
}

func (imp *Importer) setState(s State) {
	imp.state.Store(int32(s))
}

// ImportData runs one import pass. It never returns an error: failures are
// emitted as events and recorded in the report. A panic raised by a
// collaborator ends the run as Aborted with a StoreUnavailable event.
func (imp *Importer) ImportData(ctx context.Context) (report RunReport) {
	report = RunReport{Started: imp.opts.Now()}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf(errors.ErrStoreUnavailable, "import run panicked: %v", r)
			imp.logger.Error("%v\n%s", err, debug.Stack())
			imp.emit(err, "", 0)
			report.Err = err.Error()
			report = imp.finish(report, StateAborted, start)
		}
	}()

	imp.logger.Separator()
	imp.logger.Info("Import run started (source %s, cap %d per file)", imp.source.Describe(), imp.opts.MaxProducts)

	imp.setState(StateFetchingManifest)
	names, err := imp.source.Manifest(ctx)
	if err != nil {
		imp.emit(err, "", 0)
		report.Err = err.Error()
		return imp.finish(report, StateAborted, start)
	}
	report.Manifest = len(names)
	imp.logger.Info("Manifest lists %d entries", len(names))

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}

		fr := imp.processFile(ctx, name)
		report.Files = append(report.Files, fr)
		if fr.Outcome == OutcomeCommitted {
			report.Records += fr.Records
		}
		if fr.Outcome != OutcomeIneligible {
			imp.timings.Add(fr.Duration)
		}
		imp.metrics.FileFinished(string(fr.Outcome))
	}

	if err := ctx.Err(); err != nil {
		report.Err = err.Error()
		return imp.finish(report, StateAborted, start)
	}
	return imp.finish(report, StateIdle, start)
}

func (imp *Importer) finish(report RunReport, final State, start time.Time) RunReport {
	report.Finished = imp.opts.Now()
	report.State = final
	imp.setState(final)

	elapsed := time.Since(start)
	imp.metrics.RunFinished(final.String(), elapsed)

	imp.logger.Info("Import run %s in %s: %d files committed, %d records (%s), %d failed",
		final, helpers.FormatDuration(elapsed),
		report.Count(OutcomeCommitted), report.Records,
		helpers.FormatRate(int64(report.Records), elapsed),
		report.Count(OutcomeFailed)+report.Count(OutcomeStoreError))
	if report.Err != "" {
		imp.logger.Error("Import run ended early: %s", report.Err)
	}
	imp.logger.Separator()
	imp.logger.Sync()

	imp.mu.Lock()
	imp.last = &report
	imp.mu.Unlock()
	return report
}

// processFile runs the pipeline over one manifest entry and commits it.
func (imp *Importer) processFile(ctx context.Context, name string) (fr FileReport) {
	fr.Source = name
	start := time.Now()
	defer func() { fr.Duration = time.Since(start) }()

	if len(name) != imp.opts.FileNameLength {
		imp.logger.Info("Skipping %q: name length %d, expected %d", name, len(name), imp.opts.FileNameLength)
		fr.Outcome = OutcomeIneligible
		return fr
	}

	imp.setState(StateProcessingFile)

	resume, _, err := imp.history.LastOffset(ctx, name)
	if err != nil {
		err = errors.WithCode(err, errors.ErrStoreUnavailable, "reading import cursor")
		imp.metrics.StoreError("history")
		return imp.fail(fr, OutcomeStoreError, err, 0)
	}
	fr.ResumeOffset = resume
	fr.Offset = resume

	body, err := imp.source.Open(ctx, name)
	if err != nil {
		return imp.fail(fr, OutcomeFailed, err, resume)
	}

	p, err := pipeline.Open(body, pipeline.Options{
		ResumeOffset: resume,
		MaxRecords:   imp.opts.MaxProducts,
		ChunkSize:    imp.opts.ChunkSize,
		Now:          imp.opts.Now,
		OnMalformed: func(err error, offset int64) {
			imp.emit(err, name, offset)
		},
	})
	if err != nil {
		return imp.fail(fr, OutcomeFailed, err, resume)
	}
	defer p.Close()

	products, maxOffset, anomalies, err := imp.accumulate(p, resume)
	st := p.Stats()
	fr.Malformed = st.Malformed
	fr.Anomalies = anomalies
	fr.CapReached = st.CapReached
	fr.Truncated = st.Truncated
	imp.metrics.Malformed(st.Malformed)

	if err != nil {
		if ctx.Err() != nil {
			fr.Outcome = OutcomeCancelled
			fr.Err = ctx.Err().Error()
			imp.logger.Info("%s: cancelled after %d records, nothing committed", name, len(products))
			return fr
		}
		err = errors.WithCode(err, errors.ErrUpstreamUnavailable, "reading file body")
		return imp.fail(fr, OutcomeFailed, err, st.Offset)
	}

	if st.SkipShortBy > 0 {
		imp.emit(errors.Newf(errors.ErrCorruptSource,
			"file holds %d decompressed bytes, cursor is at %d", st.Skipped, resume), name, resume)
	}
	if st.Truncated {
		imp.logger.Info("%s: compressed stream truncated after %s", name, helpers.FormatBytes(st.Decompressed))
	}

	if len(products) == 0 {
		imp.logger.Info("%s: no new records past offset %d", name, resume)
		fr.Outcome = OutcomeEmpty
		return fr
	}

	if err := ctx.Err(); err != nil {
		fr.Outcome = OutcomeCancelled
		fr.Err = err.Error()
		imp.logger.Info("%s: cancelled before commit, %d records discarded", name, len(products))
		return fr
	}

	// Malformed lines read after the last record are consumed too; the
	// cursor moves past them so the next run does not report them again.
	if st.Offset > maxOffset {
		maxOffset = st.Offset
	}
	return imp.commit(ctx, fr, products, maxOffset)
}

// accumulate drains the pipeline. It returns the records, the highest offset
// seen and how many records did not advance the offset.
func (imp *Importer) accumulate(p *pipeline.Pipeline, resume int64) ([]types.Product, int64, int, error) {
	products := make([]types.Product, 0, imp.opts.MaxProducts)
	maxOffset := resume
	anomalies := 0

	for {
		rec, err := p.Next()
		if err == io.EOF {
			return products, maxOffset, anomalies, nil
		}
		if err != nil {
			return products, maxOffset, anomalies, err
		}

		if rec.Offset > maxOffset {
			maxOffset = rec.Offset
		} else {
			anomalies++
		}
		products = append(products, rec.Product)
	}
}

// commit writes the ledger row, then the records.
func (imp *Importer) commit(ctx context.Context, fr FileReport, products []types.Product, offset int64) FileReport {
	imp.setState(StateCommitting)
	defer imp.setState(StateProcessingFile)

	row := types.ImportHistory{
		Source:   fr.Source,
		Offset:   offset,
		Quantity: len(products),
		Date:     imp.opts.Now(),
	}
	if err := imp.history.Save(ctx, row); err != nil {
		imp.metrics.StoreError("history")
		err = errors.WithCode(err, errors.ErrStoreUnavailable, "saving import history")
		return imp.fail(fr, OutcomeStoreError, err, offset)
	}
	fr.Offset = offset

	if err := imp.catalog.SaveMany(ctx, products); err != nil {
		imp.metrics.StoreError("catalog")
		err = errors.WithCode(err, errors.ErrStoreUnavailable, "saving catalog records")
		return imp.fail(fr, OutcomeStoreError, err, offset)
	}

	fr.Outcome = OutcomeCommitted
	fr.Records = len(products)
	imp.metrics.Committed(fr.Source, fr.Records, offset)
	imp.logger.Info("%s: committed %s records, offset %s → %s",
		fr.Source, helpers.FormatNumber(int64(fr.Records)),
		helpers.FormatNumber(fr.ResumeOffset), helpers.FormatNumber(offset))
	return fr
}

func (imp *Importer) fail(fr FileReport, outcome Outcome, err error, offset int64) FileReport {
	fr.Outcome = outcome
	fr.Err = err.Error()
	imp.emit(err, fr.Source, offset)
	return fr
}

func (imp *Importer) emit(err error, source string, offset int64) {
	if imp.emitter == nil {
		imp.logger.Error("%s@%d: %v", source, offset, err)
		return
	}
	imp.emitter.Emit(types.ImportError{
		Err:    err,
		Source: source,
		Offset: offset,
		At:     imp.opts.Now(),
	})
}
