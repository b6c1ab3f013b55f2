// =============================================================================
// pkg/api/api.go - HTTP Interface
// =============================================================================
//
// Routes:
//
//	GET    /                    health report
//	GET    /products            one page of products (?page=1&limit=10)
//	GET    /products/{code}     one product
//	PUT    /products/{code}     partial update
//	DELETE /products/{code}     soft delete (status → trash)
//	GET    /imports/{source}    ledger rows for one source file
//	POST   /imports             trigger an import run (joins one in flight)
//	GET    /metrics             Prometheus metrics
//
// Errors are returned as {"error": "..."} with the status taken from the
// error code (NotFound → 404, InvalidArgument → 400, StoreUnavailable → 503).
//
// =============================================================================

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/importer"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/memory"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/stats"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NoImportYet is reported as lastImport before the first ledger row exists.
const NoImportYet = "no import recorded yet"

// ImportStatus exposes the orchestrator's state to the health report.
type ImportStatus interface {
	State() importer.State
	LastReport() (importer.RunReport, bool)
	Timings() stats.TimingSummary
}

// ImportTrigger starts or joins an import run.
type ImportTrigger interface {
	Run(ctx context.Context) (importer.RunReport, bool)
}

// Options configures a Handler.
type Options struct {
	Store    interfaces.Store
	Status   ImportStatus
	Trigger  ImportTrigger
	Gatherer prometheus.Gatherer
	Logger   interfaces.Logger
	Started  time.Time
	Version  string

	// RunContext bounds runs started by POST /imports. It is cancelled when
	// the service shuts down (default context.Background())
	RunContext context.Context

	// RunTimeout limits each triggered run; zero means no limit
	RunTimeout time.Duration

	// Now is used for uptime (default time.Now)
	Now func() time.Time

	// Memory samples process memory (default memory.Take)
	Memory func() memory.Snapshot
}

// Handler serves the catalog HTTP API.
type Handler struct {
	router *mux.Router
	opts   Options
	logger interfaces.Logger
}

// NewHandler builds the router.
func NewHandler(opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Memory == nil {
		opts.Memory = memory.Take
	}
	if opts.RunContext == nil {
		opts.RunContext = context.Background()
	}
	if opts.Started.IsZero() {
		opts.Started = opts.Now()
	}

	h := &Handler{
		router: mux.NewRouter(),
		opts:   opts,
		logger: opts.Logger.WithScope("HTTP"),
	}

	r := h.router
	r.HandleFunc("/", h.handleGetHealth).Methods("GET").Name("GetHealth")
	r.HandleFunc("/products", h.handleGetProducts).Methods("GET").Name("GetProducts")
	r.HandleFunc("/products/{code}", h.handleGetProduct).Methods("GET").Name("GetProduct")
	r.HandleFunc("/products/{code}", h.handlePutProduct).Methods("PUT").Name("PutProduct")
	r.HandleFunc("/products/{code}", h.handleDeleteProduct).Methods("DELETE").Name("DeleteProduct")
	r.HandleFunc("/imports/{source}", h.handleGetImports).Methods("GET").Name("GetImports")
	if opts.Trigger != nil {
		r.HandleFunc("/imports", h.handlePostImports).Methods("POST").Name("PostImports")
	}
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, errors.Newf(errors.ErrNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})

	return h
}

// ServeHTTP recovers handler panics as 500 responses.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.logger.Error("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprint(err)})
		}
	}()
	h.router.ServeHTTP(w, r)
}

// =============================================================================
// Responses
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
}

type productsResponse struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	Total      int64           `json:"total"`
	Data       []types.Product `json:"data"`
}

type productResponse struct {
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Data       *types.Product `json:"data,omitempty"`
}

type healthResponse struct {
	DBData      dbData            `json:"dbData"`
	LastImport  interface{}       `json:"lastImport"`
	MemoryUsage memory.Snapshot   `json:"memoryUsage"`
	Uptime      string            `json:"uptime"`
	Version     string            `json:"version,omitempty"`
	Import      *importStatusJSON `json:"import,omitempty"`
}

type dbData struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

type importStatusJSON struct {
	State       importer.State      `json:"state"`
	LastRun     *importer.RunReport `json:"lastRun,omitempty"`
	FileTimings stats.TimingSummary `json:"fileTimings"`
}

// statusOf maps an error code to an HTTP status.
func statusOf(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrInvalidArgument, errors.ErrMalformedRecord:
		return http.StatusBadRequest
	case errors.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrUpstreamUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%v", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("error writing response: %v", err)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (h *Handler) handleGetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{
		DBData:      dbData{OK: true, Backend: h.opts.Store.Name()},
		MemoryUsage: h.opts.Memory(),
		Uptime:      helpers.FormatUptime(h.opts.Now().Sub(h.opts.Started)),
		Version:     h.opts.Version,
	}

	if err := h.opts.Store.Ping(ctx); err != nil {
		resp.DBData.OK = false
		resp.DBData.Error = err.Error()
	}

	row, found, err := h.opts.Store.Latest(ctx)
	switch {
	case err != nil:
		resp.DBData.OK = false
		resp.DBData.Error = err.Error()
		resp.LastImport = nil
	case !found:
		resp.LastImport = NoImportYet
	default:
		resp.LastImport = row.Date
	}

	if h.opts.Status != nil {
		st := &importStatusJSON{
			State:       h.opts.Status.State(),
			FileTimings: h.opts.Status.Timings(),
		}
		if last, ok := h.opts.Status.LastReport(); ok {
			st.LastRun = &last
		}
		resp.Import = st
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), types.DefaultPageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if page < 1 || limit < 1 || limit > types.MaxPageSize {
		h.writeError(w, errors.Newf(errors.ErrInvalidArgument,
			"page must be >= 1 and limit between 1 and %d", types.MaxPageSize))
		return
	}

	products, err := h.opts.Store.FindAll(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, err := h.opts.Store.Count(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []types.Product{}
	}

	h.writeJSON(w, http.StatusOK, productsResponse{
		StatusCode: http.StatusOK,
		Message:    "Products found",
		Page:       page,
		Limit:      limit,
		Total:      total,
		Data:       products,
	})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	p, found, err := h.opts.Store.FindByCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		h.writeError(w, errors.Newf(errors.ErrNotFound, "product %s not found", code))
		return
	}
	h.writeJSON(w, http.StatusOK, productResponse{StatusCode: http.StatusOK, Message: "Product found", Data: &p})
}

func (h *Handler) handlePutProduct(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var patch types.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, errors.WithCode(err, errors.ErrInvalidArgument, "decoding request body"))
		return
	}

	p, err := h.opts.Store.Update(r.Context(), code, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, productResponse{StatusCode: http.StatusOK, Message: "Product updated", Data: &p})
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := h.opts.Store.Trash(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, productResponse{StatusCode: http.StatusOK, Message: "Product deleted"})
}

func (h *Handler) handleGetImports(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	rows, err := h.opts.Store.History(r.Context(), source)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(rows) == 0 {
		h.writeError(w, errors.Newf(errors.ErrNotFound, "no import recorded for %s", source))
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handlePostImports(w http.ResponseWriter, r *http.Request) {
	// The run belongs to the service, not the request: a client that
	// disconnects does not abort it, shutdown and the run timeout do.
	ctx := h.opts.RunContext
	if h.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RunTimeout)
		defer cancel()
	}
	report, shared := h.opts.Trigger.Run(ctx)
	h.logger.Info("import triggered over HTTP: state=%s records=%d shared=%t", report.State, report.Records, shared)
	h.writeJSON(w, http.StatusOK, report)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.WithCode(err, errors.ErrInvalidArgument, "invalid integer "+strconv.Quote(s))
	}
	return n, nil
}
