package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/importer"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	for _, code := range []string{"1001", "1002", "1003"} {
		zw.Write([]byte(`{"code":"` + code + `","product_name":"p` + code + `"}` + "\n"))
	}
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "index.txt":
			w.Write([]byte("products_01.json.gz\n"))
		case "products_01.json.gz":
			w.Write(gz.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func memoryConfig(baseURL string) *Config {
	c := DefaultConfig()
	c.Source.BaseURL = baseURL
	c.Store.Backend = store.BackendMemory
	c.Import.MaxProducts = 2
	return c
}

func TestWorkflowRunOnce(t *testing.T) {
	srv := catalogUpstream(t)
	c := memoryConfig(srv.URL)
	c.Once = true
	require.NoError(t, c.Validate())

	ctx := context.Background()
	w, err := NewWorkflow(ctx, c, logging.NewNopLogger())
	require.NoError(t, err)
	defer w.Close()

	report := w.RunOnce(ctx)
	assert.Equal(t, importer.StateIdle, report.State)
	assert.Equal(t, 2, report.Records)

	report = w.RunOnce(ctx)
	assert.Equal(t, 1, report.Records)

	n, err := w.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	offset, found, err := w.Store().LastOffset(ctx, "products_01.json.gz")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(3*len(`{"code":"1001","product_name":"p1001"}`+"\n")), offset)
}

func TestWorkflowServe(t *testing.T) {
	srv := catalogUpstream(t)
	c := memoryConfig(srv.URL)
	c.HTTP.Addr = "127.0.0.1:0"
	c.Import.ScheduleInterval = time.Hour

	w, err := NewWorkflow(context.Background(), c, logging.NewNopLogger())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	// The run on start commits the first two records.
	require.Eventually(t, func() bool {
		n, err := w.Store().Count(context.Background())
		return err == nil && n == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	c := DefaultConfig()
	c.Store.Backend = "bolt"
	_, err := openStore(context.Background(), c, logging.NewNopLogger())
	assert.Error(t, err)
}
