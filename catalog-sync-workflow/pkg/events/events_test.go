package events

import (
	"bytes"
	"testing"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(e types.ImportError) { got = append(got, "a:"+e.Source) })
	bus.Subscribe(func(e types.ImportError) { got = append(got, "b:"+e.Source) })

	bus.Emit(types.ImportError{Source: "products_01.json.gz"})
	assert.Equal(t, []string{"a:products_01.json.gz", "b:products_01.json.gz"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(types.ImportError) { calls++ })
	bus.Emit(types.ImportError{})
	unsubscribe()
	unsubscribe()
	bus.Emit(types.ImportError{})
	assert.Equal(t, 1, calls)
}

func TestBusRecoversPanics(t *testing.T) {
	bus := NewBus()
	delivered := false
	bus.Subscribe(func(types.ImportError) { panic("subscriber bug") })
	bus.Subscribe(func(types.ImportError) { delivered = true })

	require.NotPanics(t, func() { bus.Emit(types.ImportError{}) })
	assert.True(t, delivered)
	assert.Equal(t, int64(1), bus.Panics())
}

func TestBusWithoutSubscribers(t *testing.T) {
	assert.NotPanics(t, func() { NewBus().Emit(types.ImportError{}) })
}

func TestLogSubscriber(t *testing.T) {
	var out, errOut bytes.Buffer
	sub := LogSubscriber(logging.NewWriterLogger(&out, &errOut))

	sub(types.ImportError{
		Err:    errors.New(errors.ErrMalformedRecord, "missing code"),
		Source: "products_01.json.gz",
		Offset: 812,
		At:     time.Now(),
	})
	sub(types.ImportError{Err: errors.New(errors.ErrUpstreamUnavailable, "manifest returned 503")})

	assert.Contains(t, errOut.String(), "import error [MalformedRecord] products_01.json.gz@812: missing code")
	assert.Contains(t, errOut.String(), "import error [UpstreamUnavailable]: manifest returned 503")
}
