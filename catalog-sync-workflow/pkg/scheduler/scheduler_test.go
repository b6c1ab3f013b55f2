package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/importer"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct {
	calls   chan time.Duration
	aborted bool
}

func (c *countingTrigger) Run(ctx context.Context) (importer.RunReport, bool) {
	var left time.Duration
	if dl, ok := ctx.Deadline(); ok {
		left = time.Until(dl)
	}
	c.calls <- left
	if c.aborted {
		return importer.RunReport{State: importer.StateAborted, Err: "manifest returned 503"}, false
	}
	return importer.RunReport{State: importer.StateIdle}, false
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	trig := &countingTrigger{calls: make(chan time.Duration, 16), aborted: true}
	s, err := New(trig, logging.NewNopLogger(), Options{
		Interval:   10 * time.Millisecond,
		RunTimeout: time.Minute,
		RunOnStart: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Aborted runs do not stop the loop.
	for i := 0; i < 3; i++ {
		select {
		case left := <-trig.calls:
			assert.Greater(t, left, 50*time.Second)
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d not triggered", i+1)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerWaitsForFirstInterval(t *testing.T) {
	trig := &countingTrigger{calls: make(chan time.Duration, 1)}
	s, err := New(trig, logging.NewNopLogger(), Options{Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Len(t, trig.calls, 0)
}

func TestNewValidates(t *testing.T) {
	_, err := New(&countingTrigger{}, logging.NewNopLogger(), Options{Interval: -time.Second})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = New(&countingTrigger{}, logging.NewNopLogger(), Options{RunTimeout: -time.Second})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	s, err := New(&countingTrigger{}, logging.NewNopLogger(), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.opts.Interval)
}
