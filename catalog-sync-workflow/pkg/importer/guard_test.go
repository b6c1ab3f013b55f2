package importer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) ImportData(ctx context.Context) RunReport {
	if r.calls.Add(1) == 1 {
		close(r.started)
	}
	<-r.release
	return RunReport{Records: 7, State: StateIdle}
}

func TestGuardSharesInFlightRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	g := NewGuard(runner)

	var wg sync.WaitGroup
	reports := make([]RunReport, 3)
	shared := make([]bool, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], shared[0] = g.Run(context.Background())
	}()
	<-runner.started

	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], shared[i] = g.Run(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(1), runner.calls.Load())
	for i := range reports {
		assert.Equal(t, 7, reports[i].Records)
		assert.True(t, shared[i])
	}

	// A later call starts a fresh run.
	runner.started = make(chan struct{})
	runner.calls.Store(0)
	report, wasShared := g.Run(context.Background())
	assert.Equal(t, 7, report.Records)
	assert.False(t, wasShared)
	assert.Equal(t, int32(1), runner.calls.Load())
}
