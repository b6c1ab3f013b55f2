package importer

import (
	"context"

	"golang.org/x/sync/singleflight"
)

const guardKey = "import"

// Runner runs one import pass.
type Runner interface {
	ImportData(ctx context.Context) RunReport
}

// Guard serializes import runs. A caller that arrives while a run is in
// flight waits for it and receives the same report instead of starting a
// second one. The in-flight run uses the first caller's context.
type Guard struct {
	runner Runner
	group  singleflight.Group
}

// NewGuard wraps runner.
func NewGuard(runner Runner) *Guard {
	return &Guard{runner: runner}
}

// Run triggers a run or joins the one in flight. shared is true when the
// report came from a run started by another caller.
func (g *Guard) Run(ctx context.Context) (report RunReport, shared bool) {
	v, _, shared := g.group.Do(guardKey, func() (interface{}, error) {
		return g.runner.ImportData(ctx), nil
	})
	report, ok := v.(RunReport)
	if !ok {
		report = RunReport{State: StateAborted, Err: "import run returned no report"}
	}
	return report, shared
}
