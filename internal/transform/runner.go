package transform

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/transitlab/transitmart/internal/config"
	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
)

// RunLogTable records one row per node per run, teacher-style sync log kept in
// the warehouse itself.
const RunLogTable = "run_log"

// Status is the terminal state of one node in a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// NodeResult is the outcome of a single node.
type NodeResult struct {
	Name    string
	Table   string
	Status  Status
	Mode    WriteMode
	Rows    int64
	Elapsed time.Duration
	Err     string
}

// Report summarizes one pipeline run.
type Report struct {
	RunID   string
	Started time.Time
	Results []NodeResult
}

// Counts returns the number of succeeded, failed, and skipped nodes.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusSuccess:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// Runner executes a resolved set of transformations. Independent nodes run in
// parallel within a dependency level; a failed node marks every transitive
// downstream as skipped while sibling branches complete.
type Runner struct {
	store   store.Store
	cfg     *config.Config
	workers int
}

// NewRunner creates a runner with the given worker bound (minimum 1).
func NewRunner(st store.Store, cfg *config.Config) *Runner {
	workers := cfg.Build.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{store: st, cfg: cfg, workers: workers}
}

// Run executes the nodes, which must already be in a valid topological order
// (see Registry.Resolve). It returns a Report covering every node; an error is
// returned only for run-level failures such as context cancellation. Node
// failures are reported, not returned.
func (r *Runner) Run(ctx context.Context, nodes []Transformation) (*Report, error) {
	log := zap.L().With(zap.String("component", "transform.runner"))

	report := &Report{
		RunID:   uuid.New().String(),
		Started: time.Now().UTC(),
	}
	env := &Env{Store: r.store, Cfg: r.cfg, Now: report.Started}

	log.Info("starting run",
		zap.String("run_id", report.RunID),
		zap.Int("nodes", len(nodes)),
		zap.Int("workers", r.workers),
	)

	var (
		mu       sync.Mutex
		statuses = make(map[string]Status, len(nodes))
	)

	for _, level := range levels(nodes) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)

		for _, node := range level {
			g.Go(func() error {
				result := r.runNode(gctx, env, node, statuses, &mu)

				mu.Lock()
				statuses[node.Name()] = result.Status
				report.Results = append(report.Results, result)
				mu.Unlock()
				return nil
			})
		}
		// Goroutines return nil; Wait only propagates gctx cancellation.
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	r.writeRunLog(ctx, log, report)

	succeeded, failed, skipped := report.Counts()
	log.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)
	return report, nil
}

func (r *Runner) runNode(ctx context.Context, env *Env, node Transformation, statuses map[string]Status, mu *sync.Mutex) NodeResult {
	log := zap.L().With(
		zap.String("component", "transform.runner"),
		zap.String("node", node.Name()),
	)

	result := NodeResult{Name: node.Name(), Table: node.Table()}

	// Nodes in earlier levels have terminal statuses by now.
	mu.Lock()
	var blocked string
	for _, up := range node.Upstreams() {
		if st, ok := statuses[up]; !ok || st != StatusSuccess {
			blocked = up
			break
		}
	}
	mu.Unlock()

	if blocked != "" {
		log.Warn("skipping node, upstream did not succeed", zap.String("upstream", blocked))
		result.Status = StatusSkipped
		result.Err = "upstream " + blocked + " did not succeed"
		return result
	}

	log.Info("building node")
	start := time.Now()
	buildResult, err := node.Build(ctx, env)
	result.Elapsed = time.Since(start)

	if err != nil {
		log.Error("node failed", zap.Error(err), zap.Duration("elapsed", result.Elapsed))
		result.Status = StatusFailed
		result.Err = err.Error()
		return result
	}

	result.Status = StatusSuccess
	result.Rows = buildResult.Rows
	result.Mode = buildResult.Mode
	log.Info("node complete",
		zap.Int64("rows", buildResult.Rows),
		zap.String("mode", string(buildResult.Mode)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result
}

// writeRunLog appends one row per node to run_log. Failure to record is logged
// but never fails the run.
func (r *Runner) writeRunLog(ctx context.Context, log *zap.Logger, report *Report) {
	rows := make([]model.Row, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, model.Row{
			"run_id":     report.RunID,
			"node":       res.Name,
			"table_name": res.Table,
			"status":     string(res.Status),
			"rows":       res.Rows,
			"elapsed_ms": res.Elapsed.Milliseconds(),
			"error":      res.Err,
			"started_at": report.Started.Format(time.RFC3339),
		})
	}
	if err := r.store.Append(ctx, RunLogTable, rows); err != nil {
		log.Error("failed to record run log", zap.Error(err))
	}
}

// levels groups topologically ordered nodes into dependency levels: a node's
// level is one past the deepest of its upstreams within the set. Nodes in the
// same level have no edges between them and may run concurrently.
func levels(nodes []Transformation) [][]Transformation {
	depth := make(map[string]int, len(nodes))
	inSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inSet[n.Name()] = true
	}

	var out [][]Transformation
	for _, n := range nodes {
		d := 0
		for _, up := range n.Upstreams() {
			if inSet[up] && depth[up]+1 > d {
				d = depth[up] + 1
			}
		}
		depth[n.Name()] = d
		for len(out) <= d {
			out = append(out, nil)
		}
		out[d] = append(out[d], n)
	}
	return out
}
