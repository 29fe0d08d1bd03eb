// Package transform is the materialization engine: a catalog of named
// transformations with declared upstream dependencies, resolved into a
// topological order and executed level-parallel against the warehouse store.
package transform

import (
	"context"
	"time"

	"github.com/transitlab/transitmart/internal/config"
	"github.com/transitlab/transitmart/internal/store"
)

// WriteMode describes how a transformation materializes its output.
type WriteMode string

const (
	// ModeReplace rebuilds the full table every run (staging, dimensions, marts).
	ModeReplace WriteMode = "replace"
	// ModeAppend adds new partitions beyond the watermark (facts, health log).
	ModeAppend WriteMode = "append"
)

// Env carries the per-run execution environment. Now is fixed once per run so
// every node sees the same as-of instant.
type Env struct {
	Store store.Store
	Cfg   *config.Config
	Now   time.Time
}

// Result holds the outcome of a single transformation build.
type Result struct {
	Rows int64     `json:"rows"`
	Mode WriteMode `json:"mode"`
}

// Transformation is one named node of the pipeline. Build must be idempotent:
// re-running against unchanged inputs reproduces replace outputs identically
// and appends nothing for append outputs.
type Transformation interface {
	// Name returns the unique node identifier; by convention it equals Table().
	Name() string

	// Table returns the output table this node materializes.
	Table() string

	// Upstreams returns the names of registered transformations this node
	// reads from. Raw landing tables are not registered nodes and are not
	// listed here.
	Upstreams() []string

	// Build reads current upstream contents and materializes the output.
	// A failed Build must leave the existing output untouched.
	Build(ctx context.Context, env *Env) (*Result, error)
}
