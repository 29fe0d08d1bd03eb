package transform

import (
	"fmt"
	"strings"
)

// SchemaDriftError reports that a transformation references columns that no
// longer exist in its upstream's current schema. It is fatal for the node:
// upstream feeds drift between ingestion runs and a silent mis-mapping would
// corrupt downstream facts, so this is surfaced distinctly from row-level
// quality findings.
type SchemaDriftError struct {
	Node    string
	Table   string
	Missing []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("transform: schema drift in %s: %s is missing columns [%s]",
		e.Node, e.Table, strings.Join(e.Missing, ", "))
}

// UnknownDependencyError reports a declared upstream that is not registered.
type UnknownDependencyError struct {
	Node     string
	Upstream string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("transform: node %s depends on unregistered node %s", e.Node, e.Upstream)
}

// CycleError reports that the dependency graph is not a DAG.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("transform: dependency cycle among [%s]", strings.Join(e.Nodes, ", "))
}
