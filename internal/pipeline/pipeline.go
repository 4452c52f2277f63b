// Package pipeline runs one compilation: reshape the LMS export, derive every
// entity, validate the result, optionally filter it to a cohort.
//
// The run is linear and synchronous. Any failure halts it; there is no
// partial output.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/JonMunkholm/enclave/internal/cohort"
	"github.com/JonMunkholm/enclave/internal/core"
	"github.com/JonMunkholm/enclave/internal/core/entities"
	"github.com/JonMunkholm/enclave/internal/derive"
	"github.com/JonMunkholm/enclave/internal/logging"
	"github.com/JonMunkholm/enclave/internal/moodle"
)

// Input is the raw snapshot of one run.
type Input struct {
	// Export is the nested LMS export. When nil, Tables must already hold
	// the flattened candidate tables.
	Export *moodle.Export

	// Tables holds the static content and event tables by source name.
	Tables core.Tables

	// Cohort restricts the output when non-nil.
	Cohort cohort.Set
}

// Options configure a run.
type Options struct {
	// NewID generates UUIDs for users the source gave none. Defaults to random.
	NewID moodle.IDGenerator
}

// Report describes what a run produced and what it dropped.
type Report struct {
	Counts  map[string]int // rows per entity in the final dataset
	Drops   derive.Drops   // rows dropped by join policies during derivation
	Removed cohort.Removed // rows removed by the cohort filter
	Cohort  []int64        // cohort course ids, empty when unfiltered
}

// Result is the outcome of a successful run.
type Result struct {
	Dataset *entities.Dataset
	Report  *Report
}

// Run executes Reshape, Derive, Validate and Filter in order.
func Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	logger := logging.WithFields(ctx, "component", "pipeline")

	tables, err := reshape(in, opts)
	if err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	logger.Debug("reshaped export", "tables", tableNames(tables))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, drops, err := derive.Derive(tables)
	if err != nil {
		return nil, err
	}
	logger.Info("derived entities", "dataset", ds.String(), "dropped", drops.Total())

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if err := ds.CheckClosure(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	report := &Report{Drops: drops, Removed: cohort.Removed{}}

	if in.Cohort != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		filtered, removed, err := cohort.Filter(ds, in.Cohort)
		if err != nil {
			return nil, err
		}
		ds = filtered
		report.Removed = removed
		report.Cohort = in.Cohort.IDs()
		logger.Info("applied cohort filter", "cohort", in.Cohort.String(), "dataset", ds.String())
	}

	report.Counts = ds.Counts()
	report.Log(logger)

	return &Result{Dataset: ds, Report: report}, nil
}

// reshape flattens the export and merges the candidate tables with the
// content and event tables. The caller's map is not modified.
func reshape(in Input, opts Options) (core.Tables, error) {
	tables := make(core.Tables, len(in.Tables)+8)
	for name, t := range in.Tables {
		tables[name] = t
	}
	if in.Export == nil {
		return tables, nil
	}

	candidates, err := moodle.Flatten(in.Export, opts.NewID)
	if err != nil {
		return nil, err
	}
	for name, t := range candidates {
		tables[name] = t
	}
	return tables, nil
}

// Log writes the drop and removal counts at info level, one entry per
// non-zero counter, in a stable order.
func (r *Report) Log(logger *slog.Logger) {
	for _, name := range sortedKeys(r.Drops) {
		if n := r.Drops[name]; n > 0 {
			logger.Info("dropped rows", "policy", name, "rows", n)
		}
	}
	for _, name := range sortedKeys(r.Removed) {
		logger.Info("cohort removed rows", "entity", name, "rows", r.Removed[name])
	}
	logger.Info("compiled dataset", "entities", len(r.Counts), "rows", r.TotalRows())
}

// TotalRows returns the number of rows across all entities.
func (r *Report) TotalRows() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

func sortedKeys[M ~map[string]int](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tableNames(ts core.Tables) []string {
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
