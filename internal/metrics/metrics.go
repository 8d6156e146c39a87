// Package metrics derives dashboard summary figures from table contents.
//
// Evaluate is pure: it reads the records it is given, keeps no state
// between calls and never modifies its input. Compute fetches the tables
// a set of metrics needs and then evaluates them.
package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tourdesk/internal/binding"
	"github.com/roach88/tourdesk/internal/query"
	"github.com/roach88/tourdesk/internal/record"
)

// Kind is an aggregation function.
type Kind string

const (
	Count   Kind = "count"
	Sum     Kind = "sum"
	Avg     Kind = "avg"
	Min     Kind = "min"
	Max     Kind = "max"
	CountBy Kind = "count_by"
)

// Metric describes one figure: an aggregation over the records of Table
// that match Where. Field names the aggregated field for every kind but
// Count.
type Metric struct {
	Name  string
	Table string
	Kind  Kind
	Field string
	Where query.Query
}

// Validate reports a malformed metric.
func (m Metric) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("metric name is required")
	}
	if m.Table == "" {
		return fmt.Errorf("metric %s: table is required", m.Name)
	}
	switch m.Kind {
	case Count:
	case Sum, Avg, Min, Max, CountBy:
		if m.Field == "" {
			return fmt.Errorf("metric %s: %s needs a field", m.Name, m.Kind)
		}
	default:
		return fmt.Errorf("metric %s: unknown kind %q", m.Name, m.Kind)
	}
	return nil
}

// Result is an evaluated metric. Defined is false when an avg, min or max
// had no numeric values to work on. Groups is set for CountBy only.
type Result struct {
	Name    string
	Table   string
	Kind    Kind
	Value   float64
	Defined bool
	Groups  map[string]int
}

// GroupKeys returns the keys of Groups, sorted.
func (r Result) GroupKeys() []string {
	keys := make([]string, 0, len(r.Groups))
	for k := range r.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Evaluate computes metrics over tables, keyed by table name. Results
// follow the order of metrics. Invalid metrics are skipped with an
// undefined result.
func Evaluate(metrics []Metric, tables map[string][]record.Record) []Result {
	out := make([]Result, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, evaluate(m, tables[m.Table]))
	}
	return out
}

func evaluate(m Metric, rows []record.Record) Result {
	res := Result{Name: m.Name, Table: m.Table, Kind: m.Kind}
	if m.Validate() != nil {
		return res
	}
	matched := query.Filter(rows, m.Where)

	switch m.Kind {
	case Count:
		res.Value = float64(len(matched))
		res.Defined = true
	case CountBy:
		res.Groups = make(map[string]int)
		for _, r := range matched {
			if v, ok := r[m.Field]; ok {
				res.Groups[record.Format(v)]++
			}
		}
		res.Value = float64(len(res.Groups))
		res.Defined = true
	default:
		nums := numbers(matched, m.Field)
		res.Value, res.Defined = reduce(m.Kind, nums)
	}
	return res
}

func numbers(rows []record.Record, field string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := record.AsFloat(r[field]); ok {
			out = append(out, f)
		}
	}
	return out
}

func reduce(kind Kind, nums []float64) (float64, bool) {
	if kind == Sum {
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total, true
	}
	if len(nums) == 0 {
		return 0, false
	}
	switch kind {
	case Avg:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), true
	case Min:
		v := math.Inf(1)
		for _, n := range nums {
			v = math.Min(v, n)
		}
		return v, true
	case Max:
		v := math.Inf(-1)
		for _, n := range nums {
			v = math.Max(v, n)
		}
		return v, true
	}
	return 0, false
}

// Tables returns the distinct tables metrics read, sorted.
func Tables(metrics []Metric) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range metrics {
		if m.Table != "" && !seen[m.Table] {
			seen[m.Table] = true
			out = append(out, m.Table)
		}
	}
	sort.Strings(out)
	return out
}

// FromSnapshots collects binding caches into the input of Evaluate.
func FromSnapshots(snaps ...binding.Snapshot) map[string][]record.Record {
	out := make(map[string][]record.Record, len(snaps))
	for _, s := range snaps {
		out[s.Table] = s.Records
	}
	return out
}

// Selector reads a table.
type Selector interface {
	Select(ctx context.Context, table string, q query.Query) ([]record.Record, error)
}

// Compute fetches every table the metrics read, concurrently, and
// evaluates them. The first fetch error cancels the rest.
func Compute(ctx context.Context, src Selector, metrics []Metric) ([]Result, error) {
	for _, m := range metrics {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}

	var mu sync.Mutex
	tables := make(map[string][]record.Record)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, table := range Tables(metrics) {
		eg.Go(func() error {
			rows, err := src.Select(egCtx, table, query.All)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", table, err)
			}
			mu.Lock()
			tables[table] = rows
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return Evaluate(metrics, tables), nil
}
