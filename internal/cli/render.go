package cli

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tourdesk/internal/metrics"
	"github.com/roach88/tourdesk/internal/record"
)

// writeRecords prints records as an aligned table. The id column comes
// first, the remaining fields follow in name order; absent fields print
// as "-".
func writeRecords(w io.Writer, records []record.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "(no records)")
		return err
	}

	cols := columns(records)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, r := range records {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = "-"
			if v, ok := r[c]; ok {
				cells[i] = record.Format(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%s)\n", plural(len(records), "record"))
	return err
}

// writeRecord prints a single record as field/value lines.
func writeRecord(w io.Writer, r record.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range columns([]record.Record{r}) {
		fmt.Fprintf(tw, "%s\t%s\n", f, record.Format(r[f]))
	}
	return tw.Flush()
}

func columns(records []record.Record) []string {
	seen := map[string]bool{record.IDField: true}
	var rest []string
	for _, r := range records {
		for f := range r {
			if !seen[f] {
				seen[f] = true
				rest = append(rest, f)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{record.IDField}, rest...)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// numberPrinter formats figures for a locale, e.g. 1,850 for "en" and
// 1.850 for "pt-BR".
type numberPrinter struct {
	p *message.Printer
}

func newNumberPrinter(locale string) (numberPrinter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return numberPrinter{}, fmt.Errorf("invalid --locale %q: %w", locale, err)
	}
	return numberPrinter{p: message.NewPrinter(tag)}, nil
}

func (np numberPrinter) number(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return np.p.Sprintf("%d", int64(v))
	}
	return np.p.Sprintf("%.2f", v)
}

func (np numberPrinter) result(r metrics.Result) string {
	if !r.Defined {
		return "n/a"
	}
	if r.Kind != metrics.CountBy {
		return np.number(r.Value)
	}
	if len(r.Groups) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(r.Groups))
	for _, k := range r.GroupKeys() {
		parts = append(parts, fmt.Sprintf("%s %s", k, np.number(float64(r.Groups[k]))))
	}
	return strings.Join(parts, ", ")
}

// writeResults prints metric results as name/value lines.
func writeResults(w io.Writer, np numberPrinter, results []metrics.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, np.result(r))
	}
	return tw.Flush()
}
