package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"sales-insight-workers/internal/common/config"
)

// Options names the columns the accessor gives special treatment.
type Options struct {
	DateColumn      string
	CalendarColumns []string
	PreviewLimit    int

	RevenueColumn  string
	ProfitColumn   string
	MarginColumn   string
	DivisionColumn string
	BranchColumn   string
}

// OptionsFromConfig maps the dataset configuration section.
func OptionsFromConfig(cfg config.DatasetConfig) Options {
	return Options{
		DateColumn:      cfg.DateColumn,
		CalendarColumns: cfg.CalendarColumns,
		PreviewLimit:    cfg.PreviewLimit,
		RevenueColumn:   cfg.Summary.RevenueColumn,
		ProfitColumn:    cfg.Summary.ProfitColumn,
		MarginColumn:    cfg.Summary.MarginColumn,
		DivisionColumn:  cfg.Summary.DivisionColumn,
		BranchColumn:    cfg.Summary.BranchColumn,
	}
}

// Load reads the dataset from the configured source. db is only used for
// the postgres source.
func Load(ctx context.Context, cfg config.DatasetConfig, db *sql.DB) (*Frame, error) {
	opts := LoadOptions{DateColumn: cfg.DateColumn}
	switch cfg.Source {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres dataset source requires a database connection")
		}
		return LoadPostgres(ctx, db, cfg.Table, opts)
	case "", "csv":
		return LoadCSV(cfg.Path, opts)
	default:
		return nil, fmt.Errorf("unknown dataset source %q", cfg.Source)
	}
}

// Accessor owns the loaded table. The table is never modified after
// construction, so an Accessor is safe for concurrent use.
type Accessor struct {
	frame *Frame
	opts  Options
}

// NewAccessor takes ownership of frame.
func NewAccessor(frame *Frame, opts Options) *Accessor {
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = 1000
	}
	return &Accessor{frame: frame, opts: opts}
}

// Frame returns an independent copy of the table.
func (a *Accessor) Frame() *Frame {
	return a.frame.Copy()
}

func (a *Accessor) Len() int {
	return a.frame.Len()
}

// HasColumn reports whether name is a column of the table.
func (a *Accessor) HasColumn(name string) bool {
	_, ok := a.frame.Column(name)
	return ok
}

// DateRange is the first and last value of the date column.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Summary is the headline description of the dataset.
type Summary struct {
	TotalTransactions int        `json:"total_transactions"`
	DateRange         *DateRange `json:"date_range,omitempty"`
	TotalRevenue      float64    `json:"total_revenue"`
	TotalProfit       float64    `json:"total_profit"`
	AverageMargin     float64    `json:"average_margin"`
	Divisions         []string   `json:"divisions"`
	Branches          []string   `json:"branches"`
}

func (a *Accessor) Summary() Summary {
	s := Summary{
		TotalTransactions: a.frame.Len(),
		Divisions:         a.distinctText(a.opts.DivisionColumn),
		Branches:          a.distinctText(a.opts.BranchColumn),
	}
	if lo, hi, ok := a.dateSpan(); ok {
		s.DateRange = &DateRange{
			Start: lo.Format("2006-01-02T15:04:05"),
			End:   hi.Format("2006-01-02T15:04:05"),
		}
	}
	s.TotalRevenue, _ = a.numericStats(a.opts.RevenueColumn)
	s.TotalProfit, _ = a.numericStats(a.opts.ProfitColumn)
	if sum, n := a.numericStats(a.opts.MarginColumn); n > 0 {
		s.AverageMargin = sum / float64(n)
	}
	return s
}

func (a *Accessor) numericStats(name string) (sum float64, n int) {
	col, ok := a.frame.Column(name)
	if !ok {
		return 0, 0
	}
	for _, v := range col.Values {
		if f, ok := v.(float64); ok && !IsNull(f) {
			sum += f
			n++
		}
	}
	return sum, n
}

func (a *Accessor) distinctText(name string) []string {
	col, ok := a.frame.Column(name)
	if !ok {
		return []string{}
	}
	unique := col.Unique()
	out := make([]string, 0, len(unique))
	for _, v := range unique {
		out = append(out, FormatValue(v))
	}
	return out
}

func (a *Accessor) dateSpan() (time.Time, time.Time, bool) {
	col, ok := a.frame.Column(a.opts.DateColumn)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	var lo, hi time.Time
	found := false
	for _, v := range col.Values {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		if !found || t.Before(lo) {
			lo = t
		}
		if !found || t.After(hi) {
			hi = t
		}
		found = true
	}
	return lo, hi, found
}

// ColumnInfo describes one column.
type ColumnInfo struct {
	Name    string `json:"name"`
	Dtype   string `json:"dtype"`
	NonNull int    `json:"non_null"`
	Unique  int    `json:"unique"`
	Samples []any  `json:"samples"`
}

// Columns describes every column, with up to five sample values each.
func (a *Accessor) Columns() []ColumnInfo {
	cols := a.frame.Columns()
	out := make([]ColumnInfo, len(cols))
	for i, c := range cols {
		unique := c.Unique()
		samples := unique
		if len(samples) > 5 {
			samples = samples[:5]
		}
		out[i] = ColumnInfo{
			Name:    c.Name,
			Dtype:   c.Kind.String(),
			NonNull: c.NonNull(),
			Unique:  len(unique),
			Samples: samples,
		}
	}
	return out
}

// UniqueValues lists distinct values of column in order of appearance. A
// limit of zero or less returns all of them.
func (a *Accessor) UniqueValues(column string, limit int) ([]any, error) {
	col, ok := a.frame.Column(column)
	if !ok {
		return nil, fmt.Errorf("column %q not found", column)
	}
	unique := col.Unique()
	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique, nil
}

// Preview returns the first limit rows, capped by the configured preview
// limit.
func (a *Accessor) Preview(limit int) *Frame {
	if limit <= 0 || limit > a.opts.PreviewLimit {
		limit = a.opts.PreviewLimit
	}
	return a.frame.Head(limit)
}

// Describe renders the schema description embedded in analysis prompts.
func (a *Accessor) Describe() string {
	var sb strings.Builder
	sb.WriteString("\nDataset Information:\n")
	fmt.Fprintf(&sb, "- Total Rows: %s\n", formatThousands(a.frame.Len()))

	if lo, hi, ok := a.dateSpan(); ok {
		fmt.Fprintf(&sb, "- Date Range: %s to %s\n", lo.Format("2006-01-02 15:04:05"), hi.Format("2006-01-02 15:04:05"))
	}

	calendar := make(map[string]bool, len(a.opts.CalendarColumns))
	for _, name := range a.opts.CalendarColumns {
		calendar[name] = true
	}

	sb.WriteString("\nAvailable Columns:\n")
	for _, c := range a.frame.Columns() {
		unique := c.Unique()
		switch {
		case c.Kind == KindText:
			samples := unique
			if len(samples) > 5 {
				samples = samples[:5]
			}
			fmt.Fprintf(&sb, "  - %s (%s): %d unique values, samples: %s\n", c.Name, c.Kind, len(unique), formatList(samples))
		case calendar[c.Name]:
			sorted := append([]any(nil), unique...)
			sort.Slice(sorted, func(i, j int) bool { return lessValue(sorted[i], sorted[j]) })
			fmt.Fprintf(&sb, "  - %s (%s): values: %s\n", c.Name, c.Kind, formatList(sorted))
		case c.Kind == KindDate:
			fmt.Fprintf(&sb, "  - %s (%s): date column\n", c.Name, c.Kind)
		default:
			fmt.Fprintf(&sb, "  - %s (%s): numeric column\n", c.Name, c.Kind)
		}
	}
	return sb.String()
}

func lessValue(a, b any) bool {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Before(y)
		}
	}
	return FormatValue(a) < FormatValue(b)
}
