// internal/workers/analytics/synthesize-answer/format.go
package synthesizeanswer

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-insight-workers/internal/analysis"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/models"
)

// Formatter renders an analysis outcome as the data block of the synthesis
// prompt.
type Formatter struct {
	Currency string
	MaxRows  int

	printer *message.Printer
}

func NewFormatter(currency string, maxRows int) *Formatter {
	if maxRows <= 0 {
		maxRows = 10
	}
	return &Formatter{
		Currency: currency,
		MaxRows:  maxRows,
		printer:  message.NewPrinter(language.English),
	}
}

func (f *Formatter) Format(outcome *models.AnalysisOutcome) string {
	if outcome == nil {
		return "Data Retrieval Failed: Unknown error"
	}
	if !outcome.Success {
		msg := outcome.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return "Data Retrieval Failed: " + msg
	}

	switch r := outcome.Result().(type) {
	case analysis.Scalar:
		return "Result: " + f.money(r.Value)
	case analysis.Mapping:
		if r.IsFlat() {
			return f.flatMapping(r)
		}
		return f.nestedMapping(r)
	case analysis.Table:
		return f.table(r)
	case analysis.Sequence:
		return "Data Retrieved: " + repr(r.Items)
	case analysis.Unrecognized:
		return "Data: " + r.Text
	}
	return "Data: No data"
}

func (f *Formatter) money(v float64) string {
	return f.Currency + f.printer.Sprintf("%.0f", math.RoundToEven(v))
}

// number renders large amounts as currency and everything else with two
// decimals.
func (f *Formatter) number(v float64) string {
	if v > 1000 {
		return f.money(v)
	}
	return fmt.Sprintf("%.2f", v)
}

func (f *Formatter) value(v any) string {
	if n, ok := v.(float64); ok {
		return f.number(n)
	}
	return repr(v)
}

func (f *Formatter) flatMapping(m analysis.Mapping) string {
	lines := make([]string, 0, m.Len())
	for _, e := range m.Entries {
		lines = append(lines, fmt.Sprintf("  - %s: %s", e.Key, f.value(e.Value)))
	}
	return "Data Retrieved:\n" + strings.Join(lines, "\n")
}

// nestedMapping lays out comparative results: one section per nested
// mapping, bullets for plain values.
func (f *Formatter) nestedMapping(m analysis.Mapping) string {
	lines := []string{"STRATEGIC ANALYSIS DATA:", strings.Repeat("=", 60)}
	for _, e := range m.Entries {
		sub, ok := e.Value.(analysis.Mapping)
		if !ok {
			lines = append(lines, fmt.Sprintf("• %s: %s", e.Key, f.value(e.Value)))
			continue
		}
		lines = append(lines, fmt.Sprintf("\n📊 %s:", strings.ToUpper(strings.ReplaceAll(e.Key, "_", " "))))
		for _, se := range sub.Entries {
			inner, ok := se.Value.(analysis.Mapping)
			if !ok {
				lines = append(lines, fmt.Sprintf("   • %s: %s", se.Key, f.value(se.Value)))
				continue
			}
			lines = append(lines, fmt.Sprintf("   • %s:", se.Key))
			for _, ie := range inner.Entries {
				lines = append(lines, fmt.Sprintf("     - %s: %s", ie.Key, f.value(ie.Value)))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) table(t analysis.Table) string {
	if t.Len() == 0 {
		return "No data found matching the criteria"
	}
	lines := []string{"Data Retrieved:"}
	shown := t.Len()
	if shown > f.MaxRows {
		shown = f.MaxRows
	}
	for i := 0; i < shown; i++ {
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			cells[j] = fmt.Sprintf("%s: %s", col, cellText(t.Rows[i][j]))
		}
		lines = append(lines, fmt.Sprintf("  [%d] %s", i+1, strings.Join(cells, ", ")))
	}
	if rest := t.Len() - shown; rest > 0 {
		lines = append(lines, fmt.Sprintf("  ... and %d more rows (%d total)", rest, t.Len()))
	}
	return strings.Join(lines, "\n")
}

func cellText(v any) string {
	switch v.(type) {
	case []any, analysis.Mapping:
		return repr(v)
	}
	return dataset.FormatValue(v)
}

// repr renders nested values with quoted strings, as lists and dicts are
// usually shown to the model.
func repr(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = quoted(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case analysis.Mapping:
		parts := make([]string, len(x.Entries))
		for i, e := range x.Entries {
			parts[i] = fmt.Sprintf("'%s': %s", e.Key, quoted(e.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return dataset.FormatValue(v)
}

func quoted(v any) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return repr(v)
}
