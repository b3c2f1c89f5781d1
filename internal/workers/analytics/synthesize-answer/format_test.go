package synthesizeanswer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"sales-insight-workers/internal/analysis"
	"sales-insight-workers/internal/models"
)

func entries(pairs ...any) analysis.Mapping {
	m := analysis.Mapping{}
	for i := 0; i < len(pairs); i += 2 {
		m.Entries = append(m.Entries, analysis.Entry{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return m
}

func ok(r analysis.Result) *models.AnalysisOutcome {
	return &models.AnalysisOutcome{Success: true, Data: &analysis.Envelope{Result: r}}
}

func TestFormatter_Format(t *testing.T) {
	tests := []struct {
		name    string
		outcome *models.AnalysisOutcome
		want    string
	}{
		{
			name:    "scalar",
			outcome: ok(analysis.Scalar{Value: 1234567.4}),
			want:    "Result: ৳1,234,567",
		},
		{
			name:    "small scalar still shown as currency",
			outcome: ok(analysis.Scalar{Value: 42}),
			want:    "Result: ৳42",
		},
		{
			name:    "flat mapping",
			outcome: ok(entries("Cement", 2500.0, "FMCG", 400.5, "note", "estimated")),
			want:    "Data Retrieved:\n  - Cement: ৳2,500\n  - FMCG: 400.50\n  - note: estimated",
		},
		{
			name: "nested mapping",
			outcome: ok(entries(
				"khulna_exists", false,
				"division_profitability", entries("Cement", entries("Net_Amount_BDT", 2500.0, "Margin_Percent", 12.5)),
				"market_saturation", entries("Cement", 3.0, "label", "tier-2"),
				"total", 5000.0,
			)),
			want: strings.Join([]string{
				"STRATEGIC ANALYSIS DATA:",
				strings.Repeat("=", 60),
				"• khulna_exists: False",
				"\n📊 DIVISION PROFITABILITY:",
				"   • Cement:",
				"     - Net_Amount_BDT: ৳2,500",
				"     - Margin_Percent: 12.50",
				"\n📊 MARKET SATURATION:",
				"   • Cement: 3.00",
				"   • label: tier-2",
				"• total: ৳5,000",
			}, "\n"),
		},
		{
			name:    "sequence",
			outcome: ok(analysis.Sequence{Items: []any{"Cement", 2.0, entries("k", "v")}}),
			want:    "Data Retrieved: ['Cement', 2, {'k': 'v'}]",
		},
		{
			name:    "empty table",
			outcome: ok(analysis.Table{Columns: []string{"Year"}}),
			want:    "No data found matching the criteria",
		},
		{
			name:    "short table",
			outcome: ok(analysis.Table{Columns: []string{"Year", "Net_Amount_BDT"}, Rows: [][]any{{2023.0, 1000.5}, {2024.0, nil}}}),
			want:    "Data Retrieved:\n  [1] Year: 2023, Net_Amount_BDT: 1000.5\n  [2] Year: 2024, Net_Amount_BDT: None",
		},
		{
			name:    "unrecognized",
			outcome: ok(analysis.Unrecognized{Text: "Cement"}),
			want:    "Data: Cement",
		},
		{
			name:    "failure",
			outcome: &models.AnalysisOutcome{Error: "KeyError: 'Profit_BDT'"},
			want:    "Data Retrieval Failed: KeyError: 'Profit_BDT'",
		},
		{
			name:    "missing outcome",
			outcome: nil,
			want:    "Data Retrieval Failed: Unknown error",
		},
	}

	f := NewFormatter("৳", 10)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Format(tt.outcome))
		})
	}
}

func TestFormatter_TableShowsFirstRowsAndRemainder(t *testing.T) {
	table := analysis.Table{Columns: []string{"Month", "Net_Amount_BDT"}}
	for i := 1; i <= 23; i++ {
		table.Rows = append(table.Rows, []any{float64(i), float64(i * 100)})
	}

	lines := strings.Split(NewFormatter("৳", 10).Format(ok(table)), "\n")

	assert.Len(t, lines, 12)
	assert.Equal(t, "Data Retrieved:", lines[0])
	assert.Equal(t, "  [1] Month: 1, Net_Amount_BDT: 100", lines[1])
	assert.Equal(t, "  [10] Month: 10, Net_Amount_BDT: 1000", lines[10])
	assert.Equal(t, "  ... and 13 more rows (23 total)", lines[11])
}

func TestFormatter_ExactlyMaxRowsHasNoRemainder(t *testing.T) {
	table := analysis.Table{Columns: []string{"Month"}}
	for i := 1; i <= 10; i++ {
		table.Rows = append(table.Rows, []any{float64(i)})
	}
	out := NewFormatter("৳", 10).Format(ok(table))
	assert.NotContains(t, out, "more rows")
	assert.True(t, strings.HasSuffix(out, fmt.Sprintf("  [10] Month: %d", 10)))
}
