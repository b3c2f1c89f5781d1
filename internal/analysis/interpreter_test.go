package analysis

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-insight-workers/internal/dataset"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func salesFrame() *dataset.Frame {
	return dataset.MustFrame(
		dataset.NewColumn("Date", []any{
			day(2023, 1, 15), day(2023, 4, 10), day(2023, 7, 21),
			day(2024, 2, 2), day(2024, 5, 30), day(2024, 11, 11),
		}),
		dataset.NewColumn("Year", []any{2023.0, 2023.0, 2023.0, 2024.0, 2024.0, 2024.0}),
		dataset.NewColumn("Division_Name", []any{"Dhaka", "Dhaka", "Chittagong", "Sylhet", "Chittagong", "Dhaka"}),
		dataset.NewColumn("Product_Name", []any{"Cement", "Steel", "Cement", "Paint", "Steel", "Paint"}),
		dataset.NewColumn("Quantity", []any{10.0, 5.0, 8.0, 3.0, 12.0, nil}),
		dataset.NewColumn("Net_Amount_BDT", []any{1000.0, 2500.0, 800.0, 600.0, 3600.0, 1500.0}),
	)
}

func run(t *testing.T, code string) (Result, error) {
	t.Helper()
	prog, err := Validate(code, DefaultMaxStatements)
	require.NoError(t, err)
	return NewInterpreter().Run(context.Background(), prog, Bind(salesFrame()))
}

func mapping(pairs ...any) Mapping {
	m := Mapping{Entries: make([]Entry, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		m.Entries = append(m.Entries, Entry{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return m
}

func TestRun_ScalarArithmetic(t *testing.T) {
	res, err := run(t, "result = 2 + 2")
	require.NoError(t, err)
	assert.Equal(t, Scalar{Value: 4.0}, res)
	assert.Equal(t, KindScalar, res.Kind())
}

func TestRun_GroupedSumAsMapping(t *testing.T) {
	res, err := run(t, "result = df.groupby('Division_Name')['Net_Amount_BDT'].sum().to_dict()")
	require.NoError(t, err)
	assert.Equal(t, mapping("Chittagong", 4400.0, "Dhaka", 5000.0, "Sylhet", 600.0), res)
}

func TestRun_Results(t *testing.T) {
	tests := []struct {
		name string
		code string
		want Result
	}{
		{
			name: "series becomes mapping",
			code: "result = df.groupby('Division_Name')['Net_Amount_BDT'].sum().nlargest(2)",
			want: mapping("Dhaka", 5000.0, "Chittagong", 4400.0),
		},
		{
			name: "filtered projection",
			code: "recent = df[df['Year'] == 2024]\nresult = recent[['Division_Name', 'Net_Amount_BDT']].sort_values('Net_Amount_BDT', ascending=False)",
			want: Table{
				Columns: []string{"Division_Name", "Net_Amount_BDT"},
				Rows:    [][]any{{"Chittagong", 3600.0}, {"Dhaka", 1500.0}, {"Sylhet", 600.0}},
			},
		},
		{
			name: "combined mask",
			code: "result = df[(df['Year'] == 2023) & (df['Division_Name'] == 'Dhaka')]['Net_Amount_BDT'].sum()",
			want: Scalar{Value: 3500},
		},
		{
			name: "case insensitive contains",
			code: "result = df[df['Product_Name'].str.contains('cem', case=False)]['Net_Amount_BDT'].sum()",
			want: Scalar{Value: 1800},
		},
		{
			name: "dt accessor with value_counts",
			code: "result = df['Date'].dt.year.value_counts().to_dict()",
			want: mapping("2023", 3.0, "2024", 3.0),
		},
		{
			name: "groupby as_index false",
			code: "result = df.groupby('Division_Name', as_index=False)['Net_Amount_BDT'].sum()",
			want: Table{
				Columns: []string{"Division_Name", "Net_Amount_BDT"},
				Rows:    [][]any{{"Chittagong", 4400.0}, {"Dhaka", 5000.0}, {"Sylhet", 600.0}},
			},
		},
		{
			name: "dict agg with reset index records",
			code: "yearly = df.groupby('Year').agg({'Net_Amount_BDT': 'sum', 'Quantity': 'mean'})\nresult = yearly.reset_index().to_dict('records')",
			want: Sequence{Items: []any{
				mapping("Year", 2023.0, "Net_Amount_BDT", 4300.0, "Quantity", 23.0/3.0),
				mapping("Year", 2024.0, "Net_Amount_BDT", 5700.0, "Quantity", 7.5),
			}},
		},
		{
			name: "pct_change drops the leading gap",
			code: "result = df.groupby('Year')['Net_Amount_BDT'].sum().pct_change().round(4).tolist()",
			want: Sequence{Items: []any{nil, 0.3256}},
		},
		{
			name: "sorted unique",
			code: "result = sorted(df['Division_Name'].unique())",
			want: Sequence{Items: []any{"Chittagong", "Dhaka", "Sylhet"}},
		},
		{
			name: "bankers rounding",
			code: "result = [round(2.5), round(3.5), round(3.14159, 2)]",
			want: Sequence{Items: []any{2.0, 4.0, 3.14}},
		},
		{
			name: "len of frame",
			code: "result = len(df)",
			want: Scalar{Value: 6},
		},
		{
			name: "dict literal of aggregates",
			code: "total = df['Net_Amount_BDT'].sum()\nresult = {'total': total, 'average': total / len(df), 'top': df.groupby('Division_Name')['Net_Amount_BDT'].sum().idxmax()}",
			want: mapping("total", 10000.0, "average", 10000.0/6, "top", "Dhaka"),
		},
		{
			name: "constructed frame",
			code: "import pandas as pd\nresult = pd.DataFrame({'a': [1, 2], 'b': ['x', 'y']})",
			want: Table{Columns: []string{"a", "b"}, Rows: [][]any{{1.0, "x"}, {2.0, "y"}}},
		},
		{
			name: "nan scalar is unrecognized",
			code: "result = df[df['Year'] == 1999]['Net_Amount_BDT'].mean()",
			want: Unrecognized{Text: "nan"},
		},
		{
			name: "boolean scalar",
			code: "result = 'Dhaka' in df['Division_Name'].tolist()",
			want: Scalar{Value: 1},
		},
		{
			name: "string is unrecognized",
			code: "result = 'Top: ' + df.groupby('Product_Name')['Net_Amount_BDT'].sum().idxmax()",
			want: Unrecognized{Text: "Top: Steel"},
		},
		{
			name: "nested series inside dict",
			code: "result = {'by_year': df.groupby('Year')['Net_Amount_BDT'].sum()}",
			want: mapping("by_year", mapping("2023", 4300.0, "2024", 5700.0)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestRun_ExecutionError(t *testing.T) {
	res, err := run(t, "x = 1\nresult = df['Missing'].sum()")
	assert.Nil(t, res)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "KeyError", execErr.Kind)
	assert.Equal(t, "KeyError: 'Missing'", execErr.Error())
	assert.Equal(t, 2, execErr.Line)
	assert.Contains(t, execErr.Trace, "line 2")
	assert.Contains(t, execErr.Trace, "result = df['Missing'].sum()")
}

func TestRun_RuntimeErrorKinds(t *testing.T) {
	tests := []struct {
		code string
		kind string
	}{
		{"result = 1 / 0", "ZeroDivisionError"},
		{"result = undefined_name", "NameError"},
		{"import numpy as np\nresult = 1", "ImportError"},
		{"result = df.sort_values('Year', inplace=True)", "ValueError"},
		{"result = df + 1", "TypeError"},
		{"result = df['Division_Name'].mean()", "TypeError"},
		{"result = [1, 2][5]", "IndexError"},
		{"result = df.nonexistent", "AttributeError"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := run(t, tt.code)
			var execErr *ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, tt.kind, execErr.Kind)
			assert.NotEmpty(t, execErr.Trace)
		})
	}
}

func TestRun_MissingResult(t *testing.T) {
	for _, code := range []string{
		"total = df['Net_Amount_BDT'].sum()",
		"result = None",
	} {
		_, err := run(t, code)
		assert.ErrorIs(t, err, ErrNoResult)
	}
}

func TestRun_BoundsValueGrowth(t *testing.T) {
	doubling := func(init string) string {
		return "s = " + init + strings.Repeat("\ns = s + s", 30) + "\nresult = len(s)"
	}
	tests := []struct {
		name string
		code string
	}{
		{"repeat", "result = len('ab' * 20000000000)"},
		{"repeat just over", "result = len('a' * 1048577)"},
		{"string doubling", doubling("'ab'")},
		{"list doubling", doubling("[1]")},
		{"join", "s = 'x' * 2000\nresult = len(s.join(list(s)))"},
		{"replace", "s = 'a' * 10000\nresult = len(s.replace('a', 'b' * 1000))"},
		{"column element", "s = 'x' * 1000000\nresult = (df['Product_Name'] + s + s).str.len().sum()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.code)
			var execErr *ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, "MemoryError", execErr.Kind)
		})
	}

	res, err := run(t, "result = len('ab' * 1000)")
	require.NoError(t, err)
	assert.Equal(t, Scalar{Value: 2000}, res)
}

func TestRun_ColumnAssignmentStaysInBoundFrame(t *testing.T) {
	frame := salesFrame()
	prog, err := Validate("df['Net_Amount_BDT'] = 0\nresult = df['Net_Amount_BDT'].sum()", 0)
	require.NoError(t, err)

	res, err := NewInterpreter().Run(context.Background(), prog, Bind(frame.Copy()))
	require.NoError(t, err)
	assert.Equal(t, Scalar{Value: 0}, res)

	col, ok := frame.Column("Net_Amount_BDT")
	require.True(t, ok)
	assert.Equal(t, 1000.0, col.Values[0])
}

func TestRun_HonoursCancellation(t *testing.T) {
	prog, err := Validate("result = 1", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewInterpreter().Run(ctx, prog, Bind(salesFrame()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Scalar{Value: 1}, Normalize(true))
	assert.Equal(t, Unrecognized{Text: "inf"}, Normalize(math.Inf(1)))
	assert.Equal(t, Unrecognized{Text: "nan"}, Normalize(math.NaN()))
	assert.Equal(t, Unrecognized{Text: "2024-02-02 00:00:00"}, Normalize(day(2024, 2, 2)))
	assert.Equal(t, Sequence{Items: []any{1.0, nil, "2024-02-02T00:00:00"}},
		Normalize([]any{1.0, math.NaN(), day(2024, 2, 2)}))

	d := NewDict()
	d.Set(2023.0, wrapFrame(dataset.MustFrame(dataset.NewColumn("a", []any{1.0}))))
	assert.Equal(t, mapping("2023", []any{mapping("a", 1.0)}), Normalize(d))
}
