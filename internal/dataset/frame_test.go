package dataset

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferKind(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		values []any
		want   Kind
	}{
		{"ints", []any{1.0, 2.0, nil}, KindInt},
		{"floats", []any{1.0, 2.5}, KindFloat},
		{"text", []any{"a", nil, "b"}, KindText},
		{"mixed number and text", []any{1.0, "a"}, KindText},
		{"dates", []any{day, nil}, KindDate},
		{"bools", []any{true, false}, KindBool},
		{"all null", []any{nil, math.NaN()}, KindFloat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferKind(tt.values))
		})
	}
}

func TestNewFrame_RejectsRaggedColumns(t *testing.T) {
	_, err := NewFrame(
		NewColumn("a", []any{1.0, 2.0}),
		NewColumn("b", []any{1.0}),
	)
	assert.Error(t, err)
}

func TestFrame_CopyIsIndependent(t *testing.T) {
	original := MustFrame(
		NewColumn("Branch", []any{"A", "B"}),
		NewColumn("Sales", []any{10.0, 20.0}),
	)

	cp := original.Copy()
	col, _ := cp.Column("Sales")
	col.Values[0] = 999.0
	require.NoError(t, cp.Set(NewColumn("Extra", []any{1.0, 2.0})))

	orig, _ := original.Column("Sales")
	assert.Equal(t, 10.0, orig.Values[0])
	assert.Equal(t, []string{"Branch", "Sales"}, original.Names())
	assert.Equal(t, []string{"Branch", "Sales", "Extra"}, cp.Names())
}

func TestFrame_TakeAndHead(t *testing.T) {
	f := MustFrame(NewColumn("n", []any{1.0, 2.0, 3.0, 4.0}))

	taken := f.Take([]int{3, 0})
	col, _ := taken.Column("n")
	assert.Equal(t, []any{4.0, 1.0}, col.Values)

	assert.Equal(t, 2, f.Head(2).Len())
	assert.Equal(t, 4, f.Head(10).Len())
	assert.Equal(t, 0, f.Head(-1).Len())
}

func TestColumn_Unique(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewColumn("x", []any{"b", "a", "b", nil, "c"})
	assert.Equal(t, []any{"b", "a", "c"}, c.Unique())
	assert.Equal(t, 4, c.NonNull())

	d := NewColumn("d", []any{day, day.In(time.FixedZone("x", 3600))})
	assert.Len(t, d.Unique(), 1)
}

func TestReadCSV_InfersKinds(t *testing.T) {
	data := "Date,Name,Qty,Price,Flag\n2024-01-02,Cement,3,1.5,true\n2024-01-03,Steel,,2,false\n"
	f, err := ReadCSV(strings.NewReader(data), LoadOptions{DateColumn: "Date"})
	require.NoError(t, err)

	kinds := map[string]Kind{}
	for _, c := range f.Columns() {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, KindDate, kinds["Date"])
	assert.Equal(t, KindText, kinds["Name"])
	assert.Equal(t, KindInt, kinds["Qty"])
	assert.Equal(t, KindFloat, kinds["Price"])
	assert.Equal(t, KindBool, kinds["Flag"])

	qty, _ := f.Column("Qty")
	assert.Nil(t, qty.Values[1])
}

func TestReadCSV_BadDate(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Date\nnot-a-date\n"), LoadOptions{DateColumn: "Date"})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "2024", FormatValue(2024.0))
	assert.Equal(t, "12.5", FormatValue(12.5))
	assert.Equal(t, "None", FormatValue(nil))
	assert.Equal(t, "True", FormatValue(true))
	assert.Equal(t, "2024-03-01", FormatValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "161,554", formatThousands(161554))
}
