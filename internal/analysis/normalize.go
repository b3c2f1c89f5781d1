package analysis

import (
	"math"
	"time"
)

// Normalize converts a runtime value into its Result variant.
func Normalize(v any) Result {
	switch x := v.(type) {
	case bool:
		if x {
			return Scalar{Value: 1}
		}
		return Scalar{Value: 0}
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Unrecognized{Text: formatFloat(x)}
		}
		return Scalar{Value: x}
	case string:
		return Unrecognized{Text: x}
	case time.Time:
		return Unrecognized{Text: x.Format("2006-01-02 15:04:05")}
	case *Series:
		return seriesMapping(x)
	case *Dict:
		return dictMapping(x)
	case []any:
		return Sequence{Items: plainList(x)}
	case Tuple:
		return Sequence{Items: plainList(x)}
	case *Frame:
		return frameTable(x)
	}
	return Unrecognized{Text: pyStr(v)}
}

func seriesMapping(s *Series) Mapping {
	m := Mapping{Entries: make([]Entry, 0, s.Len())}
	seen := make(map[string]int, s.Len())
	for i, label := range s.Index.Labels {
		key := labelString(label)
		if p, ok := seen[key]; ok {
			m.Entries[p].Value = plain(s.Values[i])
			continue
		}
		seen[key] = len(m.Entries)
		m.Entries = append(m.Entries, Entry{Key: key, Value: plain(s.Values[i])})
	}
	return m
}

func dictMapping(d *Dict) Mapping {
	m := Mapping{Entries: make([]Entry, 0, d.Len())}
	seen := make(map[string]int, d.Len())
	for i, k := range d.keys {
		key := labelString(k)
		if p, ok := seen[key]; ok {
			m.Entries[p].Value = plain(d.values[i])
			continue
		}
		seen[key] = len(m.Entries)
		m.Entries = append(m.Entries, Entry{Key: key, Value: plain(d.values[i])})
	}
	return m
}

func frameTable(f *Frame) Table {
	cols := f.data.Columns()
	t := Table{Columns: make([]string, len(cols)), Rows: make([][]any, f.Len())}
	for c, col := range cols {
		t.Columns[c] = col.Name
	}
	for r := range t.Rows {
		row := make([]any, len(cols))
		for c, col := range cols {
			row[c] = plain(col.Values[r])
		}
		t.Rows[r] = row
	}
	return t
}

func plainList(items []any) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = plain(v)
	}
	return out
}

// plain converts a nested value into the payload types a Result may hold.
// Tables nested inside mappings or lists become lists of records.
func plain(v any) any {
	switch x := v.(type) {
	case nil, bool, string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.Format("2006-01-02T15:04:05")
	case []any:
		return plainList(x)
	case Tuple:
		return plainList(x)
	case *Dict:
		return dictMapping(x)
	case *Series:
		return seriesMapping(x)
	case *Frame:
		t := frameTable(x)
		out := make([]any, t.Len())
		for i := range out {
			out[i] = t.Record(i)
		}
		return out
	}
	return pyStr(v)
}
