package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"sales-insight-workers/internal/common/validation"
)

// Kind is the wire tag of a Result.
type Kind string

const (
	KindScalar       Kind = "scalar"
	KindMapping      Kind = "dict"
	KindSequence     Kind = "list"
	KindTable        Kind = "dataframe"
	KindUnrecognized Kind = "unknown"
)

// Result is the normalized value of a program. The variants are Scalar,
// Mapping, Sequence, Table and Unrecognized; nothing else implements it.
//
// Nested payload values are nil, bool, float64, string, []any or Mapping.
type Result interface {
	Kind() Kind
	isResult()
}

// Scalar is a single finite number.
type Scalar struct {
	Value float64
}

// Entry is one key of a Mapping.
type Entry struct {
	Key   string
	Value any
}

// Mapping is an ordered string-keyed map.
type Mapping struct {
	Entries []Entry
}

// Sequence is an ordered list.
type Sequence struct {
	Items []any
}

// Table is a row-major table. Every row has one cell per column.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Unrecognized carries the printed form of a value with no structured shape.
type Unrecognized struct {
	Text string
}

func (Scalar) Kind() Kind       { return KindScalar }
func (Mapping) Kind() Kind      { return KindMapping }
func (Sequence) Kind() Kind     { return KindSequence }
func (Table) Kind() Kind        { return KindTable }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (Scalar) isResult()       {}
func (Mapping) isResult()      {}
func (Sequence) isResult()     {}
func (Table) isResult()        {}
func (Unrecognized) isResult() {}

func (m Mapping) Len() int { return len(m.Entries) }

// Get returns the value stored under key.
func (m Mapping) Get(key string) (any, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (m Mapping) Keys() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Key
	}
	return out
}

// IsFlat reports whether no value is itself a Mapping.
func (m Mapping) IsFlat() bool {
	for _, e := range m.Entries {
		if _, ok := e.Value.(Mapping); ok {
			return false
		}
	}
	return true
}

func (t Table) Len() int { return len(t.Rows) }

// Record returns row i keyed by column name.
func (t Table) Record(i int) Mapping {
	entries := make([]Entry, len(t.Columns))
	for c, name := range t.Columns {
		entries[c] = Entry{Key: name, Value: t.Rows[i][c]}
	}
	return Mapping{Entries: entries}
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return nil, fmt.Errorf("scalar result %v is not finite", s.Value)
	}
	return json.Marshal(struct {
		Type  Kind    `json:"type"`
		Value float64 `json:"value"`
	}{KindScalar, s.Value})
}

func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"dict","data":`)
	if err := encodeValue(&buf, m); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"list","data":`)
	if err := encodeValue(&buf, s.Items); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"dataframe","data":[`)
	for i := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(&buf, t.Record(i)); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(&buf, `],"shape":[%d,%d],"columns":`, len(t.Rows), len(t.Columns))
	cols, err := json.Marshal(t.columns())
	if err != nil {
		return nil, err
	}
	buf.Write(cols)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t Table) columns() []string {
	if t.Columns == nil {
		return []string{}
	}
	return t.Columns
}

func (u Unrecognized) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Kind   `json:"type"`
		Data string `json:"data"`
	}{KindUnrecognized, u.Text})
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case Mapping:
		buf.WriteByte('{')
		for i, e := range x.Entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeValue(buf, e.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			return nil
		}
		b, err := json.Marshal(x)
		if err != nil {
			return err
		}
		buf.Write(b)
	case bool, string:
		b, err := json.Marshal(x)
		if err != nil {
			return err
		}
		buf.Write(b)
	default:
		return fmt.Errorf("cannot encode %T in a result", v)
	}
	return nil
}

// ErrMalformedResult wraps every decoding rejection.
var ErrMalformedResult = errors.New("malformed result")

var resultSchema = validation.MustValidator(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"type"},
	"oneOf": []interface{}{
		variantSchema("scalar", map[string]interface{}{"value": map[string]interface{}{"type": "number"}}, "value"),
		variantSchema("dict", map[string]interface{}{"data": map[string]interface{}{"type": "object"}}, "data"),
		variantSchema("list", map[string]interface{}{"data": map[string]interface{}{"type": "array"}}, "data"),
		variantSchema("dataframe", map[string]interface{}{
			"data": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object"},
			},
			"shape": map[string]interface{}{
				"type":     "array",
				"items":    map[string]interface{}{"type": "integer", "minimum": 0},
				"minItems": 2,
				"maxItems": 2,
			},
			"columns": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		}, "data", "shape", "columns"),
		variantSchema("unknown", map[string]interface{}{"data": map[string]interface{}{"type": "string"}}, "data"),
	},
})

func variantSchema(tag string, props map[string]interface{}, required ...string) map[string]interface{} {
	props["type"] = map[string]interface{}{"enum": []interface{}{tag}}
	req := []interface{}{"type"}
	for _, r := range required {
		req = append(req, r)
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

// DecodeResult parses a tagged result, rejecting anything that does not
// match exactly one variant.
func DecodeResult(raw []byte) (Result, error) {
	check, err := resultSchema.ValidateJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if !check.Valid {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResult, check.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	doc, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	obj := doc.(Mapping)
	tag, _ := obj.Get("type")

	switch Kind(tag.(string)) {
	case KindScalar:
		v, _ := obj.Get("value")
		return Scalar{Value: v.(float64)}, nil
	case KindMapping:
		v, _ := obj.Get("data")
		return v.(Mapping), nil
	case KindSequence:
		v, _ := obj.Get("data")
		return Sequence{Items: v.([]any)}, nil
	case KindUnrecognized:
		v, _ := obj.Get("data")
		return Unrecognized{Text: v.(string)}, nil
	}
	return decodeTable(obj)
}

func decodeTable(obj Mapping) (Result, error) {
	rawCols, _ := obj.Get("columns")
	rawShape, _ := obj.Get("shape")
	rawRows, _ := obj.Get("data")

	colItems := rawCols.([]any)
	t := Table{Columns: make([]string, len(colItems))}
	for i, c := range colItems {
		t.Columns[i] = c.(string)
	}
	shape := rawShape.([]any)
	rows := rawRows.([]any)
	if int(shape[0].(float64)) != len(rows) || int(shape[1].(float64)) != len(t.Columns) {
		return nil, fmt.Errorf("%w: shape %v does not match %d rows of %d columns", ErrMalformedResult, shape, len(rows), len(t.Columns))
	}
	for i, r := range rows {
		rec := r.(Mapping)
		if rec.Len() != len(t.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrMalformedResult, i, rec.Len(), len(t.Columns))
		}
		row := make([]any, len(t.Columns))
		for c, name := range t.Columns {
			v, ok := rec.Get(name)
			if !ok {
				return nil, fmt.Errorf("%w: row %d is missing column %q", ErrMalformedResult, i, name)
			}
			row[c] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// decodeValue reads one JSON value keeping object key order.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := Mapping{Entries: []Entry{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				m.Entries = append(m.Entries, Entry{Key: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			items := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return t.Float64()
	case string, bool, nil:
		return t, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Envelope carries a Result through encoding/json, for example as a field
// of a job's output variables.
type Envelope struct {
	Result Result
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Result == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Result)
}

func (e *Envelope) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		e.Result = nil
		return nil
	}
	r, err := DecodeResult(raw)
	if err != nil {
		return err
	}
	e.Result = r
	return nil
}
