package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// LoadPostgres reads every row of table into a frame. Column kinds come from
// the driver's reported database types.
func LoadPostgres(ctx context.Context, db *sql.DB, table string, opts LoadOptions) (*Frame, error) {
	query := fmt.Sprintf("SELECT * FROM %s", quoteTable(table))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dataset table: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	cols := make([]*Column, len(types))
	for i, ct := range types {
		kind := kindForDatabaseType(ct.DatabaseTypeName())
		if ct.Name() == opts.DateColumn {
			kind = KindDate
		}
		cols[i] = &Column{Name: ct.Name(), Kind: kind}
	}

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		for i, c := range cols {
			v, err := convertCell(dest[i], c.Kind)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", c.Name, err)
			}
			c.Values = append(c.Values, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset rows: %w", err)
	}

	return NewFrame(cols...)
}

// quoteTable quotes an optionally schema-qualified table name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func kindForDatabaseType(name string) Kind {
	switch strings.ToUpper(name) {
	case "INT2", "INT4", "INT8", "SMALLINT", "INTEGER", "BIGINT":
		return KindInt
	case "NUMERIC", "DECIMAL", "FLOAT4", "FLOAT8", "REAL", "DOUBLE PRECISION", "MONEY":
		return KindFloat
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ":
		return KindDate
	case "BOOL", "BOOLEAN":
		return KindBool
	default:
		return KindText
	}
}

func convertCell(v any, kind Kind) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindInt, KindFloat:
		switch x := v.(type) {
		case int64:
			return float64(x), nil
		case float64:
			return x, nil
		case []byte:
			return strconv.ParseFloat(string(x), 64)
		case string:
			return strconv.ParseFloat(x, 64)
		}
	case KindDate:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case []byte:
			if t, ok := parseDate(string(x)); ok {
				return t, nil
			}
		case string:
			if t, ok := parseDate(x); ok {
				return t, nil
			}
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		switch x := v.(type) {
		case []byte:
			return string(x), nil
		case string:
			return x, nil
		default:
			return fmt.Sprint(x), nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s column", v, kind)
}
