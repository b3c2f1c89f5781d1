package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadOptions control type inference while loading.
type LoadOptions struct {
	// DateColumn is always parsed as a date, failing the load if it cannot be.
	DateColumn string
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LoadCSV reads a CSV file with a header row.
func LoadCSV(path string, opts LoadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, opts)
}

// ReadCSV reads CSV data with a header row and infers a kind per column.
func ReadCSV(r io.Reader, opts LoadOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		for i := range header {
			raw[i] = append(raw[i], strings.TrimSpace(record[i]))
		}
	}

	cols := make([]*Column, len(header))
	for i, name := range header {
		col, err := parseColumn(name, raw[i], name == opts.DateColumn)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}

	return NewFrame(cols...)
}

func parseColumn(name string, cells []string, forceDate bool) (*Column, error) {
	if forceDate {
		values := make([]any, len(cells))
		for i, s := range cells {
			if s == "" {
				continue
			}
			t, ok := parseDate(s)
			if !ok {
				return nil, fmt.Errorf("column %q row %d: cannot parse date %q", name, i+1, s)
			}
			values[i] = t
		}
		return &Column{Name: name, Kind: KindDate, Values: values}, nil
	}

	for _, parse := range []func(string) (any, bool){parseNumber, parseBool, parseDateCell} {
		if values, ok := parseAll(cells, parse); ok {
			return NewColumn(name, values), nil
		}
	}

	values := make([]any, len(cells))
	for i, s := range cells {
		if s != "" {
			values[i] = s
		}
	}
	return &Column{Name: name, Kind: KindText, Values: values}, nil
}

func parseAll(cells []string, parse func(string) (any, bool)) ([]any, bool) {
	values := make([]any, len(cells))
	seen := false
	for i, s := range cells {
		if s == "" {
			continue
		}
		v, ok := parse(s)
		if !ok {
			return nil, false
		}
		values[i] = v
		seen = true
	}
	return values, seen
}

func parseNumber(s string) (any, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

func parseBool(s string) (any, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return nil, false
}

func parseDateCell(s string) (any, bool) {
	t, ok := parseDate(s)
	if !ok {
		return nil, false
	}
	return t, true
}
