// Package dataframe provides a lightweight tabular structure for delimited
// data, in the same shape the dashkit adapters and services exchange:
// ordered header columns plus rows of loosely-typed cells.
//
// A Frame is loaded from a file path, a byte buffer, or any io.Reader. One
// column can be designated as the date column and is coerced to time.Time;
// everything else stays a string. Frames are cheap, transient values:
// services rebuild them from raw bytes on every request rather than caching
// parsed state.
package dataframe

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ErrEmptyInput reports that the source contained no rows at all, not even a
// header. Load recovers from it by returning an empty Frame; it is exported
// so lower-level callers can test for it with errors.Is.
var ErrEmptyInput = errors.New("dataframe: input contains no data")

// InvalidInputError reports a source type Load does not know how to read.
type InvalidInputError struct {
	Got any
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("dataframe: cannot load from %T (want file path, []byte, or io.Reader)", e.Got)
}

// Row is a single record keyed by column name.
type Row map[string]any

// Frame holds tabular data with header order preserved.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New returns an empty Frame with no columns and no rows.
func New() *Frame {
	return &Frame{}
}

type loadOptions struct {
	dateColumn string
	layouts    []string
}

// Option configures Load.
type Option func(*loadOptions)

// dateLayouts are tried in order when coercing the date column.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// WithDateColumn designates a column to be parsed into time.Time values.
// An unparseable, non-empty cell in that column makes Load fail.
func WithDateColumn(name string) Option {
	return func(o *loadOptions) {
		o.dateColumn = name
	}
}

// Load reads delimited text with a header row and returns the parsed Frame.
//
// src may be a file path (string), an in-memory buffer ([]byte), or an
// io.Reader; any other type returns an *InvalidInputError. A source with no
// content at all yields an empty Frame and a logged warning, never an error:
// empty input is always non-fatal.
func Load(src any, opts ...Option) (*Frame, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var r io.Reader
	switch v := src.(type) {
	case string:
		f, err := os.Open(v)
		if err != nil {
			return nil, fmt.Errorf("dataframe: open %s: %w", v, err)
		}
		defer f.Close()
		r = f
	case []byte:
		r = bytes.NewReader(v)
	case io.Reader:
		r = v
	default:
		return nil, &InvalidInputError{Got: src}
	}

	frame, err := parse(r, &o)
	if err != nil {
		if errors.Is(err, ErrEmptyInput) {
			slog.Warn("empty input, returning an empty frame")
			return New(), nil
		}
		return nil, err
	}
	return frame, nil
}

func parse(r io.Reader, o *loadOptions) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("dataframe: read header: %w", err)
	}

	frame := &Frame{Columns: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataframe: read row %d: %w", len(frame.Rows)+1, err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(record) {
				continue
			}
			cell := record[i]
			if col == o.dateColumn && cell != "" {
				ts, err := parseDate(cell)
				if err != nil {
					return nil, fmt.Errorf("dataframe: row %d column %q: %w", len(frame.Rows)+1, col, err)
				}
				row[col] = ts
				continue
			}
			row[col] = cell
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

func parseDate(cell string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, cell); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", cell)
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Distinct returns the set of distinct string values of a column, in first
// encounter order. A column the frame does not have yields an empty slice,
// never an error.
func (f *Frame) Distinct(column string) []string {
	if !f.HasColumn(column) {
		return []string{}
	}
	seen := make(map[string]struct{})
	values := []string{}
	for _, row := range f.Rows {
		s, ok := row[column].(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		values = append(values, s)
	}
	return values
}

// Filter returns a new Frame holding exactly the rows whose column equals
// value (exact string match). The receiver is never modified. No matching
// rows yields an empty Frame, not an error.
func (f *Frame) Filter(column, value string) *Frame {
	out := &Frame{Columns: f.Columns}
	for _, row := range f.Rows {
		if s, ok := row[column].(string); ok && s == value {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Floats returns the column as float64 values, one per row, for charting.
// Cells that are not numeric make it fail; an absent column is an error.
func (f *Frame) Floats(column string) ([]float64, error) {
	if !f.HasColumn(column) {
		return nil, fmt.Errorf("dataframe: no column %q", column)
	}
	out := make([]float64, 0, len(f.Rows))
	for i, row := range f.Rows {
		switch v := row[column].(type) {
		case float64:
			out = append(out, v)
		case string:
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("dataframe: row %d column %q: %w", i, column, err)
			}
			out = append(out, x)
		default:
			return nil, fmt.Errorf("dataframe: row %d column %q holds %T, not a number", i, column, v)
		}
	}
	return out, nil
}

// Times returns the column as time.Time values, one per row. Intended for
// the designated date column.
func (f *Frame) Times(column string) ([]time.Time, error) {
	if !f.HasColumn(column) {
		return nil, fmt.Errorf("dataframe: no column %q", column)
	}
	out := make([]time.Time, 0, len(f.Rows))
	for i, row := range f.Rows {
		ts, ok := row[column].(time.Time)
		if !ok {
			return nil, fmt.Errorf("dataframe: row %d column %q holds %T, not a time", i, column, row[column])
		}
		out = append(out, ts)
	}
	return out, nil
}
