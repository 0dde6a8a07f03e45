// Package fixedwidth decodes text files whose fields sit at fixed byte
// offsets, such as the GHCN-Daily station directory and inventory.
//
// Column spans are zero-based and half-open. Record layouts published as
// 1-based inclusive ranges are converted once with Published.
package fixedwidth

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Column struct {
	Name  string
	Start int // inclusive
	End   int // exclusive
}

// Published converts a documented 1-based inclusive range such as
// "LATITUDE 13-20" into the internal span [12, 20).
func Published(name string, first, last int) Column {
	return Column{Name: name, Start: first - 1, End: last}
}

type Layout struct {
	cols  []Column
	index map[string]int
}

// NewLayout validates that spans are non-empty, ordered, non-overlapping
// and uniquely named.
func NewLayout(cols ...Column) (*Layout, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("fixedwidth: empty layout")
	}
	l := &Layout{cols: cols, index: make(map[string]int, len(cols))}
	prevEnd := 0
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("fixedwidth: column %d has no name", i)
		}
		if _, dup := l.index[c.Name]; dup {
			return nil, fmt.Errorf("fixedwidth: duplicate column %q", c.Name)
		}
		if c.Start < 0 || c.End <= c.Start {
			return nil, fmt.Errorf("fixedwidth: column %q has invalid span [%d, %d)", c.Name, c.Start, c.End)
		}
		if c.Start < prevEnd {
			return nil, fmt.Errorf("fixedwidth: column %q overlaps its predecessor", c.Name)
		}
		prevEnd = c.End
		l.index[c.Name] = i
	}
	return l, nil
}

func MustLayout(cols ...Column) *Layout {
	l, err := NewLayout(cols...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) Columns() []Column { return l.cols }

// DecodeError reports a field that is present but not parseable as the
// requested type.
type DecodeError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: field %s: invalid value %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Row is one decoded line. A field is null when the line ends before the
// field starts or the field is blank.
type Row struct {
	Line   int
	layout *Layout
	values []sql.NullString
}

// Decode splits every non-blank line of r by the layout. Lines shorter than
// the layout yield null trailing fields rather than an error.
func (l *Layout) Decode(r io.Reader) ([]Row, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows []Row
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, l.decodeLine(lineNo, line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
	}
	return rows, nil
}

func (l *Layout) decodeLine(lineNo int, line string) Row {
	values := make([]sql.NullString, len(l.cols))
	for i, c := range l.cols {
		if c.Start >= len(line) {
			continue
		}
		end := min(c.End, len(line))
		v := strings.TrimSpace(line[c.Start:end])
		if v != "" {
			values[i] = sql.NullString{String: v, Valid: true}
		}
	}
	return Row{Line: lineNo, layout: l, values: values}
}

func (r Row) String(name string) sql.NullString {
	i, ok := r.layout.index[name]
	if !ok {
		panic(fmt.Sprintf("fixedwidth: unknown column %q", name))
	}
	return r.values[i]
}

func (r Row) Has(name string) bool {
	return r.String(name).Valid
}

func (r Row) Float(name string) (sql.NullFloat64, error) {
	s := r.String(name)
	if !s.Valid {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s.String, 64)
	if err != nil {
		return sql.NullFloat64{}, &DecodeError{Line: r.Line, Field: name, Value: s.String, Err: err}
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}

func (r Row) Int(name string) (sql.NullInt64, error) {
	s := r.String(name)
	if !s.Valid {
		return sql.NullInt64{}, nil
	}
	v, err := strconv.ParseInt(s.String, 10, 64)
	if err != nil {
		return sql.NullInt64{}, &DecodeError{Line: r.Line, Field: name, Value: s.String, Err: err}
	}
	return sql.NullInt64{Int64: v, Valid: true}, nil
}
