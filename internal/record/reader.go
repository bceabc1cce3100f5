package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Reader streams Observations from CSV input with a header row.
type Reader struct {
	csv    *csv.Reader
	header []string
}

// NewReader reads the header row. The timestamp and cid columns are
// required; any other missing column reads as blank.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("read header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	for _, req := range []string{ColTimestamp, ColClusterID} {
		if !slices.Contains(header, req) {
			return nil, fmt.Errorf("read header: missing required column %q", req)
		}
	}
	return &Reader{csv: cr, header: header}, nil
}

// Read returns the next Observation, or io.EOF once input is exhausted.
// Malformed rows yield a *ParseError carrying the input line.
func (r *Reader) Read() (Observation, error) {
	fields, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Observation{}, io.EOF
		}
		return Observation{}, fmt.Errorf("read row: %w", err)
	}
	line, _ := r.csv.FieldPos(0)

	row := make(Row, len(r.header))
	for i, col := range r.header {
		if i < len(fields) {
			row[col] = fields[i]
		}
	}
	o, err := Parse(row)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Line = line
		}
		return Observation{}, err
	}
	return o, nil
}

// ReadAll reads until EOF, stopping at the first malformed row.
func (r *Reader) ReadAll() ([]Observation, error) {
	var out []Observation
	for {
		o, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
}
