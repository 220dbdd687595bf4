// Package csvimport reads echosounder exports into raw soundings.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/banshee-data/isobath/internal/bathy"
)

// ErrMissingColumn is returned when the header has no x, y or depth column.
var ErrMissingColumn = errors.New("missing column")

// Header aliases, matched case-insensitively after trimming.
var (
	xAliases     = []string{"x", "lon", "lng", "longitude", "easting"}
	yAliases     = []string{"y", "lat", "latitude", "northing"}
	depthAliases = []string{"depth", "depth_value", "kedalaman", "z"}
)

// Row is one parsed record.
type Row struct {
	// Line is the 1-based line in the source.
	Line   int
	Sample bathy.RawSample
	// Metadata holds the remaining named columns.
	Metadata map[string]string
}

// Reader streams rows from an echosounder CSV.
type Reader struct {
	r         io.Reader
	comma     rune
	hasHeader bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithComma sets the field delimiter (default ',').
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.comma = c
	}
}

// WithHeader indicates whether the first record is a header. Without one,
// columns are read positionally as x, y, depth.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// NewReader wraps r. Rows may be iterated once.
func NewReader(r io.Reader, opts ...Option) *Reader {
	rd := &Reader{r: r, comma: ',', hasHeader: true}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

type columns struct {
	x, y, depth int
	names       []string
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{x: -1, y: -1, depth: -1, names: make([]string, len(header))}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols.names[i] = name
		switch {
		case cols.x < 0 && contains(xAliases, name):
			cols.x = i
		case cols.y < 0 && contains(yAliases, name):
			cols.y = i
		case cols.depth < 0 && contains(depthAliases, name):
			cols.depth = i
		}
	}
	var missing []string
	if cols.x < 0 {
		missing = append(missing, "x")
	}
	if cols.y < 0 {
		missing = append(missing, "y")
	}
	if cols.depth < 0 {
		missing = append(missing, "depth")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s (header %v)", ErrMissingColumn, strings.Join(missing, ", "), header)
	}
	return cols, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Rows yields each data record. Iteration stops after the first error.
// Values are passed through as strings; bathy.ParseSamples types them. An
// empty depth field yields a nil Depth.
func (rd *Reader) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		cr := csv.NewReader(rd.r)
		cr.Comma = rd.comma
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true

		cols := columns{x: 0, y: 1, depth: 2}
		if rd.hasHeader {
			header, err := cr.Read()
			if err == io.EOF {
				yield(Row{}, fmt.Errorf("%w: empty input", ErrMissingColumn))
				return
			}
			if err != nil {
				yield(Row{}, fmt.Errorf("read header: %w", err))
				return
			}
			if cols, err = resolveColumns(header); err != nil {
				yield(Row{}, err)
				return
			}
		}

		for {
			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Row{}, fmt.Errorf("read record: %w", err))
				return
			}
			line, _ := cr.FieldPos(0)
			if blank(record) {
				continue
			}
			if need := max(cols.x, cols.y, cols.depth); len(record) <= need {
				yield(Row{Line: line}, fmt.Errorf("line %d: expected at least %d fields, got %d", line, need+1, len(record)))
				return
			}

			row := Row{Line: line, Sample: bathy.RawSample{X: record[cols.x], Y: record[cols.y]}}
			if d := strings.TrimSpace(record[cols.depth]); d != "" {
				row.Sample.Depth = d
			}
			for i, v := range record {
				if i == cols.x || i == cols.y || i == cols.depth || i >= len(cols.names) || cols.names[i] == "" {
					continue
				}
				if row.Metadata == nil {
					row.Metadata = make(map[string]string)
				}
				row.Metadata[cols.names[i]] = v
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ReadAll collects every row's sample, failing on the first bad record.
func (rd *Reader) ReadAll() ([]bathy.RawSample, error) {
	var out []bathy.RawSample
	for row, err := range rd.Rows() {
		if err != nil {
			return nil, err
		}
		out = append(out, row.Sample)
	}
	return out, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
