package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrMalformedFile = errors.New("malformed annotation file")
	ErrMalformedRow  = errors.New("malformed annotation row")
	ErrDegenerateBox = errors.New("degenerate bounding box")
)

var requiredColumns = []string{"x", "y", "width", "height", "label"}

// Record is one CSV annotation row: a bounding box in pixels, origin at the
// image's top-left corner.
type Record struct {
	Item   string
	X      float64
	Y      float64
	Width  float64
	Height float64
	Label  string
	Line   int
}

func (r Record) BBox() [4]float64 {
	return [4]float64{r.X, r.Y, r.Width, r.Height}
}

// RowError reports a row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadRecords parses an item,x,y,width,height,label file. The header is
// required, may start with '#', and columns are located by name. Bad rows
// are returned as row errors and do not stop parsing. A missing file yields
// an error matching os.ErrNotExist.
func ReadRecords(fs afero.Fs, path string) (recs []Record, rowErrs []*RowError, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	return parseRecords(f, path)
}

func parseRecords(r io.Reader, path string) (recs []Record, rowErrs []*RowError, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: header: %v", ErrMalformedFile, path, err)
	}

	cols, err := columnIndex(header)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rowErrs = append(rowErrs, &RowError{Line: pe.Line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, pe.Err)})
				continue
			}
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}

		line, _ := cr.FieldPos(0)
		rec, err := parseRecord(fields, cols)
		if err != nil {
			rowErrs = append(rowErrs, &RowError{Line: line, Err: err})
			continue
		}
		rec.Line = line
		recs = append(recs, rec)
	}

	return recs, rowErrs, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if i == 0 {
			h = strings.TrimSpace(strings.TrimPrefix(h, "#"))
		}
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}

	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: header lacks column %q", ErrMalformedFile, c)
		}
	}
	return cols, nil
}

func parseRecord(fields []string, cols map[string]int) (rec Record, err error) {
	get := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(fields) {
			return "", false
		}
		return strings.TrimSpace(fields[i]), true
	}

	num := func(name string) (float64, error) {
		s, ok := get(name)
		if !ok {
			return 0, fmt.Errorf("%w: missing %s", ErrMalformedRow, name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s %q is not a number", ErrMalformedRow, name, s)
		}
		if v < 0 {
			return 0, fmt.Errorf("%w: %s %q is negative", ErrMalformedRow, name, s)
		}
		return v, nil
	}

	rec.Item, _ = get("item")
	if rec.X, err = num("x"); err != nil {
		return
	}
	if rec.Y, err = num("y"); err != nil {
		return
	}
	if rec.Width, err = num("width"); err != nil {
		return
	}
	if rec.Height, err = num("height"); err != nil {
		return
	}

	label, ok := get("label")
	if !ok || label == "" {
		err = fmt.Errorf("%w: missing label", ErrMalformedRow)
		return
	}
	rec.Label = label

	if rec.Width == 0 || rec.Height == 0 {
		err = fmt.Errorf("%w: %gx%g", ErrDegenerateBox, rec.Width, rec.Height)
	}
	return
}
