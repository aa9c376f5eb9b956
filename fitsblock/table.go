package fitsblock

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column defines one binary-table column. Format selects the element
// type and the required Array type:
//
//	"J"  int32    []int32
//	"E"  float32  []float32
//	"D"  float64  []float64
//	"A"  string   []string (width taken from the longest value)
type Column struct {
	Name   string
	Format string
	Array  interface{}
}

func (c Column) rows() (int, error) {
	switch a := c.Array.(type) {
	case []int32:
		return len(a), nil
	case []float32:
		return len(a), nil
	case []float64:
		return len(a), nil
	case []string:
		return len(a), nil
	}
	return 0, fmt.Errorf("fitsblock: column '%s' has unsupported array type %T", c.Name, c.Array)
}

// width returns the element size in bytes and the TFORM string.
func (c Column) width() (int, string, error) {
	switch c.Format {
	case "J":
		if _, ok := c.Array.([]int32); !ok {
			return 0, "", fmt.Errorf("fitsblock: column '%s' format J needs []int32, have %T", c.Name, c.Array)
		}
		return 4, "J", nil
	case "E":
		if _, ok := c.Array.([]float32); !ok {
			return 0, "", fmt.Errorf("fitsblock: column '%s' format E needs []float32, have %T", c.Name, c.Array)
		}
		return 4, "E", nil
	case "D":
		if _, ok := c.Array.([]float64); !ok {
			return 0, "", fmt.Errorf("fitsblock: column '%s' format D needs []float64, have %T", c.Name, c.Array)
		}
		return 8, "D", nil
	case "A":
		ss, ok := c.Array.([]string)
		if !ok {
			return 0, "", fmt.Errorf("fitsblock: column '%s' format A needs []string, have %T", c.Name, c.Array)
		}
		w := 1
		for _, s := range ss {
			if len(s) > w {
				w = len(s)
			}
		}
		return w, fmt.Sprintf("%dA", w), nil
	}
	return 0, "", fmt.Errorf("fitsblock: column '%s' has unknown format '%s'", c.Name, c.Format)
}

// WriteTableExt writes a BINTABLE extension HDU with one row per index
// of the column arrays. All columns must have the same length.
func (fw *Writer) WriteTableExt(hdr *Header, cols []Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("fitsblock: table needs at least one column")
	}
	nrows, err := cols[0].rows()
	if err != nil {
		return err
	}
	rowBytes := 0
	widths := make([]int, len(cols))
	tforms := make([]string, len(cols))
	for i, c := range cols {
		n, err := c.rows()
		if err != nil {
			return err
		}
		if n != nrows {
			return fmt.Errorf("fitsblock: column '%s' has %d rows, want %d", c.Name, n, nrows)
		}
		w, tform, err := c.width()
		if err != nil {
			return err
		}
		widths[i] = w
		tforms[i] = tform
		rowBytes += w
	}

	cards := []Card{
		{Key: "XTENSION", Value: "BINTABLE", Comment: "binary table extension"},
		{Key: "BITPIX", Value: 8, Comment: "array data type"},
		{Key: "NAXIS", Value: 2, Comment: "number of array dimensions"},
		{Key: "NAXIS1", Value: rowBytes, Comment: "length of dimension 1"},
		{Key: "NAXIS2", Value: nrows, Comment: "length of dimension 2"},
		{Key: "PCOUNT", Value: 0, Comment: "number of group parameters"},
		{Key: "GCOUNT", Value: 1, Comment: "number of groups"},
		{Key: "TFIELDS", Value: len(cols), Comment: "number of table fields"},
	}
	for i, c := range cols {
		cards = append(cards,
			Card{Key: fmt.Sprintf("TTYPE%d", i+1), Value: c.Name, Comment: ""},
			Card{Key: fmt.Sprintf("TFORM%d", i+1), Value: tforms[i], Comment: ""},
		)
	}
	if hdr != nil {
		cards = append(cards, hdr.Cards()...)
	}
	if err := fw.writeHeader(cards); err != nil {
		return err
	}

	buf := make([]byte, 0, nrows*rowBytes)
	for row := 0; row < nrows; row++ {
		for i, c := range cols {
			switch a := c.Array.(type) {
			case []int32:
				buf = binary.BigEndian.AppendUint32(buf, uint32(a[row]))
			case []float32:
				buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(a[row]))
			case []float64:
				buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(a[row]))
			case []string:
				s := a[row]
				buf = append(buf, s...)
				for k := len(s); k < widths[i]; k++ {
					buf = append(buf, ' ')
				}
			}
		}
	}
	return fw.writePadded(buf, 0)
}

// tableCol is the decoded layout of one column inside a table row.
type tableCol struct {
	name   string
	code   byte // J, E, D or A
	width  int  // element width in bytes
	offset int  // byte offset within a row
}

// tableLayout decodes the TTYPE/TFORM families of a BINTABLE header.
func tableLayout(h *Header) ([]tableCol, error) {
	tfields, ok := h.Int("TFIELDS")
	if !ok {
		return nil, fmt.Errorf("fitsblock: table header has no TFIELDS")
	}
	cols := make([]tableCol, 0, tfields)
	offset := 0
	for i := 1; i <= tfields; i++ {
		form, ok := h.Str(fmt.Sprintf("TFORM%d", i))
		if !ok {
			return nil, fmt.Errorf("fitsblock: table header has no TFORM%d", i)
		}
		form = strings.TrimSpace(form)
		name, _ := h.Str(fmt.Sprintf("TTYPE%d", i))

		j := strings.IndexAny(form, "JEDA")
		if j == -1 || j != len(form)-1 {
			return nil, fmt.Errorf("fitsblock: unsupported TFORM%d '%s'", i, form)
		}
		repeat := 1
		if j > 0 {
			r, err := strconv.Atoi(form[:j])
			if err != nil {
				return nil, fmt.Errorf("fitsblock: bad repeat in TFORM%d '%s'", i, form)
			}
			repeat = r
		}
		code := form[j]
		var width int
		switch code {
		case 'J', 'E':
			width = 4
		case 'D':
			width = 8
		case 'A':
			width = 1
		}
		if code != 'A' && repeat != 1 {
			return nil, fmt.Errorf("fitsblock: TFORM%d '%s': only scalar numeric columns are supported", i, form)
		}
		cols = append(cols, tableCol{name: name, code: code, width: width * repeat, offset: offset})
		offset += width * repeat
	}
	return cols, nil
}

// NRows returns the number of table rows, or 0 for image HDUs.
func (u *Unit) NRows() int {
	if u.table == nil || len(u.Shape) != 2 {
		return 0
	}
	return u.Shape[0]
}

// Column returns an entire table column as []int32, []float32, []float64
// or []string according to its TFORM.
func (u *Unit) Column(name string) (interface{}, error) {
	if u.table == nil {
		return nil, fmt.Errorf("fitsblock: HDU has no table data")
	}
	var col *tableCol
	for i := range u.cols {
		if u.cols[i].name == name {
			col = &u.cols[i]
			break
		}
	}
	if col == nil {
		return nil, fmt.Errorf("fitsblock: table has no column '%s'", name)
	}
	nrows := u.NRows()
	rowBytes := u.Shape[1]
	cell := func(row int) []byte {
		start := row*rowBytes + col.offset
		return u.table[start : start+col.width]
	}
	switch col.code {
	case 'J':
		out := make([]int32, nrows)
		for r := range out {
			out[r] = int32(binary.BigEndian.Uint32(cell(r)))
		}
		return out, nil
	case 'E':
		out := make([]float32, nrows)
		for r := range out {
			out[r] = math.Float32frombits(binary.BigEndian.Uint32(cell(r)))
		}
		return out, nil
	case 'D':
		out := make([]float64, nrows)
		for r := range out {
			out[r] = math.Float64frombits(binary.BigEndian.Uint64(cell(r)))
		}
		return out, nil
	case 'A':
		out := make([]string, nrows)
		for r := range out {
			out[r] = strings.TrimRight(string(cell(r)), " ")
		}
		return out, nil
	}
	return nil, fmt.Errorf("fitsblock: column '%s' has unsupported type %c", name, col.code)
}
