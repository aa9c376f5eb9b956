package fitsblock

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Unit is one decoded HDU: its header, its shape in row-major order
// (reversed from the NAXISn cards, so the fastest varying axis is last),
// and for image HDUs the pixel data widened to float64. Every Unit owns
// its buffers; nothing aliases the input stream.
type Unit struct {
	Header *Header
	Class  string // "SIMPLE", "IMAGE" or "BINTABLE"
	Shape  []int
	Data   []float64

	table []byte
	cols  []tableCol
}

// IsTable reports whether the HDU holds a binary table.
func (u *Unit) IsTable() bool { return u.table != nil }

// ReadFile opens a file and decodes every HDU in it.
func ReadFile(fileName string) ([]*Unit, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Open(f)
}

// Open decodes all HDUs from a stream.
func Open(r io.Reader) ([]*Unit, error) {
	var units []*Unit
	for {
		h, err := readHeader(r)
		if err == io.EOF {
			return units, nil
		}
		if err != nil {
			return nil, err
		}
		u := &Unit{Header: h}
		if _, ok := h.Get("SIMPLE"); ok {
			u.Class = "SIMPLE"
		} else if x, ok := h.Str("XTENSION"); ok {
			u.Class = strings.TrimSpace(x)
		} else {
			return nil, fmt.Errorf("fitsblock: HDU %d has neither SIMPLE nor XTENSION", len(units))
		}

		naxis, ok := h.Int("NAXIS")
		if !ok {
			return nil, fmt.Errorf("fitsblock: HDU %d has no NAXIS", len(units))
		}
		u.Shape = make([]int, naxis)
		for i := 1; i <= naxis; i++ {
			n, ok := h.Int(fmt.Sprintf("NAXIS%d", i))
			if !ok {
				return nil, fmt.Errorf("fitsblock: HDU %d has no NAXIS%d", len(units), i)
			}
			u.Shape[naxis-i] = n
		}

		if u.Class == "BINTABLE" {
			if err := u.loadTable(r); err != nil {
				return nil, err
			}
		} else if err := u.loadImage(r); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
}

func (u *Unit) loadTable(r io.Reader) error {
	if len(u.Shape) != 2 {
		return fmt.Errorf("fitsblock: BINTABLE with NAXIS=%d, want 2", len(u.Shape))
	}
	pcount, _ := u.Header.Int("PCOUNT")
	size := u.Shape[0]*u.Shape[1] + pcount
	raw, err := readPadded(r, size)
	if err != nil {
		return err
	}
	u.table = raw[:u.Shape[0]*u.Shape[1]]
	u.cols, err = tableLayout(u.Header)
	return err
}

func (u *Unit) loadImage(r io.Reader) error {
	if len(u.Shape) == 0 {
		return nil // header-only HDU
	}
	size := 1
	for _, n := range u.Shape {
		size *= n
	}
	if size == 0 {
		return nil
	}
	bitpix, ok := u.Header.Int("BITPIX")
	if !ok {
		return fmt.Errorf("fitsblock: image HDU has no BITPIX")
	}
	switch bitpix {
	case -64:
		raw, err := readPadded(r, 8*size)
		if err != nil {
			return err
		}
		u.Data = make([]float64, size)
		for i := range u.Data {
			u.Data[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[8*i:]))
		}
	case -32:
		raw, err := readPadded(r, 4*size)
		if err != nil {
			return err
		}
		u.Data = make([]float64, size)
		for i := range u.Data {
			u.Data[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:])))
		}
	default:
		return fmt.Errorf("fitsblock: unsupported BITPIX %d (only -32 and -64 floats)", bitpix)
	}
	return nil
}

// readHeader reads whole blocks until the END card. A clean EOF before
// the first block reports io.EOF; EOF inside a header is an error.
func readHeader(r io.Reader) (*Header, error) {
	h := NewHeader()
	block := make([]byte, BlockSize)
	first := true
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			if err == io.EOF && first {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("fitsblock: truncated header: %v", err)
		}
		first = false
		for i := 0; i < cardsPerBlock; i++ {
			line := string(block[i*cardLength : (i+1)*cardLength])
			if strings.TrimRight(line[:8], " ") == "END" {
				return h, nil
			}
			c, ok, err := parseCard(line)
			if err != nil {
				return nil, err
			}
			if ok {
				h.Set(c.Key, c.Value, c.Comment)
			}
		}
	}
}

// readPadded reads size payload bytes plus the block padding after them.
func readPadded(r io.Reader, size int) ([]byte, error) {
	total := size
	if rem := size % BlockSize; rem != 0 {
		total += BlockSize - rem
	}
	buf := make([]byte, total)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("fitsblock: truncated data block: %v", err)
	}
	return buf[:size], nil
}
