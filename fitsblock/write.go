package fitsblock

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer emits a sequence of HDUs to an underlying stream. The primary
// HDU must be written first; extensions follow in any order.
type Writer struct {
	w io.Writer
}

// NewWriter wraps an output stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePrimary writes the primary HDU: the mandatory structural cards,
// the caller's cards, and a big-endian float64 payload. An empty shape
// writes a header-only HDU (NAXIS=0); data must then be nil.
func (fw *Writer) WritePrimary(hdr *Header, shape []int, data []float64) error {
	cards := []Card{
		{Key: "SIMPLE", Value: true, Comment: "conforms to FITS standard"},
		{Key: "BITPIX", Value: -64, Comment: "array data type"},
		{Key: "NAXIS", Value: len(shape), Comment: "number of array dimensions"},
	}
	cards = append(cards, axisCards(shape)...)
	return fw.writeHDU(cards, hdr, shape, data)
}

// WriteImageExt writes an IMAGE extension HDU with a float64 payload.
func (fw *Writer) WriteImageExt(hdr *Header, shape []int, data []float64) error {
	cards := []Card{
		{Key: "XTENSION", Value: "IMAGE", Comment: "Image extension"},
		{Key: "BITPIX", Value: -64, Comment: "array data type"},
		{Key: "NAXIS", Value: len(shape), Comment: "number of array dimensions"},
	}
	cards = append(cards, axisCards(shape)...)
	cards = append(cards,
		Card{Key: "PCOUNT", Value: 0, Comment: "number of parameters"},
		Card{Key: "GCOUNT", Value: 1, Comment: "number of groups"},
	)
	return fw.writeHDU(cards, hdr, shape, data)
}

// axisCards emits NAXISn for a row-major shape. NAXIS1 is the fastest
// varying axis, which row-major storage puts last.
func axisCards(shape []int) []Card {
	rank := len(shape)
	cards := make([]Card, 0, rank)
	for i := 1; i <= rank; i++ {
		cards = append(cards, Card{
			Key:     fmt.Sprintf("NAXIS%d", i),
			Value:   shape[rank-i],
			Comment: fmt.Sprintf("length of data axis %d", i),
		})
	}
	return cards
}

func (fw *Writer) writeHDU(structural []Card, hdr *Header, shape []int, data []float64) error {
	size := 1
	for _, n := range shape {
		size *= n
	}
	if len(shape) == 0 {
		size = 0
	}
	if len(data) != size {
		return fmt.Errorf("fitsblock: have %d values, shape %v needs %d", len(data), shape, size)
	}

	if hdr != nil {
		structural = append(structural, hdr.Cards()...)
	}
	if err := fw.writeHeader(structural); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.BigEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return fw.writePadded(buf, 0)
}

// writeHeader renders the cards, appends END and pads the final block
// with spaces.
func (fw *Writer) writeHeader(cards []Card) error {
	var out []byte
	for _, c := range cards {
		img, err := formatCard(c)
		if err != nil {
			return err
		}
		out = append(out, img...)
	}
	end := fmt.Sprintf("%-80s", "END")
	out = append(out, end...)
	return fw.writePadded(out, ' ')
}

// writePadded writes buf followed by pad bytes up to the block boundary.
func (fw *Writer) writePadded(buf []byte, pad byte) error {
	if _, err := fw.w.Write(buf); err != nil {
		return err
	}
	if rem := len(buf) % BlockSize; rem != 0 {
		fill := make([]byte, BlockSize-rem)
		if pad != 0 {
			for i := range fill {
				fill[i] = pad
			}
		}
		if _, err := fw.w.Write(fill); err != nil {
			return err
		}
	}
	return nil
}
