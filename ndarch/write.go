package ndarch

import (
	"fmt"
	"os"

	"github.com/sdss/redmonster/fitsblock"
)

// OverwritePolicy decides what WriteArchive does when the destination
// file already exists.
type OverwritePolicy int

const (
	// NoClobber refuses to replace an existing file.
	NoClobber OverwritePolicy = iota
	// Clobber truncates and rewrites an existing file.
	Clobber
)

// WriteArchive encodes an archive to a file. The axis kind of every
// baseline is taken from the caller, never inferred; validation failures
// are reported before the file is touched. A failure during the write
// itself may leave an incomplete file behind (no partial-write recovery).
func WriteArchive(fileName string, a *Archive, policy OverwritePolicy) error {
	shape := a.Data.Shape()
	rank := len(shape)
	if rank < 1 {
		return fmt.Errorf("%w: array has no axes", ErrMalformedArchive)
	}
	npars := rank - 1
	if len(a.Baselines) != npars {
		return fmt.Errorf("%w: %d baselines for %d parameter axes", ErrAxisShapeMismatch, len(a.Baselines), npars)
	}
	if a.Info.Nwave != 0 && a.Info.Nwave != shape[rank-1] {
		return fmt.Errorf("%w: Info.Nwave=%d but wavelength axis has %d pixels",
			ErrAxisShapeMismatch, a.Info.Nwave, shape[rank-1])
	}

	h := fitsblock.NewHeader()
	if a.Info.FluxUnit != "" {
		h.Set("BUNIT", a.Info.FluxUnit, "Data unit")
	}
	h.Set("CNAME1", "loglam", "Axis 1 name")
	h.Set("CUNIT1", "log10(Angstroms)", "Axis 1 unit")
	h.Set("CRPIX1", 1.0, "Axis 1 reference pixel")
	h.Set("CRVAL1", a.Info.Coeff0, "Axis 1 reference value")
	h.Set("CDELT1", a.Info.Coeff1, "Axis 1 increment")

	// Descending internal parameter index puts ascending FITS axis
	// numbers in natural order in the header.
	for ipar := npars - 1; ipar >= 0; ipar-- {
		ax := npars + 1 - ipar
		if ipar < len(a.Info.ParNames) && a.Info.ParNames[ipar] != "" {
			h.Set(key("CNAME", ax), a.Info.ParNames[ipar], fmt.Sprintf("Axis %d name", ax))
		}
		if ipar < len(a.Info.ParUnits) && a.Info.ParUnits[ipar] != "" {
			h.Set(key("CUNIT", ax), a.Info.ParUnits[ipar], fmt.Sprintf("Axis %d unit", ax))
		}
		if err := encodeBaseline(h, ax, a.Baselines[ipar], shape[ipar]); err != nil {
			return fmt.Errorf("parameter axis %d: %w", ipar, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if policy == NoClobber {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(fileName, flags, 0666)
	if err != nil {
		return err
	}
	fw := fitsblock.NewWriter(f)
	if err := fw.WritePrimary(h, shape, a.Data.Data()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// encodeBaseline emits the key family selected by the baseline's kind.
// Index axes emit nothing.
func encodeBaseline(h *fitsblock.Header, ax int, b Baseline, n int) error {
	if b.Len() != n {
		return fmt.Errorf("%w: baseline has %d pixels, axis has %d", ErrAxisShapeMismatch, b.Len(), n)
	}
	switch b.Kind {
	case Index:
		return nil

	case Regular:
		if n < 2 {
			return fmt.Errorf("%w: %d samples", ErrDegenerateAxis, n)
		}
		incr := b.Values[1] - b.Values[0]
		if incr == 0 {
			return fmt.Errorf("%w: zero increment", ErrDegenerateAxis)
		}
		for k := 1; k < n; k++ {
			if d := b.Values[k] - b.Values[k-1]; d == 0 || (d > 0) != (incr > 0) {
				return fmt.Errorf("%w: baseline is not strictly monotonic", ErrDegenerateAxis)
			}
		}
		h.Set(key("CRPIX", ax), 1.0, fmt.Sprintf("Axis %d reference pixel", ax))
		h.Set(key("CRVAL", ax), b.Values[0], fmt.Sprintf("Axis %d reference value", ax))
		h.Set(key("CDELT", ax), incr, fmt.Sprintf("Axis %d increment", ax))
		return nil

	case Irregular:
		for j, k := range familyKeys("PV", ax, n) {
			h.Set(k, b.Values[j], fmt.Sprintf("Axis %d value at pixel %d", ax, j+1))
		}
		return nil

	case Labeled:
		for j, k := range familyKeys("PS", ax, n) {
			h.Set(k, b.Labels[j], fmt.Sprintf("Axis %d label at pixel %d", ax, j+1))
		}
		return nil

	case Named:
		for j, k := range familyKeys("N", ax, n) {
			h.Set(k, b.Labels[j], fmt.Sprintf("Axis %d name at pixel %d", ax, j+1))
		}
		return nil
	}
	return fmt.Errorf("unknown axis kind %d", int(b.Kind))
}
