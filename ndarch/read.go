package ndarch

import (
	"fmt"
	"path/filepath"

	"github.com/sdss/redmonster/fitsblock"
	"github.com/sdss/redmonster/ndarray"
)

// ReadArchive decodes an ndArch file, reconstructing the parameter
// baseline of every axis from its header key family. The returned
// archive owns a fresh copy of the array payload; mutating it cannot
// affect a later reread.
func ReadArchive(fileName string) (*Archive, error) {
	class, version, err := ParseFilename(fileName)
	if err != nil {
		return nil, err
	}

	units, err := fitsblock.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: '%s' holds no HDUs", ErrMalformedArchive, fileName)
	}
	u := units[0]
	if u.Data == nil || len(u.Shape) < 1 {
		return nil, fmt.Errorf("%w: primary HDU has no array data", ErrMalformedArchive)
	}
	h := u.Header

	coeff0, ok0 := h.Float("CRVAL1")
	coeff1, ok1 := h.Float("CDELT1")
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("%w: wavelength grid unspecified (CRVAL1/CDELT1 missing)", ErrMalformedArchive)
	}

	rank := len(u.Shape)
	nwave := u.Shape[rank-1]
	if n1, ok := h.Int("NAXIS1"); ok && n1 != nwave {
		return nil, fmt.Errorf("%w: NAXIS1=%d disagrees with payload wavelength axis %d",
			ErrMalformedArchive, n1, nwave)
	}
	npars := rank - 1

	info := Info{
		Filename: filepath.Base(fileName),
		Class:    class,
		Version:  version,
		Coeff0:   coeff0,
		Coeff1:   coeff1,
		Nwave:    nwave,
		ParNames: make([]string, npars),
		ParUnits: make([]string, npars),
	}
	if bunit, ok := h.Str("BUNIT"); ok {
		info.FluxUnit = bunit
	}

	baselines := make([]Baseline, npars)
	for ipar := 0; ipar < npars; ipar++ {
		ax := npars + 1 - ipar
		n := u.Shape[ipar]
		if name, ok := h.Str(key("CNAME", ax)); ok {
			info.ParNames[ipar] = name
		}
		if unit, ok := h.Str(key("CUNIT", ax)); ok {
			info.ParUnits[ipar] = unit
		}
		b, err := decodeBaseline(h, ax, n)
		if err != nil {
			return nil, err
		}
		baselines[ipar] = b
	}

	// Defensive copy: callers may mutate the result freely.
	data := make([]float64, len(u.Data))
	copy(data, u.Data)
	arr, err := ndarray.FromSlice(u.Shape, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	return &Archive{Data: arr, Baselines: baselines, Info: info}, nil
}

// decodeBaseline classifies one parameter axis and reconstructs its
// baseline. The kind tests are all-or-nothing over the full key family
// and are checked in fixed precedence order; a partial family falls
// through to the next rule, ultimately Index.
func decodeBaseline(h *fitsblock.Header, ax, n int) (Baseline, error) {
	switch {
	case h.HasAll(key("CRPIX", ax), key("CRVAL", ax), key("CDELT", ax)):
		crpix, ok0 := h.Float(key("CRPIX", ax))
		crval, ok1 := h.Float(key("CRVAL", ax))
		cdelt, ok2 := h.Float(key("CDELT", ax))
		if !ok0 || !ok1 || !ok2 {
			return Baseline{}, fmt.Errorf("%w: non-numeric regular-axis keys on axis %d", ErrMalformedArchive, ax)
		}
		v := make([]float64, n)
		for k := range v {
			v[k] = (float64(k)+1-crpix)*cdelt + crval
		}
		return Baseline{Kind: Regular, Values: v}, nil

	case h.HasAll(familyKeys("PV", ax, n)...):
		v := make([]float64, n)
		for j, k := range familyKeys("PV", ax, n) {
			x, ok := h.Float(k)
			if !ok {
				return Baseline{}, fmt.Errorf("%w: %s is not numeric", ErrMalformedArchive, k)
			}
			v[j] = x
		}
		return Baseline{Kind: Irregular, Values: v}, nil

	case h.HasAll(familyKeys("PS", ax, n)...):
		s, err := stringFamily(h, "PS", ax, n)
		if err != nil {
			return Baseline{}, err
		}
		return Baseline{Kind: Labeled, Labels: s}, nil

	case h.HasAll(familyKeys("N", ax, n)...):
		s, err := stringFamily(h, "N", ax, n)
		if err != nil {
			return Baseline{}, err
		}
		return Baseline{Kind: Named, Labels: s}, nil
	}
	return IndexBaseline(n), nil
}

func stringFamily(h *fitsblock.Header, prefix string, ax, n int) ([]string, error) {
	s := make([]string, n)
	for j, k := range familyKeys(prefix, ax, n) {
		x, ok := h.Str(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a string", ErrMalformedArchive, k)
		}
		s[j] = x
	}
	return s, nil
}
