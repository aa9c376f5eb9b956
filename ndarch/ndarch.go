// Package ndarch reads and writes ndArch template archives: self-describing
// containers holding a grid of archetype spectra with shape
// (N_0, ..., N_{npar-1}, N_wave), one baseline vector per parameter axis,
// and a small metadata record. The wavelength axis is always last and is
// described by a log-linear grid (coeff0, coeff1); each parameter axis is
// encoded in the header by one of five schemes (see AxisKind).
//
// Archive files follow the naming convention ndArch-CLASS-VERSION.fits;
// class and version live in the filename, not the header.
package ndarch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sdss/redmonster/ndarray"
)

// AxisKind selects how a parameter axis's baseline is stored in the
// archive header.
type AxisKind int

// The five baseline encodings. Detection precedence on decode is
// Regular > Irregular > Labeled > Named, with Index as the default when
// no key family is complete.
const (
	Index     AxisKind = iota // one-based pixel index, no header keys
	Regular                   // arithmetic progression: CRPIX/CRVAL/CDELT
	Irregular                 // explicit numeric values: PV{ax}_{j}
	Labeled                   // physical-parameter labels: PS{ax}_{j}
	Named                     // arbitrary names: N{ax}_{j}
)

func (k AxisKind) String() string {
	switch k {
	case Index:
		return "index"
	case Regular:
		return "regular"
	case Irregular:
		return "irregular"
	case Labeled:
		return "labeled"
	case Named:
		return "named"
	}
	return fmt.Sprintf("AxisKind(%d)", int(k))
}

// Baseline is the tagged parameter grid of one axis: numeric values for
// Index, Regular and Irregular axes, strings for Labeled and Named ones.
type Baseline struct {
	Kind   AxisKind
	Values []float64
	Labels []string
}

// IndexBaseline returns the default one-based index baseline 1..n.
func IndexBaseline(n int) Baseline {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i + 1)
	}
	return Baseline{Kind: Index, Values: v}
}

// RegularBaseline wraps a numeric baseline declared to be an arithmetic
// progression. Validity (length, monotonicity) is checked on encode.
func RegularBaseline(values []float64) Baseline {
	return Baseline{Kind: Regular, Values: values}
}

// IrregularBaseline wraps an explicit numeric baseline.
func IrregularBaseline(values []float64) Baseline {
	return Baseline{Kind: Irregular, Values: values}
}

// LabeledBaseline wraps a string baseline of physical-parameter labels.
func LabeledBaseline(labels []string) Baseline {
	return Baseline{Kind: Labeled, Labels: labels}
}

// NamedBaseline wraps a string baseline of arbitrary names.
func NamedBaseline(labels []string) Baseline {
	return Baseline{Kind: Named, Labels: labels}
}

// Len returns the number of pixels the baseline covers.
func (b Baseline) Len() int {
	switch b.Kind {
	case Labeled, Named:
		return len(b.Labels)
	}
	return len(b.Values)
}

// Info is the archive metadata record.
type Info struct {
	Filename string // source filename without path
	Class    string // archetype class, from the filename
	Version  string // archetype version, from the filename
	Coeff0   float64
	Coeff1   float64
	Nwave    int
	FluxUnit string
	ParNames []string
	ParUnits []string
}

// LogLambda returns the log10-wavelength grid coeff0 + k*coeff1 for
// k = 0..Nwave-1.
func (inf Info) LogLambda() []float64 {
	g := make([]float64, inf.Nwave)
	for k := range g {
		g[k] = inf.Coeff0 + float64(k)*inf.Coeff1
	}
	return g
}

// Archive is the (data, baselines, metadata) triple exchanged by the
// codec. It is transient: each encode or decode call owns its buffers
// exclusively and shares nothing with other calls.
type Archive struct {
	Data      *ndarray.Array
	Baselines []Baseline
	Info      Info
}

// NPar returns the number of parameter axes (rank minus the wavelength
// axis).
func (a *Archive) NPar() int { return a.Data.Rank() - 1 }

// Error kinds, matched with errors.Is.
var (
	// ErrMalformedArchive reports a structural violation: missing
	// wavelength-grid keys, no array axes, or a header/payload shape
	// disagreement.
	ErrMalformedArchive = errors.New("malformed ndArch archive")
	// ErrInvalidName reports a filename that does not follow the
	// ndArch-CLASS-VERSION convention.
	ErrInvalidName = errors.New("filename does not follow ndArch-CLASS-VERSION")
	// ErrAxisShapeMismatch reports a baseline whose length disagrees with
	// its array axis on encode.
	ErrAxisShapeMismatch = errors.New("baseline length does not match axis length")
	// ErrDegenerateAxis reports a regular axis whose increment cannot be
	// derived: fewer than two samples, or a non-monotonic baseline.
	ErrDegenerateAxis = errors.New("regular axis has no usable increment")
)

// ParseFilename extracts the class and version tokens from an archive
// name of the form ...-CLASS-VERSION.ext. The path and extension are
// ignored; the two tokens may not contain '-'.
func ParseFilename(fileName string) (class, version string, err error) {
	base := filepath.Base(fileName)
	root := base
	if j := strings.LastIndex(base, "."); j != -1 {
		root = base[:j]
	}
	tokens := strings.Split(root, "-")
	if len(tokens) < 2 {
		return "", "", fmt.Errorf("%w: '%s'", ErrInvalidName, base)
	}
	return tokens[len(tokens)-2], tokens[len(tokens)-1], nil
}

// key builds a per-axis header key such as CNAME3 or CRVAL2.
func key(prefix string, ax int) string {
	return fmt.Sprintf("%s%d", prefix, ax)
}

// familyKeys builds the complete indexed key family for one axis, e.g.
// PV2_1 .. PV2_n. Detection requires every member to be present.
func familyKeys(prefix string, ax, n int) []string {
	keys := make([]string, n)
	for j := 1; j <= n; j++ {
		keys[j-1] = fmt.Sprintf("%s%d_%d", prefix, ax, j)
	}
	return keys
}
