package redmonster

import (
	"fmt"

	"github.com/sdss/redmonster/fitsblock"
	"gonum.org/v1/gonum/mat"
)

// ZPick holds the classification results for a set of fibers on one
// plate: the two best redshift measurements per fiber, their template
// bookkeeping, and the best-fit model spectra. It is the in-memory form
// of a redmonster-PLATE-MJD result file.
type ZPick struct {
	Plate int
	MJD   int

	// Hdr carries supplemental primary-header cards copied from the
	// source reduction (may be nil). Structural cards are ignored.
	Hdr *fitsblock.Header

	Fiberid   []int32
	Z1        []float32
	Z2        []float32
	ZErr1     []float32
	ZErr2     []float32
	Class     []string
	Subclass  []string
	Minvector []string
	ZWarning  []float32
	DOF       []float32
	Npoly     []float32
	Fname     []string
	Npixstep  []float32

	// Models holds one best-fit model spectrum per fiber, row i matching
	// Fiberid[i].
	Models *mat.Dense
}

// NFibers returns the number of fibers the result covers.
func (zp *ZPick) NFibers() int { return len(zp.Fiberid) }

// AppendFiber adds one fiber's results to the pick. The model slice is
// copied.
func (zp *ZPick) AppendFiber(f FiberResult) {
	zp.Fiberid = append(zp.Fiberid, f.Fiberid)
	zp.Z1 = append(zp.Z1, f.Z1)
	zp.Z2 = append(zp.Z2, f.Z2)
	zp.ZErr1 = append(zp.ZErr1, f.ZErr1)
	zp.ZErr2 = append(zp.ZErr2, f.ZErr2)
	zp.Class = append(zp.Class, f.Class)
	zp.Subclass = append(zp.Subclass, f.Subclass)
	zp.Minvector = append(zp.Minvector, f.Minvector)
	zp.ZWarning = append(zp.ZWarning, f.ZWarning)
	zp.DOF = append(zp.DOF, f.DOF)
	zp.Npoly = append(zp.Npoly, f.Npoly)
	zp.Fname = append(zp.Fname, f.Fname)
	zp.Npixstep = append(zp.Npixstep, f.Npixstep)
}

// FiberResult is one fiber's row of a ZPick.
type FiberResult struct {
	Fiberid   int32
	Z1        float32
	Z2        float32
	ZErr1     float32
	ZErr2     float32
	Class     string
	Subclass  string
	Minvector string
	ZWarning  float32
	DOF       float32
	Npoly     float32
	Fname     string
	Npixstep  float32
	Model     []float64
}

// validate checks that every column has one entry per fiber and that
// the model matrix (when present) has one row per fiber.
func (zp *ZPick) validate() error {
	n := zp.NFibers()
	if n == 0 {
		return fmt.Errorf("result holds no fibers")
	}
	counts := map[string]int{
		"Z1": len(zp.Z1), "Z2": len(zp.Z2),
		"Z_ERR1": len(zp.ZErr1), "Z_ERR2": len(zp.ZErr2),
		"CLASS": len(zp.Class), "SUBCLASS": len(zp.Subclass),
		"MINVECTOR": len(zp.Minvector), "ZWARNING": len(zp.ZWarning),
		"DOF": len(zp.DOF), "NPOLY": len(zp.Npoly),
		"FNAME": len(zp.Fname), "NPIXSTEP": len(zp.Npixstep),
	}
	for name, c := range counts {
		if c != n {
			return fmt.Errorf("column %s has %d entries for %d fibers", name, c, n)
		}
	}
	if zp.Models != nil {
		if r, _ := zp.Models.Dims(); r != n {
			return fmt.Errorf("model matrix has %d rows for %d fibers", r, n)
		}
	}
	return nil
}

// columns lays out the result table in the column order of the files
// this replaces.
func (zp *ZPick) columns() []fitsblock.Column {
	return []fitsblock.Column{
		{Name: "Z1", Format: "E", Array: zp.Z1},
		{Name: "Z2", Format: "E", Array: zp.Z2},
		{Name: "Z_ERR1", Format: "E", Array: zp.ZErr1},
		{Name: "Z_ERR2", Format: "E", Array: zp.ZErr2},
		{Name: "CLASS", Format: "A", Array: zp.Class},
		{Name: "SUBCLASS", Format: "A", Array: zp.Subclass},
		{Name: "FIBERID", Format: "J", Array: zp.Fiberid},
		{Name: "MINVECTOR", Format: "A", Array: zp.Minvector},
		{Name: "ZWARNING", Format: "E", Array: zp.ZWarning},
		{Name: "DOF", Format: "E", Array: zp.DOF},
		{Name: "NPOLY", Format: "E", Array: zp.Npoly},
		{Name: "FNAME", Format: "A", Array: zp.Fname},
		{Name: "NPIXSTEP", Format: "E", Array: zp.Npixstep},
	}
}

// modelData flattens the model matrix to the row-major slice the image
// extension wants.
func (zp *ZPick) modelData() (shape []int, data []float64) {
	if zp.Models == nil {
		return nil, nil
	}
	r, c := zp.Models.Dims()
	data = make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, zp.Models.RawRowView(i)...)
	}
	return []int{r, c}, data
}
