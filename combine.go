package redmonster

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sdss/redmonster/fitsblock"
	"gonum.org/v1/gonum/mat"
)

// Combiner merges the per-fiber result files of one plate into a
// single plate file.
type Combiner struct {
	Cfg   Config
	Dir   string // directory holding the fiber files; overrides Cfg when set
	Plate int
	MJD   int
}

// Combine globs the fiber files redmonster-PLATE-MJD-*.fits, merges
// them in ascending fiber order, and writes the plate file through rw.
// It returns the path of the plate file.
func (c *Combiner) Combine(rw *ResultWriter) (string, error) {
	zp, err := c.Gather()
	if err != nil {
		return "", err
	}
	return rw.WritePlate(zp)
}

// Gather reads every fiber file of the plate into one ZPick, sorted by
// fiber number.
func (c *Combiner) Gather() (*ZPick, error) {
	dir := c.Dir
	if dir == "" {
		if d, ok := c.Cfg.PlateDir(c.Plate); ok {
			dir = d
		} else {
			dir = "."
		}
	}
	pattern := filepath.Join(dir, fmt.Sprintf("redmonster-%d-%d-*.fits", c.Plate, c.MJD))
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fiber files match %s", pattern)
	}

	type entry struct {
		fiber int
		path  string
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		var plate, mjd, fiber int
		if _, err := fmt.Sscanf(filepath.Base(p), "redmonster-%d-%d-%d.fits", &plate, &mjd, &fiber); err != nil {
			// Timestamped leftovers from no-clobber reruns also match
			// the glob; skip anything that is not a plain fiber file.
			continue
		}
		entries = append(entries, entry{fiber, p})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no fiber files match %s", pattern)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].fiber < entries[j].fiber })

	zp := &ZPick{Plate: c.Plate, MJD: c.MJD}
	var models [][]float64
	npix := -1
	for _, e := range entries {
		f, model, hdr, err := readFiberFile(e.path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.path, err)
		}
		if zp.Hdr == nil {
			zp.Hdr = hdr
		}
		zp.AppendFiber(f)
		if model != nil {
			if npix == -1 {
				npix = len(model)
			} else if len(model) != npix {
				return nil, fmt.Errorf("%s: model has %d pixels, earlier fibers have %d", e.path, len(model), npix)
			}
			models = append(models, model)
		}
	}
	if len(models) > 0 {
		if len(models) != zp.NFibers() {
			return nil, fmt.Errorf("%d model spectra for %d fibers", len(models), zp.NFibers())
		}
		m := mat.NewDense(len(models), npix, nil)
		for i, row := range models {
			m.SetRow(i, row)
		}
		zp.Models = m
	}
	return zp, nil
}

// readFiberFile decodes one fiber result file: its primary header, the
// single row of the measurement table, and the model spectrum if the
// file carries one.
func readFiberFile(path string) (FiberResult, []float64, *fitsblock.Header, error) {
	var f FiberResult
	units, err := fitsblock.ReadFile(path)
	if err != nil {
		return f, nil, nil, err
	}
	if len(units) < 2 || !units[1].IsTable() {
		return f, nil, nil, fmt.Errorf("no result table")
	}
	tbl := units[1]
	if tbl.NRows() < 1 {
		return f, nil, nil, fmt.Errorf("result table is empty")
	}

	if err := firstOf(tbl, "FIBERID", &f.Fiberid); err != nil {
		return f, nil, nil, err
	}
	for _, c := range []struct {
		name string
		dst  *float32
	}{
		{"Z1", &f.Z1}, {"Z2", &f.Z2},
		{"Z_ERR1", &f.ZErr1}, {"Z_ERR2", &f.ZErr2},
		{"ZWARNING", &f.ZWarning}, {"DOF", &f.DOF},
		{"NPOLY", &f.Npoly}, {"NPIXSTEP", &f.Npixstep},
	} {
		if err := firstOf(tbl, c.name, c.dst); err != nil {
			return f, nil, nil, err
		}
	}
	for _, c := range []struct {
		name string
		dst  *string
	}{
		{"CLASS", &f.Class}, {"SUBCLASS", &f.Subclass},
		{"MINVECTOR", &f.Minvector}, {"FNAME", &f.Fname},
	} {
		if err := firstOf(tbl, c.name, c.dst); err != nil {
			return f, nil, nil, err
		}
	}

	var model []float64
	if len(units) >= 3 && units[2].Data != nil {
		shape := units[2].Shape
		npix := shape[len(shape)-1]
		model = units[2].Data[:npix]
	}
	return f, model, units[0].Header, nil
}

// firstOf reads the first entry of a table column into dst, which must
// match the column's element type.
func firstOf[T any](tbl *fitsblock.Unit, name string, dst *T) error {
	col, err := tbl.Column(name)
	if err != nil {
		return err
	}
	s, ok := col.([]T)
	if !ok {
		return fmt.Errorf("column %s holds %T", name, col)
	}
	*dst = s[0]
	return nil
}
