package redmonster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sdss/redmonster/fitsblock"
	"github.com/sdss/redmonster/internal/rundb"
)

// FileUpdate is a status message about one written file, for the
// status publisher.
type FileUpdate struct {
	Tag     string
	Message []byte
}

// ResultWriter writes per-fiber and per-plate result files. The
// destination directory comes from the reduction tree in Cfg unless
// Dest overrides it; both fall back to the working directory. With
// Clobber false an existing file is kept and the new one gets a
// UTC-timestamped name instead.
type ResultWriter struct {
	Cfg     Config
	Dest    string
	Clobber bool

	// DB, when connected, receives a provenance record per written file.
	DB *rundb.Connection
	// Updates, when non-nil, receives a status message per written file.
	Updates chan<- FileUpdate
}

// WriteFiber writes the result file for a single fiber,
// redmonster-PLATE-MJD-FFF.fits, and returns its path.
func (rw *ResultWriter) WriteFiber(zp *ZPick) (string, error) {
	if err := zp.validate(); err != nil {
		return "", err
	}
	if zp.NFibers() != 1 {
		return "", fmt.Errorf("fiber file wants exactly 1 fiber, have %d", zp.NFibers())
	}
	name := fmt.Sprintf("redmonster-%d-%d-%03d.fits", zp.Plate, zp.MJD, zp.Fiberid[0])
	return rw.write(zp, name, "fiber")
}

// WritePlate writes the combined result file for a whole plate,
// redmonster-PLATE-MJD.fits, and returns its path.
func (rw *ResultWriter) WritePlate(zp *ZPick) (string, error) {
	if err := zp.validate(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("redmonster-%d-%d.fits", zp.Plate, zp.MJD)
	return rw.write(zp, name, "plate")
}

func (rw *ResultWriter) write(zp *ZPick, name, filetype string) (string, error) {
	dir, err := rw.outputDir(zp.Plate)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if !rw.Clobber {
		if _, err := os.Stat(path); err == nil {
			path = filepath.Join(dir, timestampName(name))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := writeResultHDUs(f, zp); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	UpdateLogger.Printf("wrote %s (%d fibers)", path, zp.NFibers())
	rw.record(path, zp, filetype)
	return path, nil
}

func (rw *ResultWriter) outputDir(plate int) (string, error) {
	if rw.Dest != "" {
		if err := os.MkdirAll(rw.Dest, 0775); err != nil {
			return "", err
		}
		return rw.Dest, nil
	}
	return rw.Cfg.OutputDir(plate)
}

// timestampName inserts a UTC timestamp before the extension, so a
// no-clobber rewrite never shadows the existing file.
func timestampName(name string) string {
	stamp := time.Now().UTC().Format("2006-01-02_15:04:05")
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), stamp, ext)
}

// writeResultHDUs lays out a result file: a header-only primary HDU,
// the per-fiber measurement table, and the model-spectra image.
func writeResultHDUs(f *os.File, zp *ZPick) error {
	hdr := fitsblock.NewHeader()
	copyUserCards(hdr, zp.Hdr)
	hdr.Set("VERS_RM", "v"+Build.Version, "Version of redmonster")
	hdr.Set("DATE_RM", time.Now().UTC().Format("2006-01-02_15:04:05"), "Time redmonster file was written")
	hdr.Set("NFIBERS", zp.NFibers(), "Number of fibers")

	fw := fitsblock.NewWriter(f)
	if err := fw.WritePrimary(hdr, nil, nil); err != nil {
		return err
	}
	if err := fw.WriteTableExt(nil, zp.columns()); err != nil {
		return err
	}
	shape, data := zp.modelData()
	if data == nil {
		return nil
	}
	return fw.WriteImageExt(nil, shape, data)
}

// copyUserCards copies non-structural cards from src to dst. Structural
// and layout keys would collide with the cards the writer emits itself.
func copyUserCards(dst, src *fitsblock.Header) {
	if src == nil {
		return
	}
	for _, c := range src.Cards() {
		if structuralKey(c.Key) {
			continue
		}
		dst.Set(c.Key, c.Value, c.Comment)
	}
}

func structuralKey(key string) bool {
	switch key {
	case "SIMPLE", "EXTEND", "XTENSION", "BITPIX", "PCOUNT", "GCOUNT", "TFIELDS":
		return true
	}
	for _, prefix := range []string{"NAXIS", "TTYPE", "TFORM"} {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (rw *ResultWriter) record(path string, zp *ZPick, filetype string) {
	if rw.DB.IsConnected() {
		rw.DB.RecordFile(&rundb.FileMessage{
			ID:       rundb.NewID(),
			Plate:    zp.Plate,
			MJD:      zp.MJD,
			Filename: path,
			Filetype: filetype,
			Nfibers:  zp.NFibers(),
			Written:  time.Now(),
		})
	}
	if rw.Updates != nil {
		msg, err := json.Marshal(struct {
			Filename string
			Filetype string
			Plate    int
			MJD      int
			Nfibers  int
		}{path, filetype, zp.Plate, zp.MJD, zp.NFibers()})
		if err != nil {
			ProblemLogger.Printf("could not encode status message: %v", err)
			return
		}
		// The publisher may have died on a socket error; never let a
		// stalled status channel block the write path.
		select {
		case rw.Updates <- FileUpdate{Tag: "WRITTEN", Message: msg}:
		default:
			ProblemLogger.Printf("status channel full, dropping WRITTEN update for %s", path)
		}
	}
}
