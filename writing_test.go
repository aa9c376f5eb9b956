package redmonster

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdss/redmonster/fitsblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// testPick builds a ZPick with plausible single-plate results and a
// 10-pixel model spectrum per fiber.
func testPick(plate, mjd int, fibers ...int32) *ZPick {
	zp := &ZPick{Plate: plate, MJD: mjd}
	models := mat.NewDense(len(fibers), 10, nil)
	for i, fib := range fibers {
		zp.AppendFiber(FiberResult{
			Fiberid:   fib,
			Z1:        0.5 + 0.125*float32(i),
			Z2:        0.5 + 0.125*float32(i) + 0.0625,
			ZErr1:     1.5e-4,
			ZErr2:     2.5e-4,
			Class:     "ssp_galaxy_glob",
			Subclass:  "",
			Minvector: "(4, 1, 2)",
			ZWarning:  0,
			DOF:       4032,
			Npoly:     4,
			Fname:     "ndArch-ssp_galaxy_glob-v000.fits",
			Npixstep:  1,
		})
		for k := 0; k < 10; k++ {
			models.Set(i, k, float64(fib)+float64(k)*0.25)
		}
	}
	zp.Models = models
	return zp
}

func TestWriteFiberAndReadBack(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir, Clobber: true}
	zp := testPick(7338, 56660, 266)

	path, err := rw.WriteFiber(zp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "redmonster-7338-56660-266.fits"), path)

	units, err := fitsblock.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, units, 3)

	nf, ok := units[0].Header.Int("NFIBERS")
	assert.True(t, ok)
	assert.Equal(t, 1, nf)
	vers, _ := units[0].Header.Str("VERS_RM")
	assert.Equal(t, "v"+Build.Version, vers)
	_, ok = units[0].Header.Str("DATE_RM")
	assert.True(t, ok)

	tbl := units[1]
	require.True(t, tbl.IsTable())
	fib, err := tbl.Column("FIBERID")
	require.NoError(t, err)
	assert.Equal(t, []int32{266}, fib)
	class, err := tbl.Column("CLASS")
	require.NoError(t, err)
	assert.Equal(t, []string{"ssp_galaxy_glob"}, class)
	z1, err := tbl.Column("Z1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, z1)

	img := units[2]
	assert.Equal(t, []int{1, 10}, img.Shape)
	assert.Equal(t, 266.0, img.Data[0])
	assert.Equal(t, 266.25, img.Data[1])
}

func TestWriteFiberValidation(t *testing.T) {
	rw := ResultWriter{Dest: t.TempDir()}

	// Two fibers cannot go in a fiber file.
	if _, err := rw.WriteFiber(testPick(7338, 56660, 266, 267)); err == nil {
		t.Error("WriteFiber accepted 2 fibers, want error")
	}

	// A ragged column must be rejected before the file is touched.
	zp := testPick(7338, 56660, 266)
	zp.Z1 = append(zp.Z1, 9)
	if _, err := rw.WriteFiber(zp); err == nil {
		t.Error("WriteFiber accepted a ragged column, want error")
	}
	matches, _ := filepath.Glob(filepath.Join(rw.Dest, "*.fits"))
	assert.Empty(t, matches, "validation failure left a file behind")
}

func TestNoClobberKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir}
	zp := testPick(7338, 56660, 266)

	first, err := rw.WriteFiber(zp)
	require.NoError(t, err)
	second, err := rw.WriteFiber(zp)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "second write must not reuse the name")
	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
}

func TestClobberOverwrites(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir, Clobber: true}
	zp := testPick(7338, 56660, 266)

	first, err := rw.WriteFiber(zp)
	require.NoError(t, err)
	second, err := rw.WriteFiber(zp)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	matches, err := filepath.Glob(filepath.Join(dir, "*.fits"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestWritePlateCarriesUserCards(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir, Clobber: true}
	zp := testPick(7338, 56660, 7, 12)
	zp.Hdr = fitsblock.NewHeader()
	zp.Hdr.Set("PLUG_FIL", "plPlugMapM-7338", "plugmap of the source reduction")
	zp.Hdr.Set("NAXIS1", 4000, "structural card, must not carry over")

	path, err := rw.WritePlate(zp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "redmonster-7338-56660.fits"), path)

	units, err := fitsblock.ReadFile(path)
	require.NoError(t, err)
	plug, ok := units[0].Header.Str("PLUG_FIL")
	assert.True(t, ok)
	assert.Equal(t, "plPlugMapM-7338", plug)
	if _, ok := units[0].Header.Int("NAXIS1"); ok {
		t.Error("structural NAXIS1 card carried into a header-only HDU")
	}
	nf, _ := units[0].Header.Int("NFIBERS")
	assert.Equal(t, 2, nf)
}

func TestWritePublishesUpdate(t *testing.T) {
	updates := make(chan FileUpdate, 1)
	rw := ResultWriter{Dest: t.TempDir(), Clobber: true, Updates: updates}
	path, err := rw.WriteFiber(testPick(7338, 56660, 266))
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, "WRITTEN", u.Tag)
		assert.Contains(t, string(u.Message), filepath.Base(path))
		assert.Contains(t, string(u.Message), `"Filetype":"fiber"`)
	default:
		t.Error("no update published for the written file")
	}
}

func TestWriteSurvivesDeadPublisher(t *testing.T) {
	// Nobody drains the channel; the write must still complete, dropping
	// the update.
	rw := ResultWriter{Dest: t.TempDir(), Clobber: true, Updates: make(chan FileUpdate)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := rw.WriteFiber(testPick(7338, 56660, 266))
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("write blocked on an undrained status channel")
	}
}

func TestTimestampName(t *testing.T) {
	got := timestampName("redmonster-7338-56660.fits")
	assert.True(t, len(got) > len("redmonster-7338-56660.fits"))
	assert.Equal(t, ".fits", filepath.Ext(got))
	assert.Contains(t, got, "redmonster-7338-56660-")
}

func TestConfigPlateDir(t *testing.T) {
	c := Config{SpectroRedux: "/redux", Run2D: "v5_7_0", Run1D: "v5_7_0"}
	dir, ok := c.PlateDir(7338)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/redux", "v5_7_0", "7338", "v5_7_0"), dir)

	for _, broken := range []Config{
		{Run2D: "a", Run1D: "b"},
		{SpectroRedux: "/redux", Run1D: "b"},
		{SpectroRedux: "/redux", Run2D: "a"},
	} {
		if _, ok := broken.PlateDir(7338); ok {
			t.Errorf("PlateDir succeeded with incomplete config %+v", broken)
		}
	}
}

func TestOutputDirFallsBackToCwd(t *testing.T) {
	var c Config
	dir, err := c.OutputDir(7338)
	require.NoError(t, err)
	cwd, _ := os.Getwd()
	assert.Equal(t, cwd, dir)
}

func TestOutputDirCreatesTree(t *testing.T) {
	root := t.TempDir()
	c := Config{SpectroRedux: root, Run2D: "v5_7_0", Run1D: "v5_7_0"}
	dir, err := c.OutputDir(7338)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "v5_7_0", "7338", "v5_7_0"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStructuralKey(t *testing.T) {
	for _, key := range []string{"SIMPLE", "BITPIX", "NAXIS", "NAXIS3", "TTYPE12", "TFORM1", "XTENSION"} {
		assert.True(t, structuralKey(key), "%s must be structural", key)
	}
	for _, key := range []string{"PLUG_FIL", "VERS_RM", "CRVAL1", fmt.Sprintf("PV%d_%d", 2, 1)} {
		assert.False(t, structuralKey(key), "%s must not be structural", key)
	}
}
