package redmonster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sdss/redmonster/fitsblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinePlate(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir, Clobber: true}

	// Out-of-order writes; the plate file must come out fiber-sorted.
	for _, fib := range []int32{104, 7, 12} {
		zp := testPick(7338, 56660, fib)
		zp.Hdr = fitsblock.NewHeader()
		zp.Hdr.Set("PLUG_FIL", "plPlugMapM-7338", "")
		_, err := rw.WriteFiber(zp)
		require.NoError(t, err)
	}

	c := Combiner{Dir: dir, Plate: 7338, MJD: 56660}
	path, err := c.Combine(&rw)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "redmonster-7338-56660.fits"), path)

	units, err := fitsblock.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, units, 3)

	nf, _ := units[0].Header.Int("NFIBERS")
	assert.Equal(t, 3, nf)
	plug, ok := units[0].Header.Str("PLUG_FIL")
	assert.True(t, ok, "user card from the fiber files must carry over")
	assert.Equal(t, "plPlugMapM-7338", plug)

	tbl := units[1]
	fib, err := tbl.Column("FIBERID")
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 12, 104}, fib)
	class, err := tbl.Column("CLASS")
	require.NoError(t, err)
	assert.Equal(t, []string{"ssp_galaxy_glob", "ssp_galaxy_glob", "ssp_galaxy_glob"}, class)

	img := units[2]
	require.Equal(t, []int{3, 10}, img.Shape)
	// Row order must track the sorted fiber numbers.
	assert.Equal(t, 7.0, img.Data[0])
	assert.Equal(t, 12.0, img.Data[10])
	assert.Equal(t, 104.0, img.Data[20])
}

func TestCombineNoFiles(t *testing.T) {
	c := Combiner{Dir: t.TempDir(), Plate: 7338, MJD: 56660}
	if _, err := c.Gather(); err == nil {
		t.Error("Gather succeeded with no fiber files, want error")
	}
}

func TestCombineSkipsTimestampedLeftovers(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir}

	zp := testPick(7338, 56660, 266)
	_, err := rw.WriteFiber(zp)
	require.NoError(t, err)
	// A no-clobber rerun leaves a timestamped twin behind.
	second, err := rw.WriteFiber(zp)
	require.NoError(t, err)
	require.NotEqual(t, filepath.Base(second), "redmonster-7338-56660-266.fits")

	c := Combiner{Dir: dir, Plate: 7338, MJD: 56660}
	got, err := c.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1, got.NFibers(), "timestamped leftover must not contribute a fiber")
	assert.Equal(t, []int32{266}, got.Fiberid)
}

func TestCombineRejectsRaggedModels(t *testing.T) {
	dir := t.TempDir()
	rw := ResultWriter{Dest: dir, Clobber: true}

	zpA := testPick(7338, 56660, 7)
	_, err := rw.WriteFiber(zpA)
	require.NoError(t, err)

	// A fiber file whose model has a different pixel count.
	zpB := testPick(7338, 56660, 12)
	shape, data := zpB.modelData()
	require.Equal(t, []int{1, 10}, shape)
	f, err := os.Create(filepath.Join(dir, "redmonster-7338-56660-012.fits"))
	require.NoError(t, err)
	fw := fitsblock.NewWriter(f)
	hdr := fitsblock.NewHeader()
	hdr.Set("NFIBERS", 1, "")
	require.NoError(t, fw.WritePrimary(hdr, nil, nil))
	require.NoError(t, fw.WriteTableExt(nil, zpB.columns()))
	require.NoError(t, fw.WriteImageExt(nil, []int{1, 7}, data[:7]))
	require.NoError(t, f.Close())

	c := Combiner{Dir: dir, Plate: 7338, MJD: 56660}
	if _, err := c.Gather(); err == nil {
		t.Error("Gather accepted ragged model spectra, want error")
	}
}

func TestGatherUsesConfigTree(t *testing.T) {
	root := t.TempDir()
	cfg := Config{SpectroRedux: root, Run2D: "v5_7_0", Run1D: "v5_7_0"}
	rw := ResultWriter{Cfg: cfg, Clobber: true}
	_, err := rw.WriteFiber(testPick(7338, 56660, 266))
	require.NoError(t, err)

	c := Combiner{Cfg: cfg, Plate: 7338, MJD: 56660}
	got, err := c.Gather()
	require.NoError(t, err)
	assert.Equal(t, []int32{266}, got.Fiberid)
}
