package redmonster

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config carries the output-tree settings of the pipeline. The original
// environment variables keep their names as viper keys, so either a
// config file or the environment can supply them.
type Config struct {
	SpectroRedux string // root of the reduction tree ($REDMONSTER_SPECTRO_REDUX)
	Run2D        string // 2D reduction version ($RUN2D)
	Run1D        string // 1D reduction version ($RUN1D)
}

// ConfigFromViper snapshots the current viper state into a Config.
func ConfigFromViper() Config {
	return Config{
		SpectroRedux: viper.GetString("REDMONSTER_SPECTRO_REDUX"),
		Run2D:        viper.GetString("RUN2D"),
		Run1D:        viper.GetString("RUN1D"),
	}
}

// PlateDir returns the per-plate directory of the reduction tree,
// without creating it. ok is false when any tree component is unset.
func (c Config) PlateDir(plate int) (dir string, ok bool) {
	if c.SpectroRedux == "" || c.Run2D == "" || c.Run1D == "" {
		return "", false
	}
	return filepath.Join(c.SpectroRedux, c.Run2D, strconv.Itoa(plate), c.Run1D), true
}

// OutputDir returns the directory result files for a plate should be
// written to, creating it if needed. When the reduction tree is not
// configured, or its directory cannot be created, it falls back to the
// current working directory.
func (c Config) OutputDir(plate int) (string, error) {
	dir, ok := c.PlateDir(plate)
	if ok {
		if err := os.MkdirAll(dir, 0775); err == nil {
			return dir, nil
		}
		ProblemLogger.Printf("cannot create %s, falling back to working directory", dir)
	}
	return os.Getwd()
}
