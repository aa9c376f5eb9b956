package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sdss/redmonster"
	"github.com/sdss/redmonster/internal/rundb"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	// Create directory <path>, if needed
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		err2 := os.MkdirAll(dir, 0775)
		if err2 != nil {
			return "", err2
		}
	}

	// Create an empty file path/filename, if it doesn't exist.
	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper sets up the viper configuration manager: says where to find config
// files and the filename and suffix. Binds the reduction-tree environment
// variables so they work without a config file.
func setupViper() error {
	viper.SetDefault("Verbose", false)
	for _, key := range []string{"REDMONSTER_SPECTRO_REDUX", "RUN2D", "RUN1D"} {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
	}

	HOME, err := os.UserHomeDir()
	if err != nil { // Handle errors reading the config file
		fmt.Printf("Error finding User Home Dir: %s\n", err)
	}
	dotRedmonster := filepath.Join(HOME, ".redmonster")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotRedmonster, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/redmonster"))
	viper.AddConfigPath(dotRedmonster)
	viper.AddConfigPath(".")
	err = viper.ReadInConfig() // Find and read the config file
	if err != nil {            // Handle errors reading the config file
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	probFile, err := os.OpenFile(pfname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		msg := fmt.Sprintf("Could not open log file '%s'", pfname)
		panic(msg)
	}
	probLogger := log.New(probFile, "", log.LstdFlags)
	probLogger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	})
	return probLogger
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	redmonster.Build.Date = buildDate
	redmonster.Build.Githash = githash

	printVersion := flag.Bool("version", false, "print version and quit")
	plate := flag.Int("plate", 0, "plate number to combine")
	mjd := flag.Int("mjd", 0, "MJD of the plate observation")
	dir := flag.String("dir", "", "directory holding the fiber files (default: the reduction tree, else the working directory)")
	clobber := flag.Bool("clobber", false, "overwrite an existing plate file")
	useDB := flag.Bool("db", false, "record written files in the ClickHouse database")
	pingDB := flag.Bool("pingdb", false, "check the database connection and quit")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is redmonster version %s\n", redmonster.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		os.Exit(0)
	}
	if *pingDB {
		if err := rundb.PingServer(); err != nil {
			fmt.Printf("Database ping failed: %s\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *plate <= 0 || *mjd <= 0 {
		fmt.Println("redmonster combines per-fiber result files into a plate file.")
		fmt.Println("Both -plate and -mjd are required.")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start logging problems and updates to 2 log files.
	HOME, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(HOME, ".redmonster", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	redmonster.ProblemLogger = startLogger(problemname)
	redmonster.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems to %s\n", problemname)
	fmt.Printf("Logging updates  to %s\n", logname)

	// Find config file, creating it if needed, and read it.
	if err := setupViper(); err != nil {
		panic(err)
	}
	cfg := redmonster.ConfigFromViper()

	abort := make(chan struct{})
	defer close(abort)
	updates := make(chan redmonster.FileUpdate, 16)
	go redmonster.RunStatusPublisher(updates, redmonster.Ports.Status, abort)

	db := rundb.DummyConnection()
	if *useDB {
		hostname, _ := os.Hostname()
		db = rundb.StartConnection(&rundb.RunMessage{
			ID:        rundb.NewID(),
			Hostname:  hostname,
			Githash:   githash,
			Version:   redmonster.Build.Version,
			GoVersion: runtime.Version(),
			Start:     redmonster.StartTime,
		}, abort)
	}

	combiner := redmonster.Combiner{Cfg: cfg, Dir: *dir, Plate: *plate, MJD: *mjd}
	writer := redmonster.ResultWriter{Cfg: cfg, Dest: *dir, Clobber: *clobber, DB: db, Updates: updates}
	outname, err := combiner.Combine(&writer)
	if err != nil {
		redmonster.ProblemLogger.Printf("combine failed: %v", err)
		fmt.Printf("Combine failed: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", outname)
}
