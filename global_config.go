package redmonster

import (
	"log"
	"os"
	"time"
)

// Portnumbers structs can contain all TCP port numbers used by redmonster.
type Portnumbers struct {
	Status int
}

// Ports globally holds all TCP port numbers used by redmonster.
var Ports Portnumbers

func setPortnumbers(base int) {
	Ports.Status = base
}

// BuildInfo can contain compile-time information about the build
type BuildInfo struct {
	Version string
	Githash string
	Date    string
}

// Build is a global holding compile-time information about the build
var Build = BuildInfo{
	Version: "0.1.0",
	Githash: "no git hash computed",
	Date:    "no build date computed",
}

// StartTime is a global holding the time init() was run
var StartTime time.Time

// ProblemLogger will log warning messages to a file
var ProblemLogger *log.Logger

// UpdateLogger will log progress messages as files are written
var UpdateLogger *log.Logger

func init() {
	setPortnumbers(5520)
	StartTime = time.Now()

	// The redmonster main program will override these, but at least
	// initialize with sensible values.
	ProblemLogger = log.New(os.Stderr, "", log.LstdFlags)
	UpdateLogger = log.New(os.Stderr, "", log.LstdFlags)
}
