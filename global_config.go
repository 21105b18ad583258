package benchacq

import (
	"log"
	"os"
	"time"
)

// BuildInfo can contain compile-time information about the build.
type BuildInfo struct {
	Version string
	Githash string
	Gitdate string
	Date    string
	Summary string
	Host    string
}

// Build is a global holding compile-time information about the build.
var Build = BuildInfo{
	Version: "0.1.0",
	Githash: "no git hash computed",
	Date:    "no build date computed",
}

// StartTime is a global holding the time init() was run.
var StartTime time.Time

// ProblemLogger logs warning messages. The benchacqd main program points
// it at a rotating log file.
var ProblemLogger *log.Logger

// UpdateLogger logs normal activity (sessions opened, signals created).
var UpdateLogger *log.Logger

// verbosity controls debug output such as spew dumps of new sessions.
var verbosity int

// SetVerbosity adjusts the debug output level (0 quiet, 2 dumps state).
func SetVerbosity(v int) { verbosity = v }

func init() {
	SetPortnumbers(5530)
	StartTime = time.Now()

	// The benchacqd main program will override these, but at least
	// initialize with a sensible value.
	ProblemLogger = log.New(os.Stderr, "", log.LstdFlags)
	UpdateLogger = log.New(os.Stderr, "", log.LstdFlags)
}
