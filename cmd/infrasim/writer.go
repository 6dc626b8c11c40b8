package main

import (
	"os"

	"infrasim/internal/sim"
)

// newWriters sets up the trajectory sink based on flags and env vars. It
// returns the writer (possibly nil when all sinks are suppressed) and a
// cleanup function to close any resources.
func newWriters(printOnly, suppressStdout bool, logFile string) (sim.ResultWriter, func(), error) {
	cleanup := func() {}

	writer, err := baseWriter(printOnly, suppressStdout)
	if err != nil {
		return nil, nil, err
	}
	if logFile == "" {
		return writer, cleanup, nil
	}

	fw, err := sim.NewFileWriter(logFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup = func() { fw.Close() }
	if writer == nil {
		return fw, cleanup, nil
	}
	return sim.NewMultiWriter(writer, fw), cleanup, nil
}

// baseWriter chooses the underlying sink based on the printOnly flag and
// env vars. suppressStdout disables the STDOUT fallback so a TUI can own
// the terminal.
func baseWriter(printOnly, suppressStdout bool) (sim.ResultWriter, error) {
	if printOnly || os.Getenv("GREPTIMEDB_ENDPOINT") == "" {
		if suppressStdout {
			return nil, nil
		}
		return sim.NewJSONStdoutWriter(), nil
	}

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	table := os.Getenv("GREPTIMEDB_TABLE")
	if table == "" {
		table = "asset_condition"
	}
	return sim.NewGreptimeDBWriter(endpoint, "public", table)
}
