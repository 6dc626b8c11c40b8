package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ReplayLog replays result rows from r to writer. A speed > 0 inserts a
// pause between rows, scaled so speed 1.0 means one row per second.
func ReplayLog(r io.Reader, writer ResultWriter, speed float64) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row ResultRow
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("parse result row: %w", err)
		}
		if !first && speed > 0 {
			time.Sleep(time.Duration(float64(time.Second) / speed))
		}
		first = false
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReplayLogFile opens a JSONL trajectory file and replays its rows.
func ReplayLogFile(path string, writer ResultWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
