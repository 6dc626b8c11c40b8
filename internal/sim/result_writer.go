package sim

import (
	"time"

	"infrasim/internal/run"
)

// ResultRow is one month result stamped with run identity, ready for a
// trajectory sink.
type ResultRow struct {
	RunID   string `json:"run_id"`
	AssetID string `json:"asset_id"`
	run.MonthResult
	Timestamp time.Time `json:"ts"`
}

// ResultWriter is an interface to support different trajectory sinks.
type ResultWriter interface {
	Write(ResultRow) error
}

// Optional: writers can also support batch mode.
type batchResultWriter interface {
	WriteBatch([]ResultRow) error
}

// MultiWriter fans result rows out to multiple writers.
type MultiWriter struct {
	writers []ResultWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...ResultWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a result row to all writers.
func (mw *MultiWriter) Write(row ResultRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []ResultRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchResultWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}
