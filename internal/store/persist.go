package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// PersistenceError reports a failed read or write of the sample file.
// It is always recoverable: loads fall back to an empty sequence.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// record is the on-disk shape; an empty session is written as null
type record struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Timestamp float64 `json:"timestamp"`
	Session   *string `json:"session"`
}

func toRecords(samples []Sample) []record {
	records := make([]record, len(samples))
	for i, s := range samples {
		records[i] = record{X: s.X, Y: s.Y, Timestamp: s.Timestamp}
		if s.SessionID != "" {
			id := s.SessionID
			records[i].Session = &id
		}
	}
	return records
}

func fromRecords(records []record) []Sample {
	samples := make([]Sample, len(records))
	for i, r := range records {
		samples[i] = Sample{X: r.X, Y: r.Y, Timestamp: r.Timestamp}
		if r.Session != nil {
			samples[i].SessionID = *r.Session
		}
	}
	return samples
}

// Save writes samples to path as a JSON array, replacing the file
func Save(path string, samples []Sample) error {
	data, err := json.MarshalIndent(toRecords(samples), "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: path, Err: err}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &PersistenceError{Op: "write", Path: path, Err: err}
		}
	}

	// Write next to the target and rename so a crash never leaves a half file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}

	log.Printf("Store: Saved %d samples to %s", len(samples), path)
	return nil
}

// Load reads samples from path.
// A missing file yields an empty sequence and no error. An unreadable or
// corrupt file yields an empty sequence and a *PersistenceError.
func Load(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Sample{}, nil
	}
	if err != nil {
		return []Sample{}, &PersistenceError{Op: "read", Path: path, Err: err}
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return []Sample{}, &PersistenceError{Op: "decode", Path: path, Err: err}
	}

	log.Printf("Store: Loaded %d samples from %s", len(records), path)
	return fromRecords(records), nil
}

// ExportCSV writes samples as x,y,timestamp,session rows with a header
func ExportCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "timestamp", "session"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.Itoa(s.X),
			strconv.Itoa(s.Y),
			strconv.FormatFloat(s.Timestamp, 'f', -1, 64),
			s.SessionID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
