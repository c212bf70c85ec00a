package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func sampleSet() []Sample {
	return []Sample{
		{X: 10, Y: 20, Timestamp: 1718000000.123456, SessionID: "a"},
		{X: -217, Y: 982, Timestamp: 1718000000.5, SessionID: "a"},
		{X: 0, Y: -5, Timestamp: 1718000001.000001, SessionID: ""},
		{X: 1703, Y: 2062, Timestamp: 1718000002.75, SessionID: "b"},
	}
}

func TestStoreAppendPreservesOrder(t *testing.T) {
	s := New()
	for _, sample := range sampleSet() {
		s.Append(sample)
	}

	if s.Len() != 4 {
		t.Fatalf("Expected 4 samples, got %d", s.Len())
	}
	if !reflect.DeepEqual(s.All(), sampleSet()) {
		t.Errorf("Expected insertion order to be preserved, got %+v", s.All())
	}

	ids := s.Sessions()
	if !reflect.DeepEqual(ids, []string{"a", "", "b"}) {
		t.Errorf("Expected sessions [a  b], got %q", ids)
	}
}

func TestStoreAllIsSnapshot(t *testing.T) {
	s := New()
	s.Append(Sample{X: 1})
	snap := s.All()
	s.Append(Sample{X: 2})
	snap[0].X = 99

	if len(snap) != 1 {
		t.Errorf("Expected snapshot length 1, got %d", len(snap))
	}
	if s.All()[0].X != 1 {
		t.Error("Expected snapshot mutation not to affect the store")
	}
}

func TestStoreClear(t *testing.T) {
	s := New()
	s.Append(Sample{X: 1})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Expected empty store after Clear, got %d", s.Len())
	}
}

func TestStoreConcurrentAppendAndRead(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			s.Append(Sample{X: i, Y: i})
		}
	}()

	for i := 0; i < 50; i++ {
		all := s.All()
		for j, sample := range all {
			if sample.X != j {
				t.Fatalf("Torn read: index %d holds X=%d", j, sample.X)
			}
		}
	}
	wg.Wait()

	if s.Len() != 5000 {
		t.Errorf("Expected 5000 samples, got %d", s.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pointer_data.json")

	if err := Save(path, sampleSet()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, sampleSet()) {
		t.Errorf("Round trip mismatch:\nwant %+v\ngot  %+v", sampleSet(), loaded)
	}
}

func TestSaveWritesNullSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := Save(path, []Sample{{X: 1, Y: 2, Timestamp: 3}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"session": null`) {
		t.Errorf("Expected null session in %s", data)
	}
}

func TestClearSaveLoadIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := New()
	for _, sample := range sampleSet() {
		s.Append(sample)
	}
	if err := Save(path, s.All()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.Clear()
	if err := Save(path, s.All()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Expected empty sequence, got %d samples", len(loaded))
	}
}

func TestLoadMissingFile(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Errorf("Expected no error for missing file, got %v", err)
	}
	if loaded == nil || len(loaded) != 0 {
		t.Errorf("Expected empty non-nil sequence, got %v", loaded)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[{"x": 1, "y":`), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if len(loaded) != 0 {
		t.Errorf("Expected empty sequence, got %d samples", len(loaded))
	}

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if perr.Op != "decode" || perr.Path != path {
		t.Errorf("Unexpected error fields: %+v", perr)
	}
}

func TestSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	err := Save(filepath.Join(blocker, "data.json"), sampleSet())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, sampleSet()[:2]); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	want := "x,y,timestamp,session\n10,20,1718000000.123456,a\n-217,982,1718000000.5,a\n"
	if buf.String() != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, buf.String())
	}
}
