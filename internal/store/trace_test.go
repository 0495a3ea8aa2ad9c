package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testEntries() []TraceEntry {
	now := time.Now()
	return []TraceEntry{
		{Level: 0, Value: 0.3333, Alpha: []float64{1.0 / 3}, Beta: []float64{1}, Evaluations: 64, Timestamp: now},
		{Level: 1, Value: 0.1111, Alpha: []float64{4.0 / 9}, Beta: []float64{1}, Evaluations: 190, PrunedSearches: 3, Timestamp: now},
		{Level: 2, Value: 0.0370, Alpha: []float64{13.0 / 27}, Beta: []float64{1}, Evaluations: 301, PrunedSearches: 8, Timestamp: now},
	}
}

func writeTrace(t *testing.T, dir, jobID string, compress bool, entries []TraceEntry) *TraceWriter {
	t.Helper()

	writer, err := NewTraceWriter(dir, jobID, compress)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	return writer
}

func TestTraceWriter_WriteAndRead(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			tmpDir := t.TempDir()
			jobID := "test-job-123"
			entries := testEntries()

			writer := writeTrace(t, tmpDir, jobID, compress, entries)

			wantName := "trace.jsonl"
			if compress {
				wantName = "trace.jsonl.zst"
			}
			if filepath.Base(writer.Path()) != wantName {
				t.Errorf("Expected trace at %s, got %s", wantName, writer.Path())
			}
			if writer.Compressed() != compress {
				t.Errorf("Compressed() = %v, want %v", writer.Compressed(), compress)
			}

			got, err := ReadTrace(tmpDir, jobID)
			if err != nil {
				t.Fatalf("Failed to read trace: %v", err)
			}
			if len(got) != len(entries) {
				t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
			}
			for i, entry := range got {
				if entry.Level != entries[i].Level {
					t.Errorf("Entry %d: expected level %d, got %d", i, entries[i].Level, entry.Level)
				}
				if entry.Value != entries[i].Value {
					t.Errorf("Entry %d: expected value %f, got %f", i, entries[i].Value, entry.Value)
				}
				if entry.Alpha[0] != entries[i].Alpha[0] {
					t.Errorf("Entry %d: expected alpha %v, got %v", i, entries[i].Alpha, entry.Alpha)
				}
				if entry.PrunedSearches != entries[i].PrunedSearches {
					t.Errorf("Entry %d: expected %d pruned, got %d", i, entries[i].PrunedSearches, entry.PrunedSearches)
				}
			}
		})
	}
}

func TestTraceWriter_CompressedIsNotPlainJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writer := writeTrace(t, tmpDir, "job", true, testEntries())

	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"level"`) {
		t.Error("Compressed trace should not contain plain JSON keys")
	}
}

func TestTraceWriter_ReplacesOtherFormat(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "job-switch"

	writeTrace(t, tmpDir, jobID, true, testEntries())
	writeTrace(t, tmpDir, jobID, false, testEntries()[:1])

	if _, err := os.Stat(filepath.Join(tmpDir, "jobs", jobID, "trace.jsonl.zst")); !os.IsNotExist(err) {
		t.Error("Compressed trace should have been removed")
	}
	got, err := ReadTrace(tmpDir, jobID)
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 entry from the new trace, got %d", len(got))
	}
}

func TestTraceWriter_FlushMakesEntriesVisible(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "job-flush"

	writer, err := NewTraceWriter(tmpDir, jobID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	for _, entry := range testEntries() {
		if err := writer.Write(entry); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := ReadTrace(tmpDir, jobID)
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 entries after flush, got %d", len(got))
	}
}

func TestTraceWriter_FlushCompressed(t *testing.T) {
	writer, err := NewTraceWriter(t.TempDir(), "job-flush-zst", true)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	if err := writer.Write(testEntries()[0]); err != nil {
		t.Fatal(err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	info, err := os.Stat(writer.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("Expected compressed bytes on disk after flush")
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "nonexistent-job")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceReader_CorruptLine(t *testing.T) {
	tmpDir := t.TempDir()
	jobDir := filepath.Join(tmpDir, "jobs", "job")
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "trace.jsonl"), []byte("{\"level\":0}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadTrace(tmpDir, "job"); err == nil {
		t.Error("Expected error for corrupt trace line")
	}
}

func TestDeleteTrace(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "job-delete"
	writer := writeTrace(t, tmpDir, jobID, true, testEntries())

	if err := DeleteTrace(tmpDir, jobID); err != nil {
		t.Fatalf("DeleteTrace failed: %v", err)
	}
	if _, err := os.Stat(writer.Path()); !os.IsNotExist(err) {
		t.Error("Trace file should be deleted")
	}
	if err := DeleteTrace(tmpDir, "never-existed"); err != nil {
		t.Errorf("DeleteTrace should not error for nonexistent file, got: %v", err)
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	jobID := "test-job-concurrent"

	writer, err := NewTraceWriter(tmpDir, jobID, true)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := TraceEntry{Level: i, Value: float64(i), Timestamp: time.Now()}
			if err := writer.Write(entry); err != nil {
				t.Errorf("Concurrent write failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadTrace(tmpDir, jobID)
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 entries, got %d", len(entries))
	}
}
