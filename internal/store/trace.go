package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	traceFile           = "trace.jsonl"
	compressedTraceFile = "trace.jsonl.zst"
)

// TraceEntry records the outer search after one refinement level. Each entry
// is one JSON line.
type TraceEntry struct {
	Level          int       `json:"level"`
	Value          float64   `json:"value"`
	Alpha          []float64 `json:"alpha"`
	Beta           []float64 `json:"beta"`
	Points         int       `json:"points"`
	Evaluations    int64     `json:"evaluations"`
	PrunedSearches int64     `json:"prunedSearches"`
	Timestamp      time.Time `json:"timestamp"`
}

// TraceWriter writes trace entries as JSON lines, optionally zstd-compressed.
// It is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	enc    *zstd.Encoder // nil when uncompressed
	writer *bufio.Writer
	path   string
}

// NewTraceWriter creates <baseDir>/jobs/<jobID>/trace.jsonl, or
// trace.jsonl.zst when compress is set, truncating any previous trace.
func NewTraceWriter(baseDir, jobID string, compress bool) (*TraceWriter, error) {
	jobDir := filepath.Join(baseDir, "jobs", jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}
	// A trace in the other format would shadow or duplicate this one.
	if err := DeleteTrace(baseDir, jobID); err != nil {
		return nil, err
	}

	name := traceFile
	if compress {
		name = compressedTraceFile
	}
	path := filepath.Join(jobDir, name)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	tw := &TraceWriter{file: file, path: path}
	var dst io.Writer = file
	if compress {
		tw.enc, err = zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		dst = tw.enc
	}
	tw.writer = bufio.NewWriterSize(dst, 64*1024)
	return tw, nil
}

// Write buffers one entry. It reaches the file on Flush or Close.
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Flush pushes buffered entries through the encoder and syncs the file. A
// plain trace is then readable up to the last entry; a compressed one only
// after Close ends the zstd frame.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if tw.enc != nil {
		if err := tw.enc.Flush(); err != nil {
			return fmt.Errorf("failed to flush zstd encoder: %w", err)
		}
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data, finishes the zstd frame and closes the file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if tw.enc != nil {
		if err := tw.enc.Close(); err != nil {
			tw.file.Close()
			return fmt.Errorf("failed to close zstd encoder: %w", err)
		}
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// Compressed reports whether the trace is zstd-compressed.
func (tw *TraceWriter) Compressed() bool {
	return tw.enc != nil
}

// TraceReader reads trace entries in either format.
type TraceReader struct {
	file    *os.File
	dec     *zstd.Decoder
	scanner *bufio.Scanner
}

// NewTraceReader opens the job's trace, preferring the compressed file.
func NewTraceReader(baseDir, jobID string) (*TraceReader, error) {
	jobDir := filepath.Join(baseDir, "jobs", jobID)

	compressed := true
	file, err := os.Open(filepath.Join(jobDir, compressedTraceFile))
	if os.IsNotExist(err) {
		compressed = false
		file, err = os.Open(filepath.Join(jobDir, traceFile))
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{JobID: jobID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	tr := &TraceReader{file: file}
	var src io.Reader = file
	if compressed {
		tr.dec, err = zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		src = tr.dec
	}
	tr.scanner = bufio.NewScanner(src)
	tr.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return tr, nil
}

// Read returns the next entry, or io.EOF when the trace is exhausted.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace entry: %w", err)
	}
	return &entry, nil
}

// ReadAll reads the remaining entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Close releases the decoder and the file.
func (tr *TraceReader) Close() error {
	if tr.dec != nil {
		tr.dec.Close()
	}
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadTrace loads a job's whole trace.
func ReadTrace(baseDir, jobID string) ([]TraceEntry, error) {
	tr, err := NewTraceReader(baseDir, jobID)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return tr.ReadAll()
}

// DeleteTrace removes the job's trace in both formats. Missing files are not
// an error.
func DeleteTrace(baseDir, jobID string) error {
	jobDir := filepath.Join(baseDir, "jobs", jobID)
	for _, name := range []string{traceFile, compressedTraceFile} {
		err := os.Remove(filepath.Join(jobDir, name))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete trace file: %w", err)
		}
	}
	return nil
}
