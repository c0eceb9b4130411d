package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ohler55/ojg/oj"

	"github.com/ftahirops/xrewind/model"
)

// FileSource serves an archive file through the same interface as the
// remote API. The whole archive is returned on the first fetch regardless
// of the requested window; the loaded-span tracker then prevents further
// fetches from being issued for anything it covered.
type FileSource struct {
	Path string

	mu   sync.Mutex
	read bool
}

// NewFileSource creates a source over an archive file.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return s.Path }

// Fetch reads the archive once; later calls return nothing, since a file
// cannot produce records it did not already contain.
func (s *FileSource) Fetch(ctx context.Context, machineID string, span model.Span) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.read {
		return nil, nil
	}
	lines, err := ReadArchive(s.Path)
	if err != nil {
		return nil, &FetchError{Reason: fmt.Sprintf("could not read archive %s", s.Path), Err: err}
	}
	s.read = true
	return lines, nil
}

// ReadArchive reads an archive into raw JSON lines. The archive is a gzip
// or plain file holding either newline-delimited JSON or one JSON array.
func ReadArchive(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if gz, err := gzip.NewReader(r.(*bufio.Reader)); err == nil {
		defer gz.Close()
		r = gz
	} else {
		// Not gzip; rewind and read plain.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		r = bufio.NewReader(f)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return splitArray(trimmed)
	}
	return splitLines(data), nil
}

// splitArray re-emits the elements of a JSON array document as lines.
func splitArray(data []byte) ([][]byte, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decode archive array: %w", err)
	}
	arr, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("archive document is not an array")
	}
	lines := make([][]byte, 0, len(arr))
	for _, elem := range arr {
		lines = append(lines, []byte(oj.JSON(elem)))
	}
	return lines, nil
}

// ArchiveWriter writes raw telemetry lines to a gzip NDJSON archive.
// Records written out and re-ingested reproduce an equivalent record store.
type ArchiveWriter struct {
	mu sync.Mutex
	f  *os.File
	gz *gzip.Writer
}

// NewArchiveWriter creates (or truncates) the archive at path.
func NewArchiveWriter(path string) (*ArchiveWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	return &ArchiveWriter{f: f, gz: gzip.NewWriter(f)}, nil
}

// WriteLines appends raw record lines to the archive.
func (w *ArchiveWriter) WriteLines(lines [][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if _, err := w.gz.Write(line); err != nil {
			return err
		}
		if _, err := w.gz.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the archive.
func (w *ArchiveWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.gz.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
