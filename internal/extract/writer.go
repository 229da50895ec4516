package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// CSVWriter is the scoped-acquisition writer contract from spec.md §4.4: on
// Open it writes a header row of the extractor's declared fields; Write
// appends one row per record; Close flushes and closes the file. All CSV
// files are opened and closed exclusively on the driving goroutine, never
// from a worker (spec.md §5 "Shared-resource policy").
type CSVWriter struct {
	fields []string
	file   *os.File
	csv    *csv.Writer
}

// NewCSVWriter opens <outputDir>/<name>.csv and writes its header row.
func NewCSVWriter(outputDir, name string, fields []string) (*CSVWriter, error) {
	f, err := os.Create(filepath.Join(outputDir, name+".csv"))
	if err != nil {
		return nil, fmt.Errorf("extract: opening %s.csv: %w", name, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		f.Close()
		return nil, err
	}
	return &CSVWriter{fields: fields, file: f, csv: w}, nil
}

// WriteRecord projects record's rows onto the declared field order,
// substituting an empty cell for any missing field.
func (w *CSVWriter) WriteRecord(record Record) error {
	for _, row := range record.Rows() {
		cells := make([]string, len(w.fields))
		for i, field := range w.fields {
			cells[i] = row[field]
		}
		if err := w.csv.Write(cells); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *CSVWriter) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// WriterSet owns one CSVWriter per extractor and opens/closes them all
// together, the Go equivalent of the original's contextlib.ExitStack of
// writer context managers.
type WriterSet struct {
	writers   []*CSVWriter
	byName    map[string]*CSVWriter
}

// OpenWriterSet opens one writer per extractor under outputDir.
func OpenWriterSet(outputDir string, extractors []Extractor) (*WriterSet, error) {
	ws := &WriterSet{byName: map[string]*CSVWriter{}}
	for _, e := range extractors {
		w, err := NewCSVWriter(outputDir, e.Name(), e.Fields())
		if err != nil {
			ws.Close()
			return nil, err
		}
		ws.writers = append(ws.writers, w)
		ws.byName[e.Name()] = w
	}
	return ws, nil
}

// WriteArticle writes every extractor's record for one article, keyed by
// extractor name, to its corresponding CSV.
func (ws *WriterSet) WriteArticle(data map[string]Record) error {
	for name, record := range data {
		w, ok := ws.byName[name]
		if !ok {
			continue
		}
		if err := w.WriteRecord(record); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer in the set, continuing on error so a failure to
// close one file doesn't leave the rest open.
func (ws *WriterSet) Close() error {
	var firstErr error
	for _, w := range ws.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
