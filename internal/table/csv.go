package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"netmhc/internal/schema"
)

// WriteCSV writes t with a header row and a leading 0-based row index
// column whose header is empty. Fields are written as read from the service
// so that reading the file back coerces to the same values.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{""}, t.Schema.Names()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, t.Schema.Len()+1)
	for i, row := range t.Rows {
		rec[0] = strconv.Itoa(i)
		for j, v := range row {
			rec[j+1] = v.Raw
			if rec[j+1] == "" {
				rec[j+1] = NullMarker
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV. The header must match s.
func ReadCSV(r io.Reader, s schema.Schema) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = s.Len() + 1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for j, name := range s.Names() {
		if header[j+1] != name {
			return nil, fmt.Errorf("read csv: column %d is %q, want %q (class %s)", j, header[j+1], name, s.Class())
		}
	}
	t := New(s)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		t.Append(rec[1:])
	}
	return t, nil
}

// LoadFile reads a persisted table. A missing file is not an error: it
// returns (nil, false, nil).
func LoadFile(path string, s schema.Schema) (*Table, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	t, err := ReadCSV(f, s)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return t, true, nil
}

// SaveFile persists t at path. An existing file is left alone unless
// overwrite is set, and empty tables are never written. It reports whether
// the file was written.
func SaveFile(path string, t *Table, overwrite bool) (bool, error) {
	if t.Len() == 0 {
		return false, nil
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".table-*.csv")
	if err != nil {
		return false, err
	}
	if err := WriteCSV(tmp, t); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return false, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return false, err
	}
	return true, nil
}
