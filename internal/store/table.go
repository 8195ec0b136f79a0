package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrCorrupt is returned when an existing table file cannot be read back.
	// Appends abort on it rather than overwrite the history with a fresh table.
	ErrCorrupt = errors.New("historical table is unreadable")
)

// sheetName is the worksheet holding the rows; it matches spreadsheet defaults.
const sheetName = "Sheet1"

// DateLayout is the calendar-date form used by date filters.
const DateLayout = "2006-01-02"

// Schema maps a record type onto the flat columns of a table file.
type Schema[T any] struct {
	Columns     []string
	Encode      func(T) []any
	Decode      func(cells []string) (T, error)
	CollectedAt func(T) time.Time
}

// Table is an append-only historical table stored as an xlsx workbook.
//
// The file is created on the first non-empty append and rewritten atomically
// on each later one. Rows are kept in insertion order.
type Table[T any] struct {
	mu     sync.RWMutex
	path   string
	schema Schema[T]
	loc    *time.Location
}

// NewTable creates a table bound to path. loc is used for date filtering
// (nil = time.Local).
func NewTable[T any](path string, schema Schema[T], loc *time.Location) *Table[T] {
	if loc == nil {
		loc = time.Local
	}
	return &Table[T]{path: path, schema: schema, loc: loc}
}

// Path returns the backing file path.
func (t *Table[T]) Path() string {
	return t.path
}

// Location returns the time zone used for date filtering.
func (t *Table[T]) Location() *time.Location {
	return t.loc
}

// Append loads the existing rows, places batch after them and rewrites the file.
// An empty batch is a no-op. It returns the total row count after the append.
func (t *Table[T]) Append(batch []T) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.read()
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return len(existing), nil
	}

	combined := make([]T, 0, len(existing)+len(batch))
	combined = append(combined, existing...)
	combined = append(combined, batch...)

	if err := t.write(combined); err != nil {
		return 0, err
	}
	log.Printf("store: appended %d rows to %s (%d total)", len(batch), t.path, len(combined))
	return len(combined), nil
}

// Load returns all rows in insertion order. When dateFilter is not empty only
// rows whose local collection date starts with it are returned ("2024-05-01",
// or "2024-05" for a whole month). A missing file is an empty table.
func (t *Table[T]) Load(dateFilter string) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.read()
	if err != nil {
		return nil, err
	}
	if dateFilter == "" {
		return rows, nil
	}

	filtered := make([]T, 0, len(rows))
	for _, r := range rows {
		ts := t.schema.CollectedAt(r)
		if ts.IsZero() {
			continue
		}
		if strings.HasPrefix(ts.In(t.loc).Format(DateLayout), dateFilter) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Exists reports whether the backing file has been created.
func (t *Table[T]) Exists() bool {
	_, err := os.Stat(t.path)
	return err == nil
}

func (t *Table[T]) read() ([]T, error) {
	if _, err := os.Stat(t.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrCorrupt, t.path, err)
	}

	f, err := excelize.OpenFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupt, t.path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrCorrupt, t.path)
	}

	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, t.path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	if !slices.Equal(raw[0], t.schema.Columns) {
		return nil, fmt.Errorf("%w: %s has unexpected columns %v", ErrCorrupt, t.path, raw[0])
	}

	width := len(t.schema.Columns)
	rows := make([]T, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		if len(cells) > width {
			return nil, fmt.Errorf("%w: %s row %d has %d cells, want %d", ErrCorrupt, t.path, i+2, len(cells), width)
		}
		if len(cells) < width {
			padded := make([]string, width)
			copy(padded, cells)
			cells = padded
		}
		rec, err := t.schema.Decode(cells)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrCorrupt, t.path, i+2, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (t *Table[T]) write(rows []T) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := t.setRow(f, 1, toAny(t.schema.Columns)); err != nil {
		return err
	}
	for i, r := range rows {
		if err := t.setRow(f, i+2, t.schema.Encode(r)); err != nil {
			return err
		}
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := f.WriteTo(tmp); err != nil {
		cleanup()
		return fmt.Errorf("write table %s: %w", t.path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync table %s: %w", t.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close table %s: %w", t.path, err)
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace table %s: %w", t.path, err)
	}
	return nil
}

// setRow writes one row starting at column A. Nil values leave the cell empty.
func (t *Table[T]) setRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
