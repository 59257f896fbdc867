// Package csvstore keeps the daily batch files and the default position
// ledger as CSV tables.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"swingTrader/internal/domain"
)

// writeAtomic writes a table to a temp file in the target directory, syncs
// it and renames it over path, so readers see either the old or the new file.
func writeAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows to %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true
	return nil
}

// table is a CSV file addressed by column name.
type table struct {
	cols map[string]int
	rows [][]string
}

// readTable loads a CSV file. A missing file is returned as os.ErrNotExist.
func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &table{cols: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	t := &table{cols: make(map[string]int, len(header))}
	for i, name := range header {
		t.cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	t.rows, err = r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// missing returns the required columns absent from the header.
func (t *table) missing(required []string) []string {
	var out []string
	for _, c := range required {
		if _, ok := t.cols[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// record decodes one row by column name, keeping the first error.
type record struct {
	cols map[string]int
	row  []string
	err  error
}

func (t *table) record(i int) *record {
	return &record{cols: t.cols, row: t.rows[i]}
}

func (r *record) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

// float decodes an optional number; an empty cell is zero. NaN and Inf are
// errors so they never reach the arithmetic.
func (r *record) float(col string) float64 {
	s := r.str(col)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(fmt.Errorf("column %s: %w", col, err))
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.fail(fmt.Errorf("column %s: non-finite value %q", col, s))
		return 0
	}
	return v
}

// need decodes a number the row cannot do without. An empty cell is how the
// collector writes a missing indicator, so it fails the row.
func (r *record) need(col string) float64 {
	if r.str(col) == "" {
		r.fail(fmt.Errorf("column %s: missing value", col))
		return 0
	}
	return r.float(col)
}

func (r *record) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *record) int(col string) int {
	s := r.str(col)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Quantities written by other tools may carry a decimal point.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			if r.err == nil {
				r.err = fmt.Errorf("column %s: %w", col, err)
			}
			return 0
		}
		v = int(f)
	}
	return v
}

func (r *record) bool(col string) bool {
	s := r.str(col)
	if s == "" {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (r *record) date(col string) time.Time {
	s := r.str(col)
	if s == "" {
		return time.Time{}
	}
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	v, err := time.Parse(domain.DateLayout, s)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

// mode parses a filter mode; rows written before modes existed are standard.
func (r *record) mode(col string) domain.Mode {
	if r.str(col) == "" {
		return domain.ModeStandard
	}
	m, err := domain.ParseMode(r.str(col))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return m
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fi(v int) string {
	return strconv.Itoa(v)
}

func fb(v bool) string {
	return strconv.FormatBool(v)
}

func fd(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

// stamp is the YYYYMMDD suffix of daily file names.
func stamp(day time.Time) string {
	return day.Format("20060102")
}
