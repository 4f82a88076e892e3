// Package table turns CSV, pasted text and XLSX workbooks into a uniform
// header-plus-rows structure.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
)

// Table is a rectangular-ish grid of cells. Rows may be shorter than Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Cell returns the trimmed cell at (row, col), or "" when out of range.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// Width is the number of header columns.
func (t Table) Width() int {
	return len(t.Header)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads delimited text. The delimiter is sniffed from the header line
// among comma, semicolon, tab and pipe.
func ReadCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}
	return fromRecords(records), nil
}

// ParseText reads raw pasted text, e.g. cells copied out of a spreadsheet.
func ParseText(text string) (Table, error) {
	return ReadCSV(strings.NewReader(text))
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("xlsx workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRecords(rows), nil
}

// Read dispatches on the extension of name. Anything that is not a workbook
// is read as delimited text.
func Read(name string, r io.Reader) (Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return ReadCSV(r)
	}
}

// ReadFile opens path and reads it with Read. A missing file yields a
// *domain.NotFoundError.
func ReadFile(source, path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Table{}, &domain.NotFoundError{Source: source, Path: path}
		}
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(path, f)
}

func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	best, bestCount := ',', 0
	for _, candidate := range []rune{',', ';', '\t', '|'} {
		if n := countOutsideQuotes(line, byte(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func countOutsideQuotes(line []byte, sep byte) int {
	n := 0
	quoted := false
	for _, b := range line {
		switch {
		case b == '"':
			quoted = !quoted
		case b == sep && !quoted:
			n++
		}
	}
	return n
}

// fromRecords takes the first non-empty record as header, drops blank rows
// and de-duplicates header names the way spreadsheet exports do ("X", "X.1").
func fromRecords(records [][]string) Table {
	var t Table
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = dedupeHeader(rec)
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		name := h
		for used[name] {
			suffix[h]++
			name = h + "." + strconv.Itoa(suffix[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
