package uoa

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrNoHeader = errors.New("csv has no header row")

const utf8BOM = "\uFEFF"

// Dataset is a table of string cells. Cells are kept exactly as exported,
// rows shorter than the header are padded with empty cells.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

func (d Dataset) Len() int {
	return len(d.Rows)
}

// Column returns the index of the named column or -1.
func (d Dataset) Column(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ParseCSV reads a header row followed by data rows. Blank lines are skipped.
func ParseCSV(r io.Reader) (Dataset, error) {
	buffered := bufio.NewReader(r)
	if prefix, err := buffered.Peek(len(utf8BOM)); err == nil && string(prefix) == utf8BOM {
		buffered.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, ErrNoHeader
	}
	if err != nil {
		return Dataset{}, err
	}

	ds := Dataset{Columns: dedupeColumns(header)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, err
		}
		if len(record) > len(header) {
			line, _ := reader.FieldPos(0)
			return Dataset{}, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		row := make([]string, len(header))
		copy(row, record)
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// dedupeColumns renames repeated header names to `name.N`, skipping names
// that are already taken, so that no column is shadowed by another.
func dedupeColumns(header []string) []string {
	taken := make(map[string]bool, len(header))
	for _, name := range header {
		taken[name] = true
	}
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		n := seen[name]
		seen[name] = n + 1
		if n == 0 {
			out[i] = name
			continue
		}
		candidate := fmt.Sprintf("%s.%d", name, n)
		for taken[candidate] {
			n++
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		seen[name] = n + 1
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

func ReadCSV(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()

	ds, err := ParseCSV(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return ds, nil
}

func (d Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(d.Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(d.Rows); err != nil {
		return err
	}
	return writer.Error()
}

// Concat appends the rows of every dataset in order. The result has the union of
// all columns in first-seen order, cells of columns a dataset lacks are empty.
func Concat(sets ...Dataset) Dataset {
	type key struct {
		name       string
		occurrence int
	}
	keys := func(columns []string) []key {
		counts := map[string]int{}
		out := make([]key, len(columns))
		for i, c := range columns {
			out[i] = key{name: c, occurrence: counts[c]}
			counts[c]++
		}
		return out
	}

	var out Dataset
	index := map[key]int{}
	for _, ds := range sets {
		for _, k := range keys(ds.Columns) {
			if _, ok := index[k]; ok {
				continue
			}
			index[k] = len(out.Columns)
			out.Columns = append(out.Columns, k.name)
		}
	}

	for _, ds := range sets {
		columnKeys := keys(ds.Columns)
		positions := make([]int, len(columnKeys))
		for i, k := range columnKeys {
			positions[i] = index[k]
		}
		for _, row := range ds.Rows {
			merged := make([]string, len(out.Columns))
			for i, cell := range row {
				if i < len(positions) {
					merged[positions[i]] = cell
				}
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}
