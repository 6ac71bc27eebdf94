package uoa

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrEmptyDataset = errors.New("no source produced data")

const (
	OutputPrefix   = "UOA"
	CombinedPrefix = "UOA_Combined"
)

// OutputName is `<prefix>_yyyyMMdd_HHmmss.csv`.
func OutputName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, at.Format("20060102_150405"))
}

// Part is the dataset parsed from one source.
type Part struct {
	Source string
	Data   Dataset
}

// Consolidator accumulates datasets in the order they are added.
// No deduplication or reconciliation happens between parts.
type Consolidator struct {
	parts []Part
}

func (c *Consolidator) Add(source string, ds Dataset) {
	c.parts = append(c.parts, Part{Source: source, Data: ds})
}

func (c *Consolidator) Parts() []Part {
	return c.parts
}

// Rows is the total row count over every part.
func (c *Consolidator) Rows() int {
	total := 0
	for _, p := range c.parts {
		total += p.Data.Len()
	}
	return total
}

func (c *Consolidator) Dataset() Dataset {
	sets := make([]Dataset, len(c.parts))
	for i, p := range c.parts {
		sets[i] = p.Data
	}
	return Concat(sets...)
}

// Write concatenates every part and writes it to `dir` under OutputName(prefix, at).
// It returns ErrEmptyDataset without touching the filesystem when nothing was added.
func (c *Consolidator) Write(dir, prefix string, at time.Time) (string, Dataset, error) {
	if len(c.parts) == 0 {
		return "", Dataset{}, ErrEmptyDataset
	}
	ds := c.Dataset()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", Dataset{}, err
	}
	path := filepath.Join(dir, OutputName(prefix, at))
	if err := writeFileAtomic(path, ds); err != nil {
		return "", Dataset{}, fmt.Errorf("write %s: %w", path, err)
	}
	return path, ds, nil
}

func writeFileAtomic(path string, ds Dataset) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := ds.WriteCSV(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MergeFiles reads every csv file in order and writes their concatenation to `dir`.
func MergeFiles(paths []string, dir, prefix string, at time.Time) (string, Dataset, error) {
	var c Consolidator
	for _, path := range paths {
		ds, err := ReadCSV(path)
		if err != nil {
			return "", Dataset{}, err
		}
		c.Add(filepath.Base(path), ds)
	}
	return c.Write(dir, prefix, at)
}
