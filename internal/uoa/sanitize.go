package uoa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultWatermark is the marketing line the provider appends to its exports.
const DefaultWatermark = "Downloaded from Barchart.com"

// Sanitize removes every line of the file at `path` that contains `watermark`
// and rewrites the file in place. Line endings of the kept lines are preserved,
// so sanitizing a clean file leaves it byte-for-byte unchanged.
func Sanitize(path, watermark string) (removed int, err error) {
	if watermark == "" {
		return 0, nil
	}

	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	var kept strings.Builder
	reader := bufio.NewReader(in)
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if strings.Contains(line, watermark) {
				removed++
			} else {
				kept.WriteString(line)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return 0, fmt.Errorf("read %s: %w", path, readErr)
		}
	}
	if removed == 0 {
		return 0, nil
	}

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(kept.String()); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return removed, nil
}
