// Package staging detects downloads that a browser deposits into a directory.
//
// Browsers give no completion signal for downloads, so completion is
// detected by polling the directory for a file with the completed extension.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/components/telemetry"
)

var ErrDownloadTimeout = errors.New("download did not materialize within the poll budget")

const (
	DefaultExtension        = ".csv"
	DefaultPartialExtension = ".crdownload"
)

const report_poller_await = "poller.await"

// CanonicalName is the file name a source's download is renamed to.
func CanonicalName(source string) string {
	return source + DefaultExtension
}

// Poller looks for completed downloads in Dir.
//
// Iterations is a budget of ticks and not a deadline: a slow directory listing
// stretches the real time spent waiting.
type Poller struct {
	Dir              string
	Extension        string
	PartialExtension string
	Interval         time.Duration
	Iterations       int
	// Exclude lists base names that are never picked up.
	Exclude []string
	Tel     telemetry.API
}

func (p Poller) extension() string {
	if p.Extension == "" {
		return DefaultExtension
	}
	return p.Extension
}

func (p Poller) partialExtension() string {
	if p.PartialExtension == "" {
		return DefaultPartialExtension
	}
	return p.PartialExtension
}

func (p Poller) candidate(name string) bool {
	if strings.HasSuffix(name, p.partialExtension()) {
		return false
	}
	if !strings.HasSuffix(name, p.extension()) {
		return false
	}
	return !slices.Contains(p.Exclude, name)
}

// Latest returns the most recently modified completed download in Dir.
func (p Poller) Latest() (path string, modTime time.Time, found bool, err error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return "", time.Time{}, false, err
	}

	var latestName string
	for _, entry := range entries {
		if entry.IsDir() || !p.candidate(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			// renamed or removed between listing and stat
			continue
		}
		if err != nil {
			return "", time.Time{}, false, err
		}

		mod := info.ModTime()
		if !found || mod.After(modTime) || (mod.Equal(modTime) && entry.Name() > latestName) {
			latestName = entry.Name()
			modTime = mod
			found = true
		}
	}
	if !found {
		return "", time.Time{}, false, nil
	}
	return filepath.Join(p.Dir, latestName), modTime, true, nil
}

// Await polls until a completed download shows up, then renames it to `target`
// inside Dir and completes the task. The task must already be triggered.
func (p Poller) Await(ctx context.Context, task *DownloadTask, target string) (StagedFile, error) {
	if task.Status != StatusDownloading {
		return StagedFile{}, fmt.Errorf("await %s: task is %s", task.Source, task.Status)
	}

	for i := 0; i < p.Iterations; i++ {
		if i > 0 {
			if err := chrono.Sleep(ctx, p.Interval); err != nil {
				return StagedFile{}, err
			}
		}

		path, modTime, found, err := p.Latest()
		if err != nil {
			return StagedFile{}, fmt.Errorf("list %s: %w", p.Dir, err)
		}
		if !found {
			continue
		}

		targetPath := filepath.Join(p.Dir, target)
		if err := os.Rename(path, targetPath); err != nil {
			return StagedFile{}, fmt.Errorf("stage %s: %w", path, err)
		}
		if p.Tel != nil {
			p.Tel.ReportDebug(report_poller_await, task.Source, filepath.Base(path), i+1)
		}

		staged := StagedFile{Path: targetPath, Source: task.Source, CreatedAt: modTime}
		if err := task.Complete(staged); err != nil {
			return StagedFile{}, err
		}
		return staged, nil
	}

	if err := task.TimeOut(); err != nil {
		return StagedFile{}, err
	}
	return StagedFile{}, fmt.Errorf("%s after %d polls: %w", task.Source, p.Iterations, ErrDownloadTimeout)
}
