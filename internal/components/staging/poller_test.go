package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, contents string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func triggered(t *testing.T, source string) *DownloadTask {
	t.Helper()
	task := NewTask(source)
	require.NoError(t, task.Trigger(time.Now()))
	return task
}

func TestAwaitPrefersCompleteOverNewerPartial(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 12, 20, 16, 0, 0, 0, time.UTC)
	touch(t, dir, "unusual-stocks.csv", "Symbol\nAAPL\n", base)
	touch(t, dir, "unusual-etfs.csv.crdownload", "Sym", base.Add(time.Minute))

	poller := Poller{Dir: dir, Iterations: 3}
	task := triggered(t, "Stocks")

	staged, err := poller.Await(context.Background(), task, CanonicalName("Stocks"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Stocks.csv"), staged.Path)
	require.Equal(t, "Stocks", staged.Source)
	require.True(t, staged.CreatedAt.Equal(base))
	require.Equal(t, StatusCompleted, task.Status)
	require.Equal(t, &staged, task.Staged)

	contents, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	require.Equal(t, "Symbol\nAAPL\n", string(contents))

	_, err = os.Stat(filepath.Join(dir, "unusual-stocks.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(dir, "unusual-etfs.csv.crdownload"))
	require.NoError(t, err)
}

func TestLatestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 12, 20, 16, 0, 0, 0, time.UTC)
	touch(t, dir, "a.csv", "", base)
	newest := touch(t, dir, "b.csv", "", base.Add(2*time.Second))
	touch(t, dir, "c.csv", "", base.Add(time.Second))
	touch(t, dir, "notes.txt", "", base.Add(time.Hour))

	path, modTime, found, err := Poller{Dir: dir}.Latest()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, newest, path)
	require.True(t, modTime.Equal(base.Add(2*time.Second)))
}

func TestLatestSkipsExcluded(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	touch(t, dir, "Stocks.csv", "", base.Add(time.Minute))
	touch(t, dir, "download.csv", "", base)

	poller := Poller{Dir: dir, Exclude: []string{CanonicalName("Stocks"), CanonicalName("ETFs")}}
	path, _, found, err := poller.Latest()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, filepath.Join(dir, "download.csv"), path)
}

func TestAwaitTimesOutAfterIterationBudget(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "pending.csv.crdownload", "", time.Now())

	poller := Poller{Dir: dir, Iterations: 4, Interval: time.Millisecond}
	task := triggered(t, "ETFs")

	_, err := poller.Await(context.Background(), task, CanonicalName("ETFs"))
	require.ErrorIs(t, err, ErrDownloadTimeout)
	require.Equal(t, StatusTimedOut, task.Status)
	require.Nil(t, task.Staged)
}

func TestAwaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := Poller{Dir: t.TempDir(), Iterations: 30, Interval: time.Hour}
	_, err := poller.Await(ctx, triggered(t, "Indices"), CanonicalName("Indices"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitRequiresTriggeredTask(t *testing.T) {
	poller := Poller{Dir: t.TempDir(), Iterations: 1}
	_, err := poller.Await(context.Background(), NewTask("Stocks"), CanonicalName("Stocks"))
	require.Error(t, err)
}

func TestCanonicalNamesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, source := range []string{"Stocks", "ETFs", "Indices"} {
		name := CanonicalName(source)
		require.False(t, seen[name], name)
		seen[name] = true
	}
}

func TestTaskTransitions(t *testing.T) {
	task := NewTask("Stocks")
	require.Equal(t, StatusPending, task.Status)
	require.Error(t, task.TimeOut())
	require.Error(t, task.Complete(StagedFile{}))

	require.NoError(t, task.Trigger(time.Now()))
	require.Error(t, task.Trigger(time.Now()))
	require.NoError(t, task.TimeOut())
	require.Error(t, task.Complete(StagedFile{}))
}
