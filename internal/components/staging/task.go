package staging

import (
	"fmt"
	"time"
)

type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusDownloading TaskStatus = "downloading"
	StatusCompleted   TaskStatus = "completed"
	StatusTimedOut    TaskStatus = "timed-out"
)

// StagedFile is a download that has been renamed to its canonical name.
type StagedFile struct {
	Path   string
	Source string
	// CreatedAt is the modification time of the download when it was detected.
	CreatedAt time.Time
}

// DownloadTask tracks one source's download attempt.
//
// pending -> downloading on Trigger, downloading -> completed | timed-out
// when polling ends.
type DownloadTask struct {
	Source      string
	Status      TaskStatus
	TriggeredAt time.Time
	Staged      *StagedFile
}

func NewTask(source string) *DownloadTask {
	return &DownloadTask{Source: source, Status: StatusPending}
}

func (t *DownloadTask) transition(from, to TaskStatus) error {
	if t.Status != from {
		return fmt.Errorf("download task %s: cannot move from %s to %s", t.Source, t.Status, to)
	}
	t.Status = to
	return nil
}

// Trigger marks that the export control was activated.
func (t *DownloadTask) Trigger(at time.Time) error {
	if err := t.transition(StatusPending, StatusDownloading); err != nil {
		return err
	}
	t.TriggeredAt = at
	return nil
}

func (t *DownloadTask) Complete(file StagedFile) error {
	if err := t.transition(StatusDownloading, StatusCompleted); err != nil {
		return err
	}
	t.Staged = &file
	return nil
}

func (t *DownloadTask) TimeOut() error {
	return t.transition(StatusDownloading, StatusTimedOut)
}
