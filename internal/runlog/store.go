// Package runlog keeps a history of collection runs in sqlite or libsql.
package runlog

import (
	"context"
	"database/sql"
	"time"
)

type SourceRun struct {
	Source string
	Status string
	Rows   int
	Error  string
}

type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Output     string
	Rows       int
	Error      string
	Sources    []SourceRun
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

func (s Store) Record(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`insert into run(id, started_at, finished_at, status, output, row_count, error)
		values (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UnixMilli(),
		run.FinishedAt.UnixMilli(),
		run.Status,
		run.Output,
		run.Rows,
		run.Error,
	)
	if err != nil {
		return err
	}

	for i, source := range run.Sources {
		_, err = tx.ExecContext(
			ctx,
			`insert into run_source(run_id, position, source, status, row_count, error)
			values (?, ?, ?, ?, ?, ?)`,
			run.ID,
			i,
			source.Source,
			source.Status,
			source.Rows,
			source.Error,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns the latest `limit` runs, newest first.
func (s Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select id, started_at, finished_at, status, output, row_count, error
		from run order by started_at desc, id desc limit ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, finishedAt int64
		err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &run.Output, &run.Rows, &run.Error)
		if err != nil {
			rows.Close()
			return nil, err
		}
		run.StartedAt = time.UnixMilli(startedAt)
		run.FinishedAt = time.UnixMilli(finishedAt)
		runs = append(runs, run)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		sources, err := s.sources(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Sources = sources
	}
	return runs, nil
}

func (s Store) sources(ctx context.Context, runId string) ([]SourceRun, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select source, status, row_count, error from run_source
		where run_id = ? order by position`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRun
	for rows.Next() {
		var source SourceRun
		err := rows.Scan(&source.Source, &source.Status, &source.Rows, &source.Error)
		if err != nil {
			return nil, err
		}
		out = append(out, source)
	}
	return out, rows.Err()
}
