package runs

import (
	"context"
	"database/sql"
	"fmt"

	"scholarsync/pkg/models"
)

// Repo reads sync_runs. Rows are written by the collector itself, so this
// side only ever queries.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const runColumns = `
	id, status, workers, subjects_total, started_at, finished_at,
	users_processed, users_with_publications, users_with_grants,
	publications_added, publications_updated, publications_deleted,
	grants_added, grants_updated, grants_deleted,
	duplicates_skipped, parse_errors, db_errors, error`

func scanRun(row interface{ Scan(dest ...any) error }) (*models.Run, error) {
	var r models.Run
	var finished sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(
		&r.ID, &r.Status, &r.Workers, &r.SubjectsTotal, &r.StartedAt, &finished,
		&r.UsersProcessed, &r.UsersWithPublications, &r.UsersWithGrants,
		&r.PublicationsAdded, &r.PublicationsUpdated, &r.PublicationsDeleted,
		&r.GrantsAdded, &r.GrantsUpdated, &r.GrantsDeleted,
		&r.DuplicatesSkipped, &r.ParseErrors, &r.DBErrors, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	r.Error = errMsg.String
	return &r, nil
}

// Recent returns the newest runs first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	return out, nil
}

// Get returns one run, or nil when the id is unknown.
func (r *Repo) Get(ctx context.Context, id string) (*models.Run, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Latest returns the most recent run regardless of status, or nil when
// no pass has ever been recorded.
func (r *Repo) Latest(ctx context.Context) (*models.Run, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}
