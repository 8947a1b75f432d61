package collector

import (
	"context"
	"fmt"
	"log"

	"scholarsync/pkg/models"
)

// createRun records the pass in sync_runs before any subject is touched,
// so a watcher polling the API sees it while it is still running.
func (c *Collector) createRun(ctx context.Context, run *models.Run) error {
	_, err := c.DB.ExecContext(ctx, `
		INSERT INTO sync_runs (id, status, workers, subjects_total, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Status, run.Workers, run.SubjectsTotal, run.StartedAt)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// finishRun writes the final run record. It runs on a background context
// on purpose: the bookkeeping must land even when the pass was cancelled.
func (c *Collector) finishRun(run *models.Run) {
	_, err := c.DB.ExecContext(context.Background(), `
		UPDATE sync_runs SET
			status = ?, finished_at = ?, subjects_total = ?,
			users_processed = ?, users_with_publications = ?, users_with_grants = ?,
			publications_added = ?, publications_updated = ?, publications_deleted = ?,
			grants_added = ?, grants_updated = ?, grants_deleted = ?,
			duplicates_skipped = ?, parse_errors = ?, db_errors = ?, error = ?
		WHERE id = ?
	`, run.Status, run.FinishedAt, run.SubjectsTotal,
		run.UsersProcessed, run.UsersWithPublications, run.UsersWithGrants,
		run.PublicationsAdded, run.PublicationsUpdated, run.PublicationsDeleted,
		run.GrantsAdded, run.GrantsUpdated, run.GrantsDeleted,
		run.DuplicatesSkipped, run.ParseErrors, run.DBErrors, run.Error, run.ID)
	if err != nil {
		log.Printf("[collector] record run result: %v", err)
	}
}
