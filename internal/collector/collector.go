package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"scholarsync/internal/events"
	"scholarsync/pkg/models"
)

const (
	// DefaultWorkers is the sync pool size. The remote tolerates this many
	// concurrent signed requests without tripping its rate limit too often.
	DefaultWorkers = 12

	// progressEvery is the subject-count interval between progress reports.
	progressEvery = 100
)

// Collector runs one full synchronization pass: fan subjects out to a
// worker pool, upsert each subject's activities in its own transaction,
// then reconcile stale rows once every subject has been visited.
type Collector struct {
	DB     *sql.DB
	Client *Client
	Events *events.Hub // optional, nil disables broadcasting

	Workers int
	Batch   int    // process only the first N subjects when > 0
	RunID   string // assigned at Run when empty
	Verbose bool

	tracker *Tracker
	stats   *Stats
	total   int
	started time.Time
}

// New builds a Collector with the default pool size. A Collector runs one
// pass; build a fresh one per run.
func New(db *sql.DB, client *Client) *Collector {
	return &Collector{
		DB:      db,
		Client:  client,
		Workers: DefaultWorkers,
		tracker: NewTracker(),
		stats:   &Stats{},
	}
}

// SubjectIDs lists the roster ids eligible for sync. Staff rows never
// carry activities and are not subjects.
func (c *Collector) SubjectIDs(ctx context.Context) ([]string, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT id FROM faculty WHERE employmentstatus != 'Staff'
	`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Run executes the pass and returns its recorded report. The returned run
// is also persisted to sync_runs. Only context cancellation and setup
// failures surface as errors; per-subject trouble lands in the counters.
func (c *Collector) Run(ctx context.Context) (*models.Run, error) {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}

	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	run := &models.Run{
		ID:        c.RunID,
		Status:    models.RunStatusRunning,
		Workers:   c.Workers,
		StartedAt: time.Now().UTC(),
	}

	log.Println("[collector] starting data synchronization")

	ids, err := c.SubjectIDs(ctx)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if createErr := c.createRun(ctx, run); createErr != nil {
			log.Printf("[collector] %v", createErr)
		}
		c.finalize(run, err)
		return run, err
	}

	if c.Batch > 0 && len(ids) > c.Batch {
		ids = ids[:c.Batch]
		log.Printf("[collector] processing first %d users (batch mode)", len(ids))
	} else {
		log.Printf("[collector] processing %d users", len(ids))
	}
	run.SubjectsTotal = len(ids)
	c.total = len(ids)
	c.started = time.Now()

	if err := c.createRun(ctx, run); err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		c.finalize(run, err)
		return run, err
	}
	c.broadcast(events.RunEvent{
		Type:    "run.started",
		RunID:   run.ID,
		Total:   run.SubjectsTotal,
		Workers: run.Workers,
	})

	if len(ids) == 0 {
		log.Println("[collector] no eligible users found, nothing to sync")
		c.finalize(run, nil)
		return run, nil
	}

	log.Printf("[collector] using %d workers", c.Workers)

	subjects := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < c.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range subjects {
				c.processSubject(ctx, id)
			}
		}()
	}

feed:
	for _, id := range ids {
		select {
		case subjects <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(subjects)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// never reconcile a partial pass: unvisited subjects would look stale
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		c.finalize(run, err)
		return run, err
	}

	c.reconcile(ctx)
	c.finalize(run, nil)
	return run, nil
}

// processSubject fetches and persists one subject's activities. All of the
// subject's writes share a transaction, so a database failure rolls the
// whole subject back and the next pass retries it.
func (c *Collector) processSubject(ctx context.Context, userID string) {
	c.tracker.TrackUser(userID)

	var delta Counters

	pubs, err := c.Client.Publications(ctx, userID)
	if err != nil {
		return
	}
	grants, err := c.Client.Grants(ctx, userID)
	if err != nil {
		return
	}

	if len(pubs) == 0 && len(grants) == 0 {
		if c.Verbose {
			log.Printf("[collector] user %s: no activities found", userID)
		}
		delta.UsersProcessed = 1
		c.finishSubject(delta)
		return
	}

	if len(pubs) > 0 {
		delta.UsersWithPublications = 1
	}
	if len(grants) > 0 {
		delta.UsersWithGrants = 1
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[collector] user %s: begin tx: %v", userID, err)
		delta.DBErrors++
		delta.UsersProcessed = 1
		c.finishSubject(delta)
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, raw := range pubs {
		p, err := NormalizePublication(raw, userID)
		if err != nil {
			if c.Verbose {
				log.Printf("[collector] user %s: bad publication record: %v", userID, err)
			}
			delta.ParseErrors++
			continue
		}
		if p == nil {
			continue
		}
		c.tracker.TrackPublication(p.ActivityID)

		res, err := UpsertPublication(ctx, tx, p)
		if err != nil {
			if isConstraintErr(err) {
				delta.DuplicatesSkipped++
				continue
			}
			log.Printf("[collector] user %s: publication %d: %v", userID, p.ActivityID, err)
			delta.DBErrors++
			delta.UsersProcessed = 1
			c.finishSubject(delta)
			return
		}
		switch res {
		case Added:
			delta.PublicationsAdded++
			if c.Verbose {
				log.Printf("[collector]   added publication: %s", truncate(p.Title, 50))
			}
		case Updated:
			delta.PublicationsUpdated++
			if c.Verbose {
				log.Printf("[collector]   updated publication: %s", truncate(p.Title, 50))
			}
		}
	}

	for _, raw := range grants {
		g, err := NormalizeGrant(raw, userID)
		if err != nil {
			if c.Verbose {
				log.Printf("[collector] user %s: bad grant record: %v", userID, err)
			}
			delta.ParseErrors++
			continue
		}
		if g == nil {
			continue
		}
		c.tracker.TrackGrant(g.ActivityID)

		res, err := UpsertGrant(ctx, tx, g)
		if err != nil {
			if isConstraintErr(err) {
				delta.DuplicatesSkipped++
				continue
			}
			log.Printf("[collector] user %s: grant %d: %v", userID, g.ActivityID, err)
			delta.DBErrors++
			delta.UsersProcessed = 1
			c.finishSubject(delta)
			return
		}
		switch res {
		case Added:
			delta.GrantsAdded++
			if c.Verbose {
				log.Printf("[collector]   added grant: %s", truncate(g.Title, 50))
			}
		case Updated:
			delta.GrantsUpdated++
			if c.Verbose {
				log.Printf("[collector]   updated grant: %s", truncate(g.Title, 50))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[collector] user %s: commit: %v", userID, err)
		delta.DBErrors++
		delta.UsersProcessed = 1
		c.finishSubject(delta)
		return
	}
	committed = true

	delta.UsersProcessed = 1
	c.finishSubject(delta)
}

// finishSubject merges a subject's counters and emits the periodic
// progress report. Processed counts are unique per subject, so exactly one
// worker observes each checkpoint value.
func (c *Collector) finishSubject(delta Counters) {
	processed := c.stats.Add(delta)
	if processed%progressEvery != 0 && processed != c.total {
		return
	}

	snap := c.stats.Snapshot()
	elapsed := time.Since(c.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed
	}
	log.Printf("[collector] progress: %d/%d users (%.1f users/sec)", processed, c.total, rate)
	log.Printf("[collector]   publications +%d ~%d, grants +%d ~%d, errors %d",
		snap.PublicationsAdded, snap.PublicationsUpdated,
		snap.GrantsAdded, snap.GrantsUpdated,
		snap.ParseErrors+snap.DBErrors)

	c.broadcast(events.RunEvent{
		Type:      "run.progress",
		RunID:     c.RunID,
		Processed: processed,
		Total:     c.total,
		Stats:     snap,
	})
}

// reconcile deletes rows whose activity ids were absent from this pass.
// Skipped entirely when the pass observed nothing, and per kind when that
// kind observed nothing, so a degraded remote cannot empty the store.
func (c *Collector) reconcile(ctx context.Context) {
	_, pubs, grants := c.tracker.Counts()
	if pubs == 0 && grants == 0 {
		log.Println("[collector] no publications or grants were tracked during sync")
		log.Println("[collector] skipping stale-record deletion to prevent data loss")
		return
	}

	log.Println("[collector] deleting stale records...")

	var pubsDeleted, grantsDeleted int64

	existing, err := ExistingPublicationIDs(ctx, c.DB)
	if err != nil {
		log.Printf("[collector] list existing publications: %v", err)
	} else if stale := c.tracker.StalePublications(existing); len(stale) > 0 {
		n, err := DeletePublications(ctx, c.DB, stale)
		if err != nil {
			log.Printf("[collector] delete stale publications: %v", err)
		} else {
			pubsDeleted = n
		}
	}

	existing, err = ExistingGrantIDs(ctx, c.DB)
	if err != nil {
		log.Printf("[collector] list existing grants: %v", err)
	} else if stale := c.tracker.StaleGrants(existing); len(stale) > 0 {
		n, err := DeleteGrants(ctx, c.DB, stale)
		if err != nil {
			log.Printf("[collector] delete stale grants: %v", err)
		} else {
			grantsDeleted = n
		}
	}

	c.stats.SetDeleted(int(pubsDeleted), int(grantsDeleted))
	log.Printf("[collector] deleted %d stale publications, %d stale grants", pubsDeleted, grantsDeleted)
}

// finalize stamps the run record, persists it and reports the outcome.
func (c *Collector) finalize(run *models.Run, runErr error) {
	snap := c.stats.Snapshot()
	applyCounters(run, snap)
	now := time.Now().UTC()
	run.FinishedAt = &now
	if run.Status == models.RunStatusRunning {
		run.Status = models.RunStatusCompleted
	}
	c.finishRun(run)

	if runErr != nil {
		c.broadcast(events.RunEvent{
			Type:  "run.failed",
			RunID: run.ID,
			Stats: snap,
			Error: run.Error,
		})
		log.Printf("[collector] synchronization aborted: %v", runErr)
		return
	}

	c.broadcast(events.RunEvent{
		Type:      "run.completed",
		RunID:     run.ID,
		Processed: snap.UsersProcessed,
		Total:     run.SubjectsTotal,
		Stats:     snap,
	})

	elapsed := now.Sub(run.StartedAt).Seconds()
	log.Println("[collector] ============================================================")
	log.Println("[collector] ✅ data synchronization completed")
	log.Printf("[collector] time taken: %.1f seconds", elapsed)
	log.Println("[collector] final statistics:")
	log.Printf("[collector]   users processed: %d", snap.UsersProcessed)
	log.Printf("[collector]   users with publications: %d", snap.UsersWithPublications)
	log.Printf("[collector]   users with grants: %d", snap.UsersWithGrants)
	log.Printf("[collector]   publications: +%d added, ~%d updated, -%d deleted",
		snap.PublicationsAdded, snap.PublicationsUpdated, snap.PublicationsDeleted)
	log.Printf("[collector]   grants: +%d added, ~%d updated, -%d deleted",
		snap.GrantsAdded, snap.GrantsUpdated, snap.GrantsDeleted)
	log.Printf("[collector]   duplicates skipped: %d", snap.DuplicatesSkipped)
	log.Printf("[collector]   parse errors: %d", snap.ParseErrors)
	log.Printf("[collector]   database errors: %d", snap.DBErrors)
	if elapsed > 0 && run.SubjectsTotal > 0 {
		log.Printf("[collector]   processing rate: %.1f users/sec", float64(run.SubjectsTotal)/elapsed)
	}
}

func (c *Collector) broadcast(ev events.RunEvent) {
	if c.Events == nil {
		return
	}
	ev.At = time.Now().UTC()
	c.Events.BroadcastJSON(ev)
}

func applyCounters(run *models.Run, s Counters) {
	run.UsersProcessed = s.UsersProcessed
	run.UsersWithPublications = s.UsersWithPublications
	run.UsersWithGrants = s.UsersWithGrants
	run.PublicationsAdded = s.PublicationsAdded
	run.PublicationsUpdated = s.PublicationsUpdated
	run.PublicationsDeleted = s.PublicationsDeleted
	run.GrantsAdded = s.GrantsAdded
	run.GrantsUpdated = s.GrantsUpdated
	run.GrantsDeleted = s.GrantsDeleted
	run.DuplicatesSkipped = s.DuplicatesSkipped
	run.ParseErrors = s.ParseErrors
	run.DBErrors = s.DBErrors
}
