package collector

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"scholarsync/internal/events"
	"scholarsync/pkg/models"
)

// fakeAPI serves canned activity feeds per subject and records which
// subjects were asked for.
type fakeAPI struct {
	mu        sync.Mutex
	pubs      map[string]string
	grants    map[string]string
	requested map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pubs:      make(map[string]string),
		grants:    make(map[string]string),
		requested: make(map[string]bool),
	}
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("userlist")

		f.mu.Lock()
		f.requested[user] = true
		var body string
		switch r.URL.Path {
		case "/activities/-21":
			body = f.pubs[user]
			if body == "" {
				body = `{"-21": []}`
			}
		case "/activities/-11":
			body = f.grants[user]
			if body == "" {
				body = `{"-11": []}`
			}
		default:
			body = "{}"
		}
		f.mu.Unlock()

		fmt.Fprint(w, body)
	})
}

func (f *fakeAPI) wasRequested(user string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[user]
}

func feedBody(t *testing.T, feed string, records ...map[string]any) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{feed: records})
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	return string(b)
}

func pubActivity(id int64, typ, title string) map[string]any {
	return map[string]any{
		"activityid": id,
		"fields":     map[string]any{"Type": typ, "Title": title},
	}
}

func grantActivity(id int64, title, contract string) map[string]any {
	return map[string]any{
		"activityid": id,
		"fields": map[string]any{
			"Title":                  title,
			"Grant ID / Contract ID": contract,
			"Total Funding":          "100",
		},
	}
}

func runCollector(t *testing.T, db *sql.DB, host string, workers int) *models.Run {
	t.Helper()
	c := New(db, newTestClient(t, host))
	c.Workers = workers
	run, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return run
}

func TestRunFullPass(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")
	seedFaculty(t, db, "u2", "Faculty")
	seedFaculty(t, db, "u3", "Staff")

	api := newFakeAPI()
	api.pubs["u1"] = feedBody(t, "-21",
		pubActivity(101, "Journal Article", "P1"),
		pubActivity(102, "Presentation", "not modeled"))
	api.grants["u1"] = feedBody(t, "-11", grantActivity(201, "G1", "C-1"))
	api.pubs["u2"] = feedBody(t, "-21", pubActivity(103, "Book", "P2"))

	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	run := runCollector(t, db, srv.URL, 4)

	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, error = %q", run.Status, run.Error)
	}
	if run.SubjectsTotal != 2 || run.UsersProcessed != 2 {
		t.Errorf("subjects = %d processed = %d, want 2/2", run.SubjectsTotal, run.UsersProcessed)
	}
	if run.UsersWithPublications != 2 || run.UsersWithGrants != 1 {
		t.Errorf("with pubs = %d, with grants = %d", run.UsersWithPublications, run.UsersWithGrants)
	}
	if run.PublicationsAdded != 2 || run.GrantsAdded != 1 {
		t.Errorf("added = %d/%d, want 2/1", run.PublicationsAdded, run.GrantsAdded)
	}
	if run.ParseErrors != 0 || run.DBErrors != 0 || run.PublicationsDeleted != 0 {
		t.Errorf("errors/deletes = %+v", run)
	}

	// staff rows are not subjects
	if api.wasRequested("u3") {
		t.Error("staff member was queried")
	}

	// the pass is recorded
	var status string
	var added int
	err := db.QueryRow(`
		SELECT status, publications_added FROM sync_runs WHERE id = ?
	`, run.ID).Scan(&status, &added)
	if err != nil {
		t.Fatalf("read sync_runs: %v", err)
	}
	if status != models.RunStatusCompleted || added != 2 {
		t.Errorf("recorded run = %q/%d", status, added)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")

	api := newFakeAPI()
	api.pubs["u1"] = feedBody(t, "-21", pubActivity(101, "Book", "Stable"))
	api.grants["u1"] = feedBody(t, "-11", grantActivity(201, "G1", "C-1"))

	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	first := runCollector(t, db, srv.URL, 2)
	if first.PublicationsAdded != 1 || first.GrantsAdded != 1 {
		t.Fatalf("first pass added %d/%d", first.PublicationsAdded, first.GrantsAdded)
	}

	second := runCollector(t, db, srv.URL, 2)
	if second.PublicationsAdded != 0 || second.PublicationsUpdated != 0 || second.PublicationsDeleted != 0 {
		t.Errorf("second pass publications = +%d ~%d -%d, want zeros",
			second.PublicationsAdded, second.PublicationsUpdated, second.PublicationsDeleted)
	}
	if second.GrantsAdded != 0 || second.GrantsUpdated != 0 || second.GrantsDeleted != 0 {
		t.Errorf("second pass grants = +%d ~%d -%d, want zeros",
			second.GrantsAdded, second.GrantsUpdated, second.GrantsDeleted)
	}

	// a changed record updates exactly that row
	api.mu.Lock()
	api.pubs["u1"] = feedBody(t, "-21", pubActivity(101, "Book", "Retitled"))
	api.mu.Unlock()

	third := runCollector(t, db, srv.URL, 2)
	if third.PublicationsUpdated != 1 || third.PublicationsAdded != 0 {
		t.Errorf("third pass = +%d ~%d", third.PublicationsAdded, third.PublicationsUpdated)
	}
}

func TestStaleRowsReconciled(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")
	ctx := context.Background()

	// rows from an earlier pass
	tx, _ := db.BeginTx(ctx, nil)
	if _, err := UpsertPublication(ctx, tx, testPublication("u1", 999)); err != nil {
		t.Fatal(err)
	}
	if _, err := UpsertGrant(ctx, tx, &models.Grant{UserID: "u1", ActivityID: 888, GrantID: "C-old"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// this pass sees publications but zero grants
	api := newFakeAPI()
	api.pubs["u1"] = feedBody(t, "-21", pubActivity(111, "Book", "Kept"))
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	run := runCollector(t, db, srv.URL, 2)

	if run.PublicationsDeleted != 1 {
		t.Errorf("publications deleted = %d, want 1", run.PublicationsDeleted)
	}
	if run.GrantsDeleted != 0 {
		t.Errorf("grants deleted = %d, a kind with no observations must be left alone", run.GrantsDeleted)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM publications WHERE activityid = 999`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("stale publication survived")
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM publications WHERE activityid = 111`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("live publication missing")
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM grants WHERE activityid = 888`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("grant row deleted despite empty grant observations")
	}
}

func TestEmptyPassDeletesNothing(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")
	ctx := context.Background()

	tx, _ := db.BeginTx(ctx, nil)
	if _, err := UpsertPublication(ctx, tx, testPublication("u1", 999)); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// remote answers, but with nothing in either feed
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	run := runCollector(t, db, srv.URL, 2)

	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q", run.Status)
	}
	if run.PublicationsDeleted != 0 || run.GrantsDeleted != 0 {
		t.Errorf("deleted = %d/%d, want zeros", run.PublicationsDeleted, run.GrantsDeleted)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM publications`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("existing rows must survive an empty pass")
	}
}

func TestEmptyRosterCompletes(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Staff") // staff only, so no subjects

	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	run := runCollector(t, db, srv.URL, 2)

	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q", run.Status)
	}
	if run.SubjectsTotal != 0 || run.UsersProcessed != 0 {
		t.Errorf("run = %+v", run)
	}
	if api.wasRequested("u1") {
		t.Error("no subject should have been queried")
	}
}

func TestParseErrorsCountedAndIsolated(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")

	api := newFakeAPI()
	api.pubs["u1"] = feedBody(t, "-21",
		map[string]any{"activityid": int64(1), "fields": []any{"broken"}},
		pubActivity(2, "Book", "Good one"))
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	run := runCollector(t, db, srv.URL, 1)

	if run.ParseErrors != 1 {
		t.Errorf("parse errors = %d, want 1", run.ParseErrors)
	}
	if run.PublicationsAdded != 1 {
		t.Errorf("added = %d, the good record must still land", run.PublicationsAdded)
	}
	if run.Status != models.RunStatusCompleted {
		t.Errorf("status = %q", run.Status)
	}
}

func TestBatchLimit(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")
	seedFaculty(t, db, "u2", "Faculty")
	seedFaculty(t, db, "u3", "Faculty")

	api := newFakeAPI()
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := New(db, newTestClient(t, srv.URL))
	c.Workers = 2
	c.Batch = 1
	run, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.SubjectsTotal != 1 || run.UsersProcessed != 1 {
		t.Errorf("subjects = %d processed = %d, want 1/1", run.SubjectsTotal, run.UsersProcessed)
	}
}

func TestSharedActivityNeverDuplicatesRows(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")
	seedFaculty(t, db, "u2", "Faculty")

	// both subjects report the same co-authored activity
	api := newFakeAPI()
	api.pubs["u1"] = feedBody(t, "-21", pubActivity(500, "Journal Article", "Joint work"))
	api.pubs["u2"] = feedBody(t, "-21", pubActivity(500, "Journal Article", "Joint work"))
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	run := runCollector(t, db, srv.URL, 8)

	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q", run.Status)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM publications WHERE activityid = 500`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows for shared activity = %d, want 1", n)
	}
	if run.PublicationsAdded != 1 {
		t.Errorf("added = %d, want 1", run.PublicationsAdded)
	}
	// the loser either updated the row or skipped its duplicate insert
	if run.PublicationsUpdated+run.DuplicatesSkipped != 1 {
		t.Errorf("updated = %d, duplicates = %d, want exactly one of the two",
			run.PublicationsUpdated, run.DuplicatesSkipped)
	}
	if run.DBErrors != 0 {
		t.Errorf("db errors = %d", run.DBErrors)
	}
}

func TestWorkerCountDoesNotChangeOutcome(t *testing.T) {
	api := newFakeAPI()
	subjects := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	for i, id := range subjects {
		base := int64((i + 1) * 1000)
		api.pubs[id] = feedBody(t, "-21",
			pubActivity(base+1, "Book", "B"+id),
			pubActivity(base+2, "Journal Article", "J"+id))
		api.grants[id] = feedBody(t, "-11", grantActivity(base+3, "G"+id, "C-"+id))
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	snapshot := func(workers int) []string {
		db := openTestDB(t)
		for _, id := range subjects {
			seedFaculty(t, db, id, "Faculty")
		}
		run := runCollector(t, db, srv.URL, workers)
		if run.Status != models.RunStatusCompleted {
			t.Fatalf("workers=%d status = %q", workers, run.Status)
		}

		rows, err := db.Query(`
			SELECT 'pub', activityid, user_id, title FROM publications
			UNION ALL
			SELECT 'grant', activityid, user_id, title FROM grants
			ORDER BY 2
		`)
		if err != nil {
			t.Fatal(err)
		}
		defer rows.Close()

		var out []string
		for rows.Next() {
			var kind, userID, title string
			var activityID int64
			if err := rows.Scan(&kind, &activityID, &userID, &title); err != nil {
				t.Fatal(err)
			}
			out = append(out, fmt.Sprintf("%s/%d/%s/%s", kind, activityID, userID, title))
		}
		return out
	}

	serial := snapshot(1)
	parallel := snapshot(8)
	if !reflect.DeepEqual(serial, parallel) {
		t.Errorf("store diverged:\n 1 worker: %v\n 8 workers: %v", serial, parallel)
	}
	if len(serial) != 18 {
		t.Errorf("rows = %d, want 18", len(serial))
	}
}

func TestRunBroadcastsLifecycle(t *testing.T) {
	db := openTestDB(t)
	seedFaculty(t, db, "u1", "Faculty")

	api := newFakeAPI()
	api.pubs["u1"] = feedBody(t, "-21", pubActivity(1, "Book", "B"))
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	hub := events.NewHub()
	server, client := net.Pipe()
	hub.Add(server)

	types := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			var ev struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(sc.Bytes(), &ev) == nil {
				types <- ev.Type
			}
		}
	}()

	c := New(db, newTestClient(t, srv.URL))
	c.Workers = 1
	c.Events = hub
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []string
	deadline := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case s := <-types:
			got = append(got, s)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	want := []string{"run.started", "run.progress", "run.completed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}
