package faculty

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"scholarsync/pkg/database"
	"scholarsync/pkg/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testRoster() []models.Faculty {
	return []models.Faculty{
		{ID: "u1", Email: "alice@example.edu", FirstName: "Alice", LastName: "Anderson",
			EmploymentStatus: "Faculty", Position: "Professor", PrimaryUnit: 10},
		{ID: "u2", Email: "bob@example.edu", FirstName: "Bob", LastName: "Baker",
			EmploymentStatus: "Faculty", PrimaryUnit: 20},
		{ID: "u3", Email: "carol@example.edu", FirstName: "Carol", LastName: "Chen",
			EmploymentStatus: "Staff", PrimaryUnit: 10},
		{ID: "u4", Email: "dave@example.edu", FirstName: "Dave", LastName: "Dorsey",
			EmploymentStatus: "Emeritus/Retired", PrimaryUnit: 20},
	}
}

func seedRoster(t *testing.T, repo *Repo) {
	t.Helper()
	if err := repo.SaveRoster(context.Background(), testRoster()); err != nil {
		t.Fatalf("SaveRoster: %v", err)
	}
}

func seedPublication(t *testing.T, db *sql.DB, userID string, activityID int64, title, year string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO publications (user_id, activityid, type, title, year)
		VALUES (?, ?, 'Journal Article', ?, ?)
	`, userID, activityID, title, year)
	if err != nil {
		t.Fatalf("seed publication %d: %v", activityID, err)
	}
}

func seedGrant(t *testing.T, db *sql.DB, userID string, activityID int64, title string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO grants (user_id, activityid, title, sponsor, grant_id, total_funding)
		VALUES (?, ?, ?, 'NSF', 'G-100', '50000')
	`, userID, activityID, title)
	if err != nil {
		t.Fatalf("seed grant %d: %v", activityID, err)
	}
}

func TestSaveRosterRefreshesExistingRows(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	seedRoster(t, repo)

	got, err := repo.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Email != "alice@example.edu" || got.Position != "Professor" {
		t.Fatalf("u1 after import = %+v", got)
	}

	// second import changes one member and adds another
	next := testRoster()
	next[0].Email = "a.anderson@example.edu"
	next = append(next, models.Faculty{
		ID: "u5", FirstName: "Eve", LastName: "Evans", EmploymentStatus: "Faculty",
	})
	if err := repo.SaveRoster(context.Background(), next); err != nil {
		t.Fatalf("SaveRoster again: %v", err)
	}

	got, err = repo.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID after refresh: %v", err)
	}
	if got.Email != "a.anderson@example.edu" {
		t.Errorf("u1 email = %q, want refreshed address", got.Email)
	}

	total, err := repo.Count(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 5 {
		t.Errorf("roster size = %d, want 5", total)
	}
}

func TestGetByIDUnknownIsNil(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	got, err := repo.GetByID(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("GetByID(nope) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestListFilters(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	seedRoster(t, repo)

	cases := []struct {
		name  string
		query ListQuery
		want  []string // expected ids in order
	}{
		{"all ordered by name", ListQuery{}, []string{"u1", "u2", "u3", "u4"}},
		{"keyword on firstname", ListQuery{Q: "ali"}, []string{"u1"}},
		{"keyword on email", ListQuery{Q: "example.edu"}, []string{"u1", "u2", "u3", "u4"}},
		{"keyword case insensitive", ListQuery{Q: "CHEN"}, []string{"u3"}},
		{"unit filter", ListQuery{Unit: 10}, []string{"u1", "u3"}},
		{"status filter", ListQuery{Status: "staff"}, []string{"u3"}},
		{"combined", ListQuery{Unit: 20, Status: "faculty"}, []string{"u2"}},
		{"first page", ListQuery{Limit: 2}, []string{"u1", "u2"}},
		{"second page", ListQuery{Limit: 2, Offset: 2}, []string{"u3", "u4"}},
		{"no match", ListQuery{Q: "zzz"}, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := repo.List(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(items) != len(tc.want) {
				t.Fatalf("got %d items, want %d (%+v)", len(items), len(tc.want), items)
			}
			for i, id := range tc.want {
				if items[i].ID != id {
					t.Errorf("item[%d] = %q, want %q", i, items[i].ID, id)
				}
			}

			total, err := repo.Count(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			// count ignores paging
			if tc.query.Limit == 0 && tc.query.Offset == 0 && total != len(tc.want) {
				t.Errorf("Count = %d, want %d", total, len(tc.want))
			}
		})
	}
}

func TestActivityListings(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	seedRoster(t, repo)

	seedPublication(t, db, "u1", 101, "Older Work", "2021")
	seedPublication(t, db, "u1", 102, "Newer Work", "2023")
	seedPublication(t, db, "u1", 103, "Another Newer Work", "2023")
	seedGrant(t, db, "u1", 201, "Coral Reef Study")

	pubs, err := repo.PublicationsFor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("PublicationsFor: %v", err)
	}
	wantOrder := []string{"Another Newer Work", "Newer Work", "Older Work"}
	if len(pubs) != 3 {
		t.Fatalf("got %d publications, want 3", len(pubs))
	}
	for i, title := range wantOrder {
		if pubs[i].Title != title {
			t.Errorf("pubs[%d].Title = %q, want %q", i, pubs[i].Title, title)
		}
	}

	grants, err := repo.GrantsFor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GrantsFor: %v", err)
	}
	if len(grants) != 1 || grants[0].Title != "Coral Reef Study" || grants[0].TotalFunding != "50000" {
		t.Fatalf("grants = %+v", grants)
	}

	// member with no activities gets empty lists, not nil
	pubs, err = repo.PublicationsFor(context.Background(), "u2")
	if err != nil {
		t.Fatalf("PublicationsFor(u2): %v", err)
	}
	if pubs == nil || len(pubs) != 0 {
		t.Fatalf("pubs for u2 = %v, want empty slice", pubs)
	}
}

func newTestRouter(t *testing.T, db *sql.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewRepo(db)).RegisterRoutes(r.Group("/faculty"))
	return r
}

func doGet(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListEndpoint(t *testing.T) {
	db := openTestDB(t)
	seedRoster(t, NewRepo(db))
	r := newTestRouter(t, db)

	w := doGet(t, r, "/faculty?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /faculty = %d, body %s", w.Code, w.Body.String())
	}
	var list struct {
		Total  int              `json:"total"`
		Limit  int              `json:"limit"`
		Offset int              `json:"offset"`
		Items  []models.Faculty `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 4 || list.Limit != 2 || len(list.Items) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list.Items[0].LastName != "Anderson" {
		t.Errorf("first item = %q, want Anderson", list.Items[0].LastName)
	}

	w = doGet(t, r, "/faculty?q=ali")
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode filtered list: %v", err)
	}
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != "u1" {
		t.Fatalf("filtered list = %+v", list)
	}
}

func TestDetailEndpoints(t *testing.T) {
	db := openTestDB(t)
	seedRoster(t, NewRepo(db))
	seedPublication(t, db, "u1", 101, "Sampling Methods", "2022")
	seedGrant(t, db, "u1", 201, "Coral Reef Study")
	r := newTestRouter(t, db)

	w := doGet(t, r, "/faculty/u1")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /faculty/u1 = %d", w.Code)
	}
	var f models.Faculty
	if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode member: %v", err)
	}
	if f.ID != "u1" || f.LastName != "Anderson" {
		t.Fatalf("member = %+v", f)
	}

	if w := doGet(t, r, "/faculty/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("GET /faculty/nope = %d, want 404", w.Code)
	}
	if w := doGet(t, r, "/faculty/nope/publications"); w.Code != http.StatusNotFound {
		t.Fatalf("GET /faculty/nope/publications = %d, want 404", w.Code)
	}

	w = doGet(t, r, "/faculty/u1/publications")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /faculty/u1/publications = %d", w.Code)
	}
	var pubs struct {
		UserID string               `json:"user_id"`
		Total  int                  `json:"total"`
		Items  []models.Publication `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pubs); err != nil {
		t.Fatalf("decode publications: %v", err)
	}
	if pubs.UserID != "u1" || pubs.Total != 1 || pubs.Items[0].Title != "Sampling Methods" {
		t.Fatalf("publications = %+v", pubs)
	}

	w = doGet(t, r, "/faculty/u1/grants")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /faculty/u1/grants = %d", w.Code)
	}
	var grants struct {
		Total int            `json:"total"`
		Items []models.Grant `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &grants); err != nil {
		t.Fatalf("decode grants: %v", err)
	}
	if grants.Total != 1 || grants.Items[0].GrantID != "G-100" {
		t.Fatalf("grants = %+v", grants)
	}
}
