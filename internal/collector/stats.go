package collector

import "sync"

// Counters holds one run's aggregate counts. Workers accumulate a local
// Counters per subject and merge it in one locked Add, so the shared lock is
// taken once per subject rather than once per record.
type Counters struct {
	UsersProcessed        int `json:"users_processed"`
	UsersWithPublications int `json:"users_with_publications"`
	UsersWithGrants       int `json:"users_with_grants"`
	PublicationsAdded     int `json:"publications_added"`
	PublicationsUpdated   int `json:"publications_updated"`
	PublicationsDeleted   int `json:"publications_deleted"`
	GrantsAdded           int `json:"grants_added"`
	GrantsUpdated         int `json:"grants_updated"`
	GrantsDeleted         int `json:"grants_deleted"`
	DuplicatesSkipped     int `json:"duplicates_skipped"`
	ParseErrors           int `json:"parse_errors"`
	DBErrors              int `json:"db_errors"`
}

// Stats is the lock-protected accumulator shared by the sync workers.
type Stats struct {
	mu sync.Mutex
	c  Counters
}

// Add merges a subject's delta and returns the total number of subjects
// processed so far, which doubles as the progress checkpoint.
func (s *Stats) Add(delta Counters) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.UsersProcessed += delta.UsersProcessed
	s.c.UsersWithPublications += delta.UsersWithPublications
	s.c.UsersWithGrants += delta.UsersWithGrants
	s.c.PublicationsAdded += delta.PublicationsAdded
	s.c.PublicationsUpdated += delta.PublicationsUpdated
	s.c.PublicationsDeleted += delta.PublicationsDeleted
	s.c.GrantsAdded += delta.GrantsAdded
	s.c.GrantsUpdated += delta.GrantsUpdated
	s.c.GrantsDeleted += delta.GrantsDeleted
	s.c.DuplicatesSkipped += delta.DuplicatesSkipped
	s.c.ParseErrors += delta.ParseErrors
	s.c.DBErrors += delta.DBErrors
	return s.c.UsersProcessed
}

// SetDeleted records the reconciliation results once the pool has joined.
func (s *Stats) SetDeleted(publications, grants int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.PublicationsDeleted = publications
	s.c.GrantsDeleted = grants
}

// Snapshot returns a copy of the current totals.
func (s *Stats) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}
