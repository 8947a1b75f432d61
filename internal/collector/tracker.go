package collector

import "sync"

// Tracker accumulates the identifiers observed during one sync pass so the
// reconciliation step can tell stale rows from merely unvisited ones. All
// methods are safe for concurrent use by the worker pool.
type Tracker struct {
	mu           sync.Mutex
	users        map[string]struct{}
	publications map[int64]struct{}
	grants       map[int64]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		users:        make(map[string]struct{}),
		publications: make(map[int64]struct{}),
		grants:       make(map[int64]struct{}),
	}
}

func (t *Tracker) TrackUser(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	t.users[id] = struct{}{}
	t.mu.Unlock()
}

func (t *Tracker) TrackPublication(id int64) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	t.publications[id] = struct{}{}
	t.mu.Unlock()
}

func (t *Tracker) TrackGrant(id int64) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	t.grants[id] = struct{}{}
	t.mu.Unlock()
}

// StalePublications returns the persisted ids that were not observed this
// pass. Nil when no publications were observed at all: a pass that saw
// nothing must never condemn rows.
func (t *Tracker) StalePublications(existing []int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stale(existing, t.publications)
}

// StaleGrants is the grant counterpart of StalePublications.
func (t *Tracker) StaleGrants(existing []int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stale(existing, t.grants)
}

func stale(existing []int64, seen map[int64]struct{}) []int64 {
	if len(seen) == 0 {
		return nil
	}
	var out []int64
	for _, id := range existing {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Counts reports how many distinct users, publications and grants were
// observed so far.
func (t *Tracker) Counts() (users, publications, grants int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users), len(t.publications), len(t.grants)
}
