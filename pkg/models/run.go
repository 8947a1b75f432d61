package models

import "time"

// Run is one recorded synchronization pass.
type Run struct {
	ID                    string     `json:"id"`
	Status                string     `json:"status"`
	Workers               int        `json:"workers"`
	SubjectsTotal         int        `json:"subjects_total"`
	StartedAt             time.Time  `json:"started_at"`
	FinishedAt            *time.Time `json:"finished_at,omitempty"`
	UsersProcessed        int        `json:"users_processed"`
	UsersWithPublications int        `json:"users_with_publications"`
	UsersWithGrants       int        `json:"users_with_grants"`
	PublicationsAdded     int        `json:"publications_added"`
	PublicationsUpdated   int        `json:"publications_updated"`
	PublicationsDeleted   int        `json:"publications_deleted"`
	GrantsAdded           int        `json:"grants_added"`
	GrantsUpdated         int        `json:"grants_updated"`
	GrantsDeleted         int        `json:"grants_deleted"`
	DuplicatesSkipped     int        `json:"duplicates_skipped"`
	ParseErrors           int        `json:"parse_errors"`
	DBErrors              int        `json:"db_errors"`
	Error                 string     `json:"error,omitempty"`
}

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
