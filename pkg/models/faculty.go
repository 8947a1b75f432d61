package models

// Faculty is one row of the subject roster the sync runs against.
// Populated by the roster import; the collector only reads it.
type Faculty struct {
	ID               string `json:"id"`
	Email            string `json:"email,omitempty"`
	FirstName        string `json:"firstname,omitempty"`
	LastName         string `json:"lastname,omitempty"`
	MiddleName       string `json:"middlename,omitempty"`
	EmploymentStatus string `json:"employmentstatus,omitempty"`
	Position         string `json:"position,omitempty"`
	PrimaryUnit      int64  `json:"primaryunit,omitempty"`
	ORCID            string `json:"orcid,omitempty"`
	Rank             string `json:"rank,omitempty"`
	URL              string `json:"url,omitempty"`
	LastLogin        string `json:"lastlogin,omitempty"`
	PID              int64  `json:"pid,omitempty"`
}
