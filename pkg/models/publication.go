package models

// Publication is the normalized, internal form of a publication activity
// used by the collector and database layer.
//
// Remote activity payloads are mapped into this structure first, then we
// write to the DB from this representation. All payload-derived values are
// carried as strings exactly as reported (after truncation); ActivityID is
// the natural key shared with the remote system. The struct is comparable
// so an upsert can tell an unchanged row from a changed one.
type Publication struct {
	UserID             string `json:"user_id"`
	ActivityID         int64  `json:"activityid"`
	Type               string `json:"type"`
	Title              string `json:"title"`
	Journal            string `json:"journal,omitempty"`
	SeriesTitle        string `json:"series_title,omitempty"`
	Year               string `json:"year,omitempty"`
	MonthSeason        string `json:"month_season,omitempty"`
	Publisher          string `json:"publisher,omitempty"`
	PublisherCityState string `json:"publisher_city_state,omitempty"`
	PublisherCountry   string `json:"publisher_country,omitempty"`
	Volume             string `json:"volume,omitempty"`
	IssueNumber        string `json:"issue_number,omitempty"`
	PageNumbers        string `json:"page_numbers,omitempty"`
	ISBN               string `json:"isbn,omitempty"`
	ISSN               string `json:"issn,omitempty"`
	DOI                string `json:"doi,omitempty"`
	URL                string `json:"url,omitempty"`
	Description        string `json:"description,omitempty"`
	Origin             string `json:"origin,omitempty"`
	Status             string `json:"status,omitempty"`
	Term               string `json:"term,omitempty"`
	StatusYear         string `json:"status_year,omitempty"`
}
