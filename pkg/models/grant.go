package models

// Grant is the normalized form of a grant activity. Funding amounts stay
// strings as reported by the remote system; see Publication for the
// representation rules.
type Grant struct {
	UserID             string `json:"user_id"`
	ActivityID         int64  `json:"activityid"`
	Title              string `json:"title"`
	Sponsor            string `json:"sponsor,omitempty"`
	GrantID            string `json:"grant_id"`
	AwardDate          string `json:"award_date,omitempty"`
	StartDate          string `json:"start_date,omitempty"`
	EndDate            string `json:"end_date,omitempty"`
	PeriodLength       string `json:"period_length,omitempty"`
	PeriodUnit         string `json:"period_unit,omitempty"`
	IndirectFunding    string `json:"indirect_funding,omitempty"`
	IndirectCostRate   string `json:"indirect_cost_rate,omitempty"`
	TotalFunding       string `json:"total_funding,omitempty"`
	TotalDirectFunding string `json:"total_direct_funding,omitempty"`
	CurrencyType       string `json:"currency_type,omitempty"`
	Description        string `json:"description,omitempty"`
	Abstract           string `json:"abstract,omitempty"`
	NumberOfPeriods    string `json:"number_of_periods,omitempty"`
	URL                string `json:"url,omitempty"`
	Status             string `json:"status,omitempty"`
	Term               string `json:"term,omitempty"`
	StatusYear         string `json:"status_year,omitempty"`
}
