package collector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"scholarsync/pkg/models"
)

// publicationTypes are the only activity types modeled as publications.
// Everything else in the feed (presentations, performances, ...) is skipped
// without being counted as an error.
var publicationTypes = map[string]bool{
	"Journal Article": true,
	"Book":            true,
}

// NormalizePublication maps one raw publication activity into its stored
// form. It returns (nil, nil) when the record is not a modeled publication
// type; an error means the record was malformed and should be counted as a
// parse error. The input is never mutated.
func NormalizePublication(raw map[string]any, userID string) (*models.Publication, error) {
	fields, err := fieldsOf(raw)
	if err != nil {
		return nil, err
	}
	if !publicationTypes[stringField(fields, "Type")] {
		return nil, nil
	}
	id, err := activityID(raw)
	if err != nil {
		return nil, err
	}
	status := firstStatus(raw)

	return &models.Publication{
		UserID:             userID,
		ActivityID:         id,
		Type:               truncate(stringField(fields, "Type"), 50),
		Title:              truncate(stringField(fields, "Title"), 255),
		Journal:            truncate(stringField(fields, "Journal Title"), 255),
		SeriesTitle:        truncate(stringField(fields, "Series Title"), 255),
		Year:               yearOf(fields["Year"]),
		MonthSeason:        truncate(stringField(fields, "Month / Season"), 50),
		Publisher:          truncate(stringField(fields, "Publisher"), 255),
		PublisherCityState: truncate(stringField(fields, "Publisher City and State"), 255),
		PublisherCountry:   truncate(stringField(fields, "Publisher Country"), 100),
		Volume:             truncate(stringField(fields, "Volume"), 50),
		IssueNumber:        truncate(stringField(fields, "Issue Number / Edition"), 50),
		PageNumbers:        truncate(stringField(fields, "Page Number(s) or Number of Pages"), 50),
		ISBN:               truncate(stringField(fields, "ISBN"), 20),
		ISSN:               truncate(stringField(fields, "ISSN"), 20),
		DOI:                truncate(stringField(fields, "DOI"), 255),
		URL:                truncate(stringField(fields, "URL"), 500),
		Description:        stringField(fields, "Description"),
		Origin:             truncate(stringField(fields, "Origin"), 50),
		Status:             truncate(stringValue(status["status"]), 50),
		Term:               truncate(stringValue(status["term"]), 50),
		StatusYear:         yearOf(status["year"]),
	}, nil
}

// NormalizeGrant maps one raw grant activity into its stored form. Records
// without a grant/contract id are not modeled grants and yield (nil, nil).
func NormalizeGrant(raw map[string]any, userID string) (*models.Grant, error) {
	fields, err := fieldsOf(raw)
	if err != nil {
		return nil, err
	}
	grantID := stringField(fields, "Grant ID / Contract ID")
	if grantID == "" {
		return nil, nil
	}
	id, err := activityID(raw)
	if err != nil {
		return nil, err
	}
	status := firstStatus(raw)
	funding := fundingEntry(raw, id)

	// funded amount from the funding block wins over the reported fields
	totalFunding := stringValue(funding["fundedamount"])
	if totalFunding == "" {
		totalFunding = stringField(fields, "Total Funding")
	}
	if totalFunding == "" {
		totalFunding = stringField(fields, "Amount")
	}

	return &models.Grant{
		UserID:             userID,
		ActivityID:         id,
		Title:              truncate(stringField(fields, "Title"), 255),
		Sponsor:            truncate(stringField(fields, "Sponsor"), 255),
		GrantID:            truncate(grantID, 100),
		AwardDate:          stringField(fields, "Award Date"),
		StartDate:          stringField(fields, "Start Date"),
		EndDate:            stringField(fields, "End Date"),
		PeriodLength:       stringField(fields, "Period Length"),
		PeriodUnit:         truncate(stringField(fields, "Period Unit"), 50),
		IndirectFunding:    stringField(fields, "Indirect Funding"),
		IndirectCostRate:   truncate(stringField(fields, "Indirect Cost Rate"), 50),
		TotalFunding:       truncate(totalFunding, 50),
		TotalDirectFunding: truncate(stringField(fields, "Total Direct Funding"), 50),
		CurrencyType:       truncate(stringField(fields, "Currency Type"), 10),
		Description:        stringField(fields, "Description"),
		Abstract:           stringField(fields, "Abstract"),
		NumberOfPeriods:    stringField(fields, "Number of Periods"),
		URL:                truncate(stringField(fields, "URL"), 500),
		Status:             truncate(stringValue(status["status"]), 50),
		Term:               truncate(stringValue(status["term"]), 50),
		StatusYear:         yearOf(status["year"]),
	}, nil
}

// NormalizeUser maps one roster record from the /users feed into a Faculty
// row. Records without a userid cannot be stored.
func NormalizeUser(raw map[string]any) (*models.Faculty, error) {
	id := stringValue(raw["userid"])
	if id == "" {
		return nil, errors.New("missing userid")
	}
	return &models.Faculty{
		ID:               id,
		Email:            stringValue(raw["email"]),
		FirstName:        stringValue(raw["firstname"]),
		LastName:         stringValue(raw["lastname"]),
		MiddleName:       stringValue(raw["middlename"]),
		EmploymentStatus: stringValue(raw["employmentstatus"]),
		Position:         stringValue(raw["position"]),
		PrimaryUnit:      intValue(raw["primaryunit"]),
		ORCID:            stringValue(raw["orcid"]),
		Rank:             stringValue(raw["rank"]),
		URL:              stringValue(raw["url"]),
		LastLogin:        stringValue(raw["lastlogin"]),
		PID:              intValue(raw["pid"]),
	}, nil
}

// fieldsOf extracts the named-field block. A missing block is an empty map
// (the record then fails the type/grant-id check and is skipped); a block of
// the wrong shape is malformed.
func fieldsOf(raw map[string]any) (map[string]any, error) {
	v, ok := raw["fields"]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fields is %T, want object", v)
	}
	return m, nil
}

// activityID reads the record's activity id. The feed usually carries it as
// a number but sometimes as a numeric string.
func activityID(raw map[string]any) (int64, error) {
	v, ok := raw["activityid"]
	if !ok || v == nil {
		return 0, errors.New("missing activityid")
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("activityid %q: %w", n, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("activityid is %T, want number", v)
	}
}

// firstStatus collapses the status block to a single entry: the remote
// reports either one status object or an ordered list of them, and only the
// first entry is current.
func firstStatus(raw map[string]any) map[string]any {
	switch s := raw["status"].(type) {
	case map[string]any:
		return s
	case []any:
		if len(s) > 0 {
			if m, ok := s[0].(map[string]any); ok {
				return m
			}
		}
	}
	return map[string]any{}
}

// fundingEntry picks the funding record for this activity: the entry keyed
// by the activity's own id when present, otherwise the first entry by key
// order so the choice is stable across runs.
func fundingEntry(raw map[string]any, id int64) map[string]any {
	m, ok := raw["funding"].(map[string]any)
	if !ok || len(m) == 0 {
		return map[string]any{}
	}
	if entry, ok := m[strconv.FormatInt(id, 10)].(map[string]any); ok {
		return entry
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if entry, ok := m[k].(map[string]any); ok {
			return entry
		}
	}
	return map[string]any{}
}

// stringField reads a named field as its reported string form.
func stringField(fields map[string]any, key string) string {
	return stringValue(fields[key])
}

// stringValue renders a decoded JSON value the way the remote reported it.
// Integral numbers come back without a decimal point.
func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// intValue reads a numeric value that may arrive as a JSON number or a
// numeric string; anything else is zero.
func intValue(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		if id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return id
		}
	}
	return 0
}

// yearOf keeps the first four characters of a year-like value, tolerating
// trailing qualifiers such as "2021 (expected)".
func yearOf(v any) string {
	return truncate(stringValue(v), 4)
}

// truncate caps a reported value at its storage column width. Lossy on
// purpose: the remote regularly exceeds the widths, and rejecting would
// drop whole records.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
