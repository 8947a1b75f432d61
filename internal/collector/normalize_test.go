package collector

import (
	"strings"
	"testing"
)

func pubRecord(fields map[string]any) map[string]any {
	return map[string]any{
		"activityid": float64(123),
		"fields":     fields,
	}
}

func TestNormalizePublicationTypeFilter(t *testing.T) {
	cases := []struct {
		typ  string
		want bool
	}{
		{"Journal Article", true},
		{"Book", true},
		{"Presentation", false},
		{"Performance", false},
		{"", false},
	}
	for _, tc := range cases {
		p, err := NormalizePublication(pubRecord(map[string]any{"Type": tc.typ, "Title": "X"}), "u1")
		if err != nil {
			t.Fatalf("type %q: %v", tc.typ, err)
		}
		if (p != nil) != tc.want {
			t.Errorf("type %q: modeled = %v, want %v", tc.typ, p != nil, tc.want)
		}
	}
}

func TestNormalizePublicationFields(t *testing.T) {
	raw := map[string]any{
		"activityid": float64(555),
		"fields": map[string]any{
			"Type":          "Journal Article",
			"Title":         "On Things",
			"Journal Title": "Journal of Things",
			"Year":          float64(2021),
			"Volume":        float64(12),
			"DOI":           "10.1000/xyz",
		},
		"status": []any{
			map[string]any{"status": "Published", "term": "Fall", "year": float64(2021)},
			map[string]any{"status": "Submitted", "term": "Spring", "year": float64(2020)},
		},
	}

	p, err := NormalizePublication(raw, "u1")
	if err != nil {
		t.Fatalf("NormalizePublication: %v", err)
	}
	if p.UserID != "u1" || p.ActivityID != 555 {
		t.Errorf("identity = %q/%d", p.UserID, p.ActivityID)
	}
	if p.Journal != "Journal of Things" {
		t.Errorf("Journal = %q", p.Journal)
	}
	if p.Year != "2021" {
		t.Errorf("Year = %q, want 2021", p.Year)
	}
	if p.Volume != "12" {
		t.Errorf("Volume = %q, want 12", p.Volume)
	}
	// only the first status entry counts
	if p.Status != "Published" || p.Term != "Fall" || p.StatusYear != "2021" {
		t.Errorf("status = %q/%q/%q", p.Status, p.Term, p.StatusYear)
	}
}

func TestNormalizePublicationStatusShapes(t *testing.T) {
	asDict := pubRecord(map[string]any{"Type": "Book", "Title": "X"})
	asDict["status"] = map[string]any{"status": "In Press"}
	p, err := NormalizePublication(asDict, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "In Press" {
		t.Errorf("dict status = %q", p.Status)
	}

	absent := pubRecord(map[string]any{"Type": "Book", "Title": "X"})
	p, err = NormalizePublication(absent, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "" || p.Term != "" || p.StatusYear != "" {
		t.Errorf("absent status = %q/%q/%q, want empty", p.Status, p.Term, p.StatusYear)
	}
}

func TestNormalizePublicationTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	p, err := NormalizePublication(pubRecord(map[string]any{
		"Type":        "Book",
		"Title":       long,
		"Description": long,
		"ISBN":        strings.Repeat("9", 25),
	}), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != long[:255] {
		t.Errorf("Title len = %d, want 255", len(p.Title))
	}
	if p.ISBN != strings.Repeat("9", 20) {
		t.Errorf("ISBN = %q", p.ISBN)
	}
	// free-text fields are never cut
	if p.Description != long {
		t.Errorf("Description len = %d, want %d", len(p.Description), len(long))
	}
}

func TestTruncateCountsCharacters(t *testing.T) {
	s := strings.Repeat("ü", 30)
	got := truncate(s, 20)
	if got != strings.Repeat("ü", 20) {
		t.Errorf("got %q", got)
	}
	if truncate("short", 20) != "short" {
		t.Error("short strings must pass through")
	}
}

func TestYearCoercion(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"2021 (expected)", "2021"},
		{float64(2021), "2021"},
		{"99", "99"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := yearOf(tc.in); got != tc.want {
			t.Errorf("yearOf(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeGrantRequiresGrantID(t *testing.T) {
	raw := map[string]any{
		"activityid": float64(9),
		"fields":     map[string]any{"Title": "No contract"},
	}
	g, err := NormalizeGrant(raw, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if g != nil {
		t.Fatal("record without a grant id must not be modeled")
	}
}

func TestGrantFundingPrecedence(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"activityid": float64(77),
			"fields": map[string]any{
				"Title":                  "G",
				"Grant ID / Contract ID": "C-1",
			},
		}
	}

	// funding block keyed by the activity id wins
	raw := base()
	raw["funding"] = map[string]any{
		"77": map[string]any{"fundedamount": float64(500)},
	}
	raw["fields"].(map[string]any)["Total Funding"] = "9999"
	g, err := NormalizeGrant(raw, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalFunding != "500" {
		t.Errorf("TotalFunding = %q, want 500", g.TotalFunding)
	}

	// unmatched key falls back to the first funding entry
	raw = base()
	raw["funding"] = map[string]any{
		"123": map[string]any{"fundedamount": "250"},
	}
	g, err = NormalizeGrant(raw, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalFunding != "250" {
		t.Errorf("TotalFunding = %q, want 250", g.TotalFunding)
	}

	// no funding block: Total Funding field, then Amount
	raw = base()
	raw["fields"].(map[string]any)["Total Funding"] = "1000"
	g, err = NormalizeGrant(raw, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalFunding != "1000" {
		t.Errorf("TotalFunding = %q, want 1000", g.TotalFunding)
	}

	raw = base()
	raw["fields"].(map[string]any)["Amount"] = "321"
	g, err = NormalizeGrant(raw, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalFunding != "321" {
		t.Errorf("TotalFunding = %q, want 321", g.TotalFunding)
	}
}

func TestNormalizeMalformedRecords(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"fields is a list", map[string]any{"activityid": float64(1), "fields": []any{"x"}}},
		{"missing activityid", map[string]any{"fields": map[string]any{"Type": "Book", "Title": "X"}}},
		{"activityid not numeric", map[string]any{"activityid": "abc", "fields": map[string]any{"Type": "Book"}}},
	}
	for _, tc := range cases {
		if _, err := NormalizePublication(tc.raw, "u1"); err == nil {
			t.Errorf("%s: want error", tc.name)
		}
	}
}

func TestNormalizeMissingFieldsBlockIsSkipped(t *testing.T) {
	p, err := NormalizePublication(map[string]any{"activityid": float64(1)}, "u1")
	if err != nil {
		t.Fatalf("missing fields block must be skipped, not failed: %v", err)
	}
	if p != nil {
		t.Fatal("record without fields cannot be modeled")
	}
}

func TestActivityIDFromString(t *testing.T) {
	raw := pubRecord(map[string]any{"Type": "Book", "Title": "X"})
	raw["activityid"] = " 456 "
	p, err := NormalizePublication(raw, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.ActivityID != 456 {
		t.Errorf("ActivityID = %d, want 456", p.ActivityID)
	}
}
