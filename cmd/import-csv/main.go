package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"scholarsync/internal/faculty"
	"scholarsync/pkg/database"
	"scholarsync/pkg/models"
)

// import-csv loads a faculty roster from a CSV file instead of the remote
// API. Useful for seeding a dev database or for units that maintain their
// roster in a spreadsheet. Columns are matched by header name; only id is
// required.
func main() {
	rosterIn := flag.String("roster", "data/faculty.csv", "input CSV path for the faculty roster")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	roster, skipped, err := readRoster(*rosterIn)
	if err != nil {
		log.Fatalf("read roster failed: %v", err)
	}
	if len(roster) == 0 {
		log.Fatalf("no usable rows in %s", *rosterIn)
	}

	if err := faculty.NewRepo(db).SaveRoster(ctx, roster); err != nil {
		log.Fatalf("save roster failed: %v", err)
	}

	log.Printf("✅ imported %d faculty members from %s (%d rows skipped)", len(roster), *rosterIn, skipped)
}

func readRoster(path string) ([]models.Faculty, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, 0, err
	}

	var roster []models.Faculty
	skipped := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if len(row) == 0 {
			continue
		}

		id := valueAt(header, row, "id")
		if id == "" {
			id = valueAt(header, row, "userid")
		}
		if id == "" {
			skipped++
			continue
		}

		roster = append(roster, models.Faculty{
			ID:               id,
			Email:            valueAt(header, row, "email"),
			FirstName:        valueAt(header, row, "firstname"),
			LastName:         valueAt(header, row, "lastname"),
			MiddleName:       valueAt(header, row, "middlename"),
			EmploymentStatus: valueAt(header, row, "employmentstatus"),
			Position:         valueAt(header, row, "position"),
			PrimaryUnit:      parseInt64(valueAt(header, row, "primaryunit")),
			ORCID:            valueAt(header, row, "orcid"),
			Rank:             valueAt(header, row, "rank"),
			URL:              valueAt(header, row, "url"),
			LastLogin:        valueAt(header, row, "lastlogin"),
			PID:              parseInt64(valueAt(header, row, "pid")),
		})
	}

	return roster, skipped, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseInt64(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
