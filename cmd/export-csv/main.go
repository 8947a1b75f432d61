package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"scholarsync/pkg/database"
)

func main() {
	var (
		reportOut  = flag.String("report", "data/activity_report.csv", "output CSV path for the per-activity report")
		summaryOut = flag.String("summary", "data/activity_summary.csv", "output CSV path for the per-member summary")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportReport(ctx, db, *reportOut); err != nil {
		log.Fatalf("export report failed: %v", err)
	}
	if err := exportSummary(ctx, db, *summaryOut); err != nil {
		log.Fatalf("export summary failed: %v", err)
	}

	log.Printf("✅ exported activity report to %s and summary to %s", *reportOut, *summaryOut)
}

// exportReport writes one row per publication/grant pairing for every
// member with at least one activity. Members with only publications get
// empty grant columns and vice versa.
func exportReport(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"firstname", "lastname", "user_id", "publication_title", "publication_id", "grant_title", "grant_id"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT h.firstname, h.lastname, h.id,
               p.title, p.id, g.title, g.id
        FROM faculty h
        LEFT JOIN publications p ON h.id = p.user_id
        LEFT JOIN grants g ON h.id = g.user_id
        WHERE p.id IS NOT NULL OR g.id IS NOT NULL
        ORDER BY h.lastname, h.firstname, p.title, g.title
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			firstname  sql.NullString
			lastname   sql.NullString
			userID     string
			pubTitle   sql.NullString
			pubID      sql.NullInt64
			grantTitle sql.NullString
			grantID    sql.NullInt64
		)

		if err := rows.Scan(&firstname, &lastname, &userID, &pubTitle, &pubID, &grantTitle, &grantID); err != nil {
			return err
		}

		if err := w.Write([]string{
			firstname.String,
			lastname.String,
			userID,
			pubTitle.String,
			formatID(pubID),
			grantTitle.String,
			formatID(grantID),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

// exportSummary writes activity counts per member, including members
// with no activities at all.
func exportSummary(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"firstname", "lastname", "user_id", "publication_count", "grant_count", "total_count"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT h.firstname, h.lastname, h.id,
               COUNT(DISTINCT p.id) AS publication_count,
               COUNT(DISTINCT g.id) AS grant_count
        FROM faculty h
        LEFT JOIN publications p ON h.id = p.user_id
        LEFT JOIN grants g ON h.id = g.user_id
        GROUP BY h.id, h.firstname, h.lastname
        ORDER BY h.lastname, h.firstname
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			firstname sql.NullString
			lastname  sql.NullString
			userID    string
			pubCount  int
			grCount   int
		)

		if err := rows.Scan(&firstname, &lastname, &userID, &pubCount, &grCount); err != nil {
			return err
		}

		if err := w.Write([]string{
			firstname.String,
			lastname.String,
			userID,
			strconv.Itoa(pubCount),
			strconv.Itoa(grCount),
			strconv.Itoa(pubCount + grCount),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func formatID(id sql.NullInt64) string {
	if !id.Valid {
		return ""
	}
	return strconv.FormatInt(id.Int64, 10)
}
