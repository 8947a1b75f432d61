package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"scholarsync/internal/faculty"
	"scholarsync/pkg/database"
	"scholarsync/pkg/models"
)

// profile is one exported member with their stored activities embedded.
type profile struct {
	models.Faculty
	Publications []models.Publication `json:"publications"`
	Grants       []models.Grant       `json:"grants"`
}

func main() {
	var (
		outPath = flag.String("out", "data/faculty.json", "output JSON path")
		status  = flag.String("status", "", "only export members with this employment status")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	repo := faculty.NewRepo(db)

	// page through the roster; List caps a single page at 100
	var members []models.Faculty
	for offset := 0; ; offset += 100 {
		page, err := repo.List(ctx, faculty.ListQuery{Status: *status, Limit: 100, Offset: offset})
		if err != nil {
			log.Fatalf("list faculty: %v", err)
		}
		members = append(members, page...)
		if len(page) < 100 {
			break
		}
	}

	out := make([]profile, 0, len(members))
	for _, m := range members {
		pubs, err := repo.PublicationsFor(ctx, m.ID)
		if err != nil {
			log.Fatalf("publications for %s: %v", m.ID, err)
		}
		grants, err := repo.GrantsFor(ctx, m.ID)
		if err != nil {
			log.Fatalf("grants for %s: %v", m.ID, err)
		}
		out = append(out, profile{Faculty: m, Publications: pubs, Grants: grants})
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("mkdir failed: %v", err)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("marshal failed: %v", err)
	}

	if err := os.WriteFile(*outPath, b, 0o644); err != nil {
		log.Fatalf("write failed: %v", err)
	}

	log.Printf("✅ exported %d faculty profiles to %s", len(out), *outPath)
}
