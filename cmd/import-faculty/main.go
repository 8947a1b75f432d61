package main

import (
	"context"
	"flag"
	"log"
	"time"

	"scholarsync/internal/collector"
	"scholarsync/internal/faculty"
	"scholarsync/pkg/database"
	"scholarsync/pkg/models"
	"scholarsync/pkg/utils"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall import timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	// Ensure schema exists
	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	client, err := collector.NewClient(utils.LoadAPIConfig())
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	records, err := client.Users(ctx)
	if err != nil {
		log.Fatalf("fetch users: %v", err)
	}
	if len(records) == 0 {
		log.Fatal("users feed returned nothing; check credentials")
	}

	roster := make([]models.Faculty, 0, len(records))
	skipped := 0
	for _, rec := range records {
		f, err := collector.NormalizeUser(rec)
		if err != nil {
			skipped++
			log.Printf("[import] skipping user record: %v", err)
			continue
		}
		roster = append(roster, *f)
	}

	if err := faculty.NewRepo(db).SaveRoster(ctx, roster); err != nil {
		log.Fatalf("save roster: %v", err)
	}

	log.Printf("✅ imported %d faculty members (%d records skipped)", len(roster), skipped)
}
