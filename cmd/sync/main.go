package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"scholarsync/internal/collector"
	"scholarsync/internal/events"
	"scholarsync/pkg/database"
	"scholarsync/pkg/models"
	"scholarsync/pkg/utils"
)

func main() {
	workers := flag.Int("workers", collector.DefaultWorkers, "concurrent subject workers")
	batch := flag.Int("batch", 0, "process only the first N subjects (0 = all)")
	verbose := flag.Bool("verbose", false, "log every stored activity")
	eventsAddr := flag.String("events-addr", "", "serve run events on this TCP address (e.g. :7070)")
	flag.Parse()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	client, err := collector.NewClient(utils.LoadAPIConfig())
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	col := collector.New(db, client)
	col.Workers = *workers
	col.Batch = *batch
	col.Verbose = *verbose

	if *eventsAddr != "" {
		hub := events.NewHub()
		col.Events = hub
		srv := events.NewServer(*eventsAddr, hub)
		go func() {
			if err := srv.Run(); err != nil {
				log.Printf("[sync] event server: %v", err)
			}
		}()
	}

	// Ctrl-C cancels the pass; the run record still lands as failed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := col.Run(ctx)
	if err != nil {
		log.Fatalf("sync failed: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		os.Exit(1)
	}
}
