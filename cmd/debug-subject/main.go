package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"scholarsync/internal/collector"
	"scholarsync/pkg/utils"
)

// debug-subject fetches one subject's activity feeds and shows what the
// normalizer makes of every record, without touching the database. Handy
// when a member reports a missing publication.
func main() {
	userID := flag.String("user", "", "subject user id to inspect (required)")
	dump := flag.Bool("dump", false, "print raw activity payloads as JSON")
	flag.Parse()

	if *userID == "" {
		log.Fatal("usage: debug-subject -user <id> [-dump]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := collector.NewClient(utils.LoadAPIConfig())
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	pubs, err := client.Publications(ctx, *userID)
	if err != nil {
		log.Fatalf("fetch publications feed: %v", err)
	}
	fmt.Printf("publications feed: %d activities\n", len(pubs))
	for _, raw := range pubs {
		if *dump {
			dumpJSON(raw)
		}
		p, err := collector.NormalizePublication(raw, *userID)
		switch {
		case err != nil:
			fmt.Printf("  ✗ activity %v: %v\n", raw["activityid"], err)
		case p == nil:
			fmt.Printf("  - activity %v skipped (type %q is not modeled)\n", raw["activityid"], activityType(raw))
		default:
			fmt.Printf("  ✓ %d [%s] %s\n", p.ActivityID, p.Type, head(p.Title))
		}
	}

	grants, err := client.Grants(ctx, *userID)
	if err != nil {
		log.Fatalf("fetch grants feed: %v", err)
	}
	fmt.Printf("\ngrants feed: %d activities\n", len(grants))
	for _, raw := range grants {
		if *dump {
			dumpJSON(raw)
		}
		g, err := collector.NormalizeGrant(raw, *userID)
		switch {
		case err != nil:
			fmt.Printf("  ✗ activity %v: %v\n", raw["activityid"], err)
		case g == nil:
			fmt.Printf("  - activity %v skipped (no grant id)\n", raw["activityid"])
		default:
			fmt.Printf("  ✓ %d [%s] %s (funding %s)\n", g.ActivityID, g.GrantID, head(g.Title), g.TotalFunding)
		}
	}
}

func dumpJSON(raw map[string]any) {
	b, _ := json.MarshalIndent(raw, "", "  ")
	fmt.Println(string(b))
}

func activityType(raw map[string]any) string {
	fields, _ := raw["fields"].(map[string]any)
	t, _ := fields["Type"].(string)
	return t
}

func head(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:80]) + "..."
}
