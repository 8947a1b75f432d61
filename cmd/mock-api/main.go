package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
)

// mock-api stands in for the remote activity API during local development.
// Point SCHOLARSYNC_API_HOST at it and use any non-empty credentials;
// request signatures are accepted without checking. The fixture file is
// re-read on every request so it can be edited while the server runs.
type fixture struct {
	Users        []map[string]any            `json:"users"`
	Publications map[string][]map[string]any `json:"publications"`
	Grants       map[string][]map[string]any `json:"grants"`
}

func main() {
	var (
		addr     = flag.String("addr", ":9000", "listen address")
		dataPath = flag.String("data", "data/mock_api.json", "fixture JSON path")
	)
	flag.Parse()

	load := func(w http.ResponseWriter) *fixture {
		b, err := os.ReadFile(*dataPath)
		if err != nil {
			http.Error(w, "cannot read fixture: "+err.Error(), http.StatusInternalServerError)
			return nil
		}
		var fx fixture
		if err := json.Unmarshal(b, &fx); err != nil {
			http.Error(w, "fixture invalid JSON: "+err.Error(), http.StatusInternalServerError)
			return nil
		}
		return &fx
	}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("encode response: %v", err)
		}
	}

	feed := func(key string, pick func(*fixture, string) []map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fx := load(w)
			if fx == nil {
				return
			}
			acts := pick(fx, r.URL.Query().Get("userlist"))
			if acts == nil {
				acts = []map[string]any{}
			}
			writeJSON(w, map[string]any{key: acts})
		}
	}

	http.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		fx := load(w)
		if fx == nil {
			return
		}
		if fx.Users == nil {
			fx.Users = []map[string]any{}
		}
		writeJSON(w, fx.Users)
	})

	http.HandleFunc("/activities/-21", feed("-21", func(fx *fixture, user string) []map[string]any {
		return fx.Publications[user]
	}))
	http.HandleFunc("/activities/-11", feed("-11", func(fx *fixture, user string) []map[string]any {
		return fx.Grants[user]
	}))

	log.Printf("mock-api listening on %s, serving %s", *addr, *dataPath)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
