package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

type anyEvent map[string]any

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP event server address")
	raw := flag.Bool("raw", false, "print raw JSON instead of formatted lines")
	flag.Parse()

	for {
		if err := run(*addr, *raw); err != nil {
			log.Printf("[sync-client] disconnected: %v", err)
		}
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func run(addr string, raw bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[sync-client] connected to %s", addr)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		if raw {
			fmt.Println(string(line))
			continue
		}

		var obj anyEvent
		if err := json.Unmarshal(line, &obj); err != nil {
			// not JSON? print raw
			fmt.Println(string(line))
			continue
		}

		fmt.Println(format(obj))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

// format turns a run event into a single readable line; anything
// unrecognized falls back to indented JSON.
func format(obj anyEvent) string {
	typ, _ := obj["type"].(string)
	runID, _ := obj["run_id"].(string)
	if len(runID) > 8 {
		runID = runID[:8]
	}

	switch typ {
	case "run.started":
		return fmt.Sprintf("run %s started: %v subjects, %v workers", runID, obj["total"], obj["workers"])
	case "run.progress":
		return fmt.Sprintf("run %s: %v/%v subjects", runID, obj["processed"], obj["total"])
	case "run.completed":
		return fmt.Sprintf("run %s completed: %v/%v subjects", runID, obj["processed"], obj["total"])
	case "run.failed":
		return fmt.Sprintf("run %s failed: %v", runID, obj["error"])
	}

	b, _ := json.MarshalIndent(obj, "", "  ")
	return string(b)
}
