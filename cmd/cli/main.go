package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"scholarsync/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

type facultyListResponse struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []models.Faculty `json:"items"`
}

type activityListResponse struct {
	UserID string               `json:"user_id"`
	Total  int                  `json:"total"`
	Items  []models.Publication `json:"items"`
}

type grantListResponse struct {
	UserID string         `json:"user_id"`
	Total  int            `json:"total"`
	Items  []models.Grant `json:"items"`
}

func main() {
	global := flag.NewFlagSet("scholarsync", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "faculty":
		handleFaculty(ctx, client, *baseURL, sub, args[2:])
	case "runs":
		handleRuns(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "events":
		handleEvents(*baseURL, sub, args[2:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" {
			log.Fatal("username, email, and password are required")
		}

		payload := map[string]string{"username": *username, "email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ registered and logged in")
	case "logout":
		// best effort: invalidate the token server-side, then drop it locally
		if token, err := readToken(tokenPath); err == nil && token != "" {
			_ = doJSON(ctx, client, http.MethodPost, baseURL+"/auth/logout", token, nil, nil)
		}
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: scholarsync auth <login|register|logout>")
	}
}

func handleFaculty(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("faculty search", flag.ExitOnError)
		query := fs.String("q", "", "search query")
		unit := fs.Int("unit", 0, "primary unit filter")
		status := fs.String("status", "", "employment status filter")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/faculty")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *unit > 0 {
			qv.Set("unit", strconv.Itoa(*unit))
		}
		if *status != "" {
			qv.Set("status", *status)
		}
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp facultyListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("search failed: %v", err)
		}
		printJSON(resp)
	case "show":
		id := requireID("faculty show", args)
		var resp models.Faculty
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/faculty/"+url.PathEscape(id), "", nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "publications":
		id := requireID("faculty publications", args)
		var resp activityListResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/faculty/"+url.PathEscape(id)+"/publications", "", nil, &resp); err != nil {
			log.Fatalf("publications failed: %v", err)
		}
		printJSON(resp)
	case "grants":
		id := requireID("faculty grants", args)
		var resp grantListResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/faculty/"+url.PathEscape(id)+"/grants", "", nil, &resp); err != nil {
			log.Fatalf("grants failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: scholarsync faculty <search|show|publications|grants>")
	}
}

func handleRuns(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "list":
		fs := flag.NewFlagSet("runs list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "how many runs to show")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/runs")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		u.RawQuery = qv.Encode()

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, u.String(), token, nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		id := requireID("runs show", args)
		var resp models.Run
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/runs/"+url.PathEscape(id), token, nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "latest":
		var resp models.Run
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/runs/latest", token, nil, &resp); err != nil {
			log.Fatalf("latest failed: %v", err)
		}
		printJSON(resp)
	case "start":
		fs := flag.NewFlagSet("runs start", flag.ExitOnError)
		workers := fs.Int("workers", 0, "worker count (0 = server default)")
		batch := fs.Int("batch", 0, "process only the first N subjects")
		_ = fs.Parse(args)

		payload := map[string]int{"workers": *workers, "batch": *batch}
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/runs", token, payload, &resp); err != nil {
			log.Fatalf("start failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: scholarsync runs <list|show|latest|start>")
	}
}

func handleEvents(baseURL, sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("events listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP event server address")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)
		for {
			if err := runEventsTCP(*addr, *pretty); err != nil {
				log.Printf("[events] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	case "subscribe":
		fs := flag.NewFlagSet("events subscribe", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws")
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runWebSocket(endpoint); err != nil {
			log.Fatalf("subscribe failed: %v", err)
		}
	default:
		log.Fatal("usage: scholarsync events <listen|subscribe>")
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "json":
		fs := flag.NewFlagSet("export json", flag.ExitOnError)
		out := fs.String("out", "data/faculty.json", "output JSON path")
		limit := fs.Int("limit", 500, "max members to export")
		_ = fs.Parse(args)

		profiles, err := fetchProfiles(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export json failed: %v", err)
		}
		if err := writeJSON(*out, profiles); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("✅ exported %d profiles to %s", len(profiles), *out)
	case "csv":
		fs := flag.NewFlagSet("export csv", flag.ExitOnError)
		out := fs.String("out", "data/faculty_summary.csv", "output CSV path")
		limit := fs.Int("limit", 500, "max members to export")
		_ = fs.Parse(args)

		profiles, err := fetchProfiles(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export csv failed: %v", err)
		}
		if err := writeSummaryCSV(*out, profiles); err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("✅ exported %d members to %s", len(profiles), *out)
	default:
		log.Fatal("usage: scholarsync export <json|csv>")
	}
}

type profile struct {
	models.Faculty
	Publications []models.Publication `json:"publications"`
	Grants       []models.Grant       `json:"grants"`
}

func fetchProfiles(ctx context.Context, client *http.Client, baseURL string, limit int) ([]profile, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	var members []models.Faculty
	offset := 0
	for len(members) < limit {
		pageSize := 50
		if remaining := limit - len(members); remaining < pageSize {
			pageSize = remaining
		}
		u, err := url.Parse(baseURL + "/faculty")
		if err != nil {
			return nil, err
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", pageSize))
		qv.Set("offset", fmt.Sprintf("%d", offset))
		u.RawQuery = qv.Encode()

		var resp facultyListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}
		members = append(members, resp.Items...)
		offset += len(resp.Items)
		if offset >= resp.Total {
			break
		}
	}

	out := make([]profile, 0, len(members))
	for _, m := range members {
		var pubs activityListResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/faculty/"+url.PathEscape(m.ID)+"/publications", "", nil, &pubs); err != nil {
			return nil, err
		}
		var grants grantListResponse
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/faculty/"+url.PathEscape(m.ID)+"/grants", "", nil, &grants); err != nil {
			return nil, err
		}
		out = append(out, profile{Faculty: m, Publications: pubs.Items, Grants: grants.Items})
	}

	return out, nil
}

func runEventsTCP(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[events] connected to %s", addr)
	reader := bufio.NewScanner(conn)
	for reader.Scan() {
		line := reader.Bytes()
		if !pretty {
			fmt.Println(string(line))
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			fmt.Println(string(line))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if err := reader.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[events] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeSummaryCSV(path string, profiles []profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"firstname", "lastname", "user_id", "publication_count", "grant_count", "total_count",
	}); err != nil {
		return err
	}
	for _, p := range profiles {
		if err := writer.Write([]string{
			p.FirstName,
			p.LastName,
			p.ID,
			strconv.Itoa(len(p.Publications)),
			strconv.Itoa(len(p.Grants)),
			strconv.Itoa(len(p.Publications) + len(p.Grants)),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func requireID(cmdName string, args []string) string {
	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	id := fs.String("id", "", "record id")
	_ = fs.Parse(args)
	if *id == "" {
		log.Fatalf("usage: scholarsync %s -id <id>", cmdName)
	}
	return *id
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.scholarsync-token.json"
	}
	return filepath.Join(home, ".scholarsync", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("scholarsync <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  faculty search|show|publications|grants")
	fmt.Println("  runs list|show|latest|start")
	fmt.Println("  events listen|subscribe")
	fmt.Println("  export json|csv")
}
