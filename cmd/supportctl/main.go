package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sanchobuendia/tickets/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "chat":
		cmdChat(os.Args[2:])
	case "health":
		cmdHealth()
	case "tickets":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: supportctl tickets <list|show>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdTicketsList(os.Args[3:])
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: supportctl tickets show <id>")
				os.Exit(1)
			}
			cmdTicketsShow(os.Args[3])
		default:
			fmt.Fprintf(os.Stderr, "unknown tickets subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "state":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: supportctl state <user-id>")
			os.Exit(1)
		}
		cmdState(os.Args[2])
	case "reset":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: supportctl reset <user-id>")
			os.Exit(1)
		}
		cmdReset(os.Args[2])
	case "logs":
		cmdLogs(os.Args[2:])
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: supportctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// --- chat command ---

func cmdChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	userID := fs.String("user", envOr("USER", "cli"), "User ID for the conversation")
	userName := fs.String("name", "", "Display name sent to the assistant")
	message := fs.String("m", "", "Single message (omit for interactive)")
	fs.Parse(args)

	send := func(text string) {
		resp, err := apiChat(*userID, *userName, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		fmt.Println(resp.Response)
		for _, id := range resp.Tickets {
			fmt.Printf("[ticket %s created]\n", id)
		}
	}

	if *message != "" {
		send(*message)
		return
	}

	fmt.Printf("supportctl chat as %s (quit, /new, /state, /tickets)\n\n", *userID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "quit", "exit":
			return
		case "/new":
			if err := apiDelete("/user/" + *userID); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Println("[conversation reset]")
		case "/state":
			if body, err := apiGet("/user/" + *userID + "/state"); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			} else {
				fmt.Println(prettyJSON(body))
			}
		case "/tickets":
			if body, err := apiGet("/api/tickets?limit=20"); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			} else {
				fmt.Println(prettyJSON(body))
			}
		default:
			send(line)
		}
		fmt.Println()
	}
}

// --- API client commands ---

func cmdHealth() {
	body, err := apiGet("/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdTicketsList(args []string) {
	fs := flag.NewFlagSet("tickets list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (open|closed)")
	user := fs.String("user", "", "Filter by user name")
	query := fs.String("q", "", "Full-text search on summary/description")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	q := fmt.Sprintf("?limit=%d", *limit)
	if *status != "" {
		q += "&status=" + *status
	}
	if *user != "" {
		q += "&user=" + *user
	}
	if *query != "" {
		q += "&q=" + *query
	}

	body, err := apiGet("/api/tickets" + q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var tickets []map[string]any
	json.Unmarshal(body, &tickets)
	if len(tickets) == 0 {
		fmt.Println("no tickets")
		return
	}
	for _, t := range tickets {
		fmt.Printf("%-14s %-8s %-12s %s\n", t["id"], t["status"], t["user_name"], t["summary"])
	}
}

func cmdTicketsShow(id string) {
	body, err := apiGet("/api/tickets/" + id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdState(userID string) {
	body, err := apiGet("/user/" + userID + "/state")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(body))
}

func cmdReset(userID string) {
	if err := apiDelete("/user/" + userID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("conversation for %s reset\n", userID)
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	limit := fs.Int("limit", 100, "Max entries")
	level := fs.String("level", "", "Minimum level (debug|info|warn|error)")
	fs.Parse(args)

	q := fmt.Sprintf("?limit=%d", *limit)
	if *level != "" {
		q += "&level=" + *level
	}

	body, err := apiGet("/api/logs" + q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var entries []map[string]any
	json.Unmarshal(body, &entries)
	for _, e := range entries {
		fmt.Printf("%v %-5v %v\n", e["time"], e["level"], e["message"])
	}
}

func cmdConfigValidate(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

type chatResponse struct {
	Response  string   `json:"response"`
	Tickets   []string `json:"tickets,omitempty"`
	NewTicket bool     `json:"new_ticket,omitempty"`
}

func apiChat(userID, userName, message string) (*chatResponse, error) {
	payload, _ := json.Marshal(map[string]string{
		"user_id":   userID,
		"user_name": userName,
		"message":   message,
	})
	req, err := http.NewRequest("POST", apiBase()+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	authorize(req)

	// Chat turns can take a while when the model runs several tools.
	client := &http.Client{Timeout: 5 * time.Minute}
	body, err := doRequest(client, req)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", apiBase()+path, nil)
	if err != nil {
		return nil, err
	}
	authorize(req)
	client := &http.Client{Timeout: 10 * time.Second}
	return doRequest(client, req)
}

func apiDelete(path string) error {
	req, err := http.NewRequest("DELETE", apiBase()+path, nil)
	if err != nil {
		return err
	}
	authorize(req)
	client := &http.Client{Timeout: 10 * time.Second}
	_, err = doRequest(client, req)
	return err
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func apiBase() string {
	return envOr("SUPPORTD_API_URL", "http://localhost:8080")
}

func authorize(req *http.Request) {
	if key := os.Getenv("SUPPORTD_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("supportctl - support service management CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  chat                 Talk to the assistant (-m for one-shot, REPL otherwise)")
	fmt.Println("  health               Check daemon health")
	fmt.Println("  tickets list         List tickets (--status, --user, --q, --limit)")
	fmt.Println("  tickets show <id>    Show ticket details")
	fmt.Println("  state <user-id>      Show a user's session state")
	fmt.Println("  reset <user-id>      Drop a user's conversation")
	fmt.Println("  logs                 Tail recent daemon logs (--limit, --level)")
	fmt.Println("  config validate <p>  Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SUPPORTD_API_URL   Daemon URL (default: http://localhost:8080)")
	fmt.Println("  SUPPORTD_API_KEY   API key for authentication")
}
