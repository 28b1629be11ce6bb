// Package main is the container healthcheck for the land registry server.
// It probes the readiness endpoint and exits 0 on a 2xx response, 1
// otherwise. The URL comes from the first argument, LANDREG_HEALTHCHECK_URL,
// or defaults to the local readiness probe.
//
// Usage: healthcheck [url]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

func main() {
	os.Exit(check(targetURL(os.Args[1:]), os.Stderr))
}

func targetURL(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if v := os.Getenv("LANDREG_HEALTHCHECK_URL"); v != "" {
		return v
	}
	return defaultURL
}

// check returns the process exit code for a probe of url, writing the reason
// for any failure to stderr.
func check(url string, stderr io.Writer) int {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(stderr, "healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return 0
	}

	var body struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}
	if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body) == nil && body.Status != "" {
		fmt.Fprintf(stderr, "healthcheck failed: status %d (%s) %v\n", resp.StatusCode, body.Status, body.Components)
		return 1
	}
	fmt.Fprintf(stderr, "healthcheck failed: status %d\n", resp.StatusCode)
	return 1
}
