// Command steward plays the colony autonomously through the HTTP API.
// It observes colony state, decides on at most one build per cycle (with an
// optional Haiku advisor), and queues it via POST /api/v1/build.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/fungal-nexus/internal/llm"
	"github.com/talgya/fungal-nexus/internal/steward"
)

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
	}

	apiURL := envOrDefault("NEXUS_API_URL", "http://localhost:8080")
	intervalMS := envIntOrDefault("STEWARD_INTERVAL_MS", 2000)
	memoryPath := envOrDefault("STEWARD_MEMORY", "steward_memory.json")

	var advisor steward.Advisor
	if client := llm.NewClient(os.Getenv("ANTHROPIC_API_KEY")); client != nil {
		advisor = client
		slog.Info("Haiku advisor enabled")
	}

	interval := time.Duration(intervalMS) * time.Millisecond
	slog.Info("steward starting", "api_url", apiURL, "interval", interval, "memory", memoryPath)

	s := steward.New(apiURL, advisor, steward.LoadMemory(memoryPath))

	// The nexus may still be starting.
	slog.Info("waiting for nexus API...")
	waitForAPI(apiURL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		if _, over := s.RunCycle(); over {
			slog.Info("the nucleus has fallen, steward stopping")
			return
		}
		select {
		case <-ticker.C:
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Steward stopped.")
			return
		}
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 2 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	deadline := time.Now().Add(2 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("nexus API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("nexus API did not become ready within 2 minutes")
			os.Exit(1)
		}
		slog.Info("nexus not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}
