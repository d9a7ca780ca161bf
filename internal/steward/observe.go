// Package steward implements the autonomous colony player.
// It observes the colony via the API, decides on at most one build per
// cycle, and acts through the public build endpoint.
package steward

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/engine"
)

// Observation holds everything collected during one observation cycle.
type Observation struct {
	Status StatusReport    `json:"status"`
	Colony colony.Snapshot `json:"colony"`
}

// StatusReport mirrors GET /api/v1/status.
type StatusReport struct {
	Name    string        `json:"name"`
	RunID   string        `json:"run_id"`
	Speed   float64       `json:"speed"`
	Running bool          `json:"running"`
	Status  engine.Status `json:"status"` // affordability is read under the same lock as the numbers
}

// Observer fetches colony state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches the status and colony endpoints.
func (o *Observer) Observe() (*Observation, error) {
	obs := &Observation{}

	if err := o.fetchJSON("/api/v1/status", &obs.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/colony", &obs.Colony); err != nil {
		return nil, fmt.Errorf("fetch colony: %w", err)
	}
	return obs, nil
}

func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
