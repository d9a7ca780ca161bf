package steward

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	maxRecords    = 20
	promptRecords = 5 // recent records included in the advisor prompt
)

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	Cycle     uint64  `json:"cycle"`
	Action    string  `json:"action"`
	Type      string  `json:"type,omitempty"`
	X         int     `json:"x,omitempty"`
	Y         int     `json:"y,omitempty"`
	Nutrients float64 `json:"nutrients"`
	Threat    string  `json:"threat"`
	Rationale string  `json:"rationale,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// CycleMemory keeps a ring of recent steward cycles on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file. A missing or corrupt file starts empty;
// an empty path keeps memory in process only.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal steward memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write steward memory", "path", m.path, "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Format summarizes the last few cycles.
func (m *CycleMemory) Format() string {
	if len(m.Records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Recent Steward Cycles\n")

	start := max(len(m.Records)-promptRecords, 0)
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "- Cycle %d: action=%s, nutrients=%.0f, threat=%s", r.Cycle, r.Action, r.Nutrients, r.Threat)
		if r.Type != "" {
			fmt.Fprintf(&b, ", build=%s@(%d,%d)", r.Type, r.X, r.Y)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, ", error=%s", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
