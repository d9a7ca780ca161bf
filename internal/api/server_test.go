package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/engine"
	"github.com/talgya/fungal-nexus/internal/grid"
	"github.com/talgya/fungal-nexus/internal/journal"
)

type calmRand struct{}

func (calmRand) Float64() float64 { return 0.999 }
func (calmRand) IntN(int) int     { return 0 }

func newTestServer(t *testing.T, configure func(*Server)) (*Server, *httptest.Server) {
	t.Helper()
	c, err := colony.New(colony.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	s := &Server{
		Sim: engine.NewSimulation(c, calmRand{}, grid.New(), engine.DefaultConfig()),
		Eng: engine.NewEngine(),
	}
	if configure != nil {
		configure(s)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatus(t *testing.T) {
	_, srv := newTestServer(t, func(s *Server) { s.RunID = "run-1" })

	var body struct {
		Name   string        `json:"name"`
		RunID  string        `json:"run_id"`
		Speed  float64       `json:"speed"`
		Status engine.Status `json:"status"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/status", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Name != "Fungal Nexus" || body.RunID != "run-1" || body.Speed != 1 {
		t.Errorf("body = %+v", body)
	}
	if body.Status.Nodes != 1 || body.Status.Nutrients != 450 || body.Status.Clock != "00:00" {
		t.Errorf("status = %+v", body.Status)
	}
	if !body.Status.Affordable["extractor"] || !body.Status.Affordable["defense"] {
		t.Errorf("affordable = %v", body.Status.Affordable)
	}
}

func TestBuildIsQueued(t *testing.T) {
	s, srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/v1/build", "", map[string]any{"x": 440, "y": 320, "type": "Extractor"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var queued engine.BuildRequest
	json.NewDecoder(resp.Body).Decode(&queued)
	if queued.ID == "" || queued.X != 435 || queued.Y != 315 || queued.Kind != "extractor" {
		t.Errorf("queued = %+v", queued)
	}

	s.Sim.Step(1)

	var snap colony.Snapshot
	getJSON(t, srv.URL+"/api/v1/colony", &snap)
	if len(snap.Nodes) != 2 || snap.Nodes[1].Type != "extractor" {
		t.Errorf("nodes = %+v", snap.Nodes)
	}

	var evs []engine.Event
	getJSON(t, srv.URL+"/api/v1/events?category=build", &evs)
	if len(evs) != 1 || evs[0].Meta["request_id"] != queued.ID {
		t.Errorf("events = %+v", evs)
	}
}

func TestBuildRejections(t *testing.T) {
	_, srv := newTestServer(t, func(s *Server) { s.BuildBurst = 100 })

	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown type", map[string]any{"x": 435, "y": 315, "type": "spore"}, http.StatusBadRequest},
		{"nucleus", map[string]any{"x": 435, "y": 315, "type": "nucleus"}, http.StatusBadRequest},
		{"off board", map[string]any{"x": 9000, "y": 315, "type": "storage"}, http.StatusBadRequest},
		{"not json", "x=1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := postJSON(t, srv.URL+"/api/v1/build", "", tt.body); resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestBuildAfterDefeat(t *testing.T) {
	s, srv := newTestServer(t, func(s *Server) {
		p := colony.DefaultParams()
		p.GraceCycles = 0
		p.DamagePerCycle = 1000
		lost, err := colony.New(p)
		if err != nil {
			t.Fatal(err)
		}
		s.Sim = engine.NewSimulation(lost, calmRand{}, grid.New(), engine.DefaultConfig())
	})
	s.Sim.Build(435, 315, colony.Extractor)
	s.Sim.Step(1)
	s.Sim.Step(2)
	if !s.Sim.IsGameOver() {
		t.Fatal("setup: colony should have fallen")
	}

	resp := postJSON(t, srv.URL+"/api/v1/build", "", map[string]any{"x": 465, "y": 315, "type": "storage"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestBuildRateLimit(t *testing.T) {
	_, srv := newTestServer(t, func(s *Server) {
		s.BuildRate = 0.01
		s.BuildBurst = 2
	})

	body := map[string]any{"x": 15, "y": 15, "type": "storage"}
	for i := 0; i < 2; i++ {
		if resp := postJSON(t, srv.URL+"/api/v1/build", "", body); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	resp := postJSON(t, srv.URL+"/api/v1/build", "", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestSpeedRequiresAdmin(t *testing.T) {
	s, srv := newTestServer(t, nil)
	if resp := postJSON(t, srv.URL+"/api/v1/speed", "", map[string]any{"speed": 2}); resp.StatusCode != http.StatusForbidden {
		t.Errorf("no key configured: status = %d, want 403", resp.StatusCode)
	}

	s2, srv2 := newTestServer(t, func(s *Server) { s.AdminKey = "secret" })
	if resp := postJSON(t, srv2.URL+"/api/v1/speed", "wrong", map[string]any{"speed": 2}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", resp.StatusCode)
	}
	if resp := postJSON(t, srv2.URL+"/api/v1/speed", "secret", map[string]any{"speed": 500}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out of range: status = %d, want 400", resp.StatusCode)
	}
	if resp := postJSON(t, srv2.URL+"/api/v1/speed", "secret", map[string]any{"speed": 4}); resp.StatusCode != http.StatusOK {
		t.Errorf("valid: status = %d", resp.StatusCode)
	}
	if s2.Eng.Speed() != 4 {
		t.Errorf("engine speed = %v, want 4", s2.Eng.Speed())
	}

	var got map[string]float64
	getJSON(t, srv2.URL+"/api/v1/speed", &got)
	if got["speed"] != 4 {
		t.Errorf("GET speed = %v", got)
	}
	if s.Eng.Speed() != 1 {
		t.Error("rejected request changed the speed")
	}
}

func TestNodeAndRoute(t *testing.T) {
	s, srv := newTestServer(t, nil)
	s.Sim.Build(435, 315, colony.Extractor)
	s.Sim.Build(465, 315, colony.Defense)

	var v colony.NodeView
	if code := getJSON(t, srv.URL+"/api/v1/node/470/320", &v); code != http.StatusOK {
		t.Fatalf("node status = %d", code)
	}
	if v.Type != "defense" || v.Health != 60 {
		t.Errorf("node = %+v", v)
	}

	var route struct {
		Hops int            `json:"hops"`
		Path []colony.Point `json:"path"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/route/465/315", &route); code != http.StatusOK {
		t.Fatalf("route status = %d", code)
	}
	if route.Hops != 2 || route.Path[2] != (colony.Point{X: 405, Y: 315}) {
		t.Errorf("route = %+v", route)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/node/15/15", http.StatusNotFound},
		{"/api/v1/route/15/15", http.StatusNotFound},
		{"/api/v1/node/a/b", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if code := getJSON(t, srv.URL+tt.path, nil); code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, code, tt.want)
		}
	}
}

func TestHistory(t *testing.T) {
	_, srv := newTestServer(t, nil)
	if code := getJSON(t, srv.URL+"/api/v1/history", nil); code != http.StatusNotFound {
		t.Errorf("without journal: status = %d, want 404", code)
	}

	db, err := journal.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	runID, _ := db.StartRun(7, colony.DefaultParams())

	s, srv2 := newTestServer(t, func(s *Server) {
		s.DB = db
		s.RunID = runID
	})
	s.Sim.Build(435, 315, colony.Extractor)
	s.Sim.Step(1)
	db.RecordCycle(runID, s.Sim.Status())
	db.SaveEvents(runID, s.Sim.DrainJournal())

	var body struct {
		Run    string                `json:"run"`
		Cycles []journal.CycleRecord `json:"cycles"`
		Events []journal.EventRecord `json:"events"`
	}
	if code := getJSON(t, srv2.URL+"/api/v1/history", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Run != runID || len(body.Cycles) != 1 || body.Cycles[0].Nodes != 2 || len(body.Events) != 1 {
		t.Errorf("history = %+v", body)
	}

	var runs []journal.Run
	getJSON(t, srv2.URL+"/api/v1/runs", &runs)
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("runs = %+v", runs)
	}
}

func TestStream(t *testing.T) {
	s, srv := newTestServer(t, nil)
	s.Sim.Build(435, 315, colony.Extractor)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream?flows=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var e engine.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("catch-up read: %v", err)
	}
	if e.Category != engine.CategoryBuild {
		t.Errorf("catch-up event = %+v", e)
	}

	// The subscription is registered before catch-up is sent, so a later
	// build always arrives.
	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Sim.Build(375, 315, colony.Storage)
		s.Sim.Step(1)
	}()
	var live engine.Event
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("live read: %v", err)
	}
	if live.Category != engine.CategoryBuild || live.Meta["type"] != "storage" {
		t.Errorf("live event = %+v", live)
	}
}
