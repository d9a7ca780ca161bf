// Package journal records runs to SQLite: one row per run, periodic cycle
// snapshots and the event log. It is write-mostly; nothing here is ever
// loaded back into a colony.
package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/engine"
)

// ErrUnknownRun is returned for run ids the journal has never seen.
var ErrUnknownRun = errors.New("unknown run")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Run is one game, from nucleus to defeat or shutdown.
type Run struct {
	ID             string         `db:"id" json:"id"`
	StartedAt      string         `db:"started_at" json:"started_at"`
	EndedAt        sql.NullString `db:"ended_at" json:"-"`
	Seed           int64          `db:"seed" json:"seed"`
	ParamsJSON     string         `db:"params_json" json:"-"`
	SurvivedCycles int64          `db:"survived_cycles" json:"survived_cycles"`
	Defeated       bool           `db:"defeated" json:"defeated"`
}

// CycleRecord is a periodic snapshot of the colony's headline numbers.
type CycleRecord struct {
	Cycle            int64   `db:"cycle" json:"cycle"`
	Nutrients        float64 `db:"nutrients" json:"nutrients"`
	NutrientCapacity float64 `db:"nutrient_capacity" json:"nutrient_capacity"`
	Defense          float64 `db:"defense" json:"defense"`
	NucleusHealthPct float64 `db:"nucleus_health_pct" json:"nucleus_health_pct"`
	Nodes            int     `db:"nodes" json:"nodes"`
	Infected         int     `db:"infected" json:"infected"`
	Terminal         int     `db:"terminal" json:"terminal"`
}

// EventRecord is a stored event.
type EventRecord struct {
	Cycle       int64  `db:"cycle" json:"cycle"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
	MetaJSON    string `db:"meta_json" json:"-"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		seed INTEGER NOT NULL,
		params_json TEXT NOT NULL,
		survived_cycles INTEGER NOT NULL DEFAULT 0,
		defeated INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cycles (
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		nutrients REAL NOT NULL,
		nutrient_capacity REAL NOT NULL,
		defense REAL NOT NULL,
		nucleus_health_pct REAL NOT NULL,
		nodes INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		terminal INTEGER NOT NULL,
		PRIMARY KEY (run_id, cycle)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, cycle);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartRun registers a new run and returns its id.
func (db *DB) StartRun(seed uint64, p colony.Params) (string, error) {
	paramsJSON, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, started_at, seed, params_json) VALUES (?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), int64(seed), string(paramsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Info("journal run started", "run", id, "seed", seed)
	return id, nil
}

// EndRun stamps the outcome of a run.
func (db *DB) EndRun(runID string, st engine.Status) error {
	res, err := db.conn.Exec(
		"UPDATE runs SET ended_at = ?, survived_cycles = ?, defeated = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), int64(st.Stats.SurvivedCycles), st.GameOver, runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end run %s: %w", runID, ErrUnknownRun)
	}
	return nil
}

// RecordCycle stores the headline numbers of one cycle. Recording the same
// cycle twice keeps the latest numbers.
func (db *DB) RecordCycle(runID string, st engine.Status) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO cycles
		(run_id, cycle, nutrients, nutrient_capacity, defense, nucleus_health_pct, nodes, infected, terminal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(st.Cycle), st.Nutrients, st.NutrientCapacity, st.Defense,
		st.NucleusHealthPct, st.Nodes, st.Infected, st.Terminal,
	)
	if err != nil {
		return fmt.Errorf("record cycle %d: %w", st.Cycle, err)
	}
	return nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (run_id, cycle, description, category, meta_json) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		metaJSON := []byte("{}")
		if len(e.Meta) > 0 {
			if metaJSON, err = json.Marshal(e.Meta); err != nil {
				return fmt.Errorf("marshal event meta: %w", err)
			}
		}
		if _, err := stmt.Exec(runID, int64(e.Cycle), e.Description, e.Category, string(metaJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, started_at, ended_at, seed, params_json, survived_cycles, defeated FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// History returns up to limit cycle snapshots of a run, oldest first.
func (db *DB) History(runID string, limit int) ([]CycleRecord, error) {
	var rows []CycleRecord
	err := db.conn.Select(&rows, `SELECT cycle, nutrients, nutrient_capacity, defense, nucleus_health_pct, nodes, infected, terminal
		FROM (SELECT * FROM cycles WHERE run_id = ? ORDER BY cycle DESC LIMIT ?)
		ORDER BY cycle ASC`,
		runID, limit,
	)
	return rows, err
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]EventRecord, error) {
	var events []EventRecord
	err := db.conn.Select(&events,
		"SELECT cycle, description, category, meta_json FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// Meta decodes the stored event metadata.
func (e EventRecord) Meta() map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(e.MetaJSON), &m); err != nil {
		return nil
	}
	return m
}

// Params decodes the parameters a run was started with.
func (r Run) Params() (colony.Params, error) {
	var p colony.Params
	err := json.Unmarshal([]byte(r.ParamsJSON), &p)
	return p, err
}
