// Command nexus runs the fungal colony: the cycle engine, the HTTP API, the
// run journal and, in tui mode, the terminal board.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"

	"github.com/talgya/fungal-nexus/internal/api"
	"github.com/talgya/fungal-nexus/internal/colony"
	"github.com/talgya/fungal-nexus/internal/engine"
	"github.com/talgya/fungal-nexus/internal/entropy"
	"github.com/talgya/fungal-nexus/internal/grid"
	"github.com/talgya/fungal-nexus/internal/journal"
	"github.com/talgya/fungal-nexus/internal/substrate"
	"github.com/talgya/fungal-nexus/internal/tui"
)

func main() {
	mode := envOrDefault("NEXUS_MODE", "headless")
	if mode != "headless" && mode != "tui" {
		fmt.Fprintf(os.Stderr, "NEXUS_MODE must be headless or tui, got %q\n", mode)
		os.Exit(2)
	}

	closeLog, err := setupLogging(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	seed := uint64(envIntOrDefault("NEXUS_SEED", 0))
	dbPath := envOrDefault("NEXUS_DB", "data/nexus.db")
	apiPort := envIntOrDefault("NEXUS_PORT", 8080)
	interval := time.Duration(envIntOrDefault("NEXUS_INTERVAL_MS", 1000)) * time.Millisecond

	// ── Colony ────────────────────────────────────────────────────────
	g := grid.New()
	p := colony.DefaultParams()
	p.NucleusX, p.NucleusY = g.Center()
	p.SpreadProbability = envFloatOrDefault("NEXUS_SPREAD", p.SpreadProbability)
	p.DamagePerCycle = envFloatOrDefault("NEXUS_DAMAGE", p.DamagePerCycle)
	p.GraceCycles = uint64(envIntOrDefault("NEXUS_GRACE", int(p.GraceCycles)))

	var opts []colony.Option
	if envOrDefault("NEXUS_SUBSTRATE", "flat") == "noise" {
		noiseSeed := int64(seed)
		if noiseSeed == 0 {
			noiseSeed = time.Now().UnixNano()
		}
		field := substrate.Generate(g, substrate.DefaultConfig(noiseSeed))
		st := field.Stats()
		slog.Info("substrate generated",
			"seed", noiseSeed,
			"min", fmt.Sprintf("%.2f", st.Min),
			"max", fmt.Sprintf("%.2f", st.Max),
			"mean", fmt.Sprintf("%.2f", st.Mean),
		)
		opts = append(opts, colony.WithYield(field))
	}

	c, err := colony.New(p, opts...)
	if err != nil {
		slog.Error("invalid colony parameters", "error", err)
		os.Exit(1)
	}

	randomKey := os.Getenv("RANDOM_ORG_API_KEY")
	rng := entropy.Source(randomKey, seed)
	switch {
	case randomKey != "":
		slog.Info("outbreaks drawn from random.org")
	case seed != 0:
		slog.Info("outbreaks drawn from seeded PCG", "seed", seed)
	default:
		slog.Info("outbreaks drawn from crypto/rand")
	}

	sim := engine.NewSimulation(c, rng, g, engine.DefaultConfig())

	// ── Journal ───────────────────────────────────────────────────────
	var db *journal.DB
	var runID string
	if dbPath != "none" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			slog.Error("failed to create journal directory", "error", err)
			os.Exit(1)
		}
		db, err = journal.Open(dbPath)
		if err != nil {
			slog.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		runID, err = db.StartRun(seed, p)
		if err != nil {
			slog.Error("failed to start run", "error", err)
			os.Exit(1)
		}
		slog.Info("journal opened", "path", dbPath, "run", runID)
	}

	flush := func() {
		if db == nil {
			return
		}
		if err := db.RecordCycle(runID, sim.Status()); err != nil {
			slog.Error("cycle record failed", "error", err)
		}
		if err := db.SaveEvents(runID, sim.DrainJournal()); err != nil {
			slog.Error("event journal failed", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = interval
	eng.OnCycle = sim.Step
	eng.OnReport = func(cycle uint64) {
		flush()
		st := sim.Status()
		slog.Info("colony report",
			"clock", st.Clock,
			"nodes", st.Nodes,
			"nutrients", int(st.Nutrients),
			"capacity", int(st.NutrientCapacity),
			"defense", int(st.Defense),
			"infected", st.Infected,
			"nucleus_pct", int(st.NucleusHealthPct),
		)
	}
	eng.Done = sim.IsGameOver

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("NEXUS_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("NEXUS_ADMIN_KEY not set, POST /api/v1/speed is disabled")
	}
	apiServer := &api.Server{
		Sim:        sim,
		Eng:        eng,
		DB:         db,
		RunID:      runID,
		Port:       apiPort,
		AdminKey:   adminKey,
		BuildRate:  envFloatOrDefault("NEXUS_BUILD_RATE", 2),
		BuildBurst: envIntOrDefault("NEXUS_BUILD_BURST", 5),
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mode == "tui" {
		if err := runTUI(ctx, eng, sim); err != nil {
			slog.Error("terminal UI failed", "error", err)
		}
	} else {
		go func() {
			<-ctx.Done()
			slog.Info("shutting down")
			eng.Stop()
		}()
		fmt.Printf("Fungal Nexus is growing. API: http://localhost:%d/api/v1/status (Ctrl+C to stop)\n", apiPort)
		eng.Run()
	}

	// ── Shutdown ──────────────────────────────────────────────────────
	flush()
	st := sim.Status()
	if db != nil {
		if err := db.EndRun(runID, st); err != nil {
			slog.Error("failed to close run", "error", err)
		}
	}
	printSummary(st)
}

// runTUI drives the engine in the background while the board owns the terminal.
func runTUI(ctx context.Context, eng *engine.Engine, sim *engine.Simulation) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	done := make(chan struct{})
	go func() {
		eng.Run()
		close(done)
	}()

	tui.New(screen, sim).Run(ctx)

	eng.Stop()
	<-done
	return nil
}

// setupLogging installs the default logger: text on a terminal, JSON
// otherwise. The board owns the terminal in tui mode, so logs go to a file.
func setupLogging(mode string) (func(), error) {
	level := slog.LevelInfo
	if os.Getenv("NEXUS_DEBUG") != "" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stdout
	closer := func() {}
	if mode == "tui" {
		f, err := os.OpenFile(envOrDefault("NEXUS_LOG", "nexus.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out, closer = f, func() { f.Close() }
	}

	var handler slog.Handler
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

func printSummary(st engine.Status) {
	s := st.Stats
	outcome := "stopped"
	if st.GameOver {
		outcome = "fell"
	}
	fmt.Printf("\nThe colony %s after %s (%s cycles).\n", outcome, st.Clock, humanize.Comma(int64(st.Cycle)))
	fmt.Printf("Built %s nodes (%s failed), extracted %s nutrients, spent %s defense.\n",
		humanize.Comma(int64(s.Builds)),
		humanize.Comma(int64(s.FailedBuilds)),
		humanize.Comma(int64(s.Extracted)),
		humanize.Comma(int64(s.DefenseSpent)),
	)
	fmt.Printf("Outbreaks: %d, infections: %d, transformations: %d, containments: %s.\n",
		s.Outbreaks, s.Infections, s.Transformations, humanize.Comma(int64(s.Containments)))
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

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
