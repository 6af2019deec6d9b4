package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	persistlog "survival.io/internal/persistence/log"
	"survival.io/internal/persistence/statsdb"
	"survival.io/internal/sim/catalogs"
	"survival.io/internal/sim/tuning"
	"survival.io/internal/sim/world"
	"survival.io/internal/transport/httpapi"
	"survival.io/internal/transport/ws"
)

func main() {
	var (
		addr            = flag.String("addr", ":3000", "http listen address (PORT env overrides the port)")
		worldID         = flag.String("world", "main", "world id")
		seed            = flag.Int64("seed", 0, "world seed (0 picks one from the clock)")
		configDir       = flag.String("configs", "./configs", "config directory")
		dataDir         = flag.String("data", "./data", "runtime data directory")
		tuningPath      = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB       = flag.Bool("disable_db", false, "disable accounts and persistent stats")
		disableEventLog = flag.Bool("disable_event_log", false, "disable the compressed game event log")
		logLevel        = flag.String("log_level", "info", "log level (debug, info, warn, error)")
		logDev          = flag.Bool("log_dev", false, "human-readable console logs")
	)
	flag.Parse()

	logger, err := newLogger(*logLevel, *logDev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	listen := addrWithPort(*addr, os.Getenv("PORT"))

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal("load catalogs", zap.Error(err))
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatal("load tuning", zap.String("path", tp), zap.Error(err))
		}
		logger.Warn("tuning not found; using defaults", zap.String("path", tp))
		tune = tuning.Defaults()
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	w, err := world.New(world.WorldConfig{
		ID:     *worldID,
		Seed:   *seed,
		Tuning: tune,
		Logger: logger,
	}, cats)
	if err != nil {
		logger.Fatal("world", zap.Error(err))
	}

	var (
		store    *statsdb.Store
		accounts httpapi.Accounts
	)
	if !*disableDB {
		store, err = statsdb.Open(filepath.Join(*dataDir, "survival.sqlite"), logger)
		if err != nil {
			logger.Fatal("open stats db", zap.Error(err))
		}
		defer store.Close()
		if err := store.RecordCatalogDigests(context.Background(), catalogDigests(cats, tune)); err != nil {
			logger.Warn("record catalog digests", zap.Error(err))
		}
		w.SetStatsSink(store)
		accounts = store
	} else {
		logger.Info("accounts and stats disabled (-disable_db)")
	}

	var events *persistlog.EventLogger
	if !*disableEventLog {
		events = persistlog.NewEventLogger(*dataDir, logger)
		defer events.Close()
		w.SetEventLogger(events)
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world stopped", zap.Error(err))
		}
	}()

	wsSrv := ws.NewServer(w, logger)
	if tune.ClientQueue > 0 {
		wsSrv.DefaultQueue = tune.ClientQueue
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(*worldID, w, wsSrv, store, events))
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	httpapi.New(accounts, tune.LeaderboardSize, logger).Register(mux)

	enableAdminHTTP := envBool("SV_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("SV_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", adminStateHandler(w))
	} else {
		logger.Info("admin endpoints disabled (SV_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		wsSrv.CloseAll()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", listen),
		zap.String("world", *worldID),
		zap.Int64("seed", *seed),
		zap.Int("tick_rate_hz", tune.TickRateHz),
		zap.String("recipes_digest", cats.Recipes.Digest))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}

	// Let the world flush connected sessions before the deferred closes run.
	cancel()
	<-worldDone
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func adminStateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := w.RequestState(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		resp := struct {
			State   world.StateSummary `json:"state"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			State:   st,
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// catalogDigests names every loaded table by content hash, tuning included.
func catalogDigests(cats *catalogs.Catalogs, tune tuning.Tuning) map[string]string {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return map[string]string{
		"recipes":   cats.Recipes.Digest,
		"entities":  cats.Entities.Digest,
		"equipment": cats.Equipment.Digest,
		"tuning":    hex.EncodeToString(sum[:]),
	}
}
