package process

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charleschow/penalty-lab/internal/adapters/inbound/kick_http"
	"github.com/charleschow/penalty-lab/internal/adapters/outbound/discord"
	"github.com/charleschow/penalty-lab/internal/config"
	"github.com/charleschow/penalty-lab/internal/core/display"
	"github.com/charleschow/penalty-lab/internal/core/kicklog"
	"github.com/charleschow/penalty-lab/internal/core/session"
	"github.com/charleschow/penalty-lab/internal/events"
	"github.com/charleschow/penalty-lab/internal/fanout"
	"github.com/charleschow/penalty-lab/internal/telemetry"
)

// Options are the knobs the entry point exposes on top of env config.
type Options struct {
	// Quiet skips the console printer; logs still go to stderr.
	Quiet bool
}

// Run boots the shootout server: kick log, session manager, console
// printer, spectator fanout and the HTTP API. It blocks until SIGINT or
// SIGTERM, then drains HTTP, ends open sessions and closes the log.
func Run(opts Options) {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting shootout server")

	bus := events.NewBus()

	// ── Goalie profiles ────────────────────────────────────────
	profiles, err := config.LoadGoalieProfiles(cfg.GoalieProfilesPath)
	if err != nil {
		telemetry.Errorf("Failed to load goalie profiles: %v", err)
		os.Exit(1)
	}
	if _, err := profiles.GoalieConfig(cfg.GoalieProfile); err != nil {
		telemetry.Errorf("Default goalie profile %q: %v", cfg.GoalieProfile, err)
		os.Exit(1)
	}
	telemetry.Infof("Goalie profiles loaded  path=%s  profiles=%v  default=%s",
		cfg.GoalieProfilesPath, profiles.Names(), cfg.GoalieProfile)

	// ── Kick log ───────────────────────────────────────────────
	var kickLog *kicklog.Store
	if cfg.KickLogEnabled {
		kickLog, err = kicklog.OpenStore(cfg.KickLogDBPath, cfg.KickLogMaxRows)
		if err != nil {
			telemetry.Warnf("Kick log disabled: %v", err)
			kickLog = nil
		} else {
			kicklog.NewRecorder(kickLog).Subscribe(bus)
		}
	}

	// ── Console + fanout ───────────────────────────────────────
	if !opts.Quiet {
		display.NewPrinter(os.Stderr).Subscribe(bus)
	}
	fanoutServer := fanout.NewServer(bus)

	notifier := discord.NewNotifier(cfg.DiscordWebhookURL)
	notifier.Subscribe(bus)
	if notifier.Enabled() {
		telemetry.Infof("Discord session summaries enabled")
	}

	// ── Sessions ───────────────────────────────────────────────
	manager := session.NewManager(bus, profiles, cfg.GoalieProfile)

	// ── HTTP server ────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	kick_http.NewHandler(manager, kickLog, cfg.KickRatePerSec, cfg.KickRateBurst).RegisterRoutes(r)
	r.Get("/ws", fanoutServer.HandleWS)
	r.Handle("/metrics", promhttp.HandlerFor(telemetry.NewRegistry(), promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Errorf("HTTP server: %v", err)
			os.Exit(1)
		}
	}()
	telemetry.Infof("Shootout API listening on %q  (ws: /ws, metrics: /metrics)", addr)
	notifier.Announce(fmt.Sprintf("Penalty shootout server up on %s", addr))

	// ── Shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		telemetry.Warnf("HTTP shutdown: %v", err)
	}

	manager.Shutdown()
	notifier.Announce(fmt.Sprintf("Penalty shootout server stopping after %d sessions", telemetry.Metrics.SessionsStarted.Value()))
	fanoutServer.Close()
	notifier.Wait()

	if err := kickLog.Close(); err != nil {
		telemetry.Warnf("Kick log close: %v", err)
	}

	m := &telemetry.Metrics
	telemetry.Infof("Shutdown complete  sessions=%d  kicks=%d  goals=%d  saves=%d  throttled=%d  log_errors=%d  p50=%s  p99=%s",
		m.SessionsStarted.Value(),
		m.KicksResolved.Value(),
		m.Goals.Value(),
		m.Saves.Value(),
		m.KicksThrottled.Value(),
		m.KickLogErrors.Value(),
		m.KickLatency.P50(),
		m.KickLatency.P99(),
	)
}
