package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/smartcapture/sessionlink/internal/config"
	"github.com/smartcapture/sessionlink/internal/logging"
	"github.com/smartcapture/sessionlink/internal/recovery"
	"github.com/smartcapture/sessionlink/internal/session"
	"github.com/smartcapture/sessionlink/internal/state"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("sessionlink starting",
		slog.String("version", Version),
		slog.String("endpoint", cfg.Endpoint),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appState, err := loadState(cfg)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = appState.LastSession()
	}

	if sessionID == "" {
		return fmt.Errorf("no session to join: set SESSION_ID")
	}

	client := session.NewClient(session.Config{
		Endpoint:             cfg.Endpoint,
		MaxQueueSize:         cfg.MaxQueueSize,
		MaxMessageAge:        cfg.MaxMessageAge,
		HeartbeatTimeout:     cfg.HeartbeatTimeout,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, logger)

	engine := buildRecovery(cfg, appState, client, logger)
	wireEvents(ctx, client, engine, appState, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := client.Connect(gctx, sessionID); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}

		if err := appState.SetLastSession(sessionID); err != nil {
			logger.Warn("persisting session id", slog.String("error", err.Error()))
		}

		<-gctx.Done()
		client.Disconnect()

		return nil
	})

	g.Go(func() error {
		return runMetrics(gctx, cfg.MetricsListenAddr, logger)
	})

	return g.Wait()
}

func loadState(cfg *config.Config) (*state.State, error) {
	if cfg.StateDBPath != "" {
		return state.LoadAt(cfg.StateDBPath)
	}

	return state.Load()
}

// buildRecovery assembles the feature flags, error history and recovery
// engine, restoring persisted degraded state and hooking persistence
// back in.
func buildRecovery(cfg *config.Config, appState *state.State, client *session.Client, logger *slog.Logger) *recovery.Engine {
	flags := recovery.NewFeatureFlags()

	if persisted, ok, err := appState.Flags(); err != nil {
		logger.Warn("loading persisted flags", slog.String("error", err.Error()))
	} else if ok {
		flags.Restore(persisted)
		logger.Info("restored feature flags", slog.Any("flags", persisted))
	}

	flags.OnChange(func(fs recovery.FlagState) {
		if err := appState.SetFlags(fs); err != nil {
			logger.Warn("persisting flags", slog.String("error", err.Error()))
		}
	})

	tuning, err := recovery.LoadTuning(cfg.RecoveryTuningFile)
	if err != nil {
		logger.Warn("loading recovery tuning, using defaults", slog.String("error", err.Error()))
	}

	history := recovery.NewHistory(tuning.MaxErrorHistory)

	if records, err := appState.History(); err != nil {
		logger.Warn("loading persisted history", slog.String("error", err.Error()))
	} else if len(records) > 0 {
		history.Restore(records)
	}

	bridge := logBridge{logger: logger}
	notify := func(category recovery.Category, notice string) {
		payload, _ := json.Marshal(map[string]string{
			"type":     "DegradedMode",
			"category": string(category),
			"notice":   notice,
		})

		if err := bridge.PostMessage(payload); err != nil {
			logger.Warn("posting degraded-mode notice", slog.String("error", err.Error()))
		}
	}

	chains := recovery.DefaultChains(recovery.Deps{
		Conn:    client,
		Polling: unavailablePolling{},
		Media:   detachedMediaEngine{},
		Thumbs:  detachedThumbnails{},
		Flags:   flags,
		Tuning:  tuning,
		Logger:  logger,
	})

	return recovery.NewEngine(chains, flags, history, notify, logger)
}

// wireEvents routes client failures into the recovery engine and keeps
// the persisted history current.
func wireEvents(ctx context.Context, client *session.Client, engine *recovery.Engine, appState *state.State, logger *slog.Logger) {
	persistHistory := func() {
		if err := appState.SetHistory(engine.History().Records()); err != nil {
			logger.Warn("persisting history", slog.String("error", err.Error()))
		}
	}

	client.On(session.EventMessage, func(ev session.Event) {
		if ev.Envelope == nil || ev.Envelope.Type != session.MsgError {
			return
		}

		var payload struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		_ = json.Unmarshal(ev.Envelope.Data, &payload)

		// Off the client's event goroutine: recovery actions may block.
		go func() {
			engine.Handle(ctx, recovery.Failure{Message: payload.Message, Code: payload.Code})
			persistHistory()
		}()
	})

	client.On(session.EventConnectionFailed, func(ev session.Event) {
		go func() {
			engine.Handle(ctx, recovery.Failure{
				Message:  "websocket reconnect attempts exhausted",
				Code:     "CONNECTION_FAILED",
				Critical: true,
				Context:  map[string]any{"attempts": ev.Attempts},
			})
			persistHistory()
		}()
	})
}

func runMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("metrics listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)

	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}
}
