// Package runtime assembles and supervises the daemon: telemetry, bus,
// store, collaborator clients, session controller, and the post-session
// pipeline.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verbatimlabs/verbatim-core/internal/ai"
	"github.com/verbatimlabs/verbatim-core/internal/bus"
	"github.com/verbatimlabs/verbatim-core/internal/capture"
	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/natsserver"
	"github.com/verbatimlabs/verbatim-core/internal/session"
	"github.com/verbatimlabs/verbatim-core/internal/speech"
	"github.com/verbatimlabs/verbatim-core/internal/store"
	"github.com/verbatimlabs/verbatim-core/internal/summarize"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error

	embedded   *natsserver.EmbeddedServer
	busClient  *bus.Client
	store      *store.Store
	controller *session.Controller
	subs       []*nats.Subscription

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up every component and blocks until ctx is cancelled, then
// shuts down in reverse order. An active session is stopped and persisted
// before the store closes.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	r.embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded bus: %w", err)
	}

	r.busClient, err = bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		r.embedded.Shutdown()
		return fmt.Errorf("connect to bus: %w", err)
	}

	r.store, err = store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		r.busClient.Close()
		r.embedded.Shutdown()
		return fmt.Errorf("open store: %w", err)
	}

	captureCtl := capture.NewNATSController(r.busClient, r.cfg.Capture, r.logger)
	speechEngine := speech.NewNATSEngine(r.busClient, r.cfg.Speech, r.logger)

	generator, err := ai.NewGenerator(r.cfg.AI)
	if err != nil {
		return fmt.Errorf("build ai backend: %w", err)
	}
	orchestrator := summarize.NewOrchestrator(r.cfg.AI, generator, r.store, r.busClient, r.logger)

	r.controller = session.NewController(r.cfg.Session, captureCtl, speechEngine, r.store, orchestrator.OnSessionEnded, r.logger)

	updateSub, err := speechEngine.Subscribe(r.controller.HandleUpdate)
	if err != nil {
		return fmt.Errorf("subscribe to transcription updates: %w", err)
	}
	r.subs = append(r.subs, updateSub)

	cmdSubs, err := r.serveCommands(orchestrator)
	if err != nil {
		return fmt.Errorf("serve session commands: %w", err)
	}
	r.subs = append(r.subs, cmdSubs...)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := r.controller.Stop(shutdownCtx); err != nil {
		r.logger.Warn("stopping active session on shutdown", slog.String("error", err.Error()))
	}
	r.controller.Wait()

	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.busClient.Close()
	if err := r.store.Close(); err != nil {
		r.logger.Error("store close error", slog.String("error", err.Error()))
	}
	r.embedded.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if r.busClient.Healthy() && r.store.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("unhealthy"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
