package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vmix-remote/internal/mixer"
	"vmix-remote/internal/platform/broadcast"
	"vmix-remote/internal/platform/config"
	"vmix-remote/internal/platform/logger"
	"vmix-remote/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	file, err := config.LoadFile(config.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		log.Error("config file", "error", err)
		os.Exit(1)
	}

	conn := mixer.NewConnection(connectionConfig(file))
	policy := refreshPolicy(file)
	timeout := time.Duration(config.GetEnvInt("MIXER_TIMEOUT_MS", int(mixer.DefaultTimeout.Milliseconds()))) * time.Millisecond

	met := metrics.New()
	client := mixer.NewClient(conn, &http.Client{Timeout: timeout})
	rec := mixer.NewReconciler(log.With("component", "reconciler"), met)
	sched := mixer.NewScheduler(client, rec, policy, log.With("component", "scheduler"), met)
	disp := mixer.NewDispatcher(client, rec, sched, log.With("component", "dispatcher"), met)
	h := mixer.NewHandler(conn, rec, sched, disp, log)

	hub := broadcast.NewHub(log.With("component", "broadcast"))
	rec.Subscribe(func(st mixer.State) {
		hub.Publish(mixer.NewStatePayload(st, sched.Policy(), conn.Get()))
	})

	r := chi.NewRouter()
	r.Use(logger.RequestID())
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met, "/metrics"))
	r.Method(http.MethodGet, "/metrics", met.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		h.Mount(r)
		r.Method(http.MethodGet, "/ws", hub)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("server starting",
		"port", port,
		"mixer", conn.BaseURL(),
		"auto_refresh", policy.AutoRefresh,
		"interval_ms", policy.IntervalMs,
		"log_level", logLevel,
	)

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// connectionConfig layers env over the config file over the defaults.
func connectionConfig(f config.File) mixer.ConnectionConfig {
	cfg := mixer.DefaultConnection()
	if f.Mixer.Host != "" {
		cfg.Host = f.Mixer.Host
	}
	if f.Mixer.Port != "" {
		cfg.Port = f.Mixer.Port
	}
	cfg.Secure = f.Mixer.Secure

	cfg.Host = config.GetEnv("MIXER_HOST", cfg.Host)
	cfg.Port = config.GetEnv("MIXER_PORT", cfg.Port)
	cfg.Secure = config.GetEnvBool("MIXER_SECURE", cfg.Secure)
	return cfg
}

func refreshPolicy(f config.File) mixer.RefreshPolicy {
	p := mixer.DefaultRefreshPolicy()
	if f.Refresh.Auto != nil {
		p.AutoRefresh = *f.Refresh.Auto
	}
	if f.Refresh.IntervalMs > 0 {
		p.IntervalMs = f.Refresh.IntervalMs
	}

	p.AutoRefresh = config.GetEnvBool("AUTO_REFRESH", p.AutoRefresh)
	if ms := config.GetEnvInt("REFRESH_INTERVAL_MS", p.IntervalMs); ms > 0 {
		p.IntervalMs = ms
	}
	return p
}
