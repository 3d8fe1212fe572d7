package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/job-portal/job-portal-server/config"
	"github.com/job-portal/job-portal-server/internal/api/http/middleware"
	"github.com/job-portal/job-portal-server/internal/applications"
	"github.com/job-portal/job-portal-server/internal/auth"
	"github.com/job-portal/job-portal-server/internal/bootstrap"
	"github.com/job-portal/job-portal-server/internal/events"
	"github.com/job-portal/job-portal-server/internal/jobs"
	"github.com/job-portal/job-portal-server/internal/logging"
	"github.com/job-portal/job-portal-server/internal/reconcile"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)
	logging.SetLevel(logging.ParseLevel(cfg.App.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.OpenBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer backends.Close()

	if cfg.Reconcile.RecountSchedule != "" {
		scheduler, err := newRecountScheduler(cfg, backends)
		if err != nil {
			log.Fatalf("reconcile: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "job-portal-server",
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		Store:       backends.Store,
		Publisher:   backends.Publisher,
		Tokens:      auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Cookies: auth.CookieConfig{
			Secure:   cfg.IsProduction(),
			SameSite: auth.ParseSameSite(cfg.Auth.CookieSameSite),
		},
		IssueLimiter: middleware.NewClientRateLimiter(cfg.RateLimit.JWTRPS, cfg.RateLimit.JWTBurst),
		RequireJob:   cfg.Applications.RequireJob,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s (env=%s)", cfg.Server.Port, cfg.App.Environment)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
		return
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func newRecountScheduler(cfg *config.Config, b *bootstrap.Backends) (*reconcile.Scheduler, error) {
	jobRepo := jobs.NewRepo(b.Store)
	apps := applications.NewService(b.Store, jobRepo, events.Nop{}, applications.Options{})
	return reconcile.NewScheduler(cfg.Reconcile.RecountSchedule, reconcile.NewRecounter(jobRepo, apps))
}
