package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/job-portal/job-portal-server/config"
	"github.com/job-portal/job-portal-server/internal/applications"
	"github.com/job-portal/job-portal-server/internal/bootstrap"
	"github.com/job-portal/job-portal-server/internal/events"
	"github.com/job-portal/job-portal-server/internal/jobs"
	"github.com/job-portal/job-portal-server/internal/logging"
	"github.com/job-portal/job-portal-server/internal/reconcile"
)

// RunRecount rebuilds applicationCount on every job and prints the report as JSON.
func RunRecount(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("recount takes no arguments")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.SetLevel(logging.ParseLevel(cfg.App.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backends, err := bootstrap.OpenBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	jobRepo := jobs.NewRepo(backends.Store)
	apps := applications.NewService(backends.Store, jobRepo, events.Nop{}, applications.Options{})

	report, err := reconcile.NewRecounter(jobRepo, apps).Recount(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
