package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/database"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "Only report drifted projects, don't repair")
	timeout = flag.Duration("timeout", 5*time.Minute, "Overall timeout")
)

func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	aggregate := service.NewAggregateMaintainer(db, repository.NewProjectRepository(db), log)
	report, err := aggregate.Reconcile(ctx, *dryRun)
	if err != nil {
		log.Fatal("reconcile failed", zap.Error(err))
	}

	for _, d := range report.Drifted {
		fmt.Printf("project %d: stored=%d actual=%d\n", d.ProjectID, d.Stored, d.Actual)
	}
	fmt.Printf("drifted: %d, repaired: %d\n", report.Found, report.Repaired)
	if report.DryRun && report.Found > 0 {
		fmt.Println("dry run, run with -dry-run=false to repair")
	}
}
