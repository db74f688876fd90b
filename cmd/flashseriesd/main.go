// Command flashseriesd is the flashseries server process: it loads
// configuration, opens the channel registry rooted at the configured data
// directory, and serves the HTTP façade until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Priyanshu23/flashseries/internal/config"
	"github.com/Priyanshu23/flashseries/internal/httpapi"
	"github.com/Priyanshu23/flashseries/internal/logging"
	"github.com/Priyanshu23/flashseries/internal/registry"
)

func main() {
	configPath := flag.String("config", "flashseriesd.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("flashseriesd: load config %s: %v", *configPath, err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("flashseriesd: build logger: %v", err)
	}
	defer logger.Sync()

	reg, err := registry.New(cfg.DataDir, cfg.ArchiveDir)
	if err != nil {
		logger.Fatalw("open registry", "data_dir", cfg.DataDir, "error", err)
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runArchivalLoop(ctx, reg, cfg.ArchiveAfterRecords, logger)

	srv := httpapi.New(reg, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("shutdown", "error", err)
		}
	}()

	logger.Infow("listening", "addr", cfg.Addr, "data_dir", cfg.DataDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("serve", "error", err)
	}
}

// runArchivalLoop periodically sweeps the registry for channels that have
// crossed maxRecords, sealing each into an archive segment. A maxRecords
// of 0 disables rotation entirely.
func runArchivalLoop(ctx context.Context, reg *registry.Registry, maxRecords int, logger *zap.SugaredLogger) {
	if maxRecords <= 0 {
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sealed, err := reg.RotateAll(maxRecords)
			if err != nil {
				logger.Errorw("archival sweep", "error", err)
				continue
			}
			if len(sealed) > 0 {
				logger.Infow("archival sweep sealed segments", "count", len(sealed), "segments", sealed)
			}
		}
	}
}
