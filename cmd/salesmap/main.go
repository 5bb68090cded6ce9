package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rewired-gh/salesmap/internal/analysis"
	"github.com/rewired-gh/salesmap/internal/config"
	"github.com/rewired-gh/salesmap/internal/feed"
	"github.com/rewired-gh/salesmap/internal/importer"
	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/server"
	"github.com/rewired-gh/salesmap/internal/storage"
	"github.com/rewired-gh/salesmap/internal/telegram"
	"github.com/rewired-gh/salesmap/internal/watch"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.New(cfg.Storage.MaxTransactions, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	loc := cfg.Location()
	pipeline := analysis.NewPipeline(cfg.PipelineConfig())
	svc := analysis.NewService(store, pipeline, loc)
	transactionFeed := feed.New(store)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var notifier watch.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}
	watcher := watch.New(svc, store, notifier, watch.Config{
		Mode:        cfg.Watch.Mode,
		ShiftMeters: cfg.Watch.ShiftMeters,
		Cooldown:    cfg.Watch.Cooldown,
	})
	unwatch := watcher.Attach(transactionFeed)
	defer unwatch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.SetSummaryFunc(watcher.Summary)
		telegramClient.ListenForCommands(ctx)
	}

	api := server.New(svc, store, transactionFeed, server.Options{
		DefaultMode: cfg.Analysis.DefaultMode,
		Location:    loc,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		api.Run(gctx)
		return nil
	})
	g.Go(func() error {
		transactionFeed.Run(gctx, cfg.Feed.PollInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Importer.Enabled {
		client := importer.NewClient(cfg.Importer.URL, cfg.Importer.Timeout, importer.ClientConfig{
			MaxRetries:     cfg.Importer.MaxRetries,
			RetryDelayBase: cfg.Importer.RetryDelayBase,
			Location:       loc,
		})
		logger.Info("Starting importer (interval: %v)", cfg.Importer.Interval)
		g.Go(func() error {
			runImportLoop(gctx, client, store, transactionFeed, telegramClient, cfg.Importer.Interval)
			return nil
		})
	} else {
		logger.Debug("Importer disabled, accepting transactions over HTTP only")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Service error: %v", err)
	}
	logger.Info("Service stopped")
}

// runImportLoop pulls the export every interval until ctx is cancelled.
// Telegram hears about the first failure of a streak and about recovery.
func runImportLoop(
	ctx context.Context,
	client *importer.Client,
	store *storage.Storage,
	transactionFeed *feed.Feed,
	telegramClient *telegram.Client,
	interval time.Duration,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Import cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	runCycle := func() error {
		start := time.Now()
		inserted, err := client.Sync(ctx, store)
		if err != nil {
			return err
		}
		if inserted > 0 {
			if _, err := transactionFeed.Refresh(ctx); err != nil {
				logger.Warn("Feed refresh after import failed: %v", err)
			}
		}
		logger.Debug("Import cycle completed in %v", time.Since(start))
		return nil
	}

	handleCycleResult(runCycle())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			handleCycleResult(runCycle())
			if err := store.RotateTransactions(); err != nil {
				logger.Warn("Failed to rotate transactions: %v", err)
			}
		}
	}
}
