package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"convwatch/internal/alerts"
	"convwatch/internal/collector"
	"convwatch/internal/config"
	"convwatch/internal/extract"
	"convwatch/internal/match"
	"convwatch/internal/notify"
	"convwatch/internal/ratelimit"
	"convwatch/internal/scraper"
	"convwatch/internal/server"
	"convwatch/internal/util"
	"convwatch/pkg/storage"
	"convwatch/pkg/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("load config failed", "err", err)
		os.Exit(1)
	}
	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database failed", "err", err)
		os.Exit(1)
	}

	docs, err := newDocumentStore(cfg)
	if err != nil {
		logger.Error("init document storage failed", "err", err)
		os.Exit(1)
	}

	sc := scraper.New(scraper.Config{
		BaseURL:        cfg.MediadorBaseURL,
		APIURL:         cfg.MediadorAPIURL,
		Delay:          time.Duration(cfg.ScraperDelaySeconds) * time.Second,
		UserAgent:      cfg.ScraperUserAgent,
		Documents:      docs,
		BrowserEnabled: cfg.BrowserEnabled,
		BrowserTimeout: time.Duration(cfg.BrowserTimeoutSeconds) * time.Second,
	}, logger)

	ex := extract.NewExtractor(extract.Config{
		Pdftoppm:  cfg.PdftoppmCommand,
		Tesseract: cfg.TesseractCommand,
		Language:  cfg.OCRLanguage,
		DPI:       cfg.OCRDPI,
	}, logger)

	var matchNotifier match.Notifier
	var alertNotifier alerts.Notifier
	if cfg.AMQPURL != "" {
		pub, err := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("connect notification broker failed", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		matchNotifier = pub
		alertNotifier = pub
	}

	var lock *collector.RunLock
	var budget *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer client.Close()
		lock = collector.NewRunLock(client, 30*time.Minute)
		if cfg.RegistryRequestsPerHour > 0 {
			budget, err = ratelimit.New(client, "convwatch:registry", cfg.RegistryRequestsPerHour, time.Hour)
			if err != nil {
				logger.Error("init request budget failed", "err", err)
				os.Exit(1)
			}
		}
	}

	pipeline := collector.NewPipeline(db, sc, ex, matchNotifier, budget, logger)
	sweeper := alerts.NewSweeper(db, alertNotifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runDailySweep(ctx, sweeper, cfg.SweepHour, logger)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(pipeline, sweeper, lock, cfg.ScraperItemLimit, logger).Handler(),
	}
	go func() {
		logger.Info("collector listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
}

func newDocumentStore(cfg config.FileConfig) (storage.DocumentStore, error) {
	if cfg.StorageType == "s3" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.StoragePath)
}

// runDailySweep fires the expiration sweep once a day at the configured hour.
func runDailySweep(ctx context.Context, sweeper *alerts.Sweeper, hour int, logger *slog.Logger) {
	for {
		next := nextSweep(time.Now(), hour)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, err := sweeper.Sweep(ctx, time.Now()); err != nil {
			logger.Error("daily sweep failed", "err", err)
		}
	}
}

func nextSweep(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
