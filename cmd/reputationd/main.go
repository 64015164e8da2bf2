package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/bazari/settlement/internal/chain"
	"github.com/bazari/settlement/internal/config"
	"github.com/bazari/settlement/internal/metrics"
	"github.com/bazari/settlement/internal/offchain"
	"github.com/bazari/settlement/internal/reputation"
	"github.com/bazari/settlement/pkg/messaging"
)

const (
	lastRunKey       = "settlement:reputation:lastrun"
	defaultAdminAddr = ":8091"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(defaultAdminAddr)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpc, err := chain.Dial(ctx, cfg.ChainWSURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to chain node: %v", err)
	}
	defer rpc.Close()

	var events *messaging.Client
	if cfg.NATSURL != "" {
		events, err = messaging.NewClient(messaging.Config{
			URL:            cfg.NATSURL,
			Name:           "reputationd",
			ReconnectWait:  time.Second,
			MaxReconnects:  5,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			logger.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer events.Close()
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer rdb.Close()
	}

	recorder := metrics.NewRecorder(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	defer recorder.Close()

	runner := reputation.NewRunner(
		chain.NewReputationAdapter(rpc),
		offchain.NewSource(db),
		logger,
		reputation.RunnerConfig{
			DryRun:      cfg.DryRun,
			Parallelism: cfg.SyncParallelism,
			CallTimeout: cfg.CallTimeout,
		},
	)

	var (
		mu         sync.Mutex
		running    bool
		lastReport *reputation.Report
	)

	runOnce := func(trigger string) {
		mu.Lock()
		if running {
			mu.Unlock()
			logger.Printf("[reputationd] previous run still in progress, skipping %s tick", trigger)
			return
		}
		running = true
		mu.Unlock()

		defer func() {
			mu.Lock()
			running = false
			mu.Unlock()
		}()

		report, err := runner.Run(ctx)
		if err != nil && report == nil {
			logger.Printf("[reputationd] run failed: %v", err)
			return
		}

		mu.Lock()
		lastReport = report
		mu.Unlock()

		events.Publish(ctx, messaging.SubjectReputationSyncCompleted, messaging.ReputationSyncEvent{
			RunID:     report.RunID,
			Processed: report.Processed,
			Updated:   report.Updated,
			Noops:     report.Noops,
			Skipped:   report.Skipped,
			Errors:    report.Errors,
			DryRun:    report.DryRun,
			Duration:  report.Duration,
			StartedAt: report.StartedAt,
		})

		if err := recorder.RecordSync(ctx, report); err != nil {
			logger.Printf("[reputationd] failed to record metrics: %v", err)
		}

		if rdb != nil {
			if body, err := json.Marshal(report); err == nil {
				if err := rdb.Set(ctx, lastRunKey, body, 24*time.Hour).Err(); err != nil {
					logger.Printf("[reputationd] failed to cache run report: %v", err)
				}
			}
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/status", func(c *gin.Context) {
		mu.Lock()
		report := lastReport
		mu.Unlock()

		if report != nil {
			c.JSON(http.StatusOK, report)
			return
		}

		if rdb != nil {
			if cached, err := rdb.Get(c.Request.Context(), lastRunKey).Bytes(); err == nil {
				c.Data(http.StatusOK, "application/json", cached)
				return
			}
		}

		c.JSON(http.StatusNotFound, gin.H{"error": "no run completed yet"})
	})

	r.POST("/run", func(c *gin.Context) {
		go runOnce("manual")
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
	})

	srv := &http.Server{Addr: cfg.AdminAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Admin server failed: %v", err)
		}
	}()

	logger.Printf("[reputationd] starting, interval=%s parallelism=%d dry_run=%v",
		cfg.SyncInterval, cfg.SyncParallelism, cfg.DryRun)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	runOnce("startup")

	for {
		select {
		case <-ctx.Done():
			logger.Printf("[reputationd] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			srv.Shutdown(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			runOnce("scheduled")
		}
	}
}
