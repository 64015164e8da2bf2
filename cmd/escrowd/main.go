package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/bazari/settlement/internal/chain"
	"github.com/bazari/settlement/internal/config"
	"github.com/bazari/settlement/internal/escrow"
	"github.com/bazari/settlement/internal/metrics"
	"github.com/bazari/settlement/internal/orders"
	"github.com/bazari/settlement/pkg/messaging"
)

const defaultAdminAddr = ":8092"

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
			Name:           "escrowd",
			ReconnectWait:  time.Second,
			MaxReconnects:  5,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			logger.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer events.Close()
	}

	recorder := metrics.NewRecorder(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	defer recorder.Close()

	calculator := escrow.NewCalculator(cfg.Escrow)
	sweeper := escrow.NewSweeper(
		orders.NewStore(db),
		chain.NewEscrowClient(rpc),
		calculator,
		events,
		logger,
		escrow.SweeperConfig{
			DryRun:      cfg.DryRun,
			CallTimeout: cfg.CallTimeout,
		},
	)

	sweepOnce := func(trigger string) {
		stats, err := sweeper.Run(ctx)
		if err != nil {
			logger.Printf("[escrowd] %s sweep failed: %v", trigger, err)
			return
		}
		if err := recorder.RecordSweep(ctx, stats); err != nil {
			logger.Printf("[escrowd] failed to record metrics: %v", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, sweeper.Stats())
	})

	r.POST("/run", func(c *gin.Context) {
		go sweepOnce("manual")
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
	})

	r.GET("/timeline", func(c *gin.Context) {
		// Preview endpoint for the buyer-facing UI: explains how a
		// delivery estimate maps onto the protection deadline.
		var estimate *int
		if raw, ok := c.GetQuery("days"); ok {
			days, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
				return
			}
			estimate = &days
		}
		c.JSON(http.StatusOK, calculator.Timeline(estimate, c.Query("method"), time.Now()))
	})

	srv := &http.Server{Addr: cfg.AdminAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Admin server failed: %v", err)
		}
	}()

	logger.Printf("[escrowd] starting, interval=%s dry_run=%v safety_margin=%dd max_escrow=%dd",
		cfg.SweepInterval, cfg.DryRun, calculator.Config().SafetyMarginDays, calculator.Config().MaxEscrowDays)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	sweepOnce("startup")

	for {
		select {
		case <-ctx.Done():
			logger.Printf("[escrowd] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			srv.Shutdown(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			sweepOnce("scheduled")
		}
	}
}
