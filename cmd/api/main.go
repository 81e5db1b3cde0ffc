package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"campusattend/internal/attendance"
	"campusattend/internal/clock"
	"campusattend/internal/config"
	"campusattend/internal/handler"
	"campusattend/internal/metrics"
	"campusattend/internal/queue"
	"campusattend/internal/store"
	"campusattend/internal/token"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}

func run(cfg config.App) error {
	clk, err := clock.New(cfg.Timezone)
	if err != nil {
		return err
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	tokens := token.NewService(token.NewPostgresRepo(db.Client), clk, redisClient, cfg.TokenCacheTTL)
	att := attendance.NewService(attendance.NewPostgresRepo(db.Client), clk, tokens, cfg.AllowDirectAttendance)
	summarizer := attendance.NewSummarizer(clk, cfg.FullDayThreshold)
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	h := handler.New(cfg, tokens, att, summarizer, q, collector).
		WithHealthChecks(
			func(ctx context.Context) bool { return db.Client.PingContext(ctx) == nil },
			redisClient.Healthy,
		)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting api server on :%s (tz %s)", cfg.HTTPPort, cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}
