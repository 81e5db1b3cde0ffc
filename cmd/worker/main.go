package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"campusattend/internal/config"
	"campusattend/internal/queue"
	"campusattend/internal/store"
)

// Worker drains the scan-audit queue and writes an append-only audit log
// to stdout, keeping the API's request path free of logging I/O.
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Fatal("redis not reachable; the audit worker needs the shared queue")
	}
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

	audits, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for scan events...")
	for audit := range audits {
		path := "direct"
		if audit.Gated {
			path = "qr"
		}
		log.Printf("audit: student=%s date=%s time=%s type=%s path=%s event_id=%d",
			audit.StudentID, audit.Date, audit.Time, audit.Type, path, audit.EventID)
	}

	log.Println("audit worker stopped")
}
