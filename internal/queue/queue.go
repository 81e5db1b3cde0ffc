// Package queue carries scan-audit messages from the API to the audit
// worker. Publishing is best-effort: a queue outage never fails a scan.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding pending scan audits.
const DefaultKey = "campus:scans"

// ScanAudit is one recorded scan as seen by the audit trail.
type ScanAudit struct {
	EventID   int64  `json:"event_id"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Type      string `json:"type"`
	Gated     bool   `json:"gated"` // false for direct sign-in/out
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, audit ScanAudit) error
	Consume(ctx context.Context) (<-chan ScanAudit, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan ScanAudit
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan ScanAudit, size)}
}

// Publish enqueues an audit record.
func (q *InMemory) Publish(ctx context.Context, audit ScanAudit) error {
	select {
	case q.ch <- audit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan ScanAudit, error) {
	out := make(chan ScanAudit)
	go func() {
		defer close(out)
		for {
			select {
			case audit := <-q.ch:
				out <- audit
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue using LPUSH/BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an audit record as JSON.
func (q *RedisQueue) Publish(ctx context.Context, audit ScanAudit) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams audit records using BRPOP. Undecodable entries are
// dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan ScanAudit, error) {
	out := make(chan ScanAudit)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var audit ScanAudit
				if err := json.Unmarshal([]byte(res[1]), &audit); err == nil {
					out <- audit
				}
			}
		}
	}()
	return out, nil
}
