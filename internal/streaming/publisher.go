// Package streaming publishes case events to Redis streams so reviewers
// and dashboards can follow a case without polling the database.
package streaming

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	streamMaxLen = 1000
	sendGuardTTL = 24 * time.Hour
)

// Event is one case lifecycle event.
type Event struct {
	CaseID  string `json:"case_id"`
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// Publisher writes case events to per-case Redis streams.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(addr, password string, logger *zap.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{client: client, logger: logger}, nil
}

// NewPublisherFromClient wraps an existing client, used by tests.
func NewPublisherFromClient(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func streamKey(caseID string) string {
	return "caseflow:case:" + caseID + ":events"
}

// Publish appends one event to the case's stream. Failures are logged and
// returned but never block case progress; callers treat them as non-fatal.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(ev.CaseID),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    ev.Type,
			"stage":   ev.Stage,
			"message": ev.Message,
			"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		p.logger.Warn("Failed to publish case event",
			zap.String("case_id", ev.CaseID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish case event: %w", err)
	}
	return nil
}

// ReadEvents returns up to count events from a case stream starting at
// the given id ("0" for the beginning).
func (p *Publisher) ReadEvents(ctx context.Context, caseID, fromID string, count int64) ([]redis.XMessage, error) {
	if fromID == "" {
		fromID = "0"
	}
	msgs, err := p.client.XRangeN(ctx, streamKey(caseID), fromID, "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read case events: %w", err)
	}
	return msgs, nil
}

// AcquireSendGuard marks an outbound send as in flight. Returns false when
// another worker already sent for this key, making sends idempotent across
// activity retries.
func (p *Publisher) AcquireSendGuard(ctx context.Context, caseID, draftType string) (bool, error) {
	key := fmt.Sprintf("caseflow:case:%s:sent:%s", caseID, draftType)
	ok, err := p.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), sendGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire send guard: %w", err)
	}
	return ok, nil
}

// ReleaseSendGuard clears the guard after a failed send so a retry can
// attempt the send again.
func (p *Publisher) ReleaseSendGuard(ctx context.Context, caseID, draftType string) error {
	key := fmt.Sprintf("caseflow:case:%s:sent:%s", caseID, draftType)
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release send guard: %w", err)
	}
	return nil
}

// Close shuts down the underlying Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
