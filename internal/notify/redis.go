// Package notify announces accepted dialogue writes over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "dialogue:changes:"
	latestPrefix  = "dialogue:latest:"
	latestTTL     = 7 * 24 * time.Hour
)

var ErrNoChange = errors.New("no change recorded")

// Change is the payload published after a write.
type Change struct {
	DocumentID string    `json:"documentId"`
	Revision   int64     `json:"revision,omitempty"`
	Seq        *int64    `json:"seq,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Source     string    `json:"source"`
}

const (
	SourceDocument = "document"
	SourceGraph    = "graph"
)

// Publisher writes changes to Redis. A nil *Publisher is valid and does
// nothing, which is how a deployment without REDIS_URL runs.
type Publisher struct {
	client *redis.Client
}

// NewPublisher connects to redisURL and verifies the connection.
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Publisher{client: client}, nil
}

func NewPublisherWithClient(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Channel is the pub/sub channel for one document.
func Channel(documentID string) string {
	return channelPrefix + documentID
}

// Publish broadcasts change and remembers it as the document's latest.
func (p *Publisher) Publish(ctx context.Context, change Change) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, latestPrefix+change.DocumentID, payload, latestTTL)
	pipe.Publish(ctx, Channel(change.DocumentID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Latest returns the most recent change published for documentID.
func (p *Publisher) Latest(ctx context.Context, documentID string) (Change, error) {
	if p == nil || p.client == nil {
		return Change{}, ErrNoChange
	}
	raw, err := p.client.Get(ctx, latestPrefix+documentID).Result()
	if err == redis.Nil {
		return Change{}, ErrNoChange
	}
	if err != nil {
		return Change{}, fmt.Errorf("lookup latest change: %w", err)
	}
	var change Change
	if err := json.Unmarshal([]byte(raw), &change); err != nil {
		return Change{}, fmt.Errorf("unmarshal change: %w", err)
	}
	return change, nil
}

// Subscribe follows changes for the given documents. The caller closes the
// returned subscription.
func (p *Publisher) Subscribe(ctx context.Context, documentIDs ...string) (*redis.PubSub, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("change notifications are disabled")
	}
	channels := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		channels[i] = Channel(id)
	}
	sub := p.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sub, nil
}

// Close closes the Redis connection
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Ping checks if Redis is reachable
func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Ping(ctx).Err()
}
