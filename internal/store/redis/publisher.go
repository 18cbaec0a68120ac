package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/metrics"
)

const (
	snapshotKey    = "netflow:snapshot"
	snapshotStream = "netflow:updates"

	// Keep roughly an hour of Polygon blocks in the stream.
	streamMaxLen = 2048
)

// Publisher pushes committed netflow snapshots to Redis for downstream
// consumers: the latest value under a plain key and an update feed on a
// capped stream. Publishing is best-effort; failures never block the writer.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(url string) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Publisher{client: client}, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) Publish(ctx context.Context, snapshot *model.NetflowSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		metrics.SnapshotPublishErrors.Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, snapshotKey, payload, 0)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: snapshotStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"block_number": snapshot.BlockNumber,
			"value":        snapshot.Value,
			"updated_at":   snapshot.UpdatedAt,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.SnapshotPublishErrors.Inc()
		return fmt.Errorf("publish snapshot for block %d: %w", snapshot.BlockNumber, err)
	}

	metrics.SnapshotPublishes.Inc()
	return nil
}
