package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cleanloop/binsight/pkg/predict"
)

// RedisPredictionCache implements PredictionCache on Redis. It enables
// multi-instance deployments by sharing the latest prediction per bin, with
// TTL-based expiration so stale forecasts age out.
type RedisPredictionCache struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisPredictionCache connects to Redis and verifies the connection.
//
// Parameters:
//   - addr: Redis server address (e.g., "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number (typically 0)
//   - ttl: prediction expiration duration (0 uses a default of 30 minutes)
func NewRedisPredictionCache(addr, password string, db int, ttl time.Duration) (*RedisPredictionCache, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisPredictionCache{client: client, ttl: ttl}, nil
}

func predictionKey(binID string) string {
	return fmt.Sprintf("binsight:prediction:%s", binID)
}

// Put stores a prediction with TTL-based expiration under the key
// "binsight:prediction:{bin}".
func (r *RedisPredictionCache) Put(ctx context.Context, p predict.Prediction) error {
	if p.BinID == "" {
		return errors.New("prediction bin id required")
	}

	for _, c := range p.BinID {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid bin id %q: only alphanumeric, hyphens, and underscores allowed", p.BinID)
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	if err := r.client.Set(ctx, predictionKey(p.BinID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store prediction in redis: %w", err)
	}
	return nil
}

// GetLatest retrieves the cached prediction for a bin. found is false for a
// missing or expired entry; errors cover everything else.
func (r *RedisPredictionCache) GetLatest(ctx context.Context, binID string) (predict.Prediction, bool, error) {
	if binID == "" {
		return predict.Prediction{}, false, errors.New("bin id required")
	}

	data, err := r.client.Get(ctx, predictionKey(binID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return predict.Prediction{}, false, nil
		}
		return predict.Prediction{}, false, fmt.Errorf("failed to get prediction from redis: %w", err)
	}

	var p predict.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return predict.Prediction{}, false, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}
	return p, true, nil
}

// Close closes the Redis client connection.
// It is safe to call multiple times (idempotent).
func (r *RedisPredictionCache) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (r *RedisPredictionCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
