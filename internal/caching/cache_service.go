package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizledger/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AccessCache holds short-lived access decisions per business. A miss returns
// (nil, nil).
type AccessCache interface {
	GetAccess(ctx context.Context, businessID uuid.UUID) (*models.AccessStatus, error)
	SetAccess(ctx context.Context, businessID uuid.UUID, status *models.AccessStatus) error
	InvalidateAccess(ctx context.Context, businessIDs ...uuid.UUID) error
	Ping(ctx context.Context) error
}

type redisAccessCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from addr, which may carry a redis:// or rediss:// scheme.
func NewRedisClient(addr, password string, db int, logger *zap.Logger) *redis.Client {
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(err))
	} else {
		logger.Debug("redis connection established", zap.String("addr", parsedAddr))
	}
	return client
}

func NewRedisAccessCache(client *redis.Client, ttl time.Duration) AccessCache {
	return &redisAccessCache{client: client, ttl: ttl}
}

func accessKey(businessID uuid.UUID) string {
	return fmt.Sprintf("bizledger:access:%s", businessID.String())
}

func (r *redisAccessCache) GetAccess(ctx context.Context, businessID uuid.UUID) (*models.AccessStatus, error) {
	data, err := r.client.Get(ctx, accessKey(businessID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var status models.AccessStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *redisAccessCache) SetAccess(ctx context.Context, businessID uuid.UUID, status *models.AccessStatus) error {
	if r.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, accessKey(businessID), data, r.ttl).Err()
}

func (r *redisAccessCache) InvalidateAccess(ctx context.Context, businessIDs ...uuid.UUID) error {
	if len(businessIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(businessIDs))
	for _, id := range businessIDs {
		keys = append(keys, accessKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisAccessCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NoopAccessCache is used when no Redis address is configured.
type NoopAccessCache struct{}

func (NoopAccessCache) GetAccess(context.Context, uuid.UUID) (*models.AccessStatus, error) {
	return nil, nil
}

func (NoopAccessCache) SetAccess(context.Context, uuid.UUID, *models.AccessStatus) error {
	return nil
}

func (NoopAccessCache) InvalidateAccess(context.Context, ...uuid.UUID) error {
	return nil
}

func (NoopAccessCache) Ping(context.Context) error {
	return nil
}
