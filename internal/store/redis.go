package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a read-through cache for point balances. Writers must
// invalidate after committing and before releasing the user's lock lease,
// so readers never observe a balance older than the last completed
// mutation.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, TTL: ttl}
}

func (s *RedisStore) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func balanceKey(userID string) string {
	return fmt.Sprintf("point_balance:%s", userID)
}

func (s *RedisStore) GetBalance(ctx context.Context, userID string) (*models.Point, error) {
	val, err := s.Client.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get balance from redis: %w", err)
	}

	var point models.Point
	if err := json.Unmarshal([]byte(val), &point); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached balance: %w", err)
	}
	return &point, nil
}

func (s *RedisStore) SetBalance(ctx context.Context, point *models.Point) error {
	data, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}

	if err := s.Client.Set(ctx, balanceKey(point.UserID), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set balance in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) InvalidateBalance(ctx context.Context, userID string) error {
	err := s.Client.Del(ctx, balanceKey(userID)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to invalidate balance in redis: %w", err)
	}
	return nil
}
