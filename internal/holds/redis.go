package holds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"posada/internal/config"
	"posada/internal/models"

	"github.com/redis/go-redis/v9"
)

// ttlSlack keeps expired holds around long enough for lazy expiry to observe
// them before redis evicts the keys.
const ttlSlack = time.Hour

type RedisStore struct {
	client *redis.Client
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func holdKey(id string) string     { return fmt.Sprintf("hold:%s", id) }
func roomKey(roomID string) string { return fmt.Sprintf("room_holds:%s", roomID) }

func (s *RedisStore) Save(ctx context.Context, hold *models.Hold) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("failed to marshal hold: %w", err)
	}

	ttl := time.Until(hold.EndAt) + ttlSlack
	if ttl < ttlSlack {
		ttl = ttlSlack
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, holdKey(hold.ID), data, ttl)
	pipe.SAdd(ctx, roomKey(hold.RoomID), hold.ID)
	pipe.Expire(ctx, roomKey(hold.RoomID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save hold in redis: %w", err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Hold, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	val, err := s.client.Get(ctx, holdKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold from redis: %w", err)
	}

	var hold models.Hold
	if err := json.Unmarshal([]byte(val), &hold); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hold: %w", err)
	}

	return &hold, nil
}

func (s *RedisStore) ListForRoom(ctx context.Context, roomID string) ([]*models.Hold, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	ids, err := s.client.SMembers(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list hold ids for room: %w", err)
	}

	var holds []*models.Hold
	for _, id := range ids {
		hold, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// The key was evicted; drop the stale index entry.
			s.client.SRem(ctx, roomKey(roomID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		holds = append(holds, hold)
	}

	return holds, nil
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*models.Hold, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	var holds []*models.Hold
	iter := s.client.Scan(ctx, 0, "hold:*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get hold from redis: %w", err)
		}

		var hold models.Hold
		if err := json.Unmarshal([]byte(val), &hold); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hold: %w", err)
		}
		holds = append(holds, &hold)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan holds: %w", err)
	}

	return holds, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	hold, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, holdKey(id))
	pipe.SRem(ctx, roomKey(hold.RoomID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete hold from redis: %w", err)
	}

	return nil
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
