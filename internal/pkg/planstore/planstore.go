// internal/pkg/planstore/planstore.go
package planstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	xerrors "leadcrm-service/internal/pkg/errors"
	customersvc "leadcrm-service/internal/service/customer"

	"github.com/redis/go-redis/v9"
)

// RedisStore parks upload plans between the preview and confirm steps.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(id string) string {
	return "uploadplan:" + id
}

func (s *RedisStore) Put(ctx context.Context, plan *customersvc.UploadPlan, ttl time.Duration) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode upload plan: %w", err)
	}
	if err := s.client.Set(ctx, s.key(plan.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store upload plan: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*customersvc.UploadPlan, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload plan: %w", err)
	}

	var plan customersvc.UploadPlan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode upload plan: %w", err)
	}
	return &plan, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
