// Package redis keeps callback requests and agent presence in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"callback-queue-service/internal/domain/callback"

	"github.com/redis/go-redis/v9"
)

// CallbackStore keeps every request as a JSON field of one hash. The key
// carries a hash tag so multi-key pipelines stay on one cluster slot.
type CallbackStore struct {
	client redis.UniversalClient
	key    string
}

func NewCallbackStore(client redis.UniversalClient, prefix string) *CallbackStore {
	if prefix == "" {
		prefix = "callback"
	}
	return &CallbackStore{
		client: client,
		key:    fmt.Sprintf("{%s}:requests", prefix),
	}
}

func (s *CallbackStore) Load(ctx context.Context) ([]*callback.CallbackRequest, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load callbacks: %w", err)
	}

	out := make([]*callback.CallbackRequest, 0, len(fields))
	for id, raw := range fields {
		var c callback.CallbackRequest
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("failed to decode callback %s: %w", id, err)
		}
		if c.Notes == nil {
			c.Notes = []callback.CallbackNote{}
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *CallbackStore) Upsert(ctx context.Context, requests []*callback.CallbackRequest) error {
	if len(requests) == 0 {
		return nil
	}

	values, err := encode(requests)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to save callbacks: %w", err)
	}
	return nil
}

// SaveAll replaces the hash atomically.
func (s *CallbackStore) SaveAll(ctx context.Context, requests []*callback.CallbackRequest) error {
	values, err := encode(requests)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace callbacks: %w", err)
	}
	return nil
}

func encode(requests []*callback.CallbackRequest) ([]interface{}, error) {
	values := make([]interface{}, 0, len(requests)*2)
	for _, c := range requests {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode callback %s: %w", c.ID, err)
		}
		values = append(values, c.ID, data)
	}
	return values, nil
}
