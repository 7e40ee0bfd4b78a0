package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	xerrors "callback-queue-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const DefaultPresenceTTL = 2 * time.Minute

// AgentDirectory keeps a roster hash of agent id to name and one presence
// key per available agent. Presence expires unless refreshed.
type AgentDirectory struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewAgentDirectory(client redis.UniversalClient, prefix string, ttl time.Duration) *AgentDirectory {
	if prefix == "" {
		prefix = "callback"
	}
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &AgentDirectory{client: client, prefix: prefix, ttl: ttl}
}

func (d *AgentDirectory) rosterKey() string {
	return fmt.Sprintf("{%s}:agents", d.prefix)
}

func (d *AgentDirectory) presenceKey(agentID string) string {
	return fmt.Sprintf("{%s}:agents:available:%s", d.prefix, agentID)
}

func (d *AgentDirectory) AvailableForCallback(ctx context.Context) (int, error) {
	ids, err := d.client.HKeys(ctx, d.rosterKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read agent roster: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = d.presenceKey(id)
	}
	n, err := d.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read agent presence: %w", err)
	}
	return int(n), nil
}

func (d *AgentDirectory) ValidateAgent(ctx context.Context, agentID, agentName string) error {
	name, err := d.client.HGet(ctx, d.rosterKey(), agentID).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("agent %s: %w", agentID, xerrors.ErrUnknownAgent)
	}
	if err != nil {
		return fmt.Errorf("failed to read agent roster: %w", err)
	}
	if name != agentName {
		return fmt.Errorf("agent %s is not %q: %w", agentID, agentName, xerrors.ErrUnknownAgent)
	}
	return nil
}

// SetAvailability registers the agent and refreshes or clears its presence.
func (d *AgentDirectory) SetAvailability(ctx context.Context, agentID, agentName string, available bool) error {
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if agentName != "" {
			pipe.HSet(ctx, d.rosterKey(), agentID, agentName)
		}
		if available {
			pipe.Set(ctx, d.presenceKey(agentID), agentName, d.ttl)
		} else {
			pipe.Del(ctx, d.presenceKey(agentID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update agent presence: %w", err)
	}
	return nil
}
