package callback

import (
	"context"

	"callback-queue-service/internal/domain/callback"
)

// Store is the durable repository of callback requests. It holds no
// business logic.
type Store interface {
	Load(ctx context.Context) ([]*callback.CallbackRequest, error)
	SaveAll(ctx context.Context, requests []*callback.CallbackRequest) error
}

// RecordStore is implemented by stores that can write individual records.
// When available only the changed records are written per command.
type RecordStore interface {
	Store
	Upsert(ctx context.Context, requests []*callback.CallbackRequest) error
}

type NotificationSink interface {
	Publish(ctx context.Context, event callback.Event) error
}

type AgentDirectory interface {
	AvailableForCallback(ctx context.Context) (int, error)
	ValidateAgent(ctx context.Context, agentID, agentName string) error
}

// PolicySource yields the retry policy that new requests snapshot.
type PolicySource interface {
	Current() callback.RetryPolicy
}

type StaticPolicy callback.RetryPolicy

func (p StaticPolicy) Current() callback.RetryPolicy {
	return callback.RetryPolicy(p)
}
