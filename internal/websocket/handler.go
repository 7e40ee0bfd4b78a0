// internal/websocket/handler.go
package websocket

import (
	"context"
	"fmt"

	wstypes "callback-queue-service/internal/domain/websocket"
)

// MessageHandler serves client messages of the event types it lists.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry routes an event type to its handler. It is filled before
// the hub starts and only read afterwards.
type HandlerRegistry struct {
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[wstypes.EventType]MessageHandler)}
}

// Register claims every event type the handler supports. Claiming a type
// twice, or a type the hub answers itself, is a wiring mistake.
func (r *HandlerRegistry) Register(handler MessageHandler) error {
	events := handler.SupportedEvents()
	for _, t := range events {
		if builtinEvents[t] {
			return fmt.Errorf("event %q is handled by the hub", t)
		}
		if _, taken := r.handlers[t]; taken {
			return fmt.Errorf("event %q already has a handler", t)
		}
	}
	for _, t := range events {
		r.handlers[t] = handler
	}
	return nil
}

func (r *HandlerRegistry) Lookup(eventType wstypes.EventType) (MessageHandler, bool) {
	h, ok := r.handlers[eventType]
	return h, ok
}

var builtinEvents = map[wstypes.EventType]bool{
	wstypes.EventTypePing:        true,
	wstypes.EventTypeSubscribe:   true,
	wstypes.EventTypeUnsubscribe: true,
}
