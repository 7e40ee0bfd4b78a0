package notification

import (
	"context"

	"callback-queue-service/internal/domain/callback"
	wstypes "callback-queue-service/internal/domain/websocket"
	ws "callback-queue-service/internal/websocket"
)

type broadcaster interface {
	Publish(ctx context.Context, msg *ws.BroadcastMessage) error
}

// HubSink pushes events to connected agents. Every event goes to the
// callbacks channel; offers also go to agent_notifications and warnings to
// the supervisor channel.
type HubSink struct {
	hub broadcaster
}

func NewHubSink(hub broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Publish(ctx context.Context, event callback.Event) error {
	msg := wstypes.NewMessage(wstypes.EventTypeCallback, event)
	if err := s.hub.Publish(ctx, &ws.BroadcastMessage{Channel: wstypes.ChannelCallbacks, Message: msg}); err != nil {
		return err
	}

	if event.Notification != nil {
		offer := wstypes.NewMessage(wstypes.EventTypeNotification, event.Notification)
		if err := s.hub.Publish(ctx, &ws.BroadcastMessage{Channel: wstypes.ChannelAgentNotifications, Message: offer}); err != nil {
			return err
		}
	}

	if event.Severity == callback.SeverityWarning || event.Severity == callback.SeverityError {
		if err := s.hub.Publish(ctx, &ws.BroadcastMessage{Channel: wstypes.ChannelSupervisor, Message: msg}); err != nil {
			return err
		}
	}
	return nil
}
