// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Callback events (server -> client)
	EventTypeCallback     EventType = "callback:event"
	EventTypeNotification EventType = "callback:notification"

	// Callback commands (client -> server)
	EventTypeCallbackAccept  EventType = "callback:accept"
	EventTypeCallbackDecline EventType = "callback:decline"
	EventTypeCallbackQueue   EventType = "callback:queue"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	// every committed callback event
	ChannelCallbacks ChannelType = "callbacks"
	// projected offers for agents to accept or decline
	ChannelAgentNotifications ChannelType = "agent_notifications"
	// warnings and errors such as exhausted retries; supervisors only
	ChannelSupervisor ChannelType = "supervisor"
)

type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CallbackCommand is the payload of callback:accept and callback:decline.
type CallbackCommand struct {
	CallbackID string `json:"callback_id"`
	Reason     string `json:"reason,omitempty"`
}

func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        uuid.NewString(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Decode converts the loosely typed Data into target.
func (m *WSMessage) Decode(target interface{}) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
