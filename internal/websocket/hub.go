// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "callback-queue-service/internal/domain/websocket"
	"callback-queue-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

type Hub struct {
	// Registered clients by agent ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage
	done      chan struct{}

	handlerRegistry *HandlerRegistry

	jwtVerifier *jwt.Verifier
	logger      *zap.Logger
}

type BroadcastMessage struct {
	AgentIDs []string
	Channel  wstypes.ChannelType
	Message  *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client, 16),
		broadcast:       make(chan *BroadcastMessage, 256),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		jwtVerifier:     jwtVerifier,
		logger:          logger,
	}
}

// AuthenticateClient validates the agent token
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	if h.jwtVerifier == nil {
		return nil, ErrUnauthorized
	}
	claims, err := h.jwtVerifier.Verify(token)
	if err != nil {
		return nil, err
	}

	return &ClientAuth{
		AgentID:   claims.AgentID,
		AgentName: claims.AgentName,
		SessionID: claims.ID,
		Roles:     claims.Roles,
	}, nil
}

// RegisterHandler adds a handler for client messages. Call before Run.
func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlerRegistry.Register(handler)
}

// HandleClientMessage reports whether a registered handler took the message.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.Lookup(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.agentID] == nil {
		h.clients[client.agentID] = make(map[*Client]bool)
	}
	h.clients[client.agentID][client] = true

	h.logger.Info("websocket client connected",
		zap.String("agent_id", client.agentID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", h.totalClients()),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"agent_id":   client.agentID,
		"agent_name": client.agentName,
		"session_id": client.sessionID,
		"roles":      client.roles,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.agentID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.agentID)
			}

			h.logger.Info("websocket client disconnected",
				zap.String("agent_id", client.agentID),
				zap.String("session_id", client.sessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.AgentIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, agentID := range msg.AgentIDs {
		for client := range h.clients[agentID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// Publish queues msg for delivery. It fails instead of blocking when the
// hub is stopped or its queue is full.
func (h *Hub) Publish(ctx context.Context, msg *BroadcastMessage) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	default:
		return ErrHubBusy
	}
}

// Done is closed once Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) GetConnectedClients(agentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[agentID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// IsAgentConnected checks if an agent has any active connections
func (h *Hub) IsAgentConnected(agentID string) bool {
	return h.GetConnectedClients(agentID) > 0
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
