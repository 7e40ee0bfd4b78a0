// internal/websocket/handler/callback.go
package handler

import (
	"context"
	"fmt"

	"callback-queue-service/internal/domain/callback"
	wstypes "callback-queue-service/internal/domain/websocket"
	xerrors "callback-queue-service/internal/pkg/errors"
	ws "callback-queue-service/internal/websocket"
)

// CallbackCommands is the part of the callback service agents drive over
// the socket.
type CallbackCommands interface {
	AcceptCallback(ctx context.Context, id, agentID, agentName string) (*callback.CallbackRequest, error)
	RejectCallback(ctx context.Context, id, agentID, agentName, reason string) (*callback.CallbackRequest, error)
	GetPendingQueue() []*callback.CallbackRequest
}

// CallbackHandler lets an agent accept or decline a notified callback
// straight from the notification popup.
type CallbackHandler struct {
	callbacks CallbackCommands
}

func NewCallbackHandler(callbacks CallbackCommands) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

func (h *CallbackHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeCallbackAccept,
		wstypes.EventTypeCallbackDecline,
		wstypes.EventTypeCallbackQueue,
	}
}

func (h *CallbackHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeCallbackAccept:
		return h.handleAccept(ctx, client, msg)
	case wstypes.EventTypeCallbackDecline:
		return h.handleDecline(ctx, client, msg)
	case wstypes.EventTypeCallbackQueue:
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeCallbackQueue, map[string]interface{}{
			"callbacks": h.callbacks.GetPendingQueue(),
		}))
		return nil
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

func (h *CallbackHandler) handleAccept(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	cmd, err := decodeCommand(client, msg)
	if err != nil {
		return err
	}

	req, err := h.callbacks.AcceptCallback(ctx, cmd.CallbackID, client.GetAgentID(), client.GetAgentName())
	if err != nil {
		client.SendError(xerrors.Code(err), "Failed to accept callback", err.Error())
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeCallbackAccept, map[string]interface{}{
		"success":  true,
		"callback": req,
	}))
	return nil
}

func (h *CallbackHandler) handleDecline(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	cmd, err := decodeCommand(client, msg)
	if err != nil {
		return err
	}

	req, err := h.callbacks.RejectCallback(ctx, cmd.CallbackID, client.GetAgentID(), client.GetAgentName(), cmd.Reason)
	if err != nil {
		client.SendError(xerrors.Code(err), "Failed to decline callback", err.Error())
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeCallbackDecline, map[string]interface{}{
		"success":  true,
		"callback": req,
	}))
	return nil
}

func decodeCommand(client *ws.Client, msg *wstypes.WSMessage) (wstypes.CallbackCommand, error) {
	var cmd wstypes.CallbackCommand
	if err := msg.Decode(&cmd); err != nil {
		client.SendError("invalid_request", "Invalid callback command", err.Error())
		return cmd, err
	}
	if cmd.CallbackID == "" {
		err := fmt.Errorf("callback_id is required: %w", xerrors.ErrInvalidInput)
		client.SendError("invalid_request", "Invalid callback command", err.Error())
		return cmd, err
	}
	return cmd, nil
}
