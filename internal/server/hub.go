package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"marketchat/internal/domain/chat"
	"marketchat/internal/presence"
	"marketchat/internal/services"
	"marketchat/internal/transport/httpdto"
)

// ChatService is the slice of the domain service the gateway needs. The
// gateway never mutates persisted chat state directly.
type ChatService interface {
	SendMessage(ctx context.Context, in services.SendMessageInput) (chat.Message, error)
	MarkAsRead(ctx context.Context, conversationID, userID uuid.UUID) error
	GetRecipientID(ctx context.Context, conversationID, senderID uuid.UUID) (uuid.UUID, error)
}

// Hub bridges live connections to the domain service. It owns the connection
// registry (through the injected presence store) and per-conversation room
// membership; fan-out targets every live connection of a user.
type Hub struct {
	chat       ChatService
	presence   presence.Store
	clients    map[uuid.UUID]map[string]*Client
	rooms      map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	stopChan   chan struct{}
	logger     *WebSocketLogger
}

func NewHub(chatService ChatService, presenceStore presence.Store) *Hub {
	return &Hub{
		chat:       chatService,
		presence:   presenceStore,
		clients:    make(map[uuid.UUID]map[string]*Client),
		rooms:      make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		stopChan:   make(chan struct{}),
		logger:     NewWebSocketLogger(),
	}
}

// Run owns the connection lifecycle loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			go client.writePump()
			go client.readPump()

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case <-h.stopChan:
			return
		}
	}
}

// Stop shuts down the hub and closes every connection.
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userClients := range h.clients {
		for _, client := range userClients {
			client.close()
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
	h.rooms = make(map[uuid.UUID]map[string]*Client)
}

// dispatch routes one tagged inbound event to the domain service and pushes
// the outcome to the right rooms. All failures are reported only to the
// originating connection.
func (h *Hub) dispatch(ctx context.Context, c *Client, evt InboundEvent) {
	switch evt.Event {
	case EventJoin:
		h.handleJoin(ctx, c, evt.Data)
	case EventJoinConversation:
		h.handleJoinConversation(c, evt.Data)
	case EventLeaveConversation:
		h.handleLeaveConversation(c, evt.Data)
	case EventSendMessage:
		h.handleSendMessage(ctx, c, evt.Data)
	case EventTyping:
		h.handleTyping(ctx, c, evt.Data)
	case EventMarkRead:
		h.handleMarkRead(ctx, c, evt.Data)
	default:
		h.logger.Warn("unknown event", c.userID, c.id)
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == uuid.Nil {
		c.enqueue(errorEvent(errInvalidPayload))
		return
	}
	if c.authID != uuid.Nil && payload.UserID != c.authID {
		c.enqueue(errorEvent(errUserMismatch))
		return
	}

	h.mu.Lock()
	c.userID = payload.UserID
	c.joined = true
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[string]*Client)
	}
	h.clients[c.userID][c.id] = c
	h.mu.Unlock()

	if err := h.presence.Connect(ctx, c.userID, c.id); err != nil {
		h.logger.Error("presence register failed", c.userID, c.id, err)
	}
	h.logger.Info("client joined", c.userID, c.id)

	c.enqueue(OutboundEvent{
		Event: EventJoined,
		Data: map[string]string{
			"room":   userRoom(c.userID),
			"userId": c.userID.String(),
		},
	})
}

func (h *Hub) handleJoinConversation(c *Client, data json.RawMessage) {
	var payload ConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == uuid.Nil {
		c.enqueue(errorEvent(errInvalidPayload))
		return
	}

	h.mu.Lock()
	if h.rooms[payload.ConversationID] == nil {
		h.rooms[payload.ConversationID] = make(map[string]*Client)
	}
	h.rooms[payload.ConversationID][c.id] = c
	c.conversations[payload.ConversationID] = true
	h.mu.Unlock()

	c.enqueue(OutboundEvent{
		Event: EventJoinedConversation,
		Data: map[string]string{
			"room":           conversationRoom(payload.ConversationID),
			"conversationId": payload.ConversationID.String(),
		},
	})
}

func (h *Hub) handleLeaveConversation(c *Client, data json.RawMessage) {
	var payload ConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == uuid.Nil {
		c.enqueue(errorEvent(errInvalidPayload))
		return
	}

	h.mu.Lock()
	h.removeFromRoom(payload.ConversationID, c)
	delete(c.conversations, payload.ConversationID)
	h.mu.Unlock()

	c.enqueue(OutboundEvent{
		Event: EventLeftConversation,
		Data:  map[string]string{"conversationId": payload.ConversationID.String()},
	})
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.enqueue(errorEvent(errInvalidPayload))
		return
	}

	in := services.SendMessageInput{
		ConversationID: payload.ConversationID,
		SenderID:       payload.SenderID,
		Content:        payload.Content,
		Type:           payload.MessageType,
		AttachmentURL:  payload.AttachmentURL,
		AttachmentName: payload.AttachmentName,
		AttachmentSize: payload.AttachmentSize,
	}
	if payload.ReplyToMessageID != nil {
		in.ReplyToMessageID = uuid.NullUUID{UUID: *payload.ReplyToMessageID, Valid: true}
	}

	msg, err := h.chat.SendMessage(ctx, in)
	if err != nil {
		c.enqueue(errorEvent(err))
		return
	}

	recipientID, err := h.chat.GetRecipientID(ctx, payload.ConversationID, payload.SenderID)
	if err != nil {
		c.enqueue(errorEvent(err))
		return
	}

	body := map[string]interface{}{
		"message":        httpdto.NewMessageView(msg),
		"conversationId": payload.ConversationID.String(),
	}
	h.emitToUser(recipientID, OutboundEvent{Event: EventNewMessage, Data: body})
	// Multi-device echo for the sender.
	h.emitToUser(payload.SenderID, OutboundEvent{Event: EventMessageSent, Data: body})
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.enqueue(errorEvent(errInvalidPayload))
		return
	}

	recipientID, err := h.chat.GetRecipientID(ctx, payload.ConversationID, payload.UserID)
	if err != nil {
		c.enqueue(errorEvent(err))
		return
	}

	// Best effort, nothing persisted.
	h.emitToUser(recipientID, OutboundEvent{
		Event: EventUserTyping,
		Data: map[string]interface{}{
			"conversationId": payload.ConversationID.String(),
			"userId":         payload.UserID.String(),
			"isTyping":       payload.IsTyping,
		},
	})
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, data json.RawMessage) {
	var payload MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.enqueue(errorEvent(errInvalidPayload))
		return
	}

	if err := h.chat.MarkAsRead(ctx, payload.ConversationID, payload.UserID); err != nil {
		c.enqueue(errorEvent(err))
		return
	}

	recipientID, err := h.chat.GetRecipientID(ctx, payload.ConversationID, payload.UserID)
	if err != nil {
		c.enqueue(errorEvent(err))
		return
	}

	h.emitToUser(recipientID, OutboundEvent{
		Event: EventMessagesRead,
		Data: map[string]string{
			"conversationId": payload.ConversationID.String(),
			"readBy":         payload.UserID.String(),
		},
	})
}

func (h *Hub) handleDisconnect(c *Client) {
	h.mu.Lock()
	if c.joined {
		if userClients, ok := h.clients[c.userID]; ok {
			delete(userClients, c.id)
			if len(userClients) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
	for convID := range c.conversations {
		h.removeFromRoom(convID, c)
	}
	h.mu.Unlock()

	c.close()

	if c.joined {
		offline, err := h.presence.Disconnect(context.Background(), c.userID, c.id)
		if err != nil {
			h.logger.Error("presence deregister failed", c.userID, c.id, err)
		} else if offline {
			h.logger.Info("user offline", c.userID, c.id)
		}
	}
	h.logger.Info("client disconnected", c.userID, c.id)
}

// removeFromRoom requires h.mu to be held.
func (h *Hub) removeFromRoom(conversationID uuid.UUID, c *Client) {
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// emitToUser delivers one event to every live connection of a user.
func (h *Hub) emitToUser(userID uuid.UUID, evt OutboundEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		client.enqueue(evt)
	}
}

// IsUserOnline reads the presence registry. Approximate: an unclean drop is
// observed only after the socket's read deadline fires.
func (h *Hub) IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return h.presence.IsOnline(ctx, userID)
}

func (h *Hub) OnlineCount(ctx context.Context) (int64, error) {
	return h.presence.OnlineCount(ctx)
}

func (h *Hub) touch(c *Client) {
	if !c.joined {
		return
	}
	if err := h.presence.Touch(context.Background(), c.userID); err != nil {
		h.logger.Warn("presence touch failed", c.userID, c.id)
	}
}
