package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/chat"
	"marketchat/internal/presence"
	"marketchat/internal/services"
)

type fakeChatService struct {
	sendMessage    func(in services.SendMessageInput) (chat.Message, error)
	markAsRead     func(conversationID, userID uuid.UUID) error
	getRecipientID func(conversationID, senderID uuid.UUID) (uuid.UUID, error)
}

func (f *fakeChatService) SendMessage(_ context.Context, in services.SendMessageInput) (chat.Message, error) {
	if f.sendMessage == nil {
		return chat.Message{}, errors.New("unexpected SendMessage")
	}
	return f.sendMessage(in)
}

func (f *fakeChatService) MarkAsRead(_ context.Context, conversationID, userID uuid.UUID) error {
	if f.markAsRead == nil {
		return errors.New("unexpected MarkAsRead")
	}
	return f.markAsRead(conversationID, userID)
}

func (f *fakeChatService) GetRecipientID(_ context.Context, conversationID, senderID uuid.UUID) (uuid.UUID, error) {
	if f.getRecipientID == nil {
		return uuid.Nil, errors.New("unexpected GetRecipientID")
	}
	return f.getRecipientID(conversationID, senderID)
}

func newTestHub(svc ChatService) *Hub {
	return NewHub(svc, presence.NewMemoryStore())
}

// joinClient connects a conn-less client and binds it to userID through the
// regular join event, draining the ack.
func joinClient(t *testing.T, h *Hub, userID uuid.UUID) *Client {
	t.Helper()
	c := NewClient(h, nil, uuid.Nil)
	payload, _ := json.Marshal(JoinPayload{UserID: userID})
	h.dispatch(context.Background(), c, InboundEvent{Event: EventJoin, Data: payload})
	evt := recvEvent(t, c)
	require.Equal(t, EventJoined, evt.Event)
	return c
}

func recvEvent(t *testing.T, c *Client) OutboundEvent {
	t.Helper()
	select {
	case data := <-c.send:
		var evt OutboundEvent
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	default:
		t.Fatal("no event queued")
		return OutboundEvent{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	assert.Zero(t, len(c.send), "unexpected queued event")
}

func TestHandleJoin(t *testing.T) {
	t.Run("BindsUserAndAcksPersonalRoom", func(t *testing.T) {
		h := newTestHub(&fakeChatService{})
		userID := uuid.New()

		c := NewClient(h, nil, uuid.Nil)
		payload, _ := json.Marshal(JoinPayload{UserID: userID})
		h.dispatch(context.Background(), c, InboundEvent{Event: EventJoin, Data: payload})

		evt := recvEvent(t, c)
		require.Equal(t, EventJoined, evt.Event)
		data := evt.Data.(map[string]interface{})
		assert.Equal(t, fmt.Sprintf("user-%s", userID), data["room"])

		online, err := h.IsUserOnline(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, online)
	})

	t.Run("RejectsMismatchedAuthenticatedUser", func(t *testing.T) {
		h := newTestHub(&fakeChatService{})
		authID := uuid.New()

		c := NewClient(h, nil, authID)
		payload, _ := json.Marshal(JoinPayload{UserID: uuid.New()})
		h.dispatch(context.Background(), c, InboundEvent{Event: EventJoin, Data: payload})

		evt := recvEvent(t, c)
		assert.Equal(t, EventError, evt.Event)

		online, err := h.IsUserOnline(context.Background(), authID)
		require.NoError(t, err)
		assert.False(t, online)
	})

	t.Run("RejectsInvalidPayload", func(t *testing.T) {
		h := newTestHub(&fakeChatService{})

		c := NewClient(h, nil, uuid.Nil)
		h.dispatch(context.Background(), c, InboundEvent{Event: EventJoin, Data: json.RawMessage(`{"userId":"nope"}`)})

		evt := recvEvent(t, c)
		assert.Equal(t, EventError, evt.Event)
	})
}

func TestConversationRooms(t *testing.T) {
	h := newTestHub(&fakeChatService{})
	userID := uuid.New()
	convID := uuid.New()
	c := joinClient(t, h, userID)

	payload, _ := json.Marshal(ConversationPayload{ConversationID: convID})
	h.dispatch(context.Background(), c, InboundEvent{Event: EventJoinConversation, Data: payload})

	evt := recvEvent(t, c)
	require.Equal(t, EventJoinedConversation, evt.Event)
	data := evt.Data.(map[string]interface{})
	assert.Equal(t, fmt.Sprintf("conversation-%s", convID), data["room"])

	h.dispatch(context.Background(), c, InboundEvent{Event: EventLeaveConversation, Data: payload})
	evt = recvEvent(t, c)
	assert.Equal(t, EventLeftConversation, evt.Event)

	h.mu.RLock()
	_, exists := h.rooms[convID]
	h.mu.RUnlock()
	assert.False(t, exists)
}

func TestHandleSendMessage(t *testing.T) {
	senderID := uuid.New()
	recipientID := uuid.New()
	convID := uuid.New()

	t.Run("FansOutOncePerConnection", func(t *testing.T) {
		svc := &fakeChatService{
			sendMessage: func(in services.SendMessageInput) (chat.Message, error) {
				return chat.Message{
					ID:             uuid.New(),
					ConversationID: in.ConversationID,
					SenderID:       in.SenderID,
					Content:        in.Content,
					Status:         chat.MessageStatusSent,
				}, nil
			},
			getRecipientID: func(uuid.UUID, uuid.UUID) (uuid.UUID, error) {
				return recipientID, nil
			},
		}
		h := newTestHub(svc)

		origin := joinClient(t, h, senderID)
		senderPhone := joinClient(t, h, senderID)
		recipientWeb := joinClient(t, h, recipientID)
		recipientPhone := joinClient(t, h, recipientID)

		payload, _ := json.Marshal(SendMessagePayload{
			ConversationID: convID,
			SenderID:       senderID,
			Content:        "hello",
		})
		h.dispatch(context.Background(), origin, InboundEvent{Event: EventSendMessage, Data: payload})

		for _, c := range []*Client{recipientWeb, recipientPhone} {
			evt := recvEvent(t, c)
			assert.Equal(t, EventNewMessage, evt.Event)
			data := evt.Data.(map[string]interface{})
			assert.Equal(t, convID.String(), data["conversationId"])
			assertNoEvent(t, c)
		}
		for _, c := range []*Client{origin, senderPhone} {
			evt := recvEvent(t, c)
			assert.Equal(t, EventMessageSent, evt.Event)
			assertNoEvent(t, c)
		}
	})

	t.Run("ErrorGoesToOriginOnly", func(t *testing.T) {
		svc := &fakeChatService{
			sendMessage: func(services.SendMessageInput) (chat.Message, error) {
				return chat.Message{}, errors.New("store unavailable")
			},
		}
		h := newTestHub(svc)

		origin := joinClient(t, h, senderID)
		other := joinClient(t, h, senderID)
		recipient := joinClient(t, h, recipientID)

		payload, _ := json.Marshal(SendMessagePayload{
			ConversationID: convID,
			SenderID:       senderID,
			Content:        "hello",
		})
		h.dispatch(context.Background(), origin, InboundEvent{Event: EventSendMessage, Data: payload})

		evt := recvEvent(t, origin)
		assert.Equal(t, EventError, evt.Event)
		assertNoEvent(t, other)
		assertNoEvent(t, recipient)
	})
}

func TestHandleTyping(t *testing.T) {
	senderID := uuid.New()
	recipientID := uuid.New()
	convID := uuid.New()

	svc := &fakeChatService{
		getRecipientID: func(uuid.UUID, uuid.UUID) (uuid.UUID, error) {
			return recipientID, nil
		},
	}
	h := newTestHub(svc)

	origin := joinClient(t, h, senderID)
	recipient := joinClient(t, h, recipientID)

	payload, _ := json.Marshal(TypingPayload{ConversationID: convID, UserID: senderID, IsTyping: true})
	h.dispatch(context.Background(), origin, InboundEvent{Event: EventTyping, Data: payload})

	evt := recvEvent(t, recipient)
	require.Equal(t, EventUserTyping, evt.Event)
	data := evt.Data.(map[string]interface{})
	assert.Equal(t, senderID.String(), data["userId"])
	assert.Equal(t, true, data["isTyping"])
	assertNoEvent(t, origin)
}

func TestHandleMarkRead(t *testing.T) {
	readerID := uuid.New()
	otherID := uuid.New()
	convID := uuid.New()

	var markedConv, markedUser uuid.UUID
	svc := &fakeChatService{
		markAsRead: func(conversationID, userID uuid.UUID) error {
			markedConv, markedUser = conversationID, userID
			return nil
		},
		getRecipientID: func(uuid.UUID, uuid.UUID) (uuid.UUID, error) {
			return otherID, nil
		},
	}
	h := newTestHub(svc)

	origin := joinClient(t, h, readerID)
	other := joinClient(t, h, otherID)

	payload, _ := json.Marshal(MarkReadPayload{ConversationID: convID, UserID: readerID})
	h.dispatch(context.Background(), origin, InboundEvent{Event: EventMarkRead, Data: payload})

	assert.Equal(t, convID, markedConv)
	assert.Equal(t, readerID, markedUser)

	evt := recvEvent(t, other)
	require.Equal(t, EventMessagesRead, evt.Event)
	data := evt.Data.(map[string]interface{})
	assert.Equal(t, readerID.String(), data["readBy"])
	assertNoEvent(t, origin)
}

func TestHandleDisconnect(t *testing.T) {
	h := newTestHub(&fakeChatService{})
	userID := uuid.New()

	web := joinClient(t, h, userID)
	phone := joinClient(t, h, userID)

	h.handleDisconnect(web)
	online, err := h.IsUserOnline(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, online, "second device keeps the user online")

	h.handleDisconnect(phone)
	online, err = h.IsUserOnline(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, online)

	h.mu.RLock()
	_, exists := h.clients[userID]
	h.mu.RUnlock()
	assert.False(t, exists)
}
