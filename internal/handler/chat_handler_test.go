package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/chat"
	"marketchat/internal/handler"
	"marketchat/internal/services"
	apperrors "marketchat/pkg/errors"
)

type stubChatService struct {
	startConversation    func(in services.StartConversationInput) (chat.Conversation, *chat.Message, error)
	getConversation      func(id uuid.UUID) (chat.Conversation, error)
	getUserConversations func(userID uuid.UUID, limit, offset int) ([]chat.Conversation, error)
	sendMessage          func(in services.SendMessageInput) (chat.Message, error)
	getMessages          func(id uuid.UUID, limit int, before, after uuid.NullUUID) ([]chat.Message, error)
	markAsRead           func(conversationID, userID uuid.UUID) error
	getUnreadCount       func(userID uuid.UUID) (int64, error)
	editMessage          func(messageID, senderID uuid.UUID, content string) (chat.Message, error)
	deleteMessageForMe   func(messageID, userID uuid.UUID) error
	setStatus            func(id uuid.UUID) (chat.Conversation, error)
}

func (s *stubChatService) StartConversation(_ context.Context, in services.StartConversationInput) (chat.Conversation, *chat.Message, error) {
	return s.startConversation(in)
}

func (s *stubChatService) GetConversation(_ context.Context, id uuid.UUID) (chat.Conversation, error) {
	return s.getConversation(id)
}

func (s *stubChatService) GetUserConversations(_ context.Context, userID uuid.UUID, limit, offset int) ([]chat.Conversation, error) {
	return s.getUserConversations(userID, limit, offset)
}

func (s *stubChatService) ArchiveConversation(_ context.Context, id uuid.UUID) (chat.Conversation, error) {
	return s.setStatus(id)
}

func (s *stubChatService) BlockConversation(_ context.Context, id uuid.UUID) (chat.Conversation, error) {
	return s.setStatus(id)
}

func (s *stubChatService) SendMessage(_ context.Context, in services.SendMessageInput) (chat.Message, error) {
	return s.sendMessage(in)
}

func (s *stubChatService) GetMessages(_ context.Context, id uuid.UUID, limit int, before, after uuid.NullUUID) ([]chat.Message, error) {
	return s.getMessages(id, limit, before, after)
}

func (s *stubChatService) MarkAsRead(_ context.Context, conversationID, userID uuid.UUID) error {
	return s.markAsRead(conversationID, userID)
}

func (s *stubChatService) GetUnreadCount(_ context.Context, userID uuid.UUID) (int64, error) {
	return s.getUnreadCount(userID)
}

func (s *stubChatService) EditMessage(_ context.Context, messageID, senderID uuid.UUID, content string) (chat.Message, error) {
	return s.editMessage(messageID, senderID, content)
}

func (s *stubChatService) DeleteMessageForMe(_ context.Context, messageID, userID uuid.UUID) error {
	return s.deleteMessageForMe(messageID, userID)
}

func newTestRouter(svc handler.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewChatHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1/chat")
	v1.POST("/conversations", h.StartConversation)
	v1.GET("/conversations/user/:userId", h.GetUserConversations)
	v1.GET("/conversations/:id", h.GetConversation)
	v1.POST("/conversations/:id/archive", h.ArchiveConversation)
	v1.GET("/conversations/:id/messages", h.GetMessages)
	v1.POST("/conversations/:id/read", h.MarkAsRead)
	v1.POST("/messages", h.SendMessage)
	v1.PATCH("/messages/:id", h.EditMessage)
	v1.DELETE("/messages/:id", h.DeleteMessage)
	v1.GET("/unread/:userId", h.GetUnreadCount)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartConversationEndpoint(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	convID := uuid.New()

	t.Run("ReturnsConversationAndInitialMessage", func(t *testing.T) {
		svc := &stubChatService{
			startConversation: func(in services.StartConversationInput) (chat.Conversation, *chat.Message, error) {
				require.Equal(t, buyerID, in.BuyerID)
				msg := chat.Message{ID: uuid.New(), ConversationID: convID, SenderID: in.BuyerID, Content: in.InitialMessage}
				return chat.Conversation{ID: convID, BuyerID: in.BuyerID, SellerID: in.SellerID, Status: chat.ConversationActive}, &msg, nil
			},
		}
		r := newTestRouter(svc)

		w := doJSON(r, http.MethodPost, "/v1/chat/conversations", gin.H{
			"buyerId":        buyerID,
			"sellerId":       sellerID,
			"initialMessage": "hi there",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Success bool `json:"success"`
			Data    struct {
				Conversation struct {
					ConversationID string `json:"conversationId"`
				} `json:"conversation"`
				Message *struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, convID.String(), body.Data.Conversation.ConversationID)
		require.NotNil(t, body.Data.Message)
		assert.Equal(t, "hi there", body.Data.Message.Content)
	})

	t.Run("SelfConversationIs400", func(t *testing.T) {
		svc := &stubChatService{
			startConversation: func(services.StartConversationInput) (chat.Conversation, *chat.Message, error) {
				return chat.Conversation{}, nil, apperrors.ErrInvalidInput
			},
		}
		r := newTestRouter(svc)

		w := doJSON(r, http.MethodPost, "/v1/chat/conversations", gin.H{
			"buyerId":  buyerID,
			"sellerId": buyerID,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MalformedBodyIs400", func(t *testing.T) {
		r := newTestRouter(&stubChatService{})

		req := httptest.NewRequest(http.MethodPost, "/v1/chat/conversations", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetConversationEndpoint(t *testing.T) {
	t.Run("UnknownConversationIs404", func(t *testing.T) {
		svc := &stubChatService{
			getConversation: func(uuid.UUID) (chat.Conversation, error) {
				return chat.Conversation{}, apperrors.ErrNotFound
			},
		}
		r := newTestRouter(svc)

		w := doJSON(r, http.MethodGet, "/v1/chat/conversations/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("BadIDIs400", func(t *testing.T) {
		r := newTestRouter(&stubChatService{})
		w := doJSON(r, http.MethodGet, "/v1/chat/conversations/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSendMessageEndpoint(t *testing.T) {
	convID := uuid.New()
	senderID := uuid.New()

	t.Run("Creates201", func(t *testing.T) {
		svc := &stubChatService{
			sendMessage: func(in services.SendMessageInput) (chat.Message, error) {
				return chat.Message{
					ID:             uuid.New(),
					ConversationID: in.ConversationID,
					SenderID:       in.SenderID,
					Content:        in.Content,
					Status:         chat.MessageStatusSent,
				}, nil
			},
		}
		r := newTestRouter(svc)

		w := doJSON(r, http.MethodPost, "/v1/chat/messages", gin.H{
			"conversationId": convID,
			"senderId":       senderID,
			"content":        "hello",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("NonParticipantIs400", func(t *testing.T) {
		svc := &stubChatService{
			sendMessage: func(services.SendMessageInput) (chat.Message, error) {
				return chat.Message{}, apperrors.ErrNotParticipant
			},
		}
		r := newTestRouter(svc)

		w := doJSON(r, http.MethodPost, "/v1/chat/messages", gin.H{
			"conversationId": convID,
			"senderId":       uuid.New(),
			"content":        "hello",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetMessagesEndpoint(t *testing.T) {
	convID := uuid.New()

	t.Run("ForwardsCursorAndLimit", func(t *testing.T) {
		before := uuid.New()
		var gotLimit int
		var gotBefore, gotAfter uuid.NullUUID
		svc := &stubChatService{
			getMessages: func(_ uuid.UUID, limit int, b, a uuid.NullUUID) ([]chat.Message, error) {
				gotLimit, gotBefore, gotAfter = limit, b, a
				return []chat.Message{}, nil
			},
		}
		r := newTestRouter(svc)

		path := fmt.Sprintf("/v1/chat/conversations/%s/messages?limit=25&before=%s", convID, before)
		w := doJSON(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 25, gotLimit)
		assert.Equal(t, uuid.NullUUID{UUID: before, Valid: true}, gotBefore)
		assert.False(t, gotAfter.Valid)
	})

	t.Run("MalformedCursorIsDropped", func(t *testing.T) {
		var gotBefore uuid.NullUUID
		svc := &stubChatService{
			getMessages: func(_ uuid.UUID, _ int, b, _ uuid.NullUUID) ([]chat.Message, error) {
				gotBefore = b
				return []chat.Message{}, nil
			},
		}
		r := newTestRouter(svc)

		path := fmt.Sprintf("/v1/chat/conversations/%s/messages?before=garbage", convID)
		w := doJSON(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, gotBefore.Valid)
	})
}

func TestMarkAsReadEndpoint(t *testing.T) {
	convID := uuid.New()
	userID := uuid.New()

	var gotConv, gotUser uuid.UUID
	svc := &stubChatService{
		markAsRead: func(conversationID, uID uuid.UUID) error {
			gotConv, gotUser = conversationID, uID
			return nil
		},
	}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/v1/chat/conversations/%s/read", convID), gin.H{
		"userId": userID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, convID, gotConv)
	assert.Equal(t, userID, gotUser)
}

func TestGetUnreadCountEndpoint(t *testing.T) {
	userID := uuid.New()
	svc := &stubChatService{
		getUnreadCount: func(uuid.UUID) (int64, error) { return 12, nil },
	}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/v1/chat/unread/"+userID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			UnreadCount int64 `json:"unreadCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(12), body.Data.UnreadCount)
}

func TestDeleteMessageEndpoint(t *testing.T) {
	msgID := uuid.New()
	userID := uuid.New()

	t.Run("RequiresUserID", func(t *testing.T) {
		r := newTestRouter(&stubChatService{})
		w := doJSON(r, http.MethodDelete, "/v1/chat/messages/"+msgID.String(), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DeletesForRequestingSide", func(t *testing.T) {
		var gotMsg, gotUser uuid.UUID
		svc := &stubChatService{
			deleteMessageForMe: func(messageID, uID uuid.UUID) error {
				gotMsg, gotUser = messageID, uID
				return nil
			},
		}
		r := newTestRouter(svc)

		path := fmt.Sprintf("/v1/chat/messages/%s?userId=%s", msgID, userID)
		w := doJSON(r, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, msgID, gotMsg)
		assert.Equal(t, userID, gotUser)
	})
}
