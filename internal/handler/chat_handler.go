package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketchat/internal/domain/chat"
	"marketchat/internal/services"
	"marketchat/internal/transport/httpdto"
	apperrors "marketchat/pkg/errors"
)

// ChatService is the slice of the domain service the REST surface adapts.
type ChatService interface {
	StartConversation(ctx context.Context, in services.StartConversationInput) (chat.Conversation, *chat.Message, error)
	GetConversation(ctx context.Context, conversationID uuid.UUID) (chat.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]chat.Conversation, error)
	ArchiveConversation(ctx context.Context, conversationID uuid.UUID) (chat.Conversation, error)
	BlockConversation(ctx context.Context, conversationID uuid.UUID) (chat.Conversation, error)
	SendMessage(ctx context.Context, in services.SendMessageInput) (chat.Message, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID, limit int, before, after uuid.NullUUID) ([]chat.Message, error)
	MarkAsRead(ctx context.Context, conversationID, userID uuid.UUID) error
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	EditMessage(ctx context.Context, messageID, senderID uuid.UUID, content string) (chat.Message, error)
	DeleteMessageForMe(ctx context.Context, messageID, userID uuid.UUID) error
}

type ChatHandler struct {
	service ChatService
}

func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req httpdto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	in := services.StartConversationInput{
		BuyerID:        req.BuyerID,
		SellerID:       req.SellerID,
		InitialMessage: req.InitialMessage,
	}
	if req.ListingID != nil {
		in.ListingID = uuid.NullUUID{UUID: *req.ListingID, Valid: true}
	}

	conv, msg, err := h.service.StartConversation(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"conversation": httpdto.NewConversationView(conv)}
	if msg != nil {
		body["message"] = httpdto.NewMessageView(*msg)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(body))
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	conv, err := h.service.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewConversationView(conv)))
}

func (h *ChatHandler) GetUserConversations(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	limit := parseIntDefault(c.Query("limit"), 0)
	offset := parseIntDefault(c.Query("offset"), 0)

	conversations, err := h.service.GetUserConversations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"conversations": httpdto.NewConversationViews(conversations),
	}))
}

func (h *ChatHandler) ArchiveConversation(c *gin.Context) {
	h.setStatus(c, h.service.ArchiveConversation)
}

func (h *ChatHandler) BlockConversation(c *gin.Context) {
	h.setStatus(c, h.service.BlockConversation)
}

func (h *ChatHandler) setStatus(c *gin.Context, op func(context.Context, uuid.UUID) (chat.Conversation, error)) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	conv, err := op(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewConversationView(conv)))
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	in := services.SendMessageInput{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		Type:           req.MessageType,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
		AttachmentSize: req.AttachmentSize,
	}
	if req.ReplyToMessageID != nil {
		in.ReplyToMessageID = uuid.NullUUID{UUID: *req.ReplyToMessageID, Valid: true}
	}

	msg, err := h.service.SendMessage(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewMessageView(msg)))
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	limit := parseIntDefault(c.Query("limit"), 0)
	// Malformed cursors are treated as absent, not as an error.
	before := parseNullUUID(c.Query("before"))
	after := parseNullUUID(c.Query("after"))

	messages, err := h.service.GetMessages(c.Request.Context(), conversationID, limit, before, after)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"messages": httpdto.NewMessageViews(messages),
	}))
}

func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), conversationID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked": true}))
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	msg, err := h.service.EditMessage(c.Request.Context(), messageID, req.SenderID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewMessageView(msg)))
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.DeleteMessageForMe(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deleted": true}))
}

func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	total, err := h.service.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unreadCount": total}))
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
	case errors.Is(err, apperrors.ErrNotParticipant), errors.Is(err, apperrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "VALIDATION_FAILED"))
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse(err.Error(), "UNAUTHORIZED"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func parseNullUUID(s string) uuid.NullUUID {
	if s == "" {
		return uuid.NullUUID{}
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}
