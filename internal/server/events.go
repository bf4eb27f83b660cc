package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Client -> server events
const (
	EventJoin              = "join"
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
	EventTyping            = "typing"
	EventMarkRead          = "markRead"
)

// Server -> client events
const (
	EventJoined             = "joined"
	EventJoinedConversation = "joinedConversation"
	EventLeftConversation   = "leftConversation"
	EventNewMessage         = "newMessage"
	EventMessageSent        = "messageSent"
	EventUserTyping         = "userTyping"
	EventMessagesRead       = "messagesRead"
	EventError              = "error"
)

// InboundEvent is the tagged envelope for every client -> server message.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundEvent is the tagged envelope for every server -> client message.
type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type JoinPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type ConversationPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID   uuid.UUID  `json:"conversationId"`
	SenderID         uuid.UUID  `json:"senderId"`
	Content          string     `json:"content"`
	MessageType      string     `json:"messageType,omitempty"`
	AttachmentURL    string     `json:"attachmentUrl,omitempty"`
	AttachmentName   string     `json:"attachmentName,omitempty"`
	AttachmentSize   int64      `json:"attachmentSize,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"replyToMessageId,omitempty"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	IsTyping       bool      `json:"isTyping"`
}

type MarkReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

// Room naming convention: user-{userId} for personal delivery,
// conversation-{conversationId} for ephemeral per-thread signals.
func userRoom(userID uuid.UUID) string {
	return fmt.Sprintf("user-%s", userID)
}

func conversationRoom(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation-%s", conversationID)
}

func errorEvent(err error) OutboundEvent {
	return OutboundEvent{
		Event: EventError,
		Data:  map[string]string{"message": err.Error()},
	}
}
