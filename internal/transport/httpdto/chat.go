package httpdto

import (
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/chat"
)

type StartConversationRequest struct {
	BuyerID        uuid.UUID  `json:"buyerId" binding:"required"`
	SellerID       uuid.UUID  `json:"sellerId" binding:"required"`
	ListingID      *uuid.UUID `json:"listingId,omitempty"`
	InitialMessage string     `json:"initialMessage,omitempty"`
}

type SendMessageRequest struct {
	ConversationID   uuid.UUID  `json:"conversationId" binding:"required"`
	SenderID         uuid.UUID  `json:"senderId" binding:"required"`
	Content          string     `json:"content" binding:"required"`
	MessageType      string     `json:"messageType,omitempty" binding:"omitempty,oneof=Text Image File System"`
	AttachmentURL    string     `json:"attachmentUrl,omitempty"`
	AttachmentName   string     `json:"attachmentName,omitempty"`
	AttachmentSize   int64      `json:"attachmentSize,omitempty"`
	ReplyToMessageID *uuid.UUID `json:"replyToMessageId,omitempty"`
}

type MarkReadRequest struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
}

type EditMessageRequest struct {
	SenderID uuid.UUID `json:"senderId" binding:"required"`
	Content  string    `json:"content" binding:"required"`
}

type PresignUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	Size        int64  `json:"size" binding:"required"`
}

type PresignUploadResponse struct {
	UploadURL string            `json:"uploadUrl"`
	FileURL   string            `json:"fileUrl"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ConversationView is the wire shape of a conversation, shared by the REST
// surface and the socket gateway.
type ConversationView struct {
	ConversationID     uuid.UUID  `json:"conversationId"`
	BuyerID            uuid.UUID  `json:"buyerId"`
	SellerID           uuid.UUID  `json:"sellerId"`
	ListingID          *uuid.UUID `json:"listingId,omitempty"`
	Status             string     `json:"status"`
	LastMessagePreview *string    `json:"lastMessagePreview,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	BuyerUnreadCount   int        `json:"buyerUnreadCount"`
	SellerUnreadCount  int        `json:"sellerUnreadCount"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// MessageView is the wire shape of a message.
type MessageView struct {
	MessageID          uuid.UUID  `json:"messageId"`
	ConversationID     uuid.UUID  `json:"conversationId"`
	SenderID           uuid.UUID  `json:"senderId"`
	Content            string     `json:"content"`
	MessageType        string     `json:"messageType"`
	AttachmentURL      *string    `json:"attachmentUrl,omitempty"`
	AttachmentName     *string    `json:"attachmentName,omitempty"`
	AttachmentSize     *int64     `json:"attachmentSize,omitempty"`
	Status             string     `json:"status"`
	DeletedBySender    bool       `json:"deletedBySender"`
	DeletedByRecipient bool       `json:"deletedByRecipient"`
	ReplyToMessageID   *uuid.UUID `json:"replyToMessageId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	EditedAt           *time.Time `json:"editedAt,omitempty"`
}

func NewConversationView(c chat.Conversation) ConversationView {
	v := ConversationView{
		ConversationID:    c.ID,
		BuyerID:           c.BuyerID,
		SellerID:          c.SellerID,
		Status:            c.Status,
		BuyerUnreadCount:  c.BuyerUnreadCount,
		SellerUnreadCount: c.SellerUnreadCount,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.ListingID.Valid {
		id := c.ListingID.UUID
		v.ListingID = &id
	}
	if c.LastMessagePreview.Valid {
		p := c.LastMessagePreview.String
		v.LastMessagePreview = &p
	}
	if c.LastMessageAt.Valid {
		t := c.LastMessageAt.Time
		v.LastMessageAt = &t
	}
	return v
}

func NewConversationViews(cs []chat.Conversation) []ConversationView {
	views := make([]ConversationView, 0, len(cs))
	for _, c := range cs {
		views = append(views, NewConversationView(c))
	}
	return views
}

func NewMessageView(m chat.Message) MessageView {
	v := MessageView{
		MessageID:          m.ID,
		ConversationID:     m.ConversationID,
		SenderID:           m.SenderID,
		Content:            m.Content,
		MessageType:        m.Type,
		Status:             m.Status,
		DeletedBySender:    m.DeletedBySender,
		DeletedByRecipient: m.DeletedByRecipient,
		CreatedAt:          m.CreatedAt,
	}
	if m.AttachmentURL.Valid {
		u := m.AttachmentURL.String
		v.AttachmentURL = &u
	}
	if m.AttachmentName.Valid {
		n := m.AttachmentName.String
		v.AttachmentName = &n
	}
	if m.AttachmentSize.Valid {
		s := m.AttachmentSize.Int64
		v.AttachmentSize = &s
	}
	if m.ReplyToMessageID.Valid {
		id := m.ReplyToMessageID.UUID
		v.ReplyToMessageID = &id
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		v.EditedAt = &t
	}
	return v
}

func NewMessageViews(ms []chat.Message) []MessageView {
	views := make([]MessageView, 0, len(ms))
	for _, m := range ms {
		views = append(views, NewMessageView(m))
	}
	return views
}
