package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation statuses. Conversations are never hard-deleted; Archived and
// Blocked are reached only by explicit action and remain readable.
const (
	ConversationActive   = "Active"
	ConversationArchived = "Archived"
	ConversationBlocked  = "Blocked"
)

// Message types
const (
	MessageTypeText   = "Text"
	MessageTypeImage  = "Image"
	MessageTypeFile   = "File"
	MessageTypeSystem = "System"
)

// ValidMessageType reports whether t is one of the declared message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message delivery statuses. Transitions only move forward. The store sets
// Sent on creation and Read on bulk mark-read; Delivered is reserved for
// transport-level acknowledgment and is never written by this core.
const (
	MessageStatusSent      = "Sent"
	MessageStatusDelivered = "Delivered"
	MessageStatusRead      = "Read"
)

// Conversation represents the conversations table. Exactly one buyer and one
// seller, optionally scoped to a listing. Unread counters are per side and
// never negative.
type Conversation struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	BuyerID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_conversations_buyer"`
	SellerID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_conversations_seller"`
	ListingID          uuid.NullUUID  `gorm:"type:uuid"`
	Status             string         `gorm:"type:varchar(16);not null;default:'Active'"`
	LastMessagePreview sql.NullString `gorm:"type:varchar(100)"`
	LastMessageAt      sql.NullTime
	BuyerUnreadCount   int       `gorm:"not null;default:0"`
	SellerUnreadCount  int       `gorm:"not null;default:0"`
	CreatedAt          time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// Message represents the messages table. CreatedAt is assigned at persist
// time and is the canonical order key within a conversation.
type Message struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_messages_conversation"`
	SenderID           uuid.UUID      `gorm:"type:uuid;not null"`
	Content            string         `gorm:"type:text;not null"`
	Type               string         `gorm:"type:varchar(16);not null;default:'Text'"`
	AttachmentURL      sql.NullString `gorm:"type:text"`
	AttachmentName     sql.NullString `gorm:"type:text"`
	AttachmentSize     sql.NullInt64
	Status             string        `gorm:"type:varchar(16);not null;default:'Sent'"`
	DeletedBySender    bool          `gorm:"not null;default:false"`
	DeletedByRecipient bool          `gorm:"not null;default:false"`
	ReplyToMessageID   uuid.NullUUID `gorm:"type:uuid"`
	CreatedAt          time.Time     `gorm:"default:CURRENT_TIMESTAMP"`
	EditedAt           sql.NullTime
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Message) TableName() string {
	return "messages"
}

// IsParticipant reports whether userID is the buyer or the seller.
func (c Conversation) IsParticipant(userID uuid.UUID) bool {
	return userID == c.BuyerID || userID == c.SellerID
}

// OtherParticipant returns the participant that is not userID. The caller
// must have validated participation first.
func (c Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if userID == c.BuyerID {
		return c.SellerID
	}
	return c.BuyerID
}
