package repository

import (
	"context"

	"github.com/google/uuid"

	"marketchat/internal/domain/chat"
)

// ConversationUpdates carries the mutable conversation columns. Nil fields
// are left untouched.
type ConversationUpdates struct {
	Status             *string
	LastMessagePreview *string
	LastMessageAt      *bool // set last_message_at to now
}

// ChatRepository is the durable store for conversations and messages. It
// raises only storage errors (apperrors.ErrNotFound, apperrors.ErrAlreadyExists
// or driver errors); business rules live in the service layer.
type ChatRepository interface {
	CreateConversation(ctx context.Context, c *chat.Conversation) error
	GetConversationByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error)
	// FindConversationByParticipants matches exactly on buyer and seller and,
	// when listingID is valid, exactly on listing. With listingID absent only
	// buyer/seller are matched, so an unscoped pair collapses to a single
	// conversation regardless of how many listings they discuss.
	FindConversationByParticipants(ctx context.Context, buyerID, sellerID uuid.UUID, listingID uuid.NullUUID) (chat.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]chat.Conversation, error)
	UpdateConversation(ctx context.Context, id uuid.UUID, updates ConversationUpdates) error
	// IncrementUnread and ResetUnread are single atomic UPDATE statements;
	// concurrent increments to the same side must not lose updates.
	IncrementUnread(ctx context.Context, id uuid.UUID, forBuyer bool) error
	ResetUnread(ctx context.Context, id uuid.UUID, forBuyer bool) error

	CreateMessage(ctx context.Context, m *chat.Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (chat.Message, error)
	// FindMessagesByConversation returns messages ordered by created_at
	// descending. before/after cursors are resolved to their message's
	// timestamp and applied as exclusive bounds; a cursor that resolves to no
	// message is silently dropped.
	FindMessagesByConversation(ctx context.Context, conversationID uuid.UUID, limit int, before, after uuid.NullUUID) ([]chat.Message, error)
	// MarkAllRead sets status Read on every message in the conversation whose
	// sender is not recipientID and whose status is not already Read, in one
	// bulk statement.
	MarkAllRead(ctx context.Context, conversationID, recipientID uuid.UUID) error
	UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) error
	SetMessageDeleted(ctx context.Context, id uuid.UUID, forSender bool) error

	SumUnreadAsBuyer(ctx context.Context, userID uuid.UUID) (int64, error)
	SumUnreadAsSeller(ctx context.Context, userID uuid.UUID) (int64, error)
}
