package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketchat/internal/domain/chat"
	apperrors "marketchat/pkg/errors"
)

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) CreateConversation(ctx context.Context, c *chat.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = chat.ConversationActive
	}
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresChatRepository) GetConversationByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	var c chat.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, apperrors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresChatRepository) FindConversationByParticipants(ctx context.Context, buyerID, sellerID uuid.UUID, listingID uuid.NullUUID) (chat.Conversation, error) {
	q := r.db.WithContext(ctx).
		Where("buyer_id = ? AND seller_id = ?", buyerID, sellerID)
	if listingID.Valid {
		q = q.Where("listing_id = ?", listingID.UUID)
	}

	var c chat.Conversation
	err := q.Order("created_at ASC").First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, apperrors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresChatRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]chat.Conversation, error) {
	var conversations []chat.Conversation
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("last_message_at DESC NULLS LAST").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *PostgresChatRepository) UpdateConversation(ctx context.Context, id uuid.UUID, updates ConversationUpdates) error {
	values := map[string]interface{}{}
	if updates.Status != nil {
		values["status"] = *updates.Status
	}
	if updates.LastMessagePreview != nil {
		values["last_message_preview"] = *updates.LastMessagePreview
	}
	if updates.LastMessageAt != nil && *updates.LastMessageAt {
		values["last_message_at"] = time.Now().UTC()
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func unreadColumn(forBuyer bool) string {
	if forBuyer {
		return "buyer_unread_count"
	}
	return "seller_unread_count"
}

func (r *PostgresChatRepository) IncrementUnread(ctx context.Context, id uuid.UUID, forBuyer bool) error {
	col := unreadColumn(forBuyer)
	res := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) ResetUnread(ctx context.Context, id uuid.UUID, forBuyer bool) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		UpdateColumn(unreadColumn(forBuyer), 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) CreateMessage(ctx context.Context, m *chat.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = chat.MessageTypeText
	}
	if m.Status == "" {
		m.Status = chat.MessageStatusSent
	}
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresChatRepository) GetMessageByID(ctx context.Context, id uuid.UUID) (chat.Message, error) {
	var m chat.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Message{}, apperrors.ErrNotFound
		}
		return chat.Message{}, err
	}
	return m, nil
}

func (r *PostgresChatRepository) FindMessagesByConversation(ctx context.Context, conversationID uuid.UUID, limit int, before, after uuid.NullUUID) ([]chat.Message, error) {
	beforeAt, afterAt, err := messageCursorBounds(ctx, r.GetMessageByID, before, after)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)
	if beforeAt != nil {
		q = q.Where("created_at < ?", *beforeAt)
	}
	if afterAt != nil {
		q = q.Where("created_at > ?", *afterAt)
	}

	var messages []chat.Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// messageCursorBounds resolves the before/after message cursors to their
// message's created_at through byID. The returned bounds are applied as
// exclusive (< / >) conditions. A cursor that resolves to no message is
// dropped, not treated as an error; callers may hold stale cursors.
func messageCursorBounds(ctx context.Context, byID func(context.Context, uuid.UUID) (chat.Message, error), before, after uuid.NullUUID) (beforeAt, afterAt *time.Time, err error) {
	resolve := func(cursor uuid.NullUUID) (*time.Time, error) {
		if !cursor.Valid {
			return nil, nil
		}
		m, err := byID(ctx, cursor.UUID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		at := m.CreatedAt
		return &at, nil
	}

	if beforeAt, err = resolve(before); err != nil {
		return nil, nil, err
	}
	if afterAt, err = resolve(after); err != nil {
		return nil, nil, err
	}
	return beforeAt, afterAt, nil
}

func (r *PostgresChatRepository) MarkAllRead(ctx context.Context, conversationID, recipientID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND status <> ?",
			conversationID, recipientID, chat.MessageStatusRead).
		UpdateColumn("status", chat.MessageStatusRead)
	return res.Error
}

func (r *PostgresChatRepository) UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"edited_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) SetMessageDeleted(ctx context.Context, id uuid.UUID, forSender bool) error {
	col := "deleted_by_recipient"
	if forSender {
		col = "deleted_by_sender"
	}
	res := r.db.WithContext(ctx).
		Model(&chat.Message{}).
		Where("id = ?", id).
		UpdateColumn(col, true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) SumUnreadAsBuyer(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("buyer_id = ?", userID).
		Select("COALESCE(SUM(buyer_unread_count), 0)").
		Scan(&total).Error
	return total, err
}

func (r *PostgresChatRepository) SumUnreadAsSeller(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("seller_id = ?", userID).
		Select("COALESCE(SUM(seller_unread_count), 0)").
		Scan(&total).Error
	return total, err
}
