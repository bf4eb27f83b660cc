package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"marketchat/internal/domain/chat"
	"marketchat/internal/repository"
	apperrors "marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// previewMaxLen bounds the conversation's last-message preview.
const previewMaxLen = 100

const (
	defaultConversationLimit = 20
	defaultMessageLimit      = 50
)

// ChatService is the single source of business rules for conversations and
// messages. REST handlers and the socket gateway call it identically, so
// behavior is the same regardless of transport.
type ChatService struct {
	repo repository.ChatRepository
	log  *logger.Logger
}

func NewChatService(repo repository.ChatRepository, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{repo: repo, log: log}
}

type StartConversationInput struct {
	BuyerID        uuid.UUID
	SellerID       uuid.UUID
	ListingID      uuid.NullUUID
	InitialMessage string
}

type SendMessageInput struct {
	ConversationID   uuid.UUID
	SenderID         uuid.UUID
	Content          string
	Type             string
	AttachmentURL    string
	AttachmentName   string
	AttachmentSize   int64
	ReplyToMessageID uuid.NullUUID
}

// StartConversation idempotently returns the conversation for the given
// participant pair, creating it on first contact. With ListingID absent the
// lookup matches on buyer/seller only. When InitialMessage is non-empty it
// is immediately sent with the buyer as sender.
func (s *ChatService) StartConversation(ctx context.Context, in StartConversationInput) (chat.Conversation, *chat.Message, error) {
	if in.BuyerID == uuid.Nil || in.SellerID == uuid.Nil || in.BuyerID == in.SellerID {
		return chat.Conversation{}, nil, apperrors.ErrInvalidInput
	}

	conv, err := s.repo.FindConversationByParticipants(ctx, in.BuyerID, in.SellerID, in.ListingID)
	if errors.Is(err, apperrors.ErrNotFound) {
		conv = chat.Conversation{
			BuyerID:   in.BuyerID,
			SellerID:  in.SellerID,
			ListingID: in.ListingID,
		}
		err = s.repo.CreateConversation(ctx, &conv)
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			// Lost a creation race; the winner's row is the conversation.
			conv, err = s.repo.FindConversationByParticipants(ctx, in.BuyerID, in.SellerID, in.ListingID)
		}
	}
	if err != nil {
		return chat.Conversation{}, nil, err
	}

	var initial *chat.Message
	if in.InitialMessage != "" {
		msg, err := s.SendMessage(ctx, SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       in.BuyerID,
			Content:        in.InitialMessage,
		})
		if err != nil {
			return chat.Conversation{}, nil, err
		}
		initial = &msg
	}

	return conv, initial, nil
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID uuid.UUID) (chat.Conversation, error) {
	return s.repo.GetConversationByID(ctx, conversationID)
}

func (s *ChatService) GetUserConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.GetUserConversations(ctx, userID, limit, offset)
}

func (s *ChatService) ArchiveConversation(ctx context.Context, conversationID uuid.UUID) (chat.Conversation, error) {
	return s.setStatus(ctx, conversationID, chat.ConversationArchived)
}

func (s *ChatService) BlockConversation(ctx context.Context, conversationID uuid.UUID) (chat.Conversation, error) {
	return s.setStatus(ctx, conversationID, chat.ConversationBlocked)
}

func (s *ChatService) setStatus(ctx context.Context, conversationID uuid.UUID, status string) (chat.Conversation, error) {
	if _, err := s.repo.GetConversationByID(ctx, conversationID); err != nil {
		return chat.Conversation{}, err
	}
	if err := s.repo.UpdateConversation(ctx, conversationID, repository.ConversationUpdates{Status: &status}); err != nil {
		return chat.Conversation{}, err
	}
	return s.repo.GetConversationByID(ctx, conversationID)
}

// SendMessage persists a message and performs the per-send conversation
// bookkeeping: preview + last-message timestamp, then exactly one unread
// increment for the recipient side. The increment happens only after the
// message has been persisted.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (chat.Message, error) {
	if in.Content == "" {
		return chat.Message{}, apperrors.ErrInvalidInput
	}
	// Empty type defaults to Text at persist time; anything else must be a
	// declared type.
	if in.Type != "" && !chat.ValidMessageType(in.Type) {
		return chat.Message{}, apperrors.ErrInvalidInput
	}

	conv, err := s.repo.GetConversationByID(ctx, in.ConversationID)
	if err != nil {
		return chat.Message{}, err
	}
	if !conv.IsParticipant(in.SenderID) {
		return chat.Message{}, apperrors.ErrNotParticipant
	}

	msg := chat.Message{
		ConversationID:   in.ConversationID,
		SenderID:         in.SenderID,
		Content:          in.Content,
		Type:             in.Type,
		ReplyToMessageID: in.ReplyToMessageID,
	}
	if in.AttachmentURL != "" {
		msg.AttachmentURL = sql.NullString{String: in.AttachmentURL, Valid: true}
	}
	if in.AttachmentName != "" {
		msg.AttachmentName = sql.NullString{String: in.AttachmentName, Valid: true}
	}
	if in.AttachmentSize > 0 {
		msg.AttachmentSize = sql.NullInt64{Int64: in.AttachmentSize, Valid: true}
	}

	if err := s.repo.CreateMessage(ctx, &msg); err != nil {
		return chat.Message{}, err
	}

	preview := truncate(in.Content, previewMaxLen)
	bump := true
	if err := s.repo.UpdateConversation(ctx, in.ConversationID, repository.ConversationUpdates{
		LastMessagePreview: &preview,
		LastMessageAt:      &bump,
	}); err != nil {
		s.log.Errorf("conversation preview not updated after send: conversation=%s message=%s: %s",
			in.ConversationID, msg.ID, err)
	}

	forBuyer := in.SenderID != conv.BuyerID
	if err := s.repo.IncrementUnread(ctx, in.ConversationID, forBuyer); err != nil {
		s.log.Errorf("unread counter not incremented after send: conversation=%s message=%s: %s",
			in.ConversationID, msg.ID, err)
	}

	return msg, nil
}

// GetMessages validates conversation existence and delegates to the store's
// cursor query. Each call is stateless; pagination is driven purely by the
// before/after cursors.
func (s *ChatService) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int, before, after uuid.NullUUID) ([]chat.Message, error) {
	if _, err := s.repo.GetConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	return s.repo.FindMessagesByConversation(ctx, conversationID, limit, before, after)
}

// MarkAsRead bulk-marks the other participant's messages Read and resets the
// requesting side's unread counter. The two effects are not one transaction;
// a store failure between them is logged distinctly from validation failures.
func (s *ChatService) MarkAsRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(userID) {
		return apperrors.ErrNotParticipant
	}

	if err := s.repo.MarkAllRead(ctx, conversationID, userID); err != nil {
		return err
	}

	forBuyer := userID == conv.BuyerID
	if err := s.repo.ResetUnread(ctx, conversationID, forBuyer); err != nil {
		s.log.Errorf("messages marked read but unread counter not reset: conversation=%s user=%s: %s",
			conversationID, userID, err)
		return err
	}
	return nil
}

// GetUnreadCount recomputes the user's total on demand from the buyer-side
// and seller-side sub-sums. Writes landing between the two sums are an
// accepted small race.
func (s *ChatService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	asBuyer, err := s.repo.SumUnreadAsBuyer(ctx, userID)
	if err != nil {
		return 0, err
	}
	asSeller, err := s.repo.SumUnreadAsSeller(ctx, userID)
	if err != nil {
		return 0, err
	}
	return asBuyer + asSeller, nil
}

// GetRecipientID returns the other participant. Used by the gateway to route
// events; nothing is persisted.
func (s *ChatService) GetRecipientID(ctx context.Context, conversationID, senderID uuid.UUID) (uuid.UUID, error) {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return uuid.Nil, err
	}
	if !conv.IsParticipant(senderID) {
		return uuid.Nil, apperrors.ErrNotParticipant
	}
	return conv.OtherParticipant(senderID), nil
}

// EditMessage updates a message's content and edited timestamp. Only the
// original sender may edit.
func (s *ChatService) EditMessage(ctx context.Context, messageID, senderID uuid.UUID, content string) (chat.Message, error) {
	if content == "" {
		return chat.Message{}, apperrors.ErrInvalidInput
	}
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return chat.Message{}, err
	}
	if msg.SenderID != senderID {
		return chat.Message{}, apperrors.ErrNotParticipant
	}
	if err := s.repo.UpdateMessageContent(ctx, messageID, content); err != nil {
		return chat.Message{}, err
	}
	return s.repo.GetMessageByID(ctx, messageID)
}

// DeleteMessageForMe sets the requesting side's soft-delete flag. The row is
// kept; the other participant's view is untouched.
func (s *ChatService) DeleteMessageForMe(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.repo.GetConversationByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(userID) {
		return apperrors.ErrNotParticipant
	}
	return s.repo.SetMessageDeleted(ctx, messageID, userID == msg.SenderID)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
