package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/companion/internal/db"
	svcErr "github.com/oggyb/companion/internal/errors"
	"github.com/oggyb/companion/internal/utils/pagination"
)

// DefaultMessagePage is the page size used when callers pass 0.
const DefaultMessagePage = 100

// ConversationSummary is one entry of the conversation list.
type ConversationSummary struct {
	ID                   string
	CompanionID          string
	CompanionName        string
	CompanionImageURL    string
	CompanionPersonality string
	Status               string
	LastMessageAt        *time.Time
	CreatedAt            time.Time
}

// ConversationRepository provides data access for conversations and their messages.
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(database *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: database}
}

// GetOrCreate returns the conversation for (user, companion), creating it
// on first use. Requires an active match (ErrNoActiveMatch otherwise).
// created reports whether this call inserted the row.
func (r *ConversationRepository) GetOrCreate(
	ctx context.Context,
	userID, companionID string,
) (conv db.Conversation, created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var matches int64
		if err := tx.Model(&db.Match{}).
			Where("user_id = ? AND companion_id = ? AND is_active = ?", userID, companionID, true).
			Count(&matches).Error; err != nil {
			return err
		}
		if matches == 0 {
			return svcErr.ErrNoActiveMatch
		}

		conv = db.Conversation{
			UserID:      userID,
			CompanionID: companionID,
			Status:      db.ConversationActive,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		// reload: on conflict the generated id was not stored
		if err := tx.Where("user_id = ? AND companion_id = ?", userID, companionID).Take(&conv).Error; err != nil {
			return err
		}
		if created {
			if err := ensureStatsRow(tx, userID); err != nil {
				return err
			}
			return tx.Model(&db.UserStats{}).Where("user_id = ?", userID).
				Update("conversations", gorm.Expr("conversations + 1")).Error
		}
		return nil
	})
	if err != nil {
		return db.Conversation{}, false, err
	}
	return conv, created, nil
}

// GetForUser loads a conversation owned by userID.
// Conversations of other users are reported as not found.
func (r *ConversationRepository) GetForUser(ctx context.Context, userID, conversationID string) (db.Conversation, error) {
	var conv db.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Take(&conv).Error
	return conv, err
}

// ListForUser returns the user's conversations with companion details,
// most recent activity first (conversations without messages last).
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]ConversationSummary, error) {
	var rows []ConversationSummary
	err := r.db.WithContext(ctx).
		Table("conversations conv").
		Select(`conv.id AS id, conv.companion_id AS companion_id, c.name AS companion_name,
			c.image_url AS companion_image_url, c.personality AS companion_personality,
			conv.status AS status, conv.last_message_at AS last_message_at, conv.created_at AS created_at`).
		Joins("JOIN companions c ON c.id = conv.companion_id").
		Where("conv.user_id = ?", userID).
		Order("CASE WHEN conv.last_message_at IS NULL THEN 1 ELSE 0 END").
		Order("conv.last_message_at DESC, conv.created_at DESC, conv.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListMessages returns one page of a conversation's history.
//
// Behavior:
//   - Ordered by created_at ASC, id ASC (oldest first).
//   - Cursor points after the last returned message.
//   - nextToken is nil on the final page.
//
// Example:
//
//	msgs, next, err := repo.ListMessages(ctx, "conv-1", nil, 50)
func (r *ConversationRepository) ListMessages(
	ctx context.Context,
	conversationID string,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	if limit <= 0 {
		limit = DefaultMessagePage
	}

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, svcErr.ErrInvalidPageToken
	}

	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			ts, ts, cursor.ID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// AppendMessage writes a message at the tail of the conversation.
//
// Behavior:
//   - id and created_at are assigned here, never by the caller.
//   - created_at is strictly greater than the conversation's last_message_at,
//     so (created_at) alone totally orders a conversation.
//   - Updates conversations.last_message_at.
//   - senderID == nil marks a companion message (unread);
//     user messages are stored read and bump user_stats.messages_sent.
func (r *ConversationRepository) AppendMessage(
	ctx context.Context,
	conv db.Conversation,
	senderID *string,
	content, messageType string,
) (db.Message, error) {
	var msg db.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current db.Conversation
		if err := tx.Where("id = ?", conv.ID).Take(&current).Error; err != nil {
			return err
		}

		createdAt := tx.NowFunc().UTC().Truncate(time.Millisecond)
		if current.LastMessageAt != nil && !createdAt.After(*current.LastMessageAt) {
			createdAt = current.LastMessageAt.UTC().Add(time.Millisecond)
		}

		msg = db.Message{
			ConversationID: conv.ID,
			SenderID:       senderID,
			Content:        content,
			MessageType:    messageType,
			IsRead:         senderID != nil,
			CreatedAt:      createdAt,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		if err := tx.Model(&db.Conversation{}).Where("id = ?", conv.ID).
			Update("last_message_at", createdAt).Error; err != nil {
			return err
		}

		if senderID != nil {
			if err := ensureStatsRow(tx, *senderID); err != nil {
				return err
			}
			return tx.Model(&db.UserStats{}).Where("user_id = ?", *senderID).
				Update("messages_sent", gorm.Expr("messages_sent + 1")).Error
		}
		return nil
	})
	if err != nil {
		return db.Message{}, err
	}
	return msg, nil
}

// MarkCompanionMessagesRead flags every unread companion message of the
// conversation as read and returns how many rows changed. Idempotent.
func (r *ConversationRepository) MarkCompanionMessagesRead(ctx context.Context, conversationID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("conversation_id = ? AND sender_id IS NULL AND is_read = ?", conversationID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnreadForUser counts unread companion messages across all of the user's conversations.
func (r *ConversationRepository) CountUnreadForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("messages msg").
		Joins("JOIN conversations conv ON conv.id = msg.conversation_id").
		Where("conv.user_id = ? AND msg.sender_id IS NULL AND msg.is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
