package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/db"
)

// MatchDetail is one row of the aggregated match listing: the match, its
// companion, the conversation (if any), a last-message preview and the
// number of unread companion messages.
type MatchDetail struct {
	MatchID            string
	MatchedAt          time.Time
	CompanionID        string
	Name               string
	Age                int
	Bio                string
	Personality        string
	Interests          db.StringList
	ImageURL           string
	CompatibilityScore *float64
	ConversationID     *string
	LastMessage        *string
	LastMessageAt      *time.Time
	UnreadCount        int64
}

// MatchRepository provides data access for matches.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// ListWithDetails returns every active match of the user in one query.
//
// Behavior:
//   - Joins the companion and (left) the conversation of the pair.
//   - last_message is the newest message content by (created_at, id).
//   - unread_count counts companion-authored messages with is_read = false.
//   - Ordered by matched_at DESC, match id ASC.
//
// Example:
//
//	repo.ListWithDetails(ctx, "user-1")
func (r *MatchRepository) ListWithDetails(ctx context.Context, userID string) ([]MatchDetail, error) {
	var rows []MatchDetail
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			m.id               AS match_id,
			m.matched_at       AS matched_at,
			c.id               AS companion_id,
			c.name             AS name,
			c.age              AS age,
			c.bio              AS bio,
			c.personality      AS personality,
			c.interests        AS interests,
			c.image_url        AS image_url,
			c.compatibility_score AS compatibility_score,
			conv.id            AS conversation_id,
			conv.last_message_at AS last_message_at,
			(
				SELECT msg.content FROM messages msg
				WHERE msg.conversation_id = conv.id
				ORDER BY msg.created_at DESC, msg.id DESC
				LIMIT 1
			) AS last_message,
			(
				SELECT COUNT(*) FROM messages msg
				WHERE msg.conversation_id = conv.id
				  AND msg.sender_id IS NULL
				  AND msg.is_read = ?
			) AS unread_count
		FROM matches m
		JOIN companions c ON c.id = m.companion_id
		LEFT JOIN conversations conv
			ON conv.user_id = m.user_id AND conv.companion_id = m.companion_id
		WHERE m.user_id = ? AND m.is_active = ?
		ORDER BY m.matched_at DESC, m.id ASC`,
		false, userID, true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Deactivate soft-deletes a match owned by userID. Deactivating an already
// inactive match is a no-op; a match owned by someone else is not found.
func (r *MatchRepository) Deactivate(ctx context.Context, userID, matchID string) error {
	var m db.Match
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", matchID, userID).
		Take(&m).Error; err != nil {
		return err
	}
	if !m.IsActive {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Update("is_active", false).Error
}
