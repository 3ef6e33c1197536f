package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Decision kinds a user can record against a companion.
const (
	DecisionLike      = "like"
	DecisionPass      = "pass"
	DecisionSuperLike = "super_like"
)

// Conversation statuses.
const (
	ConversationActive   = "active"
	ConversationArchived = "archived"
)

// Message types.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageSystem = "system"
)

// StringList stores an ordered list of strings as a JSON array column.
// Works the same on MySQL, Postgres and SQLite.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported StringList source %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode string list: %w", err)
	}
	*l = out
	return nil
}

// GormDataType keeps the column a plain text type on every dialect.
func (StringList) GormDataType() string { return "text" }

// newID returns a fresh UUID when id is empty.
func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// Account is a locally managed login, used when no hosted identity
// provider is configured (development and tests).
type Account struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	FullName     string `gorm:"size:128"`
	Active       bool   `gorm:"default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	a.ID = newID(a.ID)
	return nil
}

// Companion is a swipeable profile. Maintained by the backend only.
//
// Indexes:
//   - idx_companion_active_score(is_active, compatibility_score)
//     Serves the candidate query ordered by score.
type Companion struct {
	ID                 string     `gorm:"primaryKey;size:36"`
	Name               string     `gorm:"size:64;not null"`
	Age                int        `gorm:"not null;index"`
	Bio                string     `gorm:"type:text"`
	Personality        string     `gorm:"size:128"`
	Interests          StringList `gorm:"type:text"`
	PersonalityTraits  StringList `gorm:"type:text"`
	CommunicationStyle string     `gorm:"size:64"`
	ImageURL           string     `gorm:"size:512"`
	CompatibilityScore *float64   `gorm:"index:idx_companion_active_score,priority:2"`
	IsActive           bool       `gorm:"not null;index:idx_companion_active_score,priority:1"`
	CreatedAt          time.Time  `gorm:"autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime"`
}

func (c *Companion) BeforeCreate(*gorm.DB) error {
	c.ID = newID(c.ID)
	return nil
}

// SwipeDecision is a user's verdict on a companion.
//
// Composite PK: (UserID, CompanionID)
//   - One decision per pair; a second insert fails with a duplicate key.
type SwipeDecision struct {
	UserID      string    `gorm:"primaryKey;size:36"`
	CompanionID string    `gorm:"primaryKey;size:36;index"`
	Decision    string    `gorm:"size:16;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Match links a user to a companion after mutual interest.
// Deactivated rather than deleted.
type Match struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:1"`
	CompanionID string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:2"`
	MatchedAt   time.Time `gorm:"not null"`
	IsActive    bool      `gorm:"not null"`
}

func (m *Match) BeforeCreate(*gorm.DB) error {
	m.ID = newID(m.ID)
	return nil
}

// Conversation is created lazily on the first message of a match.
type Conversation struct {
	ID            string     `gorm:"primaryKey;size:36"`
	UserID        string     `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair,priority:1"`
	CompanionID   string     `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair,priority:2"`
	LastMessageAt *time.Time `gorm:"index"`
	Status        string     `gorm:"size:16;not null;default:active"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	c.ID = newID(c.ID)
	return nil
}

// Message is an append-only chat entry.
// SenderID is nil for companion-authored messages.
//
// Indexes:
//   - idx_message_conversation_created(conversation_id, created_at, id)
//     Serves ordered history pages.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36;index:idx_message_conversation_created,priority:3"`
	ConversationID string    `gorm:"size:36;not null;index:idx_message_conversation_created,priority:1"`
	SenderID       *string   `gorm:"size:36"`
	Content        string    `gorm:"type:text;not null"`
	MessageType    string    `gorm:"size:16;not null;default:text"`
	IsRead         bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null;index:idx_message_conversation_created,priority:2"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	m.ID = newID(m.ID)
	return nil
}

// FromCompanion reports whether the companion authored the message.
func (m Message) FromCompanion() bool { return m.SenderID == nil }

type UserProfile struct {
	UserID       string `gorm:"primaryKey;size:36"`
	DisplayName  string `gorm:"size:128;not null"`
	Bio          string `gorm:"type:text"`
	LastActiveAt *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

type UserPreferences struct {
	UserID                       string     `gorm:"primaryKey;size:36"`
	AgeRangeMin                  int        `gorm:"not null;default:18"`
	AgeRangeMax                  int        `gorm:"not null;default:35"`
	PreferredPersonalities       StringList `gorm:"type:text"`
	PreferredInterests           StringList `gorm:"type:text"`
	CommunicationStylePreference string     `gorm:"size:64"`
	RelationshipGoals            StringList `gorm:"type:text"`
	UpdatedAt                    time.Time  `gorm:"autoUpdateTime"`
}

func (UserPreferences) TableName() string { return "user_preferences" }

type UserStats struct {
	UserID        string    `gorm:"primaryKey;size:36"`
	TotalSwipes   int64     `gorm:"not null;default:0"`
	Likes         int64     `gorm:"not null;default:0"`
	Passes        int64     `gorm:"not null;default:0"`
	SuperLikes    int64     `gorm:"not null;default:0"`
	Matches       int64     `gorm:"not null;default:0"`
	Conversations int64     `gorm:"not null;default:0"`
	MessagesSent  int64     `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (UserStats) TableName() string { return "user_stats" }

// UserProfilePic records the current avatar object for a user.
type UserProfilePic struct {
	UserID      string    `gorm:"primaryKey;size:36"`
	StorageKey  string    `gorm:"size:512;not null"`
	FileName    string    `gorm:"size:255;not null"`
	ContentType string    `gorm:"size:64;not null"`
	SizeBytes   int64     `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// UserBanner records the current banner object for a user.
type UserBanner struct {
	UserID      string    `gorm:"primaryKey;size:36"`
	StorageKey  string    `gorm:"size:512;not null"`
	FileName    string    `gorm:"size:255;not null"`
	ContentType string    `gorm:"size:64;not null"`
	SizeBytes   int64     `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{
		&Account{},
		&Companion{},
		&SwipeDecision{},
		&Match{},
		&Conversation{},
		&Message{},
		&UserProfile{},
		&UserPreferences{},
		&UserStats{},
		&UserProfilePic{},
		&UserBanner{},
	}
}
