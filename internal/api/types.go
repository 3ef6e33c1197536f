package api

import "time"

// Decision kinds accepted by RecordSwipe.
const (
	DecisionLike      = "like"
	DecisionPass      = "pass"
	DecisionSuperLike = "super_like"
)

// Message authors accepted by AppendMessage.
const (
	AuthorUser      = "user"
	AuthorCompanion = "companion"
)

// Media kinds accepted by UploadMedia / DeleteMedia.
const (
	MediaAvatar = "avatar"
	MediaBanner = "banner"
)

// Empty is used by RPCs without a payload.
type Empty struct{}

//
// Companions, swipes, matches
//

type Companion struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Age                int      `json:"age"`
	Bio                string   `json:"bio"`
	Personality        string   `json:"personality"`
	Interests          []string `json:"interests"`
	PersonalityTraits  []string `json:"personality_traits"`
	CommunicationStyle string   `json:"communication_style"`
	ImageURL           string   `json:"image_url"`
	CompatibilityScore *float64 `json:"compatibility_score,omitempty"`
}

type ListCandidatesRequest struct {
	MinAge int `json:"min_age,omitempty" validate:"omitempty,min=18,max=100"`
	MaxAge int `json:"max_age,omitempty" validate:"omitempty,min=18,max=100"`
	Limit  int `json:"limit,omitempty" validate:"min=0,max=50"`
}

type ListCandidatesResponse struct {
	Companions []Companion `json:"companions"`
}

type RecordSwipeRequest struct {
	CompanionID string `json:"companion_id" validate:"required"`
	Decision    string `json:"decision" validate:"required,oneof=like pass super_like"`
}

type Match struct {
	ID          string    `json:"id"`
	CompanionID string    `json:"companion_id"`
	MatchedAt   time.Time `json:"matched_at"`
	IsActive    bool      `json:"is_active"`
}

type RecordSwipeResponse struct {
	IsMatch bool   `json:"is_match"`
	Match   *Match `json:"match,omitempty"`
}

// MatchSummary is one row of the annotated match listing.
type MatchSummary struct {
	MatchID        string     `json:"match_id"`
	MatchedAt      time.Time  `json:"matched_at"`
	Companion      Companion  `json:"companion"`
	ConversationID string     `json:"conversation_id,omitempty"`
	LastMessage    string     `json:"last_message,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	UnreadCount    int64      `json:"unread_count"`
}

type ListMatchesResponse struct {
	Matches []MatchSummary `json:"matches"`
}

type DeactivateMatchRequest struct {
	MatchID string `json:"match_id" validate:"required"`
}

//
// Conversations and messages
//

type Conversation struct {
	ID                string     `json:"id"`
	CompanionID       string     `json:"companion_id"`
	CompanionName     string     `json:"companion_name,omitempty"`
	CompanionImageURL string     `json:"companion_image_url,omitempty"`
	Status            string     `json:"status"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type StartConversationRequest struct {
	CompanionID string `json:"companion_id" validate:"required"`
}

type StartConversationResponse struct {
	Conversation Conversation `json:"conversation"`
	Created      bool         `json:"created"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id,omitempty"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromCompanion reports whether the message was written by the companion.
func (m Message) FromCompanion() bool { return m.SenderID == "" }

type ListMessagesRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	PageToken      string `json:"page_token,omitempty"`
	Limit          int    `json:"limit,omitempty" validate:"min=0,max=500"`
}

type ListMessagesResponse struct {
	Messages      []Message `json:"messages"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

type AppendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Author         string `json:"author" validate:"required,oneof=user companion"`
	Content        string `json:"content" validate:"required,max=4000"`
	MessageType    string `json:"message_type,omitempty" validate:"omitempty,oneof=text image system"`
}

type AppendMessageResponse struct {
	Message Message `json:"message"`
}

type MarkReadRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadTotalResponse struct {
	Total int64 `json:"total"`
}

//
// Profile and media
//

type EnsureProfileRequest struct {
	DisplayNameHint string `json:"display_name_hint,omitempty" validate:"max=128"`
}

type EnsureProfileResponse struct {
	Created bool `json:"created"`
}

type Preferences struct {
	AgeRangeMin                  int      `json:"age_range_min" validate:"min=18,max=100"`
	AgeRangeMax                  int      `json:"age_range_max" validate:"min=18,max=100,gtefield=AgeRangeMin"`
	PreferredPersonalities       []string `json:"preferred_personalities,omitempty" validate:"max=20"`
	PreferredInterests           []string `json:"preferred_interests,omitempty" validate:"max=20"`
	CommunicationStylePreference string   `json:"communication_style_preference,omitempty" validate:"max=64"`
	RelationshipGoals            []string `json:"relationship_goals,omitempty" validate:"max=20"`
}

type Stats struct {
	TotalSwipes   int64 `json:"total_swipes"`
	Likes         int64 `json:"likes"`
	Passes        int64 `json:"passes"`
	SuperLikes    int64 `json:"super_likes"`
	Matches       int64 `json:"matches"`
	Conversations int64 `json:"conversations"`
	MessagesSent  int64 `json:"messages_sent"`
}

type Profile struct {
	UserID       string      `json:"user_id"`
	DisplayName  string      `json:"display_name"`
	Bio          string      `json:"bio,omitempty"`
	LastActiveAt *time.Time  `json:"last_active_at,omitempty"`
	Preferences  Preferences `json:"preferences"`
	Stats        Stats       `json:"stats"`
	AvatarKey    string      `json:"avatar_key,omitempty"`
	BannerKey    string      `json:"banner_key,omitempty"`
	MediaVersion int64       `json:"media_version,omitempty"`
}

type UpdatePreferencesRequest struct {
	Preferences Preferences `json:"preferences"`
}

type UploadMediaRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=avatar banner"`
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
	Data        []byte `json:"data" validate:"required"`
}

type UploadMediaResponse struct {
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
}

type DeleteMediaRequest struct {
	Kind string `json:"kind" validate:"required,oneof=avatar banner"`
}

//
// Accounts
//

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name,omitempty" validate:"max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
