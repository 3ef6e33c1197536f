package companion

import (
	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/repository"
)

func toAPICompanion(c db.Companion) api.Companion {
	return api.Companion{
		ID:                 c.ID,
		Name:               c.Name,
		Age:                c.Age,
		Bio:                c.Bio,
		Personality:        c.Personality,
		Interests:          []string(c.Interests),
		PersonalityTraits:  []string(c.PersonalityTraits),
		CommunicationStyle: c.CommunicationStyle,
		ImageURL:           c.ImageURL,
		CompatibilityScore: c.CompatibilityScore,
	}
}

func toAPIMatch(m db.Match) *api.Match {
	return &api.Match{
		ID:          m.ID,
		CompanionID: m.CompanionID,
		MatchedAt:   m.MatchedAt,
		IsActive:    m.IsActive,
	}
}

func toAPIMatchSummary(d repository.MatchDetail) api.MatchSummary {
	out := api.MatchSummary{
		MatchID:   d.MatchID,
		MatchedAt: d.MatchedAt,
		Companion: api.Companion{
			ID:                 d.CompanionID,
			Name:               d.Name,
			Age:                d.Age,
			Bio:                d.Bio,
			Personality:        d.Personality,
			Interests:          []string(d.Interests),
			ImageURL:           d.ImageURL,
			CompatibilityScore: d.CompatibilityScore,
		},
		LastMessageAt: d.LastMessageAt,
		UnreadCount:   d.UnreadCount,
	}
	if d.ConversationID != nil {
		out.ConversationID = *d.ConversationID
	}
	if d.LastMessage != nil {
		out.LastMessage = *d.LastMessage
	}
	return out
}

func toAPIConversation(c db.Conversation) api.Conversation {
	return api.Conversation{
		ID:            c.ID,
		CompanionID:   c.CompanionID,
		Status:        c.Status,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func toAPIConversationSummary(c repository.ConversationSummary) api.Conversation {
	return api.Conversation{
		ID:                c.ID,
		CompanionID:       c.CompanionID,
		CompanionName:     c.CompanionName,
		CompanionImageURL: c.CompanionImageURL,
		Status:            c.Status,
		LastMessageAt:     c.LastMessageAt,
		CreatedAt:         c.CreatedAt,
	}
}

func toAPIMessage(m db.Message) api.Message {
	out := api.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		MessageType:    m.MessageType,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
	if m.SenderID != nil {
		out.SenderID = *m.SenderID
	}
	return out
}

func toAPIPreferences(p db.UserPreferences) api.Preferences {
	return api.Preferences{
		AgeRangeMin:                  p.AgeRangeMin,
		AgeRangeMax:                  p.AgeRangeMax,
		PreferredPersonalities:       []string(p.PreferredPersonalities),
		PreferredInterests:           []string(p.PreferredInterests),
		CommunicationStylePreference: p.CommunicationStylePreference,
		RelationshipGoals:            []string(p.RelationshipGoals),
	}
}

func toAPIStats(s db.UserStats) api.Stats {
	return api.Stats{
		TotalSwipes:   s.TotalSwipes,
		Likes:         s.Likes,
		Passes:        s.Passes,
		SuperLikes:    s.SuperLikes,
		Matches:       s.Matches,
		Conversations: s.Conversations,
		MessagesSent:  s.MessagesSent,
	}
}
