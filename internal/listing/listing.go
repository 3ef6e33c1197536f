// Package listing keeps the client's view of matches and conversations.
package listing

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/gateway"
)

const refreshTimeout = 15 * time.Second

// Order is a sort key for View.
type Order string

const (
	OrderRecent        Order = "recent"
	OrderCompatibility Order = "compatibility"
	OrderUnread        Order = "unread"
)

// ParseOrder accepts the Order names, defaulting to recent.
func ParseOrder(s string) Order {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case OrderCompatibility:
		return OrderCompatibility
	case OrderUnread:
		return OrderUnread
	default:
		return OrderRecent
	}
}

// Store caches the annotated match list. Every refresh replaces the whole
// collection; there is no incremental merge.
type Store struct {
	gw  gateway.Gateway
	log *slog.Logger
	now func() time.Time

	group singleflight.Group

	mu           sync.RWMutex
	entries      []api.MatchSummary
	reconciledAt time.Time
}

// New returns an empty Store; call Refresh to fill it.
func New(gw gateway.Gateway, log *slog.Logger) *Store {
	return &Store{gw: gw, log: log, now: time.Now}
}

// Refresh refetches all matches in one call. Concurrent refreshes share one
// request, which is detached from any single caller's cancellation.
func (s *Store) Refresh(ctx context.Context) error {
	ch := s.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		rows, err := s.gw.ListMatches(fetchCtx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.entries = rows
		s.reconciledAt = s.now()
		s.mu.Unlock()
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("refresh matches: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("refresh matches: %w", res.Err)
		}
		if res.Shared {
			s.log.Debug("match refresh coalesced")
		}
		return nil
	}
}

// ReconciledAt is when the collection last matched the server. Zero before the first refresh.
func (s *Store) ReconciledAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reconciledAt
}

// Entries returns the collection in fetch order.
func (s *Store) Entries() []api.MatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Get looks up one entry by match id.
func (s *Store) Get(matchID string) (api.MatchSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(matchID)
	if i < 0 {
		return api.MatchSummary{}, false
	}
	return s.entries[i], true
}

// UnreadTotal sums the unread counts of the cached entries.
func (s *Store) UnreadTotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, e := range s.entries {
		total += e.UnreadCount
	}
	return total
}

// View filters by a case-insensitive substring of name, personality or bio
// and sorts by order. Sorting is stable: ties keep fetch order.
func (s *Store) View(query string, order Order) []api.MatchSummary {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	out := make([]api.MatchSummary, 0, len(s.entries))
	for _, e := range s.entries {
		if q == "" || matches(e.Companion, q) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	switch order {
	case OrderCompatibility:
		slices.SortStableFunc(out, func(a, b api.MatchSummary) int {
			return compareScore(b.Companion.CompatibilityScore, a.Companion.CompatibilityScore)
		})
	case OrderUnread:
		slices.SortStableFunc(out, func(a, b api.MatchSummary) int {
			return cmp.Compare(b.UnreadCount, a.UnreadCount)
		})
	default:
		slices.SortStableFunc(out, func(a, b api.MatchSummary) int {
			return activityAt(b).Compare(activityAt(a))
		})
	}
	return out
}

func matches(c api.Companion, q string) bool {
	for _, field := range []string{c.Name, c.Personality, c.Bio} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// activityAt is the last message time, else the match time.
func activityAt(e api.MatchSummary) time.Time {
	if e.LastMessageAt != nil {
		return *e.LastMessageAt
	}
	return e.MatchedAt
}

// compareScore orders scores ascending with unscored first, so callers
// sorting descending get unscored last.
func compareScore(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

// ZeroUnread clears the unread count of the entry owning conversationID
// without waiting for the server, returning the count it had.
func (s *Store) ZeroUnread(conversationID string) int64 {
	if conversationID == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev int64
	for i := range s.entries {
		if s.entries[i].ConversationID == conversationID {
			prev += s.entries[i].UnreadCount
			s.entries[i].UnreadCount = 0
		}
	}
	return prev
}

// RestoreUnread adds n to the entry owning conversationID. Used when a
// mark-read that ZeroUnread anticipated fails on the server.
func (s *Store) RestoreUnread(conversationID string, n int64) {
	if conversationID == "" || n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ConversationID == conversationID {
			s.entries[i].UnreadCount += n
			return
		}
	}
}

// Deactivate removes a match on the server, then locally.
func (s *Store) Deactivate(ctx context.Context, matchID string) error {
	if err := s.gw.DeactivateMatch(ctx, matchID); err != nil {
		return fmt.Errorf("deactivate match: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(matchID); i >= 0 {
		s.entries = slices.Delete(s.entries, i, i+1)
	}
	return nil
}

// ConversationFor resolves an entry to its conversation id, creating the
// conversation on first use.
func (s *Store) ConversationFor(ctx context.Context, matchID string) (string, error) {
	entry, ok := s.Get(matchID)
	if !ok {
		return "", fmt.Errorf("match %s: %w", matchID, gateway.ErrNotFound)
	}
	if entry.ConversationID != "" {
		return entry.ConversationID, nil
	}

	conv, err := s.gw.StartConversation(ctx, entry.Companion.ID)
	if err != nil {
		return "", fmt.Errorf("start conversation: %w", err)
	}

	s.mu.Lock()
	if i := s.indexOf(matchID); i >= 0 {
		s.entries[i].ConversationID = conv.ID
	}
	s.mu.Unlock()
	return conv.ID, nil
}

// Conversations lists the caller's conversations, most recent activity first.
func (s *Store) Conversations(ctx context.Context) ([]api.Conversation, error) {
	convs, err := s.gw.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	slices.SortStableFunc(convs, func(a, b api.Conversation) int {
		return conversationActivity(b).Compare(conversationActivity(a))
	})
	return convs, nil
}

func conversationActivity(c api.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

// indexOf finds matchID. Caller holds mu.
func (s *Store) indexOf(matchID string) int {
	return slices.IndexFunc(s.entries, func(e api.MatchSummary) bool { return e.MatchID == matchID })
}
