// Package gatewaytest provides an in-memory gateway.Gateway for client flow tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/gateway"
)

// UserID is the identity every Fake call acts as.
const UserID = "user-1"

// Fake keeps backend state in memory. Exported fields may be set before use;
// afterwards go through the methods.
type Fake struct {
	// Candidates is the full pool; decided companions drop out of fetches.
	Candidates []api.Companion
	// Mutual lists companion ids that reciprocate a like.
	Mutual map[string]bool
	// PageSize caps candidate fetches (0 = everything).
	PageSize int

	mu       sync.Mutex
	decided  map[string]string
	matches  []api.MatchSummary
	convs    map[string]api.Conversation
	messages map[string][]api.Message
	profile  *api.Profile
	errs     map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
	seq      int
	clock    time.Time
}

func New() *Fake {
	return &Fake{
		Mutual:   make(map[string]bool),
		decided:  make(map[string]string),
		convs:    make(map[string]api.Conversation),
		messages: make(map[string][]api.Message),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
		clock:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

var _ gateway.Gateway = (*Fake)(nil)

// Fail makes every call to method return err until cleared with a nil err.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Hold blocks calls to method until the returned release func is called.
func (f *Fake) Hold(method string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, method)
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls reports how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// AddMatch seeds an active match without a conversation.
func (f *Fake) AddMatch(c api.Companion, matchedAt time.Time) api.MatchSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addMatchLocked(c, matchedAt)
}

// AddCompanionMessage writes an unread companion message into conversationID.
func (f *Fake) AddCompanionMessage(conversationID, content string) api.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendLocked(conversationID, api.AuthorCompanion, content)
}

// enter records the call, waits on any gate and returns the injected error.
func (f *Fake) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	gate := f.gates[method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

func (f *Fake) tick() time.Time {
	f.seq++
	return f.clock.Add(time.Duration(f.seq) * time.Second)
}

func (f *Fake) addMatchLocked(c api.Companion, matchedAt time.Time) api.MatchSummary {
	f.seq++
	m := api.MatchSummary{
		MatchID:   fmt.Sprintf("match-%d", f.seq),
		MatchedAt: matchedAt,
		Companion: c,
	}
	f.matches = append(f.matches, m)
	return m
}

func (f *Fake) ListCandidateCompanions(ctx context.Context, filter gateway.CandidateFilter) ([]api.Companion, error) {
	if err := f.enter(ctx, "ListCandidateCompanions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]api.Companion, 0, len(f.Candidates))
	for _, c := range f.Candidates {
		if _, done := f.decided[c.ID]; done {
			continue
		}
		if (filter.MinAge > 0 && c.Age < filter.MinAge) || (filter.MaxAge > 0 && c.Age > filter.MaxAge) {
			continue
		}
		out = append(out, c)
		if f.PageSize > 0 && len(out) == f.PageSize {
			break
		}
	}
	return out, nil
}

func (f *Fake) RecordSwipeDecision(ctx context.Context, companionID, decision string) (api.RecordSwipeResponse, error) {
	if err := f.enter(ctx, "RecordSwipeDecision"); err != nil {
		return api.RecordSwipeResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, done := f.decided[companionID]; done {
		return api.RecordSwipeResponse{}, fmt.Errorf("%w: %s", gateway.ErrAlreadyDecided, companionID)
	}
	f.decided[companionID] = decision

	if decision == api.DecisionPass || !f.Mutual[companionID] {
		return api.RecordSwipeResponse{}, nil
	}
	var comp api.Companion
	for _, c := range f.Candidates {
		if c.ID == companionID {
			comp = c
		}
	}
	m := f.addMatchLocked(comp, f.tick())
	return api.RecordSwipeResponse{
		IsMatch: true,
		Match:   &api.Match{ID: m.MatchID, CompanionID: companionID, MatchedAt: m.MatchedAt, IsActive: true},
	}, nil
}

func (f *Fake) ListMatches(ctx context.Context) ([]api.MatchSummary, error) {
	if err := f.enter(ctx, "ListMatches"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.MatchSummary(nil), f.matches...), nil
}

func (f *Fake) DeactivateMatch(ctx context.Context, matchID string) error {
	if err := f.enter(ctx, "DeactivateMatch"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.matches {
		if m.MatchID == matchID {
			f.matches = append(f.matches[:i], f.matches[i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fake) ListConversations(ctx context.Context) ([]api.Conversation, error) {
	if err := f.enter(ctx, "ListConversations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.Conversation, 0, len(f.convs))
	for _, c := range f.convs {
		out = append(out, c)
	}
	return out, nil
}

func (f *Fake) StartConversation(ctx context.Context, companionID string) (api.Conversation, error) {
	if err := f.enter(ctx, "StartConversation"); err != nil {
		return api.Conversation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, m := range f.matches {
		if m.Companion.ID != companionID {
			continue
		}
		if m.ConversationID != "" {
			return f.convs[m.ConversationID], nil
		}
		conv := api.Conversation{
			ID:            "conv-" + companionID,
			CompanionID:   companionID,
			CompanionName: m.Companion.Name,
			Status:        "active",
			CreatedAt:     f.tick(),
		}
		f.convs[conv.ID] = conv
		f.matches[i].ConversationID = conv.ID
		return conv, nil
	}
	return api.Conversation{}, gateway.ErrNoActiveMatch
}

func (f *Fake) ListMessages(ctx context.Context, conversationID string) ([]api.Message, error) {
	if err := f.enter(ctx, "ListMessages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.convs[conversationID]; !ok {
		return nil, gateway.ErrNotFound
	}
	return append([]api.Message(nil), f.messages[conversationID]...), nil
}

func (f *Fake) AppendMessage(ctx context.Context, conversationID, author, content string) (api.Message, error) {
	if strings.TrimSpace(content) == "" {
		return api.Message{}, fmt.Errorf("%w: message is empty", gateway.ErrValidation)
	}
	if err := f.enter(ctx, "AppendMessage"); err != nil {
		return api.Message{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.convs[conversationID]; !ok {
		return api.Message{}, gateway.ErrNotFound
	}
	return f.appendLocked(conversationID, author, strings.TrimSpace(content)), nil
}

func (f *Fake) appendLocked(conversationID, author, content string) api.Message {
	at := f.tick()
	msg := api.Message{
		ID:             fmt.Sprintf("msg-%d", f.seq),
		ConversationID: conversationID,
		Content:        content,
		MessageType:    "text",
		CreatedAt:      at,
	}
	if author == api.AuthorUser {
		msg.SenderID = UserID
		msg.IsRead = true
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)

	for i, m := range f.matches {
		if m.ConversationID != conversationID {
			continue
		}
		f.matches[i].LastMessage = content
		f.matches[i].LastMessageAt = &at
		if !msg.IsRead {
			f.matches[i].UnreadCount++
		}
	}
	return msg
}

func (f *Fake) MarkCompanionMessagesRead(ctx context.Context, conversationID string) (int64, error) {
	if err := f.enter(ctx, "MarkCompanionMessagesRead"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	msgs := f.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID == "" && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	for i, m := range f.matches {
		if m.ConversationID == conversationID {
			f.matches[i].UnreadCount = 0
		}
	}
	return n, nil
}

func (f *Fake) UnreadTotal(ctx context.Context) (int64, error) {
	if err := f.enter(ctx, "UnreadTotal"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, m := range f.matches {
		total += m.UnreadCount
	}
	return total, nil
}

func (f *Fake) EnsureProfile(ctx context.Context, displayNameHint string) (bool, error) {
	if err := f.enter(ctx, "EnsureProfile"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile != nil {
		return false, nil
	}
	f.profile = &api.Profile{UserID: UserID, DisplayName: displayNameHint}
	return true, nil
}

func (f *Fake) GetProfile(ctx context.Context) (api.Profile, error) {
	if err := f.enter(ctx, "GetProfile"); err != nil {
		return api.Profile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return api.Profile{}, gateway.ErrNotFound
	}
	return *f.profile, nil
}

func (f *Fake) UpdatePreferences(ctx context.Context, prefs api.Preferences) error {
	if err := f.enter(ctx, "UpdatePreferences"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return gateway.ErrNotFound
	}
	f.profile.Preferences = prefs
	return nil
}

func (f *Fake) TouchLastActive(ctx context.Context) error {
	return f.enter(ctx, "TouchLastActive")
}

func (f *Fake) UploadAvatar(ctx context.Context, fileName, _ string, _ []byte) (api.UploadMediaResponse, error) {
	return f.upload(ctx, "UploadAvatar", UserID+"/"+fileName, func(p *api.Profile, key string) { p.AvatarKey = key })
}

func (f *Fake) UploadBanner(ctx context.Context, fileName, _ string, _ []byte) (api.UploadMediaResponse, error) {
	return f.upload(ctx, "UploadBanner", UserID+"/banner/"+fileName, func(p *api.Profile, key string) { p.BannerKey = key })
}

func (f *Fake) upload(ctx context.Context, method, key string, set func(*api.Profile, string)) (api.UploadMediaResponse, error) {
	if err := f.enter(ctx, method); err != nil {
		return api.UploadMediaResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return api.UploadMediaResponse{}, gateway.ErrNotFound
	}
	set(f.profile, key)
	f.profile.MediaVersion = f.tick().UnixMilli()
	return api.UploadMediaResponse{Key: key, PublicURL: f.PublicURL(key)}, nil
}

func (f *Fake) DeleteAvatar(ctx context.Context) error {
	if err := f.enter(ctx, "DeleteAvatar"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile != nil {
		f.profile.AvatarKey = ""
	}
	return nil
}

func (f *Fake) DeleteBanner(ctx context.Context) error {
	if err := f.enter(ctx, "DeleteBanner"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile != nil {
		f.profile.BannerKey = ""
	}
	return nil
}

func (f *Fake) PublicURL(key string) string {
	return "https://cdn.test/storage/v1/object/public/profile-pics/" + key
}
