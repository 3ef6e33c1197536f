package companion_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/server"
	"github.com/oggyb/companion/internal/service/companion"
	"github.com/oggyb/companion/internal/testutil"
)

//
// Test helpers
//

func setupService(t *testing.T) (*testutil.Env, *api.CompanionClient) {
	t.Helper()
	env := testutil.NewEnv(t, func(a *app.AppContext) server.Registrar { return companion.NewRegistrar(a) })
	return env, api.NewCompanionClient(env.Conn)
}

func candidateIDs(resp *api.ListCandidatesResponse) []string {
	ids := make([]string, 0, len(resp.Companions))
	for _, c := range resp.Companions {
		ids = append(ids, c.ID)
	}
	return ids
}

func score(v float64) *float64 { return &v }

//
// Tests
//

func TestMutualInterest(t *testing.T) {
	rule := companion.MutualInterest(50, 15)

	assert.True(t, rule(db.Companion{CompatibilityScore: score(50)}, db.DecisionLike))
	assert.False(t, rule(db.Companion{CompatibilityScore: score(49.9)}, db.DecisionLike))
	assert.True(t, rule(db.Companion{CompatibilityScore: score(35)}, db.DecisionSuperLike), "bonus lifts 35 to 50")
	assert.False(t, rule(db.Companion{CompatibilityScore: score(34)}, db.DecisionSuperLike))
	assert.False(t, rule(db.Companion{}, db.DecisionSuperLike), "unscored never reciprocates")
}

func TestRequiresAuthentication(t *testing.T) {
	_, client := setupService(t)

	_, err := client.ListCandidates(context.Background(), &api.ListCandidatesRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSwipeRightOnMutualFixture_MatchesAndRemovesCandidate(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	before, err := client.ListCandidates(ctx, &api.ListCandidatesRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c-high", "c-mid", "c-low", "c-unscored"}, candidateIDs(before))

	resp, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: api.DecisionLike})
	require.NoError(t, err)
	assert.True(t, resp.IsMatch)
	require.NotNil(t, resp.Match)
	assert.Equal(t, "c-high", resp.Match.CompanionID)

	after, err := client.ListCandidates(ctx, &api.ListCandidatesRequest{})
	require.NoError(t, err)
	assert.NotContains(t, candidateIDs(after), "c-high")

	matches, err := client.ListMatches(ctx, &api.Empty{})
	require.NoError(t, err)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, "Aria", matches.Matches[0].Companion.Name)
	assert.Empty(t, matches.Matches[0].ConversationID)
}

func TestRecordSwipe_Rules(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	pass, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-mid", Decision: api.DecisionPass})
	require.NoError(t, err)
	assert.False(t, pass.IsMatch)

	low, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-low", Decision: api.DecisionSuperLike})
	require.NoError(t, err)
	assert.False(t, low.IsMatch, "20 + 15 stays below 50")

	unscored, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-unscored", Decision: api.DecisionLike})
	require.NoError(t, err)
	assert.False(t, unscored.IsMatch)

	_, err = client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-mid", Decision: api.DecisionLike})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-inactive", Decision: api.DecisionLike})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: "maybe"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecordSwipe_LockHeldIsAborted(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	release, err := env.App.RedisCache.AcquireSwipeLock(context.Background(), "u1", "c-high", "someone-else")
	require.NoError(t, err)

	_, err = client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: api.DecisionLike})
	assert.Equal(t, codes.Aborted, status.Code(err))

	release()
	resp, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: api.DecisionLike})
	require.NoError(t, err)
	assert.True(t, resp.IsMatch)
}

func TestConcurrentSwipes_SingleWinner(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	var wg sync.WaitGroup
	codesSeen := make([]codes.Code, 4)
	for i := range codesSeen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-mid", Decision: api.DecisionLike})
			codesSeen[i] = status.Code(err)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, c := range codesSeen {
		if c == codes.OK {
			ok++
			continue
		}
		assert.Contains(t, []codes.Code{codes.Aborted, codes.AlreadyExists}, c)
	}
	assert.Equal(t, 1, ok)
}

func TestChatScenario_UnreadToZeroOldestFirst(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	_, err := client.StartConversation(ctx, &api.StartConversationRequest{CompanionID: "c-high"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "no match yet")

	_, err = client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: api.DecisionLike})
	require.NoError(t, err)

	started, err := client.StartConversation(ctx, &api.StartConversationRequest{CompanionID: "c-high"})
	require.NoError(t, err)
	assert.True(t, started.Created)
	assert.Equal(t, "Aria", started.Conversation.CompanionName)
	convID := started.Conversation.ID

	for _, text := range []string{"first", "second", "third"} {
		_, err := client.AppendMessage(ctx, &api.AppendMessageRequest{ConversationID: convID, Author: api.AuthorCompanion, Content: text})
		require.NoError(t, err)
	}

	total, err := client.UnreadTotal(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total.Total)

	matches, err := client.ListMatches(ctx, &api.Empty{})
	require.NoError(t, err)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, int64(3), matches.Matches[0].UnreadCount)
	assert.Equal(t, "third", matches.Matches[0].LastMessage)

	msgs, err := client.ListMessages(ctx, &api.ListMessagesRequest{ConversationID: convID})
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 3)
	assert.Equal(t, "first", msgs.Messages[0].Content)
	assert.Equal(t, "third", msgs.Messages[2].Content)
	assert.True(t, msgs.Messages[0].FromCompanion())

	read, err := client.MarkCompanionMessagesRead(ctx, &api.MarkReadRequest{ConversationID: convID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), read.Updated)
	again, err := client.MarkCompanionMessagesRead(ctx, &api.MarkReadRequest{ConversationID: convID})
	require.NoError(t, err)
	assert.Zero(t, again.Updated)

	total, err = client.UnreadTotal(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Zero(t, total.Total, "mark-read invalidates the cached badge")

	// the user's own message lands last and is read
	sent, err := client.AppendMessage(ctx, &api.AppendMessageRequest{ConversationID: convID, Author: api.AuthorUser, Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", sent.Message.Content)
	assert.Equal(t, "u1", sent.Message.SenderID)
	assert.True(t, sent.Message.IsRead)

	msgs, err = client.ListMessages(ctx, &api.ListMessagesRequest{ConversationID: convID})
	require.NoError(t, err)
	assert.Equal(t, sent.Message.ID, msgs.Messages[len(msgs.Messages)-1].ID)
}

func TestUnreadTotal_CacheFirst(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	require.NoError(t, env.App.RedisCache.UpdateUnreadTotal(context.Background(), "u1", 7))
	total, err := client.UnreadTotal(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total.Total, "served from cache")

	env.Redis.FlushAll()
	total, err = client.UnreadTotal(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Zero(t, total.Total)
	assert.True(t, env.Redis.Exists("unread:total:u1"), "miss repopulates the cache")
}

func TestConversationOwnership(t *testing.T) {
	env, client := setupService(t)
	owner := env.AuthCtx(t, "u1")
	intruder := env.AuthCtx(t, "u2")

	_, err := client.RecordSwipe(owner, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: api.DecisionLike})
	require.NoError(t, err)
	started, err := client.StartConversation(owner, &api.StartConversationRequest{CompanionID: "c-high"})
	require.NoError(t, err)

	_, err = client.ListMessages(intruder, &api.ListMessagesRequest{ConversationID: started.Conversation.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = client.AppendMessage(intruder, &api.AppendMessageRequest{ConversationID: started.Conversation.ID, Author: api.AuthorUser, Content: "hi"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDeactivateMatch(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	resp, err := client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c-high", Decision: api.DecisionLike})
	require.NoError(t, err)

	_, err = client.DeactivateMatch(ctx, &api.DeactivateMatchRequest{MatchID: resp.Match.ID})
	require.NoError(t, err)
	_, err = client.DeactivateMatch(ctx, &api.DeactivateMatchRequest{MatchID: resp.Match.ID})
	require.NoError(t, err)

	matches, err := client.ListMatches(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Empty(t, matches.Matches)
}

func TestProfileLifecycle(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	_, err := client.GetProfile(ctx, &api.Empty{})
	assert.Equal(t, codes.NotFound, status.Code(err), "missing profile means needs provisioning")

	var wg sync.WaitGroup
	created := make([]bool, 2)
	for i := range created {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.EnsureProfile(ctx, &api.EnsureProfileRequest{})
			if assert.NoError(t, err) {
				created[i] = resp.Created
			}
		}(i)
	}
	wg.Wait()
	assert.NotEqual(t, created[0], created[1], "exactly one call provisions")

	p, err := client.GetProfile(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "u1", p.DisplayName, "falls back to the email local part")
	assert.Equal(t, 18, p.Preferences.AgeRangeMin)

	_, err = client.UpdatePreferences(ctx, &api.UpdatePreferencesRequest{Preferences: api.Preferences{AgeRangeMin: 40, AgeRangeMax: 30}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.UpdatePreferences(ctx, &api.UpdatePreferencesRequest{Preferences: api.Preferences{
		AgeRangeMin:        25,
		AgeRangeMax:        30,
		PreferredInterests: []string{"jazz"},
	}})
	require.NoError(t, err)
	_, err = client.TouchLastActive(ctx, &api.Empty{})
	require.NoError(t, err)

	p, err = client.GetProfile(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 25, p.Preferences.AgeRangeMin)
	assert.Equal(t, []string{"jazz"}, p.Preferences.PreferredInterests)
	assert.NotNil(t, p.LastActiveAt)
}

func TestMediaUploadReplaceDelete(t *testing.T) {
	env, client := setupService(t)
	ctx := env.AuthCtx(t, "u1")

	_, err := client.EnsureProfile(ctx, &api.EnsureProfileRequest{DisplayNameHint: "Ada"})
	require.NoError(t, err)

	_, err = client.UploadMedia(ctx, &api.UploadMediaRequest{Kind: api.MediaAvatar, FileName: "a.pdf", ContentType: "application/pdf", Data: []byte{1}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	first, err := client.UploadMedia(ctx, &api.UploadMediaRequest{Kind: api.MediaAvatar, FileName: "a.png", ContentType: "image/png", Data: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/storage/v1/object/public/profile-pics/"+first.Key, first.PublicURL)
	_, ok := env.Store.Get(first.Key)
	assert.True(t, ok)

	second, err := client.UploadMedia(ctx, &api.UploadMediaRequest{Kind: api.MediaAvatar, FileName: "b.png", ContentType: "image/png", Data: []byte{3}})
	require.NoError(t, err)
	_, ok = env.Store.Get(first.Key)
	assert.False(t, ok, "previous avatar removed")

	banner, err := client.UploadMedia(ctx, &api.UploadMediaRequest{Kind: api.MediaBanner, FileName: "wide.jpg", ContentType: "image/jpeg", Data: []byte{4}})
	require.NoError(t, err)
	assert.Contains(t, banner.Key, "u1/banner/")

	p, err := client.GetProfile(ctx, &api.Empty{})
	require.NoError(t, err)
	assert.Equal(t, second.Key, p.AvatarKey)
	assert.Equal(t, banner.Key, p.BannerKey)
	assert.NotZero(t, p.MediaVersion)

	_, err = client.DeleteMedia(ctx, &api.DeleteMediaRequest{Kind: api.MediaAvatar})
	require.NoError(t, err)
	_, err = client.DeleteMedia(ctx, &api.DeleteMediaRequest{Kind: api.MediaAvatar})
	require.NoError(t, err, "deleting missing media is a no-op")
	assert.Equal(t, 1, env.Store.Len())
}
