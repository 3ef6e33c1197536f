package chat_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/chat"
	"github.com/oggyb/companion/internal/gateway"
	"github.com/oggyb/companion/internal/gateway/gatewaytest"
	"github.com/oggyb/companion/internal/listing"
	"github.com/oggyb/companion/internal/reply"
)

var aria = api.Companion{ID: "c1", Name: "Aria", Personality: "Curious"}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type harness struct {
	fake    *gatewaytest.Fake
	store   *listing.Store
	sched   *chat.Scheduler
	flow    *chat.Flow
	convID  string
	matchID string
}

func newHarness(t *testing.T, delay time.Duration) *harness {
	t.Helper()
	f := gatewaytest.New()
	m := f.AddMatch(aria, time.Now())
	conv, err := f.StartConversation(context.Background(), aria.ID)
	require.NoError(t, err)

	store := listing.New(f, discard())
	sched := chat.NewScheduler()
	t.Cleanup(sched.Close)

	flow := chat.New(f, reply.NewCanned(delay, delay, nil), store, sched, discard())
	return &harness{fake: f, store: store, sched: sched, flow: flow, convID: conv.ID, matchID: m.MatchID}
}

func contents(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestOpen_UnreadGoesToZeroOldestFirst(t *testing.T) {
	h := newHarness(t, 0)
	for _, text := range []string{"one", "two", "three"} {
		h.fake.AddCompanionMessage(h.convID, text)
	}
	require.NoError(t, h.store.Refresh(context.Background()))
	require.Equal(t, int64(3), h.store.UnreadTotal())

	require.NoError(t, h.flow.Open(context.Background(), h.convID, aria))
	assert.Zero(t, h.store.UnreadTotal(), "badge cleared without waiting for the server")
	assert.Equal(t, []string{"one", "two", "three"}, contents(h.flow.Transcript()))

	h.sched.Wait()
	total, err := h.fake.UnreadTotal(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSend_ServerFirstThenReply(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.flow.Open(context.Background(), h.convID, aria))

	sent, err := h.flow.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, "hello", sent.Content)

	h.sched.Wait()
	got := <-h.flow.Incoming()
	assert.True(t, got.FromCompanion())
	assert.Contains(t, reply.Responses(), got.Content)

	transcript := h.flow.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, sent.ID, transcript[0].ID)
	assert.Equal(t, got.ID, transcript[1].ID)

	// what the server holds matches what is rendered
	stored, err := h.fake.ListMessages(context.Background(), h.convID)
	require.NoError(t, err)
	assert.Equal(t, contents(stored), contents(transcript))
}

func TestSend_FailureLeavesTranscriptAndNotifies(t *testing.T) {
	h := newHarness(t, 0)
	h.fake.AddCompanionMessage(h.convID, "hey")
	require.NoError(t, h.flow.Open(context.Background(), h.convID, aria))

	h.fake.Fail("AppendMessage", gateway.ErrUnavailable)
	_, err := h.flow.Send(context.Background(), "are you there?")
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Equal(t, []string{"hey"}, contents(h.flow.Transcript()))

	n := <-h.flow.Notices()
	assert.Equal(t, "send message", n.Op)
	assert.ErrorIs(t, n.Err, gateway.ErrUnavailable)
}

func TestSend_EmptyRejectedBeforeCall(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.flow.Open(context.Background(), h.convID, aria))

	_, err := h.flow.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, gateway.ErrValidation)
	assert.Zero(t, h.fake.Calls("AppendMessage"))
	assert.Empty(t, h.flow.Transcript())
}

func TestSend_NoConversation(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.flow.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, chat.ErrNoConversation)
}

func TestOpen_StaleHistoryIsDropped(t *testing.T) {
	h := newHarness(t, 0)
	h.fake.AddCompanionMessage(h.convID, "old news")

	release := h.fake.Hold("ListMessages")
	done := make(chan error, 1)
	go func() { done <- h.flow.Open(context.Background(), h.convID, aria) }()
	require.Eventually(t, func() bool { return h.fake.Calls("ListMessages") == 1 }, time.Second, time.Millisecond)

	h.flow.Close()
	release()
	require.NoError(t, <-done)

	assert.Empty(t, h.flow.Transcript())
	assert.Empty(t, h.flow.ConversationID())
	assert.Zero(t, h.fake.Calls("MarkCompanionMessagesRead"), "stale open does not mark read")
}

func TestReply_AfterLeavingIsWrittenButNotRendered(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond)
	require.NoError(t, h.flow.Open(context.Background(), h.convID, aria))

	_, err := h.flow.Send(context.Background(), "bye")
	require.NoError(t, err)
	h.flow.Close()
	h.sched.Wait()

	assert.Empty(t, h.flow.Transcript())
	assert.Empty(t, h.flow.Incoming())

	stored, err := h.fake.ListMessages(context.Background(), h.convID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[1].FromCompanion())
}

// replyFails rejects companion-authored writes only.
type replyFails struct {
	*gatewaytest.Fake
}

func (r replyFails) AppendMessage(ctx context.Context, conversationID, author, content string) (api.Message, error) {
	if author == api.AuthorCompanion {
		return api.Message{}, gateway.ErrUnavailable
	}
	return r.Fake.AppendMessage(ctx, conversationID, author, content)
}

func TestReply_DeliveryFailureNotifies(t *testing.T) {
	h := newHarness(t, 0)
	flow := chat.New(replyFails{h.fake}, reply.NewCanned(0, 0, nil), nil, h.sched, discard())
	require.NoError(t, flow.Open(context.Background(), h.convID, aria))

	_, err := flow.Send(context.Background(), "hello")
	require.NoError(t, err)
	h.sched.Wait()

	n := <-flow.Notices()
	assert.Equal(t, "deliver reply", n.Op)
	assert.ErrorIs(t, n.Err, gateway.ErrUnavailable)
	assert.Equal(t, []string{"hello"}, contents(flow.Transcript()))
}

func TestOpen_MarkReadFailureRestoresUnread(t *testing.T) {
	h := newHarness(t, 0)
	for _, text := range []string{"one", "two", "three"} {
		h.fake.AddCompanionMessage(h.convID, text)
	}
	require.NoError(t, h.store.Refresh(context.Background()))

	h.fake.Fail("MarkCompanionMessagesRead", gateway.ErrUnavailable)
	require.NoError(t, h.flow.Open(context.Background(), h.convID, aria))
	h.sched.Wait()

	n := <-h.flow.Notices()
	assert.Equal(t, "mark read", n.Op)

	fresh, err := h.fake.UnreadTotal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh)
	assert.Equal(t, fresh, h.store.UnreadTotal(), "badge agrees with the server")
}

func TestOpen_LoadFailureRestoresUnread(t *testing.T) {
	h := newHarness(t, 0)
	h.fake.AddCompanionMessage(h.convID, "hello?")
	require.NoError(t, h.store.Refresh(context.Background()))

	h.fake.Fail("ListMessages", gateway.ErrUnavailable)
	err := h.flow.Open(context.Background(), h.convID, aria)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	assert.Equal(t, int64(1), h.store.UnreadTotal())
	assert.Zero(t, h.fake.Calls("MarkCompanionMessagesRead"))
}

// slowReplies writes companion messages immediately but holds the response
// until gate is closed.
type slowReplies struct {
	*gatewaytest.Fake
	gate    chan struct{}
	written chan struct{}
}

func (s slowReplies) AppendMessage(ctx context.Context, conversationID, author, content string) (api.Message, error) {
	msg, err := s.Fake.AppendMessage(ctx, conversationID, author, content)
	if author == api.AuthorCompanion {
		select {
		case s.written <- struct{}{}:
		default:
		}
		<-s.gate
	}
	return msg, err
}

func TestTranscriptKeepsServerOrderWhenResponsesArriveLate(t *testing.T) {
	h := newHarness(t, 0)
	slow := slowReplies{Fake: h.fake, gate: make(chan struct{}), written: make(chan struct{}, 4)}
	flow := chat.New(slow, reply.NewCanned(0, 0, nil), h.store, h.sched, discard())
	require.NoError(t, flow.Open(context.Background(), h.convID, aria))

	first, err := flow.Send(context.Background(), "first")
	require.NoError(t, err)
	<-slow.written // the reply to "first" is stored but not yet returned

	second, err := flow.Send(context.Background(), "second")
	require.NoError(t, err)

	close(slow.gate)
	h.sched.Wait()

	stored, err := h.fake.ListMessages(context.Background(), h.convID)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, first.ID, stored[0].ID)
	assert.True(t, stored[1].FromCompanion())
	assert.Equal(t, second.ID, stored[2].ID)

	got := flow.Transcript()
	require.Len(t, got, 4)
	for i := range stored {
		assert.Equal(t, stored[i].ID, got[i].ID, "position %d", i)
	}
}
