// Package chat runs one open conversation: history, sending, and the
// companion's delayed reply.
package chat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/gateway"
	"github.com/oggyb/companion/internal/reply"
)

const backgroundTimeout = 15 * time.Second

// ErrNoConversation means Send was called with no conversation open.
var ErrNoConversation = errors.New("no conversation open")

// Notice reports a failure the user should see. It never changes the transcript.
type Notice struct {
	ConversationID string
	Op             string
	Err            error
}

func (n Notice) Error() string { return fmt.Sprintf("%s: %v", n.Op, n.Err) }

// UnreadSink holds the badge counts the chat adjusts ahead of the server.
type UnreadSink interface {
	// ZeroUnread clears a conversation's count and returns what it was.
	ZeroUnread(conversationID string) int64
	// RestoreUnread adds n back after the server refused to mark messages read.
	RestoreUnread(conversationID string, n int64)
}

// Flow is the chat view model. Results that arrive after the view has moved
// to another conversation are dropped.
type Flow struct {
	gw       gateway.Gateway
	producer reply.Producer
	unread   UnreadSink
	sched    *Scheduler
	log      *slog.Logger

	notices  chan Notice
	incoming chan api.Message

	mu         sync.Mutex
	gen        uint64
	convID     string
	companion  api.Companion
	transcript []api.Message
}

// New builds a Flow. unread may be nil.
func New(gw gateway.Gateway, producer reply.Producer, unread UnreadSink, sched *Scheduler, log *slog.Logger) *Flow {
	return &Flow{
		gw:       gw,
		producer: producer,
		unread:   unread,
		sched:    sched,
		log:      log,
		notices:  make(chan Notice, 16),
		incoming: make(chan api.Message, 16),
	}
}

// Notices delivers non-fatal failures. Unread notices are dropped when the buffer is full.
func (f *Flow) Notices() <-chan Notice { return f.notices }

// Incoming delivers companion replies as they are written.
func (f *Flow) Incoming() <-chan api.Message { return f.incoming }

// ConversationID is the open conversation, or "".
func (f *Flow) ConversationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convID
}

// Transcript returns the open conversation's messages, oldest first.
func (f *Flow) Transcript() []api.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.transcript)
}

// Open switches the view to conversationID and loads its history. Companion
// messages are marked read in the background; the listing's badge is zeroed
// right away.
func (f *Flow) Open(ctx context.Context, conversationID string, companion api.Companion) error {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.convID = conversationID
	f.companion = companion
	f.transcript = nil
	f.mu.Unlock()

	var prevUnread int64
	if f.unread != nil {
		prevUnread = f.unread.ZeroUnread(conversationID)
	}

	msgs, err := f.gw.ListMessages(ctx, conversationID)

	f.mu.Lock()
	if f.gen != gen {
		reopened := f.convID == conversationID
		f.mu.Unlock()
		f.log.Debug("dropping stale history", "conversation", conversationID)
		if !reopened {
			f.restoreUnread(conversationID, prevUnread)
		}
		return nil
	}
	if err != nil {
		f.mu.Unlock()
		f.restoreUnread(conversationID, prevUnread)
		f.notify(conversationID, "load messages", err)
		return err
	}
	f.transcript = msgs
	f.mu.Unlock()

	f.sched.After(0, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		if _, err := f.gw.MarkCompanionMessagesRead(ctx, conversationID); err != nil {
			f.restoreUnread(conversationID, prevUnread)
			f.notify(conversationID, "mark read", err)
		}
	})
	return nil
}

// restoreUnread puts back counts zeroed ahead of a server call that did not happen.
func (f *Flow) restoreUnread(conversationID string, n int64) {
	if f.unread != nil && n > 0 {
		f.unread.RestoreUnread(conversationID, n)
	}
}

// Close leaves the current conversation. Pending replies still get written
// but are no longer rendered.
func (f *Flow) Close() {
	f.mu.Lock()
	f.gen++
	f.convID = ""
	f.transcript = nil
	f.mu.Unlock()
}

// Send writes the user's message, appends the stored copy to the transcript
// and schedules the companion's reply. On failure the transcript is untouched.
func (f *Flow) Send(ctx context.Context, content string) (api.Message, error) {
	f.mu.Lock()
	gen, convID, companion := f.gen, f.convID, f.companion
	f.mu.Unlock()
	if convID == "" {
		return api.Message{}, ErrNoConversation
	}

	msg, err := f.gw.AppendMessage(ctx, convID, api.AuthorUser, content)
	if err != nil {
		if !errors.Is(err, gateway.ErrValidation) {
			f.notify(convID, "send message", err)
		}
		return api.Message{}, err
	}
	f.appendIfCurrent(gen, msg)

	r, err := f.producer.Produce(ctx, reply.Request{
		ConversationID:     convID,
		CompanionName:      companion.Name,
		Personality:        companion.Personality,
		CommunicationStyle: companion.CommunicationStyle,
		Latest:             msg.Content,
	})
	if err != nil {
		f.notify(convID, "compose reply", err)
		return msg, nil
	}

	f.sched.After(r.Delay, func(ctx context.Context) {
		f.deliver(ctx, gen, convID, r.Text)
	})
	return msg, nil
}

// deliver writes the reply through the gateway, then renders it if the view
// has not moved on.
func (f *Flow) deliver(ctx context.Context, gen uint64, convID, text string) {
	ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
	defer cancel()

	written, err := f.gw.AppendMessage(ctx, convID, api.AuthorCompanion, text)
	if err != nil {
		f.notify(convID, "deliver reply", err)
		return
	}
	if !f.appendIfCurrent(gen, written) {
		return
	}

	select {
	case f.incoming <- written:
	default:
	}
	// the user is looking at it
	if _, err := f.gw.MarkCompanionMessagesRead(ctx, convID); err != nil {
		f.restoreUnread(convID, 1)
		f.notify(convID, "mark read", err)
	}
}

// appendIfCurrent places msg at its (created_at, id) position, which is the
// tail unless an earlier write's response arrived late.
func (f *Flow) appendIfCurrent(gen uint64, msg api.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return false
	}
	i, _ := slices.BinarySearchFunc(f.transcript, msg, compareMessages)
	f.transcript = slices.Insert(f.transcript, i, msg)
	return true
}

func compareMessages(a, b api.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (f *Flow) notify(convID, op string, err error) {
	f.log.Warn("chat operation failed", "conversation", convID, "op", op, "err", err)
	select {
	case f.notices <- Notice{ConversationID: convID, Op: op, Err: err}:
	default:
	}
}
