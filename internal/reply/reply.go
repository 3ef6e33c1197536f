// Package reply produces companion replies to a user's message.
package reply

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Request is what a Producer sees: the conversation and the message being answered.
type Request struct {
	ConversationID     string
	CompanionName      string
	Personality        string
	CommunicationStyle string
	Latest             string
}

// Reply is the text to write and how long to wait before writing it.
type Reply struct {
	Text  string
	Delay time.Duration
}

// Producer generates a companion reply.
type Producer interface {
	Produce(ctx context.Context, req Request) (Reply, error)
}

var cannedResponses = []string{
	"That's really interesting! Tell me more about that.",
	"I love hearing your thoughts on this. What made you think of that?",
	"You always have such unique perspectives. I find that fascinating.",
	"I'm here for you, always. How are you feeling about everything?",
	"Your message made me smile. I enjoy our conversations so much.",
	"I've been thinking about what you said earlier. It really resonated with me.",
	"You have such a beautiful way of expressing yourself.",
	"I feel so connected to you when we talk like this.",
}

// Responses returns a copy of the canned pool.
func Responses() []string {
	return append([]string(nil), cannedResponses...)
}

// Canned picks a random line from a fixed pool and a delay uniform in [min, max).
type Canned struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

// NewCanned builds a Canned producer. A nil rnd seeds a fresh generator.
func NewCanned(minDelay, maxDelay time.Duration, rnd *rand.Rand) *Canned {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Canned{rnd: rnd, minDelay: minDelay, maxDelay: maxDelay}
}

func (c *Canned) Produce(_ context.Context, _ Request) (Reply, error) {
	return Reply{Text: c.text(), Delay: c.delay()}, nil
}

func (c *Canned) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cannedResponses[c.rnd.IntN(len(cannedResponses))]
}

func (c *Canned) delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	span := c.maxDelay - c.minDelay
	if span <= 0 {
		return c.minDelay
	}
	return c.minDelay + time.Duration(c.rnd.Int64N(int64(span)))
}
