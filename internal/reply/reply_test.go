package reply_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/companion/internal/reply"
)

type fakeModel struct {
	calls int
	text  string
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, _ ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(f.text)}}}},
	}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCanned_PoolAndDelayBounds(t *testing.T) {
	c := reply.NewCanned(time.Second, 3*time.Second, rand.New(rand.NewPCG(1, 2)))
	pool := reply.Responses()
	require.Len(t, pool, 8)

	for range 200 {
		r, err := c.Produce(context.Background(), reply.Request{Latest: "hi"})
		require.NoError(t, err)
		assert.Contains(t, pool, r.Text)
		assert.GreaterOrEqual(t, r.Delay, time.Second)
		assert.Less(t, r.Delay, 3*time.Second)
	}
}

func TestCanned_FixedDelay(t *testing.T) {
	c := reply.NewCanned(time.Millisecond, 0, nil)
	r, err := c.Produce(context.Background(), reply.Request{})
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, r.Delay)
}

func TestGemini_UsesModelText(t *testing.T) {
	model := &fakeModel{text: "  Hello there!  "}
	g := reply.NewGeminiWithModel(model, reply.NewCanned(0, 0, nil), discard())

	r, err := g.Produce(context.Background(), reply.Request{CompanionName: "Aria", Latest: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", r.Text)
}

func TestGemini_FallsBackAndTrips(t *testing.T) {
	model := &fakeModel{err: errors.New("quota exceeded")}
	g := reply.NewGeminiWithModel(model, reply.NewCanned(0, 0, nil), discard())

	for range 5 {
		r, err := g.Produce(context.Background(), reply.Request{Latest: "hi"})
		require.NoError(t, err)
		assert.Contains(t, reply.Responses(), r.Text)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())
	assert.Equal(t, 3, model.calls, "open breaker stops calling the model")
}

func TestGemini_EmptyCompletionFallsBack(t *testing.T) {
	g := reply.NewGeminiWithModel(&fakeModel{text: "   "}, reply.NewCanned(0, 0, nil), discard())
	r, err := g.Produce(context.Background(), reply.Request{})
	require.NoError(t, err)
	assert.Contains(t, reply.Responses(), r.Text)
}
