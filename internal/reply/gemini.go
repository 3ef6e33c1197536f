package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"google.golang.org/api/option"
)

var errEmptyCompletion = errors.New("no content generated")

// Generator is the part of *genai.GenerativeModel the Gemini producer uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini writes replies in the companion's voice with a Gemini model.
// Calls go through a circuit breaker; any failure falls back to canned text
// so the conversation never stalls on the model.
type Gemini struct {
	model    Generator
	client   *genai.Client
	fallback *Canned
	cb       *gobreaker.CircuitBreaker
	log      *slog.Logger
}

// NewGemini opens a Gemini client for modelName.
func NewGemini(ctx context.Context, apiKey, modelName string, fallback *Canned, log *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.9)

	g := NewGeminiWithModel(model, fallback, log)
	g.client = client
	return g, nil
}

// NewGeminiWithModel wraps an existing Generator.
func NewGeminiWithModel(model Generator, fallback *Canned, log *slog.Logger) *Gemini {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("reply circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Gemini{model: model, fallback: fallback, cb: cb, log: log}
}

// Close releases the underlying client, if any.
func (g *Gemini) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// State reports the breaker state.
func (g *Gemini) State() gobreaker.State { return g.cb.State() }

func (g *Gemini) Produce(ctx context.Context, req Request) (Reply, error) {
	out, err := g.cb.Execute(func() (any, error) {
		return g.generate(ctx, req)
	})
	if err != nil {
		g.log.Warn("gemini unavailable, using canned reply", "conversation", req.ConversationID, "err", err)
		return g.fallback.Produce(ctx, req)
	}
	return Reply{Text: out.(string), Delay: g.fallback.delay()}, nil
}

func (g *Gemini) generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt(req)))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func prompt(req Request) string {
	return fmt.Sprintf(`
		You are %s, a companion in a chat app.
		Personality: %s
		Communication style: %s

		Reply to the user's latest message in one to three warm sentences.
		Stay in character. Output only the reply text.

		User: %s
	`, req.CompanionName, req.Personality, req.CommunicationStyle, req.Latest)
}
