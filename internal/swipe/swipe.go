// Package swipe drives the candidate deck: one companion at a time, one
// decision in flight, with the match result reported in the same step.
package swipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/gateway"
)

var (
	// ErrDecisionInFlight means a decision for the current candidate is still being submitted.
	ErrDecisionInFlight = errors.New("decision already in flight")
	// ErrNotReady means there is no candidate to decide on.
	ErrNotReady = errors.New("no candidate ready")
)

// State is the phase of the swipe flow.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateDeciding  State = "deciding"
	StateExhausted State = "exhausted"
)

// Direction is the gesture that produced a decision.
type Direction int

const (
	Left Direction = iota
	Right
	Up
)

// Decision maps a gesture to its decision: right likes, up super-likes, left passes.
func (d Direction) Decision() string {
	switch d {
	case Right:
		return api.DecisionLike
	case Up:
		return api.DecisionSuperLike
	default:
		return api.DecisionPass
	}
}

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Up:
		return "up"
	default:
		return "left"
	}
}

// Outcome is the result of one decision.
type Outcome struct {
	Companion api.Companion
	Decision  string
	Matched   bool
	Match     *api.Match
}

// Flow is the swipe state machine:
//
//	Loading → Ready(i) → Deciding → Ready(i+1) | Exhausted
//
// Running out of candidates triggers one refetch; an empty refetch is terminal.
type Flow struct {
	gw     gateway.Gateway
	filter gateway.CandidateFilter
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	deck     []api.Companion
	pos      int
	inflight string
	outcomes chan Outcome
}

// New returns an idle Flow. Call Load to fetch the first deck.
func New(gw gateway.Gateway, filter gateway.CandidateFilter, log *slog.Logger) *Flow {
	return &Flow{
		gw:       gw,
		filter:   filter,
		log:      log,
		state:    StateIdle,
		outcomes: make(chan Outcome, 16),
	}
}

// Outcomes publishes every successful decision. Slow readers miss outcomes
// rather than stall the flow.
func (f *Flow) Outcomes() <-chan Outcome { return f.outcomes }

// State reports the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Current returns the candidate on top of the deck.
func (f *Flow) Current() (api.Companion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateReady && f.state != StateDeciding {
		return api.Companion{}, false
	}
	return f.deck[f.pos], true
}

// Remaining is the number of undecided candidates in the loaded page.
func (f *Flow) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.deck) {
		return 0
	}
	return len(f.deck) - f.pos
}

// Load fetches a fresh page of candidates. An empty page is Exhausted.
func (f *Flow) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateDeciding || f.state == StateLoading {
		f.mu.Unlock()
		return ErrDecisionInFlight
	}
	prev := f.state
	f.state = StateLoading
	f.mu.Unlock()

	deck, err := f.gw.ListCandidateCompanions(ctx, f.filter)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = prev
		return fmt.Errorf("load candidates: %w", err)
	}
	f.install(deck)
	return nil
}

// install replaces the deck. Caller holds mu.
func (f *Flow) install(deck []api.Companion) {
	f.deck = deck
	f.pos = 0
	if len(deck) == 0 {
		f.state = StateExhausted
		return
	}
	f.state = StateReady
}

// Swipe decides on the current candidate by gesture.
func (f *Flow) Swipe(ctx context.Context, dir Direction) (Outcome, error) {
	return f.Decide(ctx, dir.Decision())
}

// Decide submits a decision for the current candidate.
//
// Behavior:
//   - A second call while one is in flight returns ErrDecisionInFlight and sends nothing.
//   - On failure the flow stays Ready on the same candidate.
//   - A decision the server already holds advances past the candidate.
//   - Deciding on the last candidate refetches once.
func (f *Flow) Decide(ctx context.Context, decision string) (Outcome, error) {
	f.mu.Lock()
	switch f.state {
	case StateDeciding, StateLoading:
		f.mu.Unlock()
		return Outcome{}, ErrDecisionInFlight
	case StateReady:
	default:
		f.mu.Unlock()
		return Outcome{}, ErrNotReady
	}
	cand := f.deck[f.pos]
	if f.inflight == cand.ID {
		f.mu.Unlock()
		return Outcome{}, ErrDecisionInFlight
	}
	f.inflight = cand.ID
	f.state = StateDeciding
	f.mu.Unlock()

	f.log.Debug("submitting decision", "companion", cand.ID, "decision", decision)
	res, err := f.gw.RecordSwipeDecision(ctx, cand.ID, decision)

	f.mu.Lock()
	f.inflight = ""
	if err != nil && !errors.Is(err, gateway.ErrAlreadyDecided) {
		f.state = StateReady
		f.mu.Unlock()
		return Outcome{}, err
	}

	out := Outcome{Companion: cand, Decision: decision}
	if err == nil {
		out.Matched = res.IsMatch
		out.Match = res.Match
	}

	f.pos++
	needRefill := f.pos >= len(f.deck)
	if needRefill {
		f.state = StateLoading
	} else {
		f.state = StateReady
	}
	f.mu.Unlock()

	if err != nil {
		f.log.Warn("decision already recorded, skipping candidate", "companion", cand.ID)
	} else {
		f.publish(out)
	}
	if needRefill {
		f.refill(ctx)
	}
	return out, err
}

// refill re-queries once after the deck runs out. Nothing comes back → Exhausted.
func (f *Flow) refill(ctx context.Context) {
	deck, err := f.gw.ListCandidateCompanions(ctx, f.filter)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.log.Warn("candidate refetch failed", "err", err)
		f.deck = nil
		f.pos = 0
		f.state = StateExhausted
		return
	}
	f.install(deck)
}

func (f *Flow) publish(out Outcome) {
	select {
	case f.outcomes <- out:
	default:
	}
}
