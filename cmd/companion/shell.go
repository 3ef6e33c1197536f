package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/chat"
	"github.com/oggyb/companion/internal/gateway"
	"github.com/oggyb/companion/internal/listing"
	"github.com/oggyb/companion/internal/session"
	"github.com/oggyb/companion/internal/swipe"
)

const commandTimeout = 30 * time.Second

const helpText = `Commands:
  signup <email> <password> [full name]   create an account
  signin <email> <password>               sign in
  signout                                 sign out
  whoami                                  show the signed-in user
  deck [min-age max-age]                  load candidates
  left | right | up                       pass, like or super-like the current candidate
  matches [recent|compatibility|unread] [query]
  unmatch <n>                             remove match n from the last listing
  open <n>                                open the chat for match n
  send <text>                             send a message in the open chat
  leave                                   close the open chat
  conversations                           list conversations
  unread                                  total unread messages
  profile                                 show your profile
  prefs <min-age> <max-age>               update the preferred age range
  avatar <file> | banner <file>           upload an image
  rm-avatar | rm-banner                   delete an image
  quit`

// shell is a line-oriented front end over the client flows.
type shell struct {
	out   io.Writer
	outMu sync.Mutex
	log   *slog.Logger

	sess  *session.Context
	gw    gateway.Gateway
	store *listing.Store
	chat  *chat.Flow

	deck *swipe.Flow
	view []api.MatchSummary
}

func (s *shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// watch prints chat notices, companion replies and auth changes as they happen.
func (s *shell) watch(ctx context.Context) {
	events, cancel := s.sess.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.chat.Notices():
			s.printf("! %v\n", n)
		case m := <-s.chat.Incoming():
			s.printf("< %s\n", m.Content)
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.onAuthEvent(ctx, ev)
		}
	}
}

func (s *shell) onAuthEvent(ctx context.Context, ev session.Event) {
	if ev.Identity == nil {
		s.chat.Close()
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.gw.TouchLastActive(ctx); err != nil {
		s.log.Debug("touch last active failed", "err", err)
	}
}

func (s *shell) greet(ctx context.Context) {
	if id, ok := s.sess.Identity(); ok {
		s.printf("Signed in as %s.\n", id.Email)
		s.refreshUnread(ctx)
	} else {
		s.printf("Not signed in. Type 'help' for commands.\n")
	}
}

func (s *shell) run(ctx context.Context, in *bufio.Scanner) {
	for {
		s.printf("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		if cmd == "quit" || cmd == "exit" {
			return
		}

		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		err := s.dispatch(cctx, cmd, strings.TrimSpace(rest))
		cancel()
		if err != nil {
			s.printf("error: %s\n", describe(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *shell) dispatch(ctx context.Context, cmd, rest string) error {
	args := strings.Fields(rest)
	switch cmd {
	case "help":
		s.printf("%s\n", helpText)
		return nil
	case "signup":
		if len(args) < 2 {
			return usage("signup <email> <password> [full name]")
		}
		id, err := s.sess.SignUp(ctx, args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		s.printf("Welcome, %s.\n", displayName(id))
		return nil
	case "signin":
		if len(args) != 2 {
			return usage("signin <email> <password>")
		}
		id, err := s.sess.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		s.printf("Signed in as %s.\n", id.Email)
		s.refreshUnread(ctx)
		return nil
	case "signout":
		if err := s.sess.SignOut(ctx); err != nil {
			return err
		}
		s.deck, s.view = nil, nil
		s.printf("Signed out.\n")
		return nil
	case "whoami":
		id, ok := s.sess.Identity()
		if !ok {
			return gateway.ErrAuthRequired
		}
		s.printf("%s <%s> (%s)\n", displayName(id), id.Email, id.UserID)
		return nil
	case "deck":
		return s.loadDeck(ctx, args)
	case "left":
		return s.swipe(ctx, swipe.Left)
	case "right":
		return s.swipe(ctx, swipe.Right)
	case "up":
		return s.swipe(ctx, swipe.Up)
	case "matches":
		return s.matches(ctx, args)
	case "unmatch":
		entry, err := s.pick(args)
		if err != nil {
			return err
		}
		if err := s.store.Deactivate(ctx, entry.MatchID); err != nil {
			return err
		}
		s.printf("Removed %s.\n", entry.Companion.Name)
		s.view = nil
		return nil
	case "open":
		return s.open(ctx, args)
	case "send":
		msg, err := s.chat.Send(ctx, rest)
		if err != nil {
			return err
		}
		s.printf("> %s\n", msg.Content)
		return nil
	case "leave":
		s.chat.Close()
		return nil
	case "conversations":
		return s.conversations(ctx)
	case "unread":
		total, err := s.gw.UnreadTotal(ctx)
		if err != nil {
			return err
		}
		s.printf("%d unread\n", total)
		return nil
	case "profile":
		return s.profile(ctx)
	case "prefs":
		return s.prefs(ctx, args)
	case "avatar", "banner":
		if len(args) != 1 {
			return usage(cmd + " <file>")
		}
		return s.upload(ctx, cmd == "banner", args[0])
	case "rm-avatar":
		return s.gw.DeleteAvatar(ctx)
	case "rm-banner":
		return s.gw.DeleteBanner(ctx)
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func (s *shell) loadDeck(ctx context.Context, args []string) error {
	var filter gateway.CandidateFilter
	if len(args) == 2 {
		lo, err1 := strconv.Atoi(args[0])
		hi, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return usage("deck [min-age max-age]")
		}
		filter.MinAge, filter.MaxAge = lo, hi
	} else if p, err := s.gw.GetProfile(ctx); err == nil {
		filter.MinAge, filter.MaxAge = p.Preferences.AgeRangeMin, p.Preferences.AgeRangeMax
	}

	s.deck = swipe.New(s.gw, filter, s.log)
	if err := s.deck.Load(ctx); err != nil {
		return err
	}
	s.showCandidate()
	return nil
}

func (s *shell) swipe(ctx context.Context, dir swipe.Direction) error {
	if s.deck == nil {
		return errors.New("no deck loaded, run 'deck' first")
	}
	out, err := s.deck.Swipe(ctx, dir)
	switch {
	case errors.Is(err, gateway.ErrAlreadyDecided):
		s.printf("Already decided on %s.\n", out.Companion.Name)
	case err != nil:
		return err
	case out.Matched:
		s.printf("It's a match with %s!\n", out.Companion.Name)
	default:
		s.printf("%s: %s\n", dir, out.Companion.Name)
	}
	s.showCandidate()
	return nil
}

func (s *shell) showCandidate() {
	c, ok := s.deck.Current()
	if !ok {
		s.printf("No more companions right now.\n")
		return
	}
	score := "unscored"
	if c.CompatibilityScore != nil {
		score = fmt.Sprintf("%.0f%%", *c.CompatibilityScore)
	}
	s.printf("%s, %d · %s · %s\n  %s\n  (%d left in deck)\n",
		c.Name, c.Age, c.Personality, score, c.Bio, s.deck.Remaining())
}

func (s *shell) matches(ctx context.Context, args []string) error {
	order := listing.OrderRecent
	if len(args) > 0 {
		if o := listing.ParseOrder(args[0]); o != listing.OrderRecent || strings.EqualFold(args[0], string(listing.OrderRecent)) {
			order = o
			args = args[1:]
		}
	}
	if err := s.store.Refresh(ctx); err != nil {
		return err
	}

	s.view = s.store.View(strings.Join(args, " "), order)
	if len(s.view) == 0 {
		s.printf("No matches.\n")
		return nil
	}
	for i, m := range s.view {
		line := fmt.Sprintf("%2d. %s", i+1, m.Companion.Name)
		if m.UnreadCount > 0 {
			line += fmt.Sprintf(" (%d unread)", m.UnreadCount)
		}
		if m.LastMessage != "" {
			line += ": " + m.LastMessage
		}
		s.printf("%s\n", line)
	}
	return nil
}

// pick resolves a 1-based index into the last listing.
func (s *shell) pick(args []string) (api.MatchSummary, error) {
	if len(args) != 1 {
		return api.MatchSummary{}, usage("<n> from the last 'matches'")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.view) {
		return api.MatchSummary{}, fmt.Errorf("no match numbered %s, run 'matches' first", args[0])
	}
	return s.view[n-1], nil
}

func (s *shell) open(ctx context.Context, args []string) error {
	entry, err := s.pick(args)
	if err != nil {
		return err
	}
	convID, err := s.store.ConversationFor(ctx, entry.MatchID)
	if err != nil {
		return err
	}
	if err := s.chat.Open(ctx, convID, entry.Companion); err != nil {
		return err
	}

	s.printf("Chatting with %s. 'send <text>' to talk, 'leave' to stop.\n", entry.Companion.Name)
	for _, m := range s.chat.Transcript() {
		marker := ">"
		if m.FromCompanion() {
			marker = "<"
		}
		s.printf("%s %s\n", marker, m.Content)
	}
	return nil
}

func (s *shell) conversations(ctx context.Context) error {
	convs, err := s.store.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		s.printf("No conversations.\n")
		return nil
	}
	for _, c := range convs {
		name := c.CompanionName
		if name == "" {
			name = c.CompanionID
		}
		s.printf("%s  %s  started %s\n", c.ID, name, c.CreatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func (s *shell) refreshUnread(ctx context.Context) {
	if err := s.store.Refresh(ctx); err != nil {
		s.log.Debug("initial match refresh failed", "err", err)
		return
	}
	if n := s.store.UnreadTotal(); n > 0 {
		s.printf("You have %d unread messages.\n", n)
	}
}

func (s *shell) profile(ctx context.Context) error {
	p, err := s.gw.GetProfile(ctx)
	if err != nil {
		return err
	}
	s.printf("%s\n", p.DisplayName)
	if p.Bio != "" {
		s.printf("  %s\n", p.Bio)
	}
	s.printf("  avatar: %s\n  banner: %s\n", gateway.AvatarURL(s.gw, p), gateway.BannerURL(s.gw, p))
	s.printf("  looking for ages %d-%d\n", p.Preferences.AgeRangeMin, p.Preferences.AgeRangeMax)
	s.printf("  swipes %d (likes %d, passes %d, super likes %d), matches %d\n",
		p.Stats.TotalSwipes, p.Stats.Likes, p.Stats.Passes, p.Stats.SuperLikes, p.Stats.Matches)
	return nil
}

func (s *shell) prefs(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("prefs <min-age> <max-age>")
	}
	lo, err1 := strconv.Atoi(args[0])
	hi, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return usage("prefs <min-age> <max-age>")
	}

	p, err := s.gw.GetProfile(ctx)
	if err != nil {
		return err
	}
	prefs := p.Preferences
	prefs.AgeRangeMin, prefs.AgeRangeMax = lo, hi
	if err := s.gw.UpdatePreferences(ctx, prefs); err != nil {
		return err
	}
	s.printf("Preferences saved.\n")
	return nil
}

func (s *shell) upload(ctx context.Context, banner bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(data)

	var res api.UploadMediaResponse
	if banner {
		res, err = s.gw.UploadBanner(ctx, filepath.Base(path), contentType, data)
	} else {
		res, err = s.gw.UploadAvatar(ctx, filepath.Base(path), contentType, data)
	}
	if err != nil {
		return err
	}
	s.printf("Uploaded %s\n", res.PublicURL)
	return nil
}

func usage(u string) error { return fmt.Errorf("%w: usage: %s", gateway.ErrValidation, u) }

func displayName(id session.Identity) string {
	if id.FullName != "" {
		return id.FullName
	}
	return id.Email
}

// describe turns gateway errors into something worth showing a user.
func describe(err error) string {
	switch {
	case errors.Is(err, gateway.ErrAuthRequired):
		return "please sign in first"
	case errors.Is(err, gateway.ErrNoActiveMatch):
		return "you can only chat with active matches"
	case errors.Is(err, gateway.ErrBusy):
		return "that request is already being handled, try again"
	case errors.Is(err, swipe.ErrDecisionInFlight):
		return "still submitting the last decision"
	case errors.Is(err, chat.ErrNoConversation):
		return "open a chat first"
	case gateway.IsTransient(err):
		return "server unavailable, try again: " + err.Error()
	default:
		return err.Error()
	}
}
