package companion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/app"
	"github.com/oggyb/companion/internal/auth"
	"github.com/oggyb/companion/internal/cache"
	"github.com/oggyb/companion/internal/db"
	svcErr "github.com/oggyb/companion/internal/errors"
	"github.com/oggyb/companion/internal/repository"
	"github.com/oggyb/companion/internal/storage"
	"github.com/oggyb/companion/internal/validation"
)

// Service implements the Companion gRPC API.
// It contains the business logic on top of the repository, cache and storage layers.
// The acting user always comes from the verified identity on ctx.
type Service struct {
	appCtx        *app.AppContext
	companions    *repository.CompanionRepository
	decisions     *repository.DecisionRepository
	matches       *repository.MatchRepository
	conversations *repository.ConversationRepository
	profiles      *repository.ProfileRepository
	media         *repository.MediaRepository
	mutual        repository.MutualInterestFunc
	now           func() time.Time
}

// NewCompanionService creates a new Companion service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via the repositories)
//   - RedisCache for the unread badge and swipe locks
//   - Storage for avatar and banner objects
//   - Config for the mutual-interest thresholds and page size
func NewCompanionService(appCtx *app.AppContext) *Service {
	cfg := appCtx.Config
	return &Service{
		appCtx:        appCtx,
		companions:    repository.NewCompanionRepository(appCtx.DB),
		decisions:     repository.NewDecisionRepository(appCtx.DB),
		matches:       repository.NewMatchRepository(appCtx.DB),
		conversations: repository.NewConversationRepository(appCtx.DB),
		profiles:      repository.NewProfileRepository(appCtx.DB),
		media:         repository.NewMediaRepository(appCtx.DB),
		mutual:        MutualInterest(cfg.Match.MinScore, cfg.Match.SuperLikeBonus),
		now:           time.Now,
	}
}

func userFrom(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, svcErr.Map(svcErr.ErrUnauthenticated)
	}
	return id, nil
}

// ListCandidates returns companions the caller has not decided on yet.
//
// Behavior:
//   - Optional age bounds; limit 0 uses MATCH_PAGE_SIZE, capped at 50.
//   - Ordered by compatibility score desc, unscored last.
//
// Example:
//
//	svc.ListCandidates(ctx, &api.ListCandidatesRequest{MinAge: 21, MaxAge: 30})
func (s *Service) ListCandidates(ctx context.Context, req *api.ListCandidatesRequest) (*api.ListCandidatesResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListCandidates called", "user", id.UserID, "min_age", req.MinAge, "max_age", req.MaxAge, "limit", req.Limit)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if req.MinAge > 0 && req.MaxAge > 0 && req.MinAge > req.MaxAge {
		return nil, svcErr.InvalidArgument("min_age must not exceed max_age")
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.appCtx.Config.Match.PageSize
	}

	companions, err := s.companions.ListCandidates(ctx, id.UserID, repository.CandidateFilter{
		MinAge: req.MinAge,
		MaxAge: req.MaxAge,
	}, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListCandidates failed", "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &api.ListCandidatesResponse{Companions: make([]api.Companion, 0, len(companions))}
	for _, c := range companions {
		resp.Companions = append(resp.Companions, toAPICompanion(c))
	}
	return resp, nil
}

// RecordSwipe records a decision and reports a match in the same call.
//
// Behavior:
//   - Takes a Redis SET NX lock on (user, companion); a concurrent submission
//     of the same pair fails with Aborted. If Redis is unreachable the
//     primary key on swipe_decisions still guarantees a single winner.
//   - Duplicate decision → AlreadyExists.
//   - pass never matches; like/super_like match when the companion reciprocates.
//
// Example:
//
//	svc.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: "c1", Decision: "like"})
func (s *Service) RecordSwipe(ctx context.Context, req *api.RecordSwipeRequest) (*api.RecordSwipeResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("RecordSwipe called", "user", id.UserID, "companion", req.CompanionID, "decision", req.Decision)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}

	if s.appCtx.RedisCache != nil {
		release, err := s.appCtx.RedisCache.AcquireSwipeLock(ctx, id.UserID, req.CompanionID, uuid.NewString())
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			return nil, svcErr.Map(svcErr.ErrBusy)
		case err != nil:
			s.appCtx.Logger.Warn("swipe lock unavailable, relying on primary key", "err", err)
		default:
			defer release()
		}
	}

	res, err := s.decisions.ProcessDecision(ctx, id.UserID, req.CompanionID, req.Decision, s.mutual)
	if err != nil {
		if !errors.Is(err, svcErr.ErrAlreadyDecided) && !repository.IsNotFound(err) {
			s.appCtx.Logger.Error("ProcessDecision failed", "err", err)
		}
		return nil, svcErr.Map(err)
	}

	s.appCtx.Metrics.Swipes.WithLabelValues(req.Decision).Inc()
	resp := &api.RecordSwipeResponse{IsMatch: res.IsMatch()}
	if res.Match != nil {
		resp.Match = toAPIMatch(*res.Match)
		if res.NewMatch {
			s.appCtx.Metrics.MatchesCreated.Inc()
		}
	}

	s.appCtx.Logger.Debug("RecordSwipe result", "is_match", resp.IsMatch)
	return resp, nil
}

// ListMatches returns every active match annotated with its conversation,
// last message preview and unread count, in one round trip.
func (s *Service) ListMatches(ctx context.Context, _ *api.Empty) (*api.ListMatchesResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListMatches called", "user", id.UserID)

	rows, err := s.matches.ListWithDetails(ctx, id.UserID)
	if err != nil {
		s.appCtx.Logger.Error("ListWithDetails failed", "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &api.ListMatchesResponse{Matches: make([]api.MatchSummary, 0, len(rows))}
	for _, r := range rows {
		resp.Matches = append(resp.Matches, toAPIMatchSummary(r))
	}
	return resp, nil
}

// DeactivateMatch soft-deletes one of the caller's matches. Idempotent.
func (s *Service) DeactivateMatch(ctx context.Context, req *api.DeactivateMatchRequest) (*api.Empty, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("DeactivateMatch called", "user", id.UserID, "match", req.MatchID)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.matches.Deactivate(ctx, id.UserID, req.MatchID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &api.Empty{}, nil
}

// ListConversations returns the caller's conversations, newest activity first.
func (s *Service) ListConversations(ctx context.Context, _ *api.Empty) (*api.ListConversationsResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListConversations called", "user", id.UserID)

	rows, err := s.conversations.ListForUser(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &api.ListConversationsResponse{Conversations: make([]api.Conversation, 0, len(rows))}
	for _, r := range rows {
		resp.Conversations = append(resp.Conversations, toAPIConversationSummary(r))
	}
	return resp, nil
}

// StartConversation returns the conversation with a matched companion,
// creating it on first use. Without an active match → FailedPrecondition.
func (s *Service) StartConversation(ctx context.Context, req *api.StartConversationRequest) (*api.StartConversationResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("StartConversation called", "user", id.UserID, "companion", req.CompanionID)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}

	conv, created, err := s.conversations.GetOrCreate(ctx, id.UserID, req.CompanionID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := toAPIConversation(conv)
	if c, err := s.companions.GetByID(ctx, conv.CompanionID); err == nil {
		out.CompanionName = c.Name
		out.CompanionImageURL = c.ImageURL
	}
	return &api.StartConversationResponse{Conversation: out, Created: created}, nil
}

// ListMessages pages through a conversation oldest-first.
//
// Example:
//
//	svc.ListMessages(ctx, &api.ListMessagesRequest{ConversationID: "conv-1", Limit: 50})
func (s *Service) ListMessages(ctx context.Context, req *api.ListMessagesRequest) (*api.ListMessagesResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListMessages called", "user", id.UserID, "conversation", req.ConversationID, "token", req.PageToken)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if _, err := s.conversations.GetForUser(ctx, id.UserID, req.ConversationID); err != nil {
		return nil, svcErr.Map(err)
	}

	var token *string
	if req.PageToken != "" {
		token = &req.PageToken
	}
	msgs, next, err := s.conversations.ListMessages(ctx, req.ConversationID, token, req.Limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &api.ListMessagesResponse{Messages: make([]api.Message, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toAPIMessage(m))
	}
	if next != nil {
		resp.NextPageToken = *next
	}
	return resp, nil
}

// AppendMessage writes a message authored by the caller or by the companion.
//
// Behavior:
//   - Server assigns id and a strictly increasing timestamp.
//   - User messages are stored read and bump messages_sent.
//   - Companion messages are unread and invalidate the cached unread total.
func (s *Service) AppendMessage(ctx context.Context, req *api.AppendMessageRequest) (*api.AppendMessageResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("AppendMessage called", "user", id.UserID, "conversation", req.ConversationID, "author", req.Author)

	req.Content = strings.TrimSpace(req.Content)
	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}

	conv, err := s.conversations.GetForUser(ctx, id.UserID, req.ConversationID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	var sender *string
	if req.Author == api.AuthorUser {
		sender = &id.UserID
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = db.MessageText
	}

	msg, err := s.conversations.AppendMessage(ctx, conv, sender, req.Content, msgType)
	if err != nil {
		s.appCtx.Logger.Error("AppendMessage failed", "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Metrics.MessagesWritten.WithLabelValues(req.Author).Inc()
	if sender == nil {
		s.invalidateUnread(ctx, id.UserID)
	}
	return &api.AppendMessageResponse{Message: toAPIMessage(msg)}, nil
}

// MarkCompanionMessagesRead marks every unread companion message in the
// conversation read. Idempotent; returns how many rows changed.
func (s *Service) MarkCompanionMessagesRead(ctx context.Context, req *api.MarkReadRequest) (*api.MarkReadResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("MarkCompanionMessagesRead called", "user", id.UserID, "conversation", req.ConversationID)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if _, err := s.conversations.GetForUser(ctx, id.UserID, req.ConversationID); err != nil {
		return nil, svcErr.Map(err)
	}

	n, err := s.conversations.MarkCompanionMessagesRead(ctx, req.ConversationID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if n > 0 {
		s.invalidateUnread(ctx, id.UserID)
	}
	return &api.MarkReadResponse{Updated: n}, nil
}

// UnreadTotal returns the number of unread companion messages across all
// conversations.
// Cache-first strategy:
//  1. Attempts to read from Redis (unread:total:userID), refreshing the TTL on a hit.
//  2. On a miss or Redis error, counts in the DB.
//  3. On DB fetch, updates Redis with a 1h TTL unless an invalidation landed
//     while counting.
func (s *Service) UnreadTotal(ctx context.Context, _ *api.Empty) (*api.UnreadTotalResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("UnreadTotal called", "user", id.UserID)

	if s.appCtx.RedisCache != nil {
		if n, ok, err := s.appCtx.RedisCache.GetUnreadTotal(ctx, id.UserID); err == nil && ok {
			s.appCtx.Metrics.CacheHits.Inc()
			return &api.UnreadTotalResponse{Total: n}, nil
		}
	}
	s.appCtx.Metrics.CacheMisses.Inc()

	var (
		gen    string
		genErr error
	)
	if s.appCtx.RedisCache != nil {
		gen, genErr = s.appCtx.RedisCache.UnreadGeneration(ctx, id.UserID)
	}

	total, err := s.conversations.CountUnreadForUser(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	if s.appCtx.RedisCache != nil && genErr == nil {
		if stored, err := s.appCtx.RedisCache.FillUnreadTotal(ctx, id.UserID, gen, total); err == nil && !stored {
			s.appCtx.Logger.Debug("unread total changed while counting, not caching", "user", id.UserID)
		}
	}
	return &api.UnreadTotalResponse{Total: total}, nil
}

func (s *Service) invalidateUnread(ctx context.Context, userID string) {
	if s.appCtx.RedisCache == nil {
		return
	}
	if err := s.appCtx.RedisCache.InvalidateUnreadTotal(ctx, userID); err != nil {
		s.appCtx.Logger.Warn("unread cache invalidation failed", "user", userID, "err", err)
	}
}

// EnsureProfile creates the caller's profile, preferences and stats rows if
// missing. Safe to call concurrently; reports whether anything was created.
func (s *Service) EnsureProfile(ctx context.Context, req *api.EnsureProfileRequest) (*api.EnsureProfileResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("EnsureProfile called", "user", id.UserID)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}

	created, err := s.profiles.Ensure(ctx, id.UserID, displayName(req.DisplayNameHint, id))
	if err != nil {
		s.appCtx.Logger.Error("Ensure profile failed", "err", err)
		return nil, svcErr.Map(err)
	}
	if created {
		s.appCtx.Logger.Info("profile provisioned", "user", id.UserID)
	}
	return &api.EnsureProfileResponse{Created: created}, nil
}

// displayName picks the hint, then the account's full name, then the email's local part.
func displayName(hint string, id auth.Identity) string {
	for _, candidate := range []string{hint, id.FullName} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	return ""
}

// GetProfile returns the caller's profile bundle. A missing singleton row
// is NotFound, which clients treat as "needs provisioning".
func (s *Service) GetProfile(ctx context.Context, _ *api.Empty) (*api.Profile, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("GetProfile called", "user", id.UserID)

	p, err := s.profiles.Get(ctx, id.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	out := &api.Profile{
		UserID:       p.Profile.UserID,
		DisplayName:  p.Profile.DisplayName,
		Bio:          p.Profile.Bio,
		LastActiveAt: p.Profile.LastActiveAt,
		Preferences:  toAPIPreferences(p.Preferences),
		Stats:        toAPIStats(p.Stats),
	}

	for _, kind := range []repository.MediaKind{repository.MediaAvatar, repository.MediaBanner} {
		rec, err := s.media.Get(ctx, kind, id.UserID)
		if repository.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, svcErr.Map(err)
		}
		if kind == repository.MediaAvatar {
			out.AvatarKey = rec.StorageKey
		} else {
			out.BannerKey = rec.StorageKey
		}
		if v := rec.UpdatedAt.UnixMilli(); v > out.MediaVersion {
			out.MediaVersion = v
		}
	}
	return out, nil
}

// UpdatePreferences replaces the caller's matching preferences.
func (s *Service) UpdatePreferences(ctx context.Context, req *api.UpdatePreferencesRequest) (*api.Empty, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("UpdatePreferences called", "user", id.UserID)

	if err := validation.ValidateStruct(&req.Preferences); err != nil {
		return nil, svcErr.Map(err)
	}

	p := req.Preferences
	err = s.profiles.UpdatePreferences(ctx, db.UserPreferences{
		UserID:                       id.UserID,
		AgeRangeMin:                  p.AgeRangeMin,
		AgeRangeMax:                  p.AgeRangeMax,
		PreferredPersonalities:       db.StringList(p.PreferredPersonalities),
		PreferredInterests:           db.StringList(p.PreferredInterests),
		CommunicationStylePreference: p.CommunicationStylePreference,
		RelationshipGoals:            db.StringList(p.RelationshipGoals),
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &api.Empty{}, nil
}

// TouchLastActive stamps the caller's profile with the current time.
func (s *Service) TouchLastActive(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.TouchLastActive(ctx, id.UserID, s.now()); err != nil {
		return nil, svcErr.Map(err)
	}
	return &api.Empty{}, nil
}

// UploadMedia stores a new avatar or banner for the caller.
//
// Behavior:
//   - image/* only, non-empty, at most STORAGE_MAX_UPLOAD_BYTES.
//   - The previous object is removed first (failure is only logged).
//   - The record row is upserted after the write; if that fails the new
//     object is removed again so no orphan is left behind.
func (s *Service) UploadMedia(ctx context.Context, req *api.UploadMediaRequest) (*api.UploadMediaResponse, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("UploadMedia called", "user", id.UserID, "kind", req.Kind, "size", len(req.Data))

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}
	cfg := s.appCtx.Config.Storage
	if err := storage.ValidateImage(req.ContentType, int64(len(req.Data)), cfg.MaxUploadBytes); err != nil {
		return nil, svcErr.Map(svcErr.Invalid(err.Error()))
	}

	kind := repository.MediaKind(req.Kind)
	key := storage.ObjectKey(kind == repository.MediaBanner, id.UserID, req.FileName, s.now())

	if prev, err := s.media.Get(ctx, kind, id.UserID); err == nil {
		if err := s.appCtx.Storage.Delete(ctx, prev.StorageKey); err != nil {
			s.appCtx.Logger.Warn("failed to delete previous object", "key", prev.StorageKey, "err", err)
		}
	}

	if err := s.appCtx.Storage.Put(ctx, key, req.ContentType, req.Data); err != nil {
		s.appCtx.Logger.Error("object upload failed", "key", key, "err", err)
		return nil, svcErr.Map(err)
	}

	err = s.media.Upsert(ctx, kind, repository.MediaRecord{
		UserID:      id.UserID,
		StorageKey:  key,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   int64(len(req.Data)),
	})
	if err != nil {
		if delErr := s.appCtx.Storage.Delete(ctx, key); delErr != nil {
			s.appCtx.Logger.Warn("failed to clean up object after record failure", "key", key, "err", delErr)
		}
		return nil, svcErr.Map(err)
	}

	s.appCtx.Metrics.MediaUploads.WithLabelValues(req.Kind).Inc()
	return &api.UploadMediaResponse{
		Key:       key,
		PublicURL: storage.PublicURL(cfg.PublicBaseURL, cfg.Bucket, key),
	}, nil
}

// DeleteMedia removes the caller's avatar or banner. Missing media is not an error.
func (s *Service) DeleteMedia(ctx context.Context, req *api.DeleteMediaRequest) (*api.Empty, error) {
	id, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("DeleteMedia called", "user", id.UserID, "kind", req.Kind)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, svcErr.Map(err)
	}

	kind := repository.MediaKind(req.Kind)
	rec, err := s.media.Get(ctx, kind, id.UserID)
	if repository.IsNotFound(err) {
		return &api.Empty{}, nil
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}

	if err := s.appCtx.Storage.Delete(ctx, rec.StorageKey); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.media.Delete(ctx, kind, id.UserID); err != nil {
		// the object is already gone; a stale row only costs a broken image
		s.appCtx.Logger.Error("failed to delete media record", "user", id.UserID, "kind", req.Kind, "err", err)
	}
	return &api.Empty{}, nil
}
