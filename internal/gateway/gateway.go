// Package gateway is the client's single point of contact with the backend.
// Flows depend on the Gateway interface; Remote implements it over gRPC.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oggyb/companion/internal/api"
	"github.com/oggyb/companion/internal/storage"
)

const messagePageSize = 50

// CandidateFilter narrows candidate fetches. Zero values mean unbounded.
type CandidateFilter struct {
	MinAge int
	MaxAge int
	Limit  int
}

type Gateway interface {
	ListCandidateCompanions(ctx context.Context, filter CandidateFilter) ([]api.Companion, error)
	RecordSwipeDecision(ctx context.Context, companionID, decision string) (api.RecordSwipeResponse, error)
	ListMatches(ctx context.Context) ([]api.MatchSummary, error)
	DeactivateMatch(ctx context.Context, matchID string) error
	ListConversations(ctx context.Context) ([]api.Conversation, error)
	StartConversation(ctx context.Context, companionID string) (api.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]api.Message, error)
	AppendMessage(ctx context.Context, conversationID, author, content string) (api.Message, error)
	MarkCompanionMessagesRead(ctx context.Context, conversationID string) (int64, error)
	UnreadTotal(ctx context.Context) (int64, error)
	EnsureProfile(ctx context.Context, displayNameHint string) (bool, error)
	GetProfile(ctx context.Context) (api.Profile, error)
	UpdatePreferences(ctx context.Context, prefs api.Preferences) error
	TouchLastActive(ctx context.Context) error
	UploadAvatar(ctx context.Context, fileName, contentType string, data []byte) (api.UploadMediaResponse, error)
	UploadBanner(ctx context.Context, fileName, contentType string, data []byte) (api.UploadMediaResponse, error)
	DeleteAvatar(ctx context.Context) error
	DeleteBanner(ctx context.Context) error
	PublicURL(key string) string
}

// TokenSource yields the current access token, or "" when signed out.
type TokenSource interface {
	AccessToken() string
}

// MediaConfig describes where uploaded objects are served from.
type MediaConfig struct {
	PublicBaseURL  string
	Bucket         string
	MaxUploadBytes int64
}

// Dial opens a client connection that speaks the JSON codec.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(api.CallOption()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Remote implements Gateway against CompanionService.
// No call is retried here; callers decide whether a failure is worth repeating.
type Remote struct {
	client *api.CompanionClient
	tokens TokenSource
	media  MediaConfig
}

func NewRemote(cc grpc.ClientConnInterface, tokens TokenSource, media MediaConfig) *Remote {
	if media.MaxUploadBytes <= 0 {
		media.MaxUploadBytes = storage.DefaultMaxUploadBytes
	}
	return &Remote{client: api.NewCompanionClient(cc), tokens: tokens, media: media}
}

// authed attaches the bearer token, failing before any I/O when there is none.
func (r *Remote) authed(ctx context.Context) (context.Context, error) {
	var token string
	if r.tokens != nil {
		token = r.tokens.AccessToken()
	}
	if token == "" {
		return nil, ErrAuthRequired
	}
	return withBearer(ctx, token), nil
}

func (r *Remote) ListCandidateCompanions(ctx context.Context, filter CandidateFilter) ([]api.Companion, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.ListCandidates(ctx, &api.ListCandidatesRequest{
		MinAge: filter.MinAge,
		MaxAge: filter.MaxAge,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, FromStatus(err)
	}
	return resp.Companions, nil
}

func (r *Remote) RecordSwipeDecision(ctx context.Context, companionID, decision string) (api.RecordSwipeResponse, error) {
	switch decision {
	case api.DecisionLike, api.DecisionPass, api.DecisionSuperLike:
	default:
		return api.RecordSwipeResponse{}, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}
	ctx, err := r.authed(ctx)
	if err != nil {
		return api.RecordSwipeResponse{}, err
	}
	resp, err := r.client.RecordSwipe(ctx, &api.RecordSwipeRequest{CompanionID: companionID, Decision: decision})
	if err != nil {
		return api.RecordSwipeResponse{}, FromStatus(err)
	}
	return *resp, nil
}

func (r *Remote) ListMatches(ctx context.Context) ([]api.MatchSummary, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.ListMatches(ctx, &api.Empty{})
	if err != nil {
		return nil, FromStatus(err)
	}
	return resp.Matches, nil
}

func (r *Remote) DeactivateMatch(ctx context.Context, matchID string) error {
	ctx, err := r.authed(ctx)
	if err != nil {
		return err
	}
	_, err = r.client.DeactivateMatch(ctx, &api.DeactivateMatchRequest{MatchID: matchID})
	return FromStatus(err)
}

func (r *Remote) ListConversations(ctx context.Context) ([]api.Conversation, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.ListConversations(ctx, &api.Empty{})
	if err != nil {
		return nil, FromStatus(err)
	}
	return resp.Conversations, nil
}

func (r *Remote) StartConversation(ctx context.Context, companionID string) (api.Conversation, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return api.Conversation{}, err
	}
	resp, err := r.client.StartConversation(ctx, &api.StartConversationRequest{CompanionID: companionID})
	if err != nil {
		return api.Conversation{}, FromStatus(err)
	}
	return resp.Conversation, nil
}

// ListMessages drains every page, returning the whole transcript oldest-first.
func (r *Remote) ListMessages(ctx context.Context, conversationID string) ([]api.Message, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return nil, err
	}

	var (
		all   []api.Message
		token string
	)
	for {
		resp, err := r.client.ListMessages(ctx, &api.ListMessagesRequest{
			ConversationID: conversationID,
			PageToken:      token,
			Limit:          messagePageSize,
		})
		if err != nil {
			return nil, FromStatus(err)
		}
		all = append(all, resp.Messages...)
		if resp.NextPageToken == "" {
			return all, nil
		}
		token = resp.NextPageToken
	}
}

func (r *Remote) AppendMessage(ctx context.Context, conversationID, author, content string) (api.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return api.Message{}, fmt.Errorf("%w: message is empty", ErrValidation)
	}
	ctx, err := r.authed(ctx)
	if err != nil {
		return api.Message{}, err
	}
	resp, err := r.client.AppendMessage(ctx, &api.AppendMessageRequest{
		ConversationID: conversationID,
		Author:         author,
		Content:        content,
	})
	if err != nil {
		return api.Message{}, FromStatus(err)
	}
	return resp.Message, nil
}

func (r *Remote) MarkCompanionMessagesRead(ctx context.Context, conversationID string) (int64, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return 0, err
	}
	resp, err := r.client.MarkCompanionMessagesRead(ctx, &api.MarkReadRequest{ConversationID: conversationID})
	if err != nil {
		return 0, FromStatus(err)
	}
	return resp.Updated, nil
}

func (r *Remote) UnreadTotal(ctx context.Context) (int64, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return 0, err
	}
	resp, err := r.client.UnreadTotal(ctx, &api.Empty{})
	if err != nil {
		return 0, FromStatus(err)
	}
	return resp.Total, nil
}

func (r *Remote) EnsureProfile(ctx context.Context, displayNameHint string) (bool, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return false, err
	}
	resp, err := r.client.EnsureProfile(ctx, &api.EnsureProfileRequest{DisplayNameHint: displayNameHint})
	if err != nil {
		return false, FromStatus(err)
	}
	return resp.Created, nil
}

// GetProfile reads the caller's profile bundle. Missing singleton rows are
// provisioned with EnsureProfile and the read is repeated once.
func (r *Remote) GetProfile(ctx context.Context) (api.Profile, error) {
	p, err := r.readProfile(ctx)
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}
	if _, err := r.EnsureProfile(ctx, ""); err != nil {
		return api.Profile{}, fmt.Errorf("provision profile: %w", err)
	}
	return r.readProfile(ctx)
}

func (r *Remote) readProfile(ctx context.Context) (api.Profile, error) {
	ctx, err := r.authed(ctx)
	if err != nil {
		return api.Profile{}, err
	}
	resp, err := r.client.GetProfile(ctx, &api.Empty{})
	if err != nil {
		return api.Profile{}, FromStatus(err)
	}
	return *resp, nil
}

func (r *Remote) UpdatePreferences(ctx context.Context, prefs api.Preferences) error {
	ctx, err := r.authed(ctx)
	if err != nil {
		return err
	}
	_, err = r.client.UpdatePreferences(ctx, &api.UpdatePreferencesRequest{Preferences: prefs})
	return FromStatus(err)
}

func (r *Remote) TouchLastActive(ctx context.Context) error {
	ctx, err := r.authed(ctx)
	if err != nil {
		return err
	}
	_, err = r.client.TouchLastActive(ctx, &api.Empty{})
	return FromStatus(err)
}

func (r *Remote) UploadAvatar(ctx context.Context, fileName, contentType string, data []byte) (api.UploadMediaResponse, error) {
	return r.upload(ctx, api.MediaAvatar, fileName, contentType, data)
}

func (r *Remote) UploadBanner(ctx context.Context, fileName, contentType string, data []byte) (api.UploadMediaResponse, error) {
	return r.upload(ctx, api.MediaBanner, fileName, contentType, data)
}

func (r *Remote) upload(ctx context.Context, kind, fileName, contentType string, data []byte) (api.UploadMediaResponse, error) {
	if err := storage.ValidateImage(contentType, int64(len(data)), r.media.MaxUploadBytes); err != nil {
		return api.UploadMediaResponse{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ctx, err := r.authed(ctx)
	if err != nil {
		return api.UploadMediaResponse{}, err
	}
	resp, err := r.client.UploadMedia(ctx, &api.UploadMediaRequest{
		Kind:        kind,
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return api.UploadMediaResponse{}, FromStatus(err)
	}
	return *resp, nil
}

func (r *Remote) DeleteAvatar(ctx context.Context) error { return r.deleteMedia(ctx, api.MediaAvatar) }

func (r *Remote) DeleteBanner(ctx context.Context) error { return r.deleteMedia(ctx, api.MediaBanner) }

func (r *Remote) deleteMedia(ctx context.Context, kind string) error {
	ctx, err := r.authed(ctx)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteMedia(ctx, &api.DeleteMediaRequest{Kind: kind})
	return FromStatus(err)
}

func (r *Remote) PublicURL(key string) string {
	return storage.PublicURL(r.media.PublicBaseURL, r.media.Bucket, key)
}
