package api

import (
	"context"

	"google.golang.org/grpc"
)

// CompanionClient calls CompanionService over an established connection.
type CompanionClient struct {
	cc grpc.ClientConnInterface
}

func NewCompanionClient(cc grpc.ClientConnInterface) *CompanionClient {
	return &CompanionClient{cc: cc}
}

func (c *CompanionClient) ListCandidates(ctx context.Context, in *ListCandidatesRequest, opts ...grpc.CallOption) (*ListCandidatesResponse, error) {
	return invoke[ListCandidatesResponse](ctx, c.cc, CompanionServiceName, "ListCandidates", in, opts)
}

func (c *CompanionClient) RecordSwipe(ctx context.Context, in *RecordSwipeRequest, opts ...grpc.CallOption) (*RecordSwipeResponse, error) {
	return invoke[RecordSwipeResponse](ctx, c.cc, CompanionServiceName, "RecordSwipe", in, opts)
}

func (c *CompanionClient) ListMatches(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	return invoke[ListMatchesResponse](ctx, c.cc, CompanionServiceName, "ListMatches", in, opts)
}

func (c *CompanionClient) DeactivateMatch(ctx context.Context, in *DeactivateMatchRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, CompanionServiceName, "DeactivateMatch", in, opts)
}

func (c *CompanionClient) ListConversations(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, CompanionServiceName, "ListConversations", in, opts)
}

func (c *CompanionClient) StartConversation(ctx context.Context, in *StartConversationRequest, opts ...grpc.CallOption) (*StartConversationResponse, error) {
	return invoke[StartConversationResponse](ctx, c.cc, CompanionServiceName, "StartConversation", in, opts)
}

func (c *CompanionClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, CompanionServiceName, "ListMessages", in, opts)
}

func (c *CompanionClient) AppendMessage(ctx context.Context, in *AppendMessageRequest, opts ...grpc.CallOption) (*AppendMessageResponse, error) {
	return invoke[AppendMessageResponse](ctx, c.cc, CompanionServiceName, "AppendMessage", in, opts)
}

func (c *CompanionClient) MarkCompanionMessagesRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, CompanionServiceName, "MarkCompanionMessagesRead", in, opts)
}

func (c *CompanionClient) UnreadTotal(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*UnreadTotalResponse, error) {
	return invoke[UnreadTotalResponse](ctx, c.cc, CompanionServiceName, "UnreadTotal", in, opts)
}

func (c *CompanionClient) EnsureProfile(ctx context.Context, in *EnsureProfileRequest, opts ...grpc.CallOption) (*EnsureProfileResponse, error) {
	return invoke[EnsureProfileResponse](ctx, c.cc, CompanionServiceName, "EnsureProfile", in, opts)
}

func (c *CompanionClient) GetProfile(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, CompanionServiceName, "GetProfile", in, opts)
}

func (c *CompanionClient) UpdatePreferences(ctx context.Context, in *UpdatePreferencesRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, CompanionServiceName, "UpdatePreferences", in, opts)
}

func (c *CompanionClient) TouchLastActive(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, CompanionServiceName, "TouchLastActive", in, opts)
}

func (c *CompanionClient) UploadMedia(ctx context.Context, in *UploadMediaRequest, opts ...grpc.CallOption) (*UploadMediaResponse, error) {
	return invoke[UploadMediaResponse](ctx, c.cc, CompanionServiceName, "UploadMedia", in, opts)
}

func (c *CompanionClient) DeleteMedia(ctx context.Context, in *DeleteMediaRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, CompanionServiceName, "DeleteMedia", in, opts)
}

// AccountClient calls AccountService over an established connection.
type AccountClient struct {
	cc grpc.ClientConnInterface
}

func NewAccountClient(cc grpc.ClientConnInterface) *AccountClient {
	return &AccountClient{cc: cc}
}

func (c *AccountClient) SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*Session, error) {
	return invoke[Session](ctx, c.cc, AccountServiceName, "SignIn", in, opts)
}

func (c *AccountClient) SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*Session, error) {
	return invoke[Session](ctx, c.cc, AccountServiceName, "SignUp", in, opts)
}

func (c *AccountClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*Session, error) {
	return invoke[Session](ctx, c.cc, AccountServiceName, "Refresh", in, opts)
}

func (c *AccountClient) SignOut(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, AccountServiceName, "SignOut", in, opts)
}

func (c *AccountClient) WhoAmI(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, AccountServiceName, "WhoAmI", in, opts)
}

// invoke always forces the JSON codec so callers cannot forget it.
func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	service, method string,
	in any,
	opts []grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, FullMethod(service, method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
