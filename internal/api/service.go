// Package api defines the companion gRPC surface: request/response types,
// service descriptors and client stubs. Messages travel as JSON (see codec.go)
// so the descriptors are written by hand instead of generated from .proto files.
package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	CompanionServiceName = "companion.v1.CompanionService"
	AccountServiceName   = "companion.v1.AccountService"
)

// CompanionServer is implemented by the backend service.
// The acting user is always taken from the verified identity on ctx.
type CompanionServer interface {
	ListCandidates(context.Context, *ListCandidatesRequest) (*ListCandidatesResponse, error)
	RecordSwipe(context.Context, *RecordSwipeRequest) (*RecordSwipeResponse, error)
	ListMatches(context.Context, *Empty) (*ListMatchesResponse, error)
	DeactivateMatch(context.Context, *DeactivateMatchRequest) (*Empty, error)
	ListConversations(context.Context, *Empty) (*ListConversationsResponse, error)
	StartConversation(context.Context, *StartConversationRequest) (*StartConversationResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	AppendMessage(context.Context, *AppendMessageRequest) (*AppendMessageResponse, error)
	MarkCompanionMessagesRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	UnreadTotal(context.Context, *Empty) (*UnreadTotalResponse, error)
	EnsureProfile(context.Context, *EnsureProfileRequest) (*EnsureProfileResponse, error)
	GetProfile(context.Context, *Empty) (*Profile, error)
	UpdatePreferences(context.Context, *UpdatePreferencesRequest) (*Empty, error)
	TouchLastActive(context.Context, *Empty) (*Empty, error)
	UploadMedia(context.Context, *UploadMediaRequest) (*UploadMediaResponse, error)
	DeleteMedia(context.Context, *DeleteMediaRequest) (*Empty, error)
}

// AccountServer issues and revokes sessions.
type AccountServer interface {
	SignIn(context.Context, *SignInRequest) (*Session, error)
	SignUp(context.Context, *SignUpRequest) (*Session, error)
	Refresh(context.Context, *RefreshRequest) (*Session, error)
	SignOut(context.Context, *Empty) (*Empty, error)
	WhoAmI(context.Context, *Empty) (*User, error)
}

// PublicMethods lists the full method names callable without a bearer token.
var PublicMethods = map[string]bool{
	FullMethod(AccountServiceName, "SignIn"):  true,
	FullMethod(AccountServiceName, "SignUp"):  true,
	FullMethod(AccountServiceName, "Refresh"): true,
}

// FullMethod returns "/service/method".
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

var companionServiceDesc = grpc.ServiceDesc{
	ServiceName: CompanionServiceName,
	HandlerType: (*CompanionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(CompanionServiceName, "ListCandidates", CompanionServer.ListCandidates),
		unary(CompanionServiceName, "RecordSwipe", CompanionServer.RecordSwipe),
		unary(CompanionServiceName, "ListMatches", CompanionServer.ListMatches),
		unary(CompanionServiceName, "DeactivateMatch", CompanionServer.DeactivateMatch),
		unary(CompanionServiceName, "ListConversations", CompanionServer.ListConversations),
		unary(CompanionServiceName, "StartConversation", CompanionServer.StartConversation),
		unary(CompanionServiceName, "ListMessages", CompanionServer.ListMessages),
		unary(CompanionServiceName, "AppendMessage", CompanionServer.AppendMessage),
		unary(CompanionServiceName, "MarkCompanionMessagesRead", CompanionServer.MarkCompanionMessagesRead),
		unary(CompanionServiceName, "UnreadTotal", CompanionServer.UnreadTotal),
		unary(CompanionServiceName, "EnsureProfile", CompanionServer.EnsureProfile),
		unary(CompanionServiceName, "GetProfile", CompanionServer.GetProfile),
		unary(CompanionServiceName, "UpdatePreferences", CompanionServer.UpdatePreferences),
		unary(CompanionServiceName, "TouchLastActive", CompanionServer.TouchLastActive),
		unary(CompanionServiceName, "UploadMedia", CompanionServer.UploadMedia),
		unary(CompanionServiceName, "DeleteMedia", CompanionServer.DeleteMedia),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "companion/v1/companion.json",
}

var accountServiceDesc = grpc.ServiceDesc{
	ServiceName: AccountServiceName,
	HandlerType: (*AccountServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AccountServiceName, "SignIn", AccountServer.SignIn),
		unary(AccountServiceName, "SignUp", AccountServer.SignUp),
		unary(AccountServiceName, "Refresh", AccountServer.Refresh),
		unary(AccountServiceName, "SignOut", AccountServer.SignOut),
		unary(AccountServiceName, "WhoAmI", AccountServer.WhoAmI),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "companion/v1/account.json",
}

// RegisterCompanionServer attaches srv to s.
func RegisterCompanionServer(s grpc.ServiceRegistrar, srv CompanionServer) {
	s.RegisterService(&companionServiceDesc, srv)
}

// RegisterAccountServer attaches srv to s.
func RegisterAccountServer(s grpc.ServiceRegistrar, srv AccountServer) {
	s.RegisterService(&accountServiceDesc, srv)
}

// unary builds a MethodDesc from a method expression such as
// CompanionServer.ListCandidates, decoding the request and routing it
// through the server's interceptor chain.
func unary[S any, Req any, Resp any](
	service, method string,
	call func(S, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	fullMethod := FullMethod(service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
