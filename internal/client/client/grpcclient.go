package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/utask/internal/authpb"
	"github.com/dmitrijs2005/utask/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// caller is the part of authpb.AuthServiceClient the client needs.
type caller interface {
	Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      caller

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// Identity is what the server knows about the current access token.
type Identity struct {
	UserID    string
	RoleID    string
	ExpiresAt time.Time
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = access, refresh
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err == nil || refresh == "" || method == authpb.FullMethod(authpb.MethodRefresh) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	if rerr := s.rotate(ctx, refresh); rerr != nil {
		return err
	}

	// tokens refreshed, retry with the new access token
	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	conn, err := grpc.NewClient(c.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithUnaryInterceptor(c.accessTokenInterceptor))
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = authpb.NewAuthServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) LoggedIn() bool {
	_, refresh := s.tokens()
	return refresh != ""
}

func (s *GRPCClient) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	var trailer metadata.MD
	out, err := s.client.Call(ctx, method, in, grpc.Trailer(&trailer))
	if err != nil {
		return nil, mapError(err, trailer)
	}
	return out, nil
}

func (s *GRPCClient) Register(ctx context.Context, email string, password []byte, firstName, lastName string) (int64, error) {
	out, err := s.call(ctx, authpb.MethodSignUp, map[string]any{
		authpb.FieldEmail:     email,
		authpb.FieldPassword:  string(password),
		authpb.FieldFirstName: firstName,
		authpb.FieldLastName:  lastName,
	})
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(authpb.String(out, authpb.FieldUserID), 10, 64)
}

func (s *GRPCClient) ConfirmEmail(ctx context.Context, token string) error {
	_, err := s.call(ctx, authpb.MethodConfirmEmail, map[string]any{authpb.FieldToken: token})
	return err
}

func (s *GRPCClient) ResendConfirmation(ctx context.Context, userID int64) error {
	_, err := s.call(ctx, authpb.MethodResendConfirmation, map[string]any{
		authpb.FieldUserID: strconv.FormatInt(userID, 10),
	})
	return err
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) error {
	out, err := s.call(ctx, authpb.MethodSignIn, map[string]any{
		authpb.FieldEmail:    email,
		authpb.FieldPassword: string(password),
	})
	if err != nil {
		return err
	}

	s.setTokens(authpb.String(out, authpb.FieldAccessToken), authpb.String(out, authpb.FieldRefreshToken))
	return nil
}

// Refresh rotates the stored session.
func (s *GRPCClient) Refresh(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	return s.rotate(ctx, refresh)
}

func (s *GRPCClient) rotate(ctx context.Context, refresh string) error {
	out, err := s.call(ctx, authpb.MethodRefresh, map[string]any{authpb.FieldRefreshToken: refresh})
	if err != nil {
		// a rejected refresh token is gone for good
		if errors.Is(err, ErrUnauthorized) {
			s.setTokens("", "")
		}
		return err
	}

	s.setTokens(authpb.String(out, authpb.FieldAccessToken), authpb.String(out, authpb.FieldRefreshToken))
	return nil
}

// Logout revokes the stored refresh token and forgets the session.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	_, err := s.call(ctx, authpb.MethodLogout, map[string]any{authpb.FieldRefreshToken: refresh})
	s.setTokens("", "")
	return err
}

func (s *GRPCClient) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := s.call(ctx, authpb.MethodRequestPasswordReset, map[string]any{authpb.FieldEmail: email})
	return err
}

func (s *GRPCClient) CompletePasswordReset(ctx context.Context, token string, password []byte) error {
	_, err := s.call(ctx, authpb.MethodCompletePasswordReset, map[string]any{
		authpb.FieldToken:    token,
		authpb.FieldPassword: string(password),
	})
	return err
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*Identity, error) {
	out, err := s.call(ctx, authpb.MethodWhoAmI, nil)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		UserID: authpb.String(out, authpb.FieldUserID),
		RoleID: authpb.String(out, authpb.FieldRoleID),
	}
	if v := authpb.String(out, authpb.FieldAccessExpiresAt); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			id.ExpiresAt = t
		}
	}
	return id, nil
}
