package grpc

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/utask/internal/authpb"
	"github.com/dmitrijs2005/utask/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// fields reads the required string fields of in, in order. Surrounding
// blanks are trimmed from everything except passwords, which are taken as
// typed.
func fields(in *structpb.Struct, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v := authpb.String(in, k)
		if k != authpb.FieldPassword {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			return nil, status.Errorf(codes.InvalidArgument, "%s is required", k)
		}
		out[i] = v
	}
	return out, nil
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func sessionReply(sess *services.Session) (*structpb.Struct, error) {
	return reply(map[string]any{
		authpb.FieldUserID:           strconv.FormatInt(sess.UserID, 10),
		authpb.FieldAccessToken:      sess.AccessToken,
		authpb.FieldAccessExpiresAt:  sess.AccessExpiresAt.UTC().Format(time.RFC3339),
		authpb.FieldRefreshToken:     sess.RefreshToken,
		authpb.FieldRefreshExpiresAt: sess.RefreshExpiresAt.UTC().Format(time.RFC3339),
	})
}

func empty() *structpb.Struct { return &structpb.Struct{} }

func (s *GRPCServer) SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldEmail, authpb.FieldPassword)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registration request")

	u, err := s.verification.Register(ctx, f[0], f[1], authpb.String(in, authpb.FieldFirstName), authpb.String(in, authpb.FieldLastName))
	if err != nil {
		return nil, s.toStatus(ctx, "sign up", err)
	}

	return reply(map[string]any{authpb.FieldUserID: strconv.FormatInt(u.ID, 10)})
}

func (s *GRPCServer) ConfirmEmail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldToken)
	if err != nil {
		return nil, err
	}

	if err := s.verification.ConfirmEmail(ctx, f[0]); err != nil {
		return nil, s.toStatus(ctx, "confirm email", err)
	}
	return empty(), nil
}

func (s *GRPCServer) ResendConfirmation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldUserID)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "user_id must be a number")
	}

	if err := s.verification.ResendSignupConfirmation(ctx, userID); err != nil {
		return nil, s.toStatus(ctx, "resend confirmation", err)
	}
	return empty(), nil
}

func (s *GRPCServer) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldEmail, authpb.FieldPassword)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Login(ctx, f[0], f[1])
	if err != nil {
		return nil, s.toStatus(ctx, "sign in", err)
	}
	return sessionReply(sess)
}

func (s *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldRefreshToken)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Refresh(ctx, f[0])
	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}
	return sessionReply(sess)
}

func (s *GRPCServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldRefreshToken)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Logout(ctx, f[0]); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}
	return empty(), nil
}

func (s *GRPCServer) RequestPasswordReset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldEmail)
	if err != nil {
		return nil, err
	}

	if err := s.verification.RequestPasswordReset(ctx, f[0]); err != nil {
		return nil, s.toStatus(ctx, "request password reset", err)
	}
	return empty(), nil
}

func (s *GRPCServer) CompletePasswordReset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := fields(in, authpb.FieldToken, authpb.FieldPassword)
	if err != nil {
		return nil, err
	}

	u, err := s.verification.CompleteReset(ctx, f[0], f[1])
	if err != nil {
		return nil, s.toStatus(ctx, "complete password reset", err)
	}
	return reply(map[string]any{authpb.FieldUserID: strconv.FormatInt(u.ID, 10)})
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	out := map[string]any{
		authpb.FieldUserID: claims.Subject,
		authpb.FieldRoleID: strconv.FormatInt(claims.RoleID, 10),
	}
	if claims.ExpiresAt != nil {
		out[authpb.FieldAccessExpiresAt] = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return reply(out)
}
