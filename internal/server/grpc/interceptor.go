package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/utask/internal/authpb"
	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// guarded lists the methods that need a valid access token.
var guarded = map[string]bool{
	authpb.FullMethod(authpb.MethodWhoAmI): true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if guarded[info.FullMethod] {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := s.sessions.Authenticate(accessToken)
		if err != nil {
			// clients refresh on exactly this message
			if errors.Is(err, common.ErrTokenExpired) {
				return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
			}
			return nil, status.Error(codes.Unauthenticated, common.KindInvalidToken.Message())
		}

		ctx = context.WithValue(ctx, claimsKey, claims)
	}

	return handler(ctx, req)
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}
