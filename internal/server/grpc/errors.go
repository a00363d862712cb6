package grpc

import (
	"context"

	"github.com/dmitrijs2005/utask/internal/authpb"
	"github.com/dmitrijs2005/utask/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var kindCodes = map[common.Kind]codes.Code{
	common.KindNoSuchUser:               codes.NotFound,
	common.KindNoSuchEmail:              codes.NotFound,
	common.KindBadCredentials:           codes.Unauthenticated,
	common.KindInvalidRefreshToken:      codes.Unauthenticated,
	common.KindReauthenticationRequired: codes.Unauthenticated,
	common.KindUserUnverified:           codes.FailedPrecondition,
	common.KindAlreadyVerified:          codes.FailedPrecondition,
	common.KindInvalidToken:             codes.InvalidArgument,
	common.KindTokenExpired:             codes.InvalidArgument,
	common.KindTooSoon:                  codes.ResourceExhausted,
	common.KindTooManyAttempts:          codes.ResourceExhausted,
	common.KindEmailInUse:               codes.AlreadyExists,
	common.KindTransient:                codes.Unavailable,
	common.KindInternal:                 codes.Internal,
}

// toStatus converts a service error into a status carrying only the client
// message of its kind. The kind itself goes into the error-kind trailer.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	kind := common.KindOf(err)

	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
		kind = common.KindInternal
	}

	switch code {
	case codes.Internal, codes.Unavailable:
		s.logger.Error(ctx, op+" failed", "error", err)
	default:
		s.logger.Info(ctx, op+" rejected", "kind", string(kind))
	}

	// outside of a call, e.g. in direct handler tests, there is no stream
	_ = grpc.SetTrailer(ctx, metadata.Pairs(authpb.ErrorKindTrailer, string(kind)))

	return status.Error(code, kind.Message())
}
