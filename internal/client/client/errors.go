package client

import (
	"errors"

	"github.com/dmitrijs2005/utask/internal/authpb"
	"github.com/dmitrijs2005/utask/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// RemoteError is a failed call as reported by the server.
type RemoteError struct {
	Code    codes.Code
	Kind    common.Kind
	Message string
	err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.err }

func mapError(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	re := &RemoteError{Code: st.Code(), Message: st.Message(), err: err}
	if v := trailer.Get(authpb.ErrorKindTrailer); len(v) > 0 {
		re.Kind = common.Kind(v[0])
	}

	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		re.err = ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		re.err = ErrUnavailable
	}

	return re
}
