package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/utask/internal/authpb"
	"github.com/dmitrijs2005/utask/internal/logging"
	"github.com/dmitrijs2005/utask/internal/server/auth"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/services"
	"google.golang.org/grpc"
)

// SessionService is the part of services.SessionIssuer the transport uses.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, value string) (*services.Session, error)
	Logout(ctx context.Context, value string) error
	Authenticate(accessToken string) (*auth.Claims, error)
}

// VerificationService is the part of services.VerificationWorkflow the
// transport uses.
type VerificationService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*models.User, error)
	ConfirmEmail(ctx context.Context, value string) error
	ResendSignupConfirmation(ctx context.Context, userID int64) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompleteReset(ctx context.Context, value, newPassword string) (*models.User, error)
}

type GRPCServer struct {
	address      string
	sessions     SessionService
	verification VerificationService
	logger       logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, ss SessionService, vs VerificationService) *GRPCServer {
	return &GRPCServer{
		address:      a,
		logger:       l.With("module", "grpc_server"),
		sessions:     ss,
		verification: vs,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	authpb.RegisterAuthServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
