// Package authpb describes the AuthService gRPC contract. Requests and
// replies are google.protobuf.Struct messages keyed by the field names below,
// so the service needs no generated code.
package authpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "utask.auth.AuthService"

const (
	MethodSignUp                = "SignUp"
	MethodConfirmEmail          = "ConfirmEmail"
	MethodResendConfirmation    = "ResendConfirmation"
	MethodSignIn                = "SignIn"
	MethodRefresh               = "Refresh"
	MethodLogout                = "Logout"
	MethodRequestPasswordReset  = "RequestPasswordReset"
	MethodCompletePasswordReset = "CompletePasswordReset"
	MethodWhoAmI                = "WhoAmI"
)

// Field names used in request and reply structs.
const (
	FieldEmail            = "email"
	FieldPassword         = "password"
	FieldFirstName        = "first_name"
	FieldLastName         = "last_name"
	FieldUserID           = "user_id"
	FieldRoleID           = "role_id"
	FieldToken            = "token"
	FieldAccessToken      = "access_token"
	FieldAccessExpiresAt  = "access_expires_at"
	FieldRefreshToken     = "refresh_token"
	FieldRefreshExpiresAt = "refresh_expires_at"
)

// ErrorKindTrailer carries the machine readable failure kind of a failed
// call.
const ErrorKindTrailer = "error-kind"

// FullMethod returns "/utask.auth.AuthService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type AuthServiceServer interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmEmail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResendConfirmation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestPasswordReset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompletePasswordReset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodSignUp, AuthServiceServer.SignUp),
		method(MethodConfirmEmail, AuthServiceServer.ConfirmEmail),
		method(MethodResendConfirmation, AuthServiceServer.ResendConfirmation),
		method(MethodSignIn, AuthServiceServer.SignIn),
		method(MethodRefresh, AuthServiceServer.Refresh),
		method(MethodLogout, AuthServiceServer.Logout),
		method(MethodRequestPasswordReset, AuthServiceServer.RequestPasswordReset),
		method(MethodCompletePasswordReset, AuthServiceServer.CompletePasswordReset),
		method(MethodWhoAmI, AuthServiceServer.WhoAmI),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "utask/auth",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

// AuthServiceClient invokes AuthService methods over cc.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

// Call sends in to method and returns the reply struct.
func (c *AuthServiceClient) Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// String returns the string field key of s, or "".
func String(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
