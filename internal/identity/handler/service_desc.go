package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "coreauth.v1.AuthService"

// AuthServiceServer is the server API for coreauth.v1.AuthService.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Authenticate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogoutAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangeUsername(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// FullMethod returns the gRPC full method name for an AuthService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PublicMethods are the AuthService methods callable without a bearer token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		FullMethod("Register"):     true,
		FullMethod("Authenticate"): true,
		FullMethod("Refresh"):      true,
	}
}

type unaryMethod func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handle(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, h)
		},
	}
}

// ServiceDesc describes coreauth.v1.AuthService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		handle("Register", AuthServiceServer.Register),
		handle("Authenticate", AuthServiceServer.Authenticate),
		handle("Refresh", AuthServiceServer.Refresh),
		handle("Logout", AuthServiceServer.Logout),
		handle("LogoutAll", AuthServiceServer.LogoutAll),
		handle("DeleteAccount", AuthServiceServer.DeleteAccount),
		handle("GetAccount", AuthServiceServer.GetAccount),
		handle("ChangeUsername", AuthServiceServer.ChangeUsername),
		handle("ChangePassword", AuthServiceServer.ChangePassword),
		handle("ListSessions", AuthServiceServer.ListSessions),
		handle("RevokeSession", AuthServiceServer.RevokeSession),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coreauth/v1/auth.proto",
}

// RegisterAuthServiceServer registers srv with s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
