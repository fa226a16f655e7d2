// Package grpcfeed serves a cheap appointment count over gRPC so pollers
// need not download whole lists.
package grpcfeed

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"clinic-booking/internal/middleware"
	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

const (
	ServiceName = "clinic.v1.AppointmentFeed"
	CountMethod = "/" + ServiceName + "/CountAppointments"
)

// FeedServer is the service contract:
//
//	rpc CountAppointments(google.protobuf.StringValue) returns (google.protobuf.Int64Value);
//
// The request carries a doctor id; empty means the caller's own scope.
type FeedServer interface {
	CountAppointments(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CountAppointments", Handler: countHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clinic/v1/feed.proto",
}

func countHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeedServer).CountAppointments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CountMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FeedServer).CountAppointments(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Counter is the store query behind the feed.
type Counter interface {
	CountAppointments(ctx context.Context, doctorID string) (int64, error)
}

type Server struct {
	counter Counter
	log     *logging.Logger
}

func NewServer(c Counter, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{counter: c, log: logger}
}

// CountAppointments applies the same scoping as the HTTP list routes:
// doctors see their own count, admins any doctor's or the clinic total.
func (s *Server) CountAppointments(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	claims, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no token")
	}

	doctorID := in.GetValue()
	if claims.Role == model.RoleDoctor {
		if doctorID == "" {
			doctorID = claims.UserID
		}
		if doctorID != claims.UserID {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}
	}

	n, err := s.counter.CountAppointments(ctx, doctorID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		s.log.WithError(err).WithField("doctor_id", doctorID).Error("count appointments")
		return nil, status.Error(codes.Internal, "internal error")
	}
	return wrapperspb.Int64(n), nil
}

// openMethods skip authentication.
var openMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// NewGRPCServer builds a server with the feed and the standard health
// service registered.
func NewGRPCServer(feed *Server, authn *middleware.Authenticator, rl *middleware.RateLimiter) (*grpc.Server, *health.Server) {
	interceptors := []grpc.UnaryServerInterceptor{}
	if rl != nil {
		interceptors = append(interceptors, middleware.UnaryRateLimit(rl, map[string]bool{CountMethod: true}))
	}
	interceptors = append(interceptors, authn.UnaryAuth(openMethods))

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	srv.RegisterService(&ServiceDesc, feed)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
