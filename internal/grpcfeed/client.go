package grpcfeed

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"clinic-booking/internal/client"
	"clinic-booking/internal/lifecycle"
	"clinic-booking/internal/session"
)

// Client calls the feed with the bearer token of the current session.
type Client struct {
	conn *grpc.ClientConn
	sess *session.Manager
	own  bool
}

func Dial(addr string, sess *session.Manager, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcfeed: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, sess: sess, own: true}, nil
}

// NewClient wraps an existing connection; Close leaves it open.
func NewClient(conn *grpc.ClientConn, sess *session.Manager) *Client {
	return &Client{conn: conn, sess: sess}
}

func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

// Count returns how many appointments doctorID has; "" uses the caller's scope.
// An Unauthenticated reply ends the local session like the REST client does.
func (c *Client) Count(ctx context.Context, doctorID string) (int64, error) {
	s, err := c.sess.Current(ctx)
	if err != nil {
		return 0, err
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+s.Token)

	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, CountMethod, wrapperspb.String(doctorID), out); err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.PermissionDenied:
			_ = c.sess.End(ctx)
			return 0, fmt.Errorf("grpcfeed: %w", client.ErrUnauthorized)
		case codes.Unavailable, codes.DeadlineExceeded:
			return 0, &client.NetworkError{Op: CountMethod, Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("grpcfeed: count: %w", err)
	}
	return out.GetValue(), nil
}

// CounterFor adapts Count to a poll source for one doctor.
func (c *Client) CounterFor(doctorID string) lifecycle.Counter {
	return lifecycle.CounterFunc(func(ctx context.Context) (int, error) {
		n, err := c.Count(ctx, doctorID)
		return int(n), err
	})
}
