// Package grpcweb lets browsers call the gRPC feed over HTTP/1.1.
package grpcweb

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-booking/internal/middleware"
	"clinic-booking/pkg/logging"
)

const (
	contentType = "application/grpc-web+proto"
	frameHeader = 5
	trailerFlag = 0x80
	maxFrame    = 4 << 20
)

// Bridge translates gRPC-Web frames to native gRPC calls on conn.
type Bridge struct {
	conn    *grpc.ClientConn
	own     bool
	allowed map[string]bool
	log     *logging.Logger
}

// New dials the gRPC server at addr and forwards only the listed methods.
func New(addr string, methods []string, logger *logging.Logger) (*Bridge, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	b := NewWithConn(conn, methods, logger)
	b.own = true
	return b, nil
}

func NewWithConn(conn *grpc.ClientConn, methods []string, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[m] = true
	}
	return &Bridge{conn: conn, allowed: allowed, log: logger}
}

func (b *Bridge) Close() error {
	if !b.own {
		return nil
	}
	return b.conn.Close()
}

// ServeHTTP expects POST /<service>/<method> with one length-prefixed
// message. CORS is left to the router.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") {
		http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
		return
	}
	if !b.allowed[r.URL.Path] {
		writeError(w, codes.Unimplemented, "unknown method")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrame+frameHeader))
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return
	}
	payload, err := unframe(body)
	if err != nil {
		writeError(w, codes.InvalidArgument, err.Error())
		return
	}

	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		md.Set(middleware.ForwardedForKey, host)
	} else if r.RemoteAddr != "" {
		md.Set(middleware.ForwardedForKey, r.RemoteAddr)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	resp := &rawMsg{}
	if err := b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{})); err != nil {
		st, _ := status.FromError(err)
		b.log.WithField("method", r.URL.Path).WithField("code", st.Code().String()).Debug("grpc-web call failed")
		writeError(w, st.Code(), st.Message())
		return
	}
	writeSuccess(w, resp.data)
}

// unframe reads the 1-byte flag, 4-byte big-endian length and message.
func unframe(body []byte) ([]byte, error) {
	if len(body) < frameHeader {
		return nil, fmt.Errorf("body too short")
	}
	n := binary.BigEndian.Uint32(body[1:frameHeader])
	if n > maxFrame || int(n)+frameHeader > len(body) {
		return nil, fmt.Errorf("incomplete frame")
	}
	return body[frameHeader : frameHeader+int(n)], nil
}

func frame(flag byte, data []byte) []byte {
	f := make([]byte, frameHeader+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:frameHeader], uint32(len(data)))
	copy(f[frameHeader:], data)
	return f
}

// rawMsg carries already encoded protobuf bytes.
type rawMsg struct{ data []byte }

type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	v.(*rawMsg).data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "raw" }

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame(trailerFlag, []byte(fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, msg))))
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame(0x00, data))
	_, _ = w.Write(frame(trailerFlag, []byte("grpc-status:0\r\n")))
}
