// Package client talks to the clinic REST API on behalf of the booking
// form, the doctor dashboard and the admin appointments view.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinic-booking/internal/model"
	"clinic-booking/internal/session"
	"clinic-booking/pkg/logging"
)

const DefaultTimeout = 15 * time.Second

type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	sess    *session.Manager
	log     *logging.Logger
	tracer  trace.Tracer
}

type Option func(*Client)

// WithHTTPClient sends requests through h. It is never modified; a
// WithTimeout applies to a copy.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, sess *session.Manager, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		sess:   sess,
		log:    logging.Default(),
		tracer: otel.Tracer("clinic-booking/client"),
	}
	for _, o := range opts {
		o(c)
	}
	switch {
	case c.http == nil:
		c.http = &http.Client{Timeout: DefaultTimeout}
		if c.timeout > 0 {
			c.http.Timeout = c.timeout
		}
	case c.timeout > 0:
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	if c.sess == nil {
		c.sess = session.NewManager(nil)
	}
	return c
}

func (c *Client) Session() *session.Manager { return c.sess }

// Login signs in and starts the session. Doctors keep their id as the
// dashboard scope.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", false,
		model.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if !out.User.Role.Valid() {
		return nil, fmt.Errorf("login: unknown user role %q", out.User.Role)
	}
	s := session.Session{Token: out.Token, UserID: out.User.ID, Role: out.User.Role}
	if out.User.Role == model.RoleDoctor {
		s.DoctorID = out.User.ID
	}
	if err := c.sess.Begin(ctx, s); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the token server-side when possible and always clears the
// local session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.sess.Current(ctx); err == nil {
		if err := c.do(ctx, http.MethodPost, "/api/auth/logout", true, nil, nil); err != nil &&
			!errors.Is(err, ErrUnauthorized) {
			c.log.WithError(err).Warn("server logout failed, clearing local session anyway")
		}
	}
	return c.sess.End(ctx)
}

// CreateAppointment is the public booking call; it needs no session.
func (c *Client) CreateAppointment(ctx context.Context, req model.BookingRequest) (*model.Appointment, error) {
	var out model.Appointment
	if err := c.do(ctx, http.MethodPost, "/api/appointments", false, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDoctorAppointments(ctx context.Context, doctorID string) ([]model.Appointment, error) {
	var out []model.Appointment
	err := c.do(ctx, http.MethodGet, "/api/appointments/"+url.PathEscape(doctorID), true, nil, &out)
	return out, err
}

func (c *Client) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	var out []model.Appointment
	err := c.do(ctx, http.MethodGet, "/api/appointments", true, nil, &out)
	return out, err
}

// MyAppointments lists what the signed-in user's view shows: a doctor's
// own bookings, or everything for an admin.
func (c *Client) MyAppointments(ctx context.Context) ([]model.Appointment, error) {
	s, err := c.sess.Current(ctx)
	if err != nil {
		return nil, err
	}
	if s.Role == model.RoleDoctor {
		return c.ListDoctorAppointments(ctx, s.DoctorID)
	}
	return c.ListAppointments(ctx)
}

func (c *Client) SetStatus(ctx context.Context, id string, to model.Status) (*model.Appointment, error) {
	var out model.Appointment
	path := "/api/appointments/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, true, model.StatusUpdate{Status: to}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Catalog(ctx context.Context) (*model.CatalogInfo, error) {
	var out model.CatalogInfo
	if err := c.do(ctx, http.MethodGet, "/api/catalog", false, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	op := method + " " + path
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.path", path))

	var token string
	if authed {
		s, err := c.sess.Current(ctx)
		if err != nil {
			return err
		}
		token = s.Token
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		nerr := &NetworkError{Op: op, Err: err}
		span.RecordError(nerr)
		span.SetStatus(codes.Error, "network")
		c.log.WithFields(logrus.Fields{"op": op, "timeout": nerr.Timeout(), "error": err}).Warn("request failed without response")
		return nerr
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 300 {
		aerr := c.apiError(resp)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		c.log.WithFields(logrus.Fields{"op": op, "status": resp.StatusCode}).Warn("request rejected by server")
		if authed && errors.Is(aerr, ErrUnauthorized) {
			if err := c.sess.End(ctx); err != nil {
				c.log.WithError(err).Warn("could not clear session")
			}
		}
		return aerr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) *APIError {
	if resp.StatusCode >= 500 {
		return &APIError{StatusCode: resp.StatusCode, Message: genericServerMessage}
	}
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Message == "" {
		eb.Message = strings.ToLower(http.StatusText(resp.StatusCode))
	}
	return &APIError{StatusCode: resp.StatusCode, Message: eb.Message}
}
