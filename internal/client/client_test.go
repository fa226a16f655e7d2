package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking/internal/model"
	"clinic-booking/internal/session"
	"clinic-booking/pkg/logging"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, session.NewManager(nil), WithLogger(logging.Discard())), srv
}

func signIn(t *testing.T, c *Client, role model.Role) {
	t.Helper()
	require.NoError(t, c.Session().Begin(context.Background(), session.Session{Token: "tok-1", UserID: "u-1", Role: role}))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginDoctorStartsScopedSession(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		var in model.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "doc@clinic.in", in.Email)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, model.LoginResponse{Token: "jwt", User: model.UserInfo{ID: "doc-7", Role: model.RoleDoctor}})
	})

	resp, err := c.Login(context.Background(), "doc@clinic.in", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, resp.User.Role)

	s, err := c.Session().Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jwt", s.Token)
	assert.Equal(t, "doc-7", s.DoctorID)
}

func TestLoginUnknownRoleDoesNotSignIn(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.LoginResponse{Token: "jwt", User: model.UserInfo{ID: "x", Role: "patient"}})
	})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	_, err = c.Session().Current(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLoginBadCredentialsSurfacesMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
	})

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "invalid credentials", ae.Message)
	assert.False(t, IsRetryable(err))
}

func TestAuthorizedCallWithoutSessionSendsNothing(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := c.ListAppointments(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestSetStatusSendsBearerAndBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/appointments/a%2F1/status", r.URL.EscapedPath())
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var in model.StatusUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		writeJSON(w, http.StatusOK, model.Appointment{ID: "a/1", Status: in.Status})
	})
	signIn(t, c, model.RoleDoctor)

	got, err := c.SetStatus(context.Background(), "a/1", model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, code, map[string]string{"message": "bad token"})
			})
			signIn(t, c, model.RoleAdmin)

			_, err := c.ListAppointments(context.Background())
			assert.ErrorIs(t, err, ErrUnauthorized)

			_, err = c.Session().Current(context.Background())
			assert.ErrorIs(t, err, session.ErrNoSession)
		})
	}
}

func TestServerFaultIsGenericAndRetryable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "pq: relation appointments does not exist"})
	})
	signIn(t, c, model.RoleAdmin)

	_, err := c.ListAppointments(context.Background())
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, genericServerMessage, ae.Message)
	assert.NotContains(t, UserMessage(err), "pq:")
	assert.True(t, IsRetryable(err))
}

func TestClientErrorWithoutBodyUsesStatusText(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	signIn(t, c, model.RoleDoctor)

	_, err := c.SetStatus(context.Background(), "a1", model.StatusCancelled)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "conflict", ae.Message)
}

func TestTimeoutIsRetryableNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c := New(srv.URL, nil, WithTimeout(30*time.Millisecond), WithLogger(logging.Discard()))

	_, err := c.Catalog(context.Background())
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
	assert.True(t, IsRetryable(err))
	assert.Contains(t, UserMessage(err), "too long")
}

func TestTimeoutOptionLeavesCallerClientAlone(t *testing.T) {
	shared := &http.Client{}

	c := New("http://clinic.example", nil, WithTimeout(time.Second), WithHTTPClient(shared))
	assert.Zero(t, shared.Timeout)
	assert.NotSame(t, shared, c.http)
	assert.Equal(t, time.Second, c.http.Timeout)

	c = New("http://clinic.example", nil, WithHTTPClient(http.DefaultClient), WithTimeout(2*time.Second))
	assert.Zero(t, http.DefaultClient.Timeout)
	assert.Equal(t, 2*time.Second, c.http.Timeout)

	c = New("http://clinic.example", nil, WithHTTPClient(shared))
	assert.Same(t, shared, c.http)

	c = New("http://clinic.example", nil)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil, WithLogger(logging.Discard()))
	_, err := c.CreateAppointment(context.Background(), model.BookingRequest{FullName: "x"})
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestCreateAppointmentIsPublic(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "status")
		assert.Equal(t, "Dr. Rohit Sharma", raw["doctor"])
		writeJSON(w, http.StatusCreated, model.Appointment{ID: "new", Status: model.StatusPending})
	})
	signIn(t, c, model.RoleDoctor)

	got, err := c.CreateAppointment(context.Background(), model.BookingRequest{FullName: "A", Doctor: "Dr. Rohit Sharma"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestMyAppointmentsScopesByRole(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeJSON(w, http.StatusOK, []model.Appointment{})
	})

	require.NoError(t, c.Session().Begin(context.Background(), session.Session{Token: "t", UserID: "doc-9", Role: model.RoleDoctor}))
	_, err := c.MyAppointments(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Session().Begin(context.Background(), session.Session{Token: "t", UserID: "adm", Role: model.RoleAdmin}))
	_, err = c.MyAppointments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/appointments/doc-9", "/api/appointments"}, paths)
}

func TestLogoutClearsEvenIfServerFails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	signIn(t, c, model.RoleDoctor)

	require.NoError(t, c.Logout(context.Background()))
	_, err := c.Session().Current(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}
