package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking/internal/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func storesUnderTest(t *testing.T) map[string]Store {
	client, _ := setupTestRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")),
		"redis":  NewRedisStore(client, "test", 0),
	}
}

func TestManagerLifecycle(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(store)

			_, err := m.Current(ctx)
			assert.ErrorIs(t, err, ErrNoSession)

			require.NoError(t, m.Begin(ctx, Session{Token: "tok", UserID: "doc-1", Role: model.RoleDoctor}))
			s, err := m.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, "tok", s.Token)
			assert.Equal(t, "doc-1", s.DoctorID)

			// a second manager over the same store sees the persisted session
			s2, err := NewManager(store).Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, s, s2)

			require.NoError(t, m.End(ctx))
			_, err = m.Current(ctx)
			assert.ErrorIs(t, err, ErrNoSession)
			_, err = NewManager(store).Current(ctx)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestAdminSessionHasNoDoctorID(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Begin(context.Background(), Session{Token: "t", UserID: "adm", Role: model.RoleAdmin, DoctorID: "x"}))
	s, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.DoctorID)
}

func TestBeginRejectsEmptyToken(t *testing.T) {
	assert.Error(t, NewManager(nil).Begin(context.Background(), Session{Role: model.RoleAdmin}))
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileStore(path)
	require.NoError(t, fs.Save(context.Background(), &Session{Token: "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, fs.Clear(context.Background()))
	require.NoError(t, fs.Clear(context.Background()), "clearing twice is fine")
}

func TestRedisStoreTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	rs := NewRedisStore(client, "", time.Minute)
	require.NoError(t, rs.Save(context.Background(), &Session{Token: "t"}))

	assert.Equal(t, time.Minute, mr.TTL("clinic:session:default"))
	mr.FastForward(2 * time.Minute)

	_, err := rs.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
