package credstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/neilberkman/fieldhand/internal/core/db"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) (*db.DB, Store) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store, err := NewStore(StoreTypeSQLite, WithDatabase(database))
	require.NoError(t, err)
	return database, store
}

func newRedis(t *testing.T) (*miniredis.Miniredis, Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store, err := NewStore(StoreTypeRedis, WithRedisClient(client), WithRedisPrefix("test:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestStores(t *testing.T) {
	drivers := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { _, s := newSQLite(t); return s },
		"redis":  func(t *testing.T) Store { _, s := newRedis(t); return s },
	}

	for name, open := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			creds, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, creds, "fresh store must be empty")

			require.NoError(t, store.Save(ctx, Credentials{SessionID: "abc", Email: "farmer@example.com"}))
			creds, err = store.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, creds)
			assert.Equal(t, Credentials{SessionID: "abc", Email: "farmer@example.com"}, *creds)

			require.NoError(t, store.Save(ctx, Credentials{SessionID: "def", Email: "other@example.com"}))
			creds, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "def", creds.SessionID)

			assert.ErrorIs(t, store.Save(ctx, Credentials{SessionID: "only-id"}), ErrIncomplete)

			require.NoError(t, store.Clear(ctx))
			creds, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, creds)

			// Clearing an empty store is not an error
			assert.NoError(t, store.Clear(ctx))
		})
	}
}

func TestSQLiteStore_PartialStateIsCleared(t *testing.T) {
	ctx := context.Background()
	database, store := newSQLite(t)

	require.NoError(t, database.SaveState(ctx, map[string]string{KeySessionID: "orphan"}))

	creds, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	vals, err := database.LoadState(ctx, KeySessionID, KeyEmail)
	require.NoError(t, err)
	assert.Empty(t, vals, "orphaned key should have been removed")
}

func TestRedisStore_PartialStateIsCleared(t *testing.T) {
	ctx := context.Background()
	mr, store := newRedis(t)

	require.NoError(t, mr.Set("test:email", "farmer@example.com"))

	creds, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
	assert.False(t, mr.Exists("test:email"))
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, DefaultRedisPrefix, time.Hour)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Save(ctx, Credentials{SessionID: "abc", Email: "farmer@example.com"}))
	assert.Equal(t, time.Hour, mr.TTL("fieldhand:session_id"))
	assert.Equal(t, time.Hour, mr.TTL("fieldhand:email"))

	mr.FastForward(2 * time.Hour)
	creds, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestNewStore_Config(t *testing.T) {
	tests := []struct {
		name      string
		storeType StoreType
		wantErr   error
	}{
		{"memory needs nothing", StoreTypeMemory, nil},
		{"sqlite needs database", StoreTypeSQLite, ErrInvalidConfig},
		{"redis needs client", StoreTypeRedis, ErrInvalidConfig},
		{"unknown type", StoreType("etcd"), ErrInvalidStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.storeType)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
