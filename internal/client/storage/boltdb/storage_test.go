package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func requireBuckets(t *testing.T, db *bbolt.DB) {
	t.Helper()
	err := db.View(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if tx.Bucket(name) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		path    func(dir string) string
		wantErr bool
	}{
		{name: "new file", path: func(dir string) string { return filepath.Join(dir, "console.db") }},
		{name: "missing directory", path: func(dir string) string { return filepath.Join(dir, "missing", "dir", "db.bolt") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path(t.TempDir())

			store, err := New(context.Background(), path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.False(t, info.IsDir())
			requireBuckets(t, store.db)
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "console.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)
	assert.NoError(t, store.Close())
}

func TestInitBuckets_Idempotent(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "raw.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	store := &Storage{db: db}
	require.NoError(t, store.initBuckets())
	require.NoError(t, store.initBuckets())
	requireBuckets(t, db)
}

func TestKeys_ByteOrder(t *testing.T) {
	store := createTestStorage(t)

	for _, key := range []string{"pricing", "about", "home"} {
		require.NoError(t, store.putJSON(bucketSnapshots, []byte(key), map[string]string{"k": key}))
	}

	keys, err := store.keys(bucketSnapshots)
	require.NoError(t, err)
	assert.Equal(t, []string{"about", "home", "pricing"}, keys)

	err = store.getJSON(bucketSnapshots, []byte("missing"), &map[string]string{})
	assert.ErrorIs(t, err, errKeyNotFound)
}
