package credential

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Token(ctx)
	require.ErrorIs(t, err, pnerrors.ErrNotAuthenticated)

	require.NoError(t, s.SetToken(ctx, "abc"))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", tok)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Token(ctx)
	require.ErrorIs(t, err, pnerrors.ErrNotAuthenticated)

	// Clearing twice is fine
	require.NoError(t, s.Clear(ctx))
}

func TestKVStore(t *testing.T) {
	exercise(t, NewKVStore(storage.NewMemory()))
}

func TestKeyringStore(t *testing.T) {
	exercise(t, NewKeyring(keyring.NewArrayKeyring(nil)))
}

func TestKVStoreTreatsEmptyTokenAsMissing(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(context.Background(), storage.KeyAuthToken, ""))
	_, err := NewKVStore(kv).Token(context.Background())
	require.ErrorIs(t, err, pnerrors.ErrNotAuthenticated)
}
