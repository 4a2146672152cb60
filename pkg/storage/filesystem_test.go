package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreLifecycle(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/api/files/images/", NewSignedURLSigner("secret", time.Hour))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "images/a.png", "image/png", strings.NewReader("png-bytes"), 9))

	url, expiresAt, err := store.SignedURL(ctx, "images/a.png", time.Hour)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/api/files/images/"))
	require.True(t, expiresAt.After(time.Now()))

	key, err := store.Resolve(strings.TrimPrefix(url, "/api/files/images/"))
	require.NoError(t, err)
	require.Equal(t, "images/a.png", key)

	file, err := store.Open(key)
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.Equal(t, "png-bytes", string(body))

	require.NoError(t, store.Delete(ctx, "images/a.png"))
	require.ErrorIs(t, store.Delete(ctx, "images/a.png"), ErrObjectNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", NewSignedURLSigner("secret", time.Hour))
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.png", "image/png", strings.NewReader("x"), 1)
	require.Error(t, err)
	_, err = store.Open("")
	require.Error(t, err)
}

func TestLocalStorePutHonoursCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", NewSignedURLSigner("secret", time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Put(ctx, "images/b.png", "image/png", strings.NewReader("x"), 1)
	require.ErrorIs(t, err, context.Canceled)
	_, err = store.Open("images/b.png")
	require.ErrorIs(t, err, ErrObjectNotFound)
}
