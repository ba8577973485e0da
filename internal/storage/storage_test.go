package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpress/inkpress/internal/shared"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestLocalSaveAndRemove(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root, "/media/")
	ctx := context.Background()

	url, err := store.Save(ctx, DirPosts, "Cover.PNG", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/posts/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	full := filepath.Join(root, "posts", filepath.Base(url))
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	require.NoError(t, store.Remove(ctx, url))
	_, err = os.Stat(full)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Remove(ctx, url))
}

func TestLocalSaveRejectsNonImages(t *testing.T) {
	store := NewLocal(t.TempDir(), "/media")
	ctx := context.Background()

	_, err := store.Save(ctx, DirUsers, "notes.txt", strings.NewReader("hello"))
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = store.Save(ctx, DirUsers, "fake.png", strings.NewReader("plain text pretending"))
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = store.Save(ctx, DirUsers, "empty.png", strings.NewReader(""))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLocalSaveConfinesSubdir(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root, "/media")

	url, err := store.Save(context.Background(), "../../etc", "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/etc/"))
	_, err = os.Stat(filepath.Join(root, "etc", filepath.Base(url)))
	assert.NoError(t, err)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/media/a.png", PublicURL("https://cdn.example.com/", "/media/a.png"))
	assert.Equal(t, "", PublicURL("https://cdn.example.com", ""))
	assert.Equal(t, "https://x/y.png", PublicURL("https://cdn.example.com", "https://x/y.png"))
}
