package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/histobench/pkg/errors"
)

func TestNewLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.BasePath())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_PutGet(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "2024/run.json", strings.NewReader(`{"ok":true}`), "application/json"))

	ok, err := s.Exists(ctx, "2024/run.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, "2024/run.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	assert.Equal(t, filepath.Join(s.BasePath(), "2024", "run.json"), s.URL("2024/run.json"))
}

func TestLocalStorage_Overwrite(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "r.txt", strings.NewReader("first version"), ""))
	require.NoError(t, s.Put(ctx, "r.txt", strings.NewReader("second"), ""))

	data, err := os.ReadFile(s.URL("r.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// no temporary files are left behind
	entries, err := os.ReadDir(s.BasePath())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStorage_Missing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "nope.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "nope.json")
	assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err))

	assert.NoError(t, s.Delete(ctx, "nope.json"))
}

func TestLocalStorage_Delete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "d.json", strings.NewReader("{}"), ""))
	require.NoError(t, s.Delete(ctx, "d.json"))

	ok, err := s.Exists(ctx, "d.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "../outside.json", "a/../../b.json"} {
		err := s.Put(ctx, key, strings.NewReader("x"), "")
		assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err), "key %q", key)
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Put(ctx, "x.json", strings.NewReader("{}"), "")
	assert.ErrorIs(t, err, context.Canceled)
}
