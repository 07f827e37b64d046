package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAliases(t *testing.T) {
	want := map[string]string{
		"the harbor building": "P120",
		"hq":                  "P180",
		"elm street tower":    "P160",
		"old depot":           "P999",
	}

	for _, name := range []string{"aliases.json", "aliases.yaml", "aliases.toml"} {
		t.Run(name, func(t *testing.T) {
			got, err := LoadAliases(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadAliases_Errors(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		got, err := LoadAliases(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty path is empty", func(t *testing.T) {
		got, err := LoadAliases("")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadAliases(filepath.Join("testdata", "aliases.txt"))
		assert.ErrorIs(t, err, ErrAliasFormat)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadAliases(filepath.Join("testdata", "broken.yaml"))
		assert.Error(t, err)
	})
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hq": "P180"}`), 0o600))

	aliases, err := LoadAliases(path)
	require.NoError(t, err)
	r, err := New(context.Background(), portfolio(), aliases, Config{})
	require.NoError(t, err)

	w, err := NewWatcher(path, r, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"the lighthouse": "P220"}`), 0o600))

	// A reload can observe a half-written file; wait for a clean one.
	deadline := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case err := <-w.Reloaded():
			reloaded = err == nil
		case <-deadline:
			t.Fatal("timed out waiting for alias reload")
		}
	}

	res := r.Resolve(context.Background(), []string{"The Lighthouse", "hq"})
	assert.Equal(t, StageAlias, res[0].Stage)
	assert.Equal(t, "P220", res[0].PropertyID)
	assert.NotEqual(t, StageAlias, res[1].Stage)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	r, err := New(context.Background(), portfolio(), nil, Config{})
	require.NoError(t, err)

	w, err := NewWatcher(filepath.Join(t.TempDir(), "aliases.yaml"), r, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}
