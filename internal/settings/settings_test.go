package settings

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)

	cfg := s.Configuration()
	assert.Equal(t, 700*time.Millisecond, cfg.EditDebounce)
	assert.True(t, cfg.HintsEnabled)
	assert.Equal(t, 1024, cfg.Capacity)
	assert.Equal(t, 1, cfg.ReferenceConcurrency)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
inlay_hints:
  edit_debounce_ms: 50
symbol_ref_hints:
  concurrency: 4
  backend: lsp
lsp:
  go:
    command: gopls
    args: [serve]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, s.InlayHints.EditDebounceMs)
	assert.True(t, s.InlayHints.Enabled, "unset keys keep their defaults")
	assert.Equal(t, 4, s.SymbolRefHints.Concurrency)
	assert.Equal(t, BackendLSP, s.SymbolRefHints.Backend)
	assert.Equal(t, 1024, s.SymbolRefHints.Capacity)
	assert.Equal(t, []string{"serve"}, s.LSP["go"].Args)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol_ref_hints:\n  backend: ctags\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol_ref_hint:\n  enabled: false\n"), 0o644))
	s, err := Load(path)
	require.ErrorContains(t, err, "symbol_ref_hint")
	assert.Equal(t, Defaults(), s)

	require.NoError(t, os.WriteFile(path, []byte("symbol_ref_hints:\n  enable: false\n"), 0o644))
	_, err = Load(path)
	require.ErrorContains(t, err, "enable")
}

func TestLoadEmptyFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	s := Defaults()
	s.SymbolRefHints.Capacity = 8
	require.NoError(t, Save(path, s))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.SymbolRefHints.Capacity)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvEditDebounceMs, "5")
	t.Setenv(EnvEnabled, "false")
	t.Setenv(EnvBackend, "LSP")
	t.Setenv(EnvConcurrency, "0")
	s := Defaults()
	require.NoError(t, s.ApplyEnv())
	assert.Equal(t, 5, s.InlayHints.EditDebounceMs)
	assert.False(t, s.SymbolRefHints.Enabled)
	assert.Equal(t, BackendLSP, s.SymbolRefHints.Backend)
	assert.Equal(t, 1, s.SymbolRefHints.Concurrency, "concurrency is clamped to sequential")

	t.Setenv(EnvConcurrency, "many")
	assert.Error(t, s.ApplyEnv())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadEnv(dir), "missing .env is not an error")

	const key = "REFHINTS_TEST_DOTENV"
	t.Cleanup(func() { os.Unsetenv(key) })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-file\n"), 0o644))
	require.NoError(t, LoadEnv(dir))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestStoreUpdateNotifiesSubscribers(t *testing.T) {
	store := NewStore("", Defaults(), quietLogger())
	var got []int
	unsubscribe := store.Subscribe(func(s Settings) { got = append(got, s.SymbolRefHints.Capacity) })

	next := Defaults()
	next.SymbolRefHints.Capacity = 3
	require.NoError(t, store.Update(next))
	assert.Equal(t, 3, store.Configuration().Capacity)

	bad := Defaults()
	bad.SymbolRefHints.Backend = "nope"
	assert.Error(t, store.Update(bad))
	assert.Equal(t, 3, store.Settings().SymbolRefHints.Capacity, "invalid updates are rejected")

	unsubscribe()
	require.NoError(t, store.Update(Defaults()))
	assert.Equal(t, []int{3}, got)
}

func TestStoreWatchReloadsFile(t *testing.T) {
	workspace := t.TempDir()
	path := DefaultPath(workspace)
	require.NoError(t, Save(path, Defaults()))
	store, err := Open(workspace, "", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	capacities := make(chan int, 16)
	store.Subscribe(func(s Settings) {
		select {
		case capacities <- s.SymbolRefHints.Capacity:
		default:
		}
	})
	watcher, err := store.Watch()
	require.NoError(t, err)
	defer watcher.Close()

	next := Defaults()
	next.SymbolRefHints.Capacity = 64
	require.NoError(t, Save(path, next))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-capacities:
			if c == 64 {
				assert.Equal(t, 64, store.Configuration().Capacity)
				return
			}
		case <-deadline:
			t.Fatal("settings change was not picked up")
		}
	}
}
