package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/internal/settings"
	"github.com/lexcodex/refhints/tools"
)

const (
	helloSrc = "package demo\n\nfunc Hello() string { return \"hi\" }\n"
	twiceSrc = "package demo\n\nfunc Twice() string { return Hello() + Hello() }\n"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte(helloSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte(twiceSrc), 0o644))
	s := settings.Defaults()
	s.InlayHints.EditDebounceMs = 10
	require.NoError(t, settings.Save(settings.DefaultPath(dir), s))
	return dir
}

func newRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	rt, err := New(context.Background(), Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestConfigNormalize(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Workspace: dir, LogPath: "logs/run.log"}
	require.NoError(t, cfg.Normalize())
	require.Equal(t, settings.DefaultPath(dir), cfg.ConfigPath)
	require.Equal(t, filepath.Join(dir, "logs", "run.log"), cfg.LogPath)

	require.Error(t, (&Config{}).Normalize())
	require.Error(t, (&Config{Workspace: dir, Backend: "ctags"}).Normalize())
}

func TestRuntimeAnnotatesWithIndexBackend(t *testing.T) {
	dir := newWorkspace(t)
	rt := newRuntime(t, Config{Workspace: dir})
	require.Equal(t, settings.BackendIndex, rt.Config.Backend)
	require.Equal(t, filepath.Join(dir, ".refhints", "index.db"), rt.Config.IndexPath)

	report, err := rt.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Indexed)

	view, err := rt.OpenFile("a.go")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	annotations, err := rt.Annotate(ctx)
	require.NoError(t, err)
	require.Len(t, annotations, 1)
	require.Equal(t, "2 ", annotations[0].Text)
	require.Equal(t, strings.Index(helloSrc, "Hello"), annotations[0].Position)
	require.Len(t, view.InlaysOfKind(editor.InlaySymbolRefHint), 1)

	status := rt.Status()
	require.Equal(t, filepath.Join(dir, "a.go"), status.Path)
	require.Equal(t, 1, status.Hints)
	require.NotNil(t, status.Index)
	require.Equal(t, 2, status.Index.TotalFiles)
}

func TestRuntimeSettingsToggleClearsHints(t *testing.T) {
	dir := newWorkspace(t)
	rt := newRuntime(t, Config{Workspace: dir})
	_, err := rt.IndexWorkspace(context.Background())
	require.NoError(t, err)
	view, err := rt.OpenFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = rt.Annotate(ctx)
	require.NoError(t, err)

	require.NoError(t, rt.SetHintsEnabled(false))
	require.False(t, rt.Controller.Enabled())
	require.Empty(t, view.InlaysOfKind(editor.InlaySymbolRefHint))

	_, err = rt.Annotate(ctx)
	require.True(t, errors.Is(err, ErrHintsDisabled))
}

func TestRuntimeReportsDroppedRefreshes(t *testing.T) {
	dir := newWorkspace(t)
	rt := newRuntime(t, Config{Workspace: dir})
	_, err := rt.OpenFile("a.go")
	require.NoError(t, err)

	reasons := make(chan string, 4)
	unsubscribe := rt.OnDrop(func(_ uint64, reason string) { reasons <- reason })
	defer unsubscribe()
	require.NoError(t, rt.SetHintsEnabled(false))
	select {
	case reason := <-reasons:
		require.Equal(t, "cleared: disabled", reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no drop reported")
	}
}

func TestRuntimeAnnotateReturnsWhenHintsTurnOff(t *testing.T) {
	dir := newWorkspace(t)
	rt := newRuntime(t, Config{Workspace: dir})
	_, err := rt.IndexWorkspace(context.Background())
	require.NoError(t, err)
	view, err := rt.OpenFile("a.go")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		view.SetInlayHintsEnabled(true)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		done := make(chan error, 1)
		go func() {
			_, err := rt.Annotate(ctx)
			done <- err
		}()
		view.SetInlayHintsEnabled(false)
		select {
		case err := <-done:
			if err != nil {
				require.ErrorIs(t, err, ErrHintsDisabled)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("annotate kept waiting after hints were turned off")
		}
		cancel()
	}
}

func TestRuntimeSwitchingViewsDropsOldHints(t *testing.T) {
	dir := newWorkspace(t)
	rt := newRuntime(t, Config{Workspace: dir})
	_, err := rt.IndexWorkspace(context.Background())
	require.NoError(t, err)
	first, err := rt.OpenFile("a.go")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = rt.Annotate(ctx)
	require.NoError(t, err)

	second, err := rt.OpenFile("b.go")
	require.NoError(t, err)
	require.Empty(t, first.InlaysOfKind(editor.InlaySymbolRefHint))
	require.Same(t, second, rt.ActiveView())
}

func TestRuntimeLSPBackendNeedsProxy(t *testing.T) {
	dir := newWorkspace(t)
	_, err := New(context.Background(), Options{Config: Config{Workspace: dir, Backend: settings.BackendLSP}})
	require.True(t, errors.Is(err, tools.ErrNoClient))
}

func TestProbeBinaryMissing(t *testing.T) {
	result := ProbeBinary("go", "refhints-no-such-server")
	require.Empty(t, result.Path)
	require.NotEmpty(t, result.Error)
}
