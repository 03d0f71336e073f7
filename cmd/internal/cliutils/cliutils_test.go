package cliutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/refhints/internal/settings"
	"github.com/lexcodex/refhints/tools"
)

type fakeClient struct {
	closed int
}

func (f *fakeClient) DocumentSymbols(context.Context, string) ([]protocol.DocumentSymbol, error) {
	return nil, nil
}

func (f *fakeClient) References(context.Context, string, protocol.Position) ([]protocol.Location, error) {
	return nil, nil
}

func (f *fakeClient) SyncDocument(context.Context, string, string, int32, string) error {
	return nil
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func TestNewProxyRegistersDescriptorExtensions(t *testing.T) {
	client := &fakeClient{}
	starts := 0
	addDescriptor([]string{"testlang", "tl"}, LSPDescriptor{
		Language: "testlang",
		Command:  "fake-cmd",
		Factory: func(root string) (tools.LSPClient, error) {
			starts++
			require.Equal(t, "/ws", root)
			return client, nil
		},
		Extensions: []string{"tl", "tlx"},
	})
	t.Cleanup(func() {
		delete(lspDescriptorMap, "testlang")
		delete(lspDescriptorMap, "tl")
	})

	proxy, err := NewProxy(ProxyOptions{Root: "/ws", Languages: []string{"testlang", "TL"}})
	require.NoError(t, err)
	require.Equal(t, 1, starts)
	require.ElementsMatch(t, []string{"tl", "tlx"}, proxy.Extensions())

	got, err := proxy.ClientFor("/ws/a.tlx")
	require.NoError(t, err)
	require.Same(t, client, got)

	require.NoError(t, proxy.Close())
	require.Equal(t, 1, client.closed)
}

func TestNewProxyErrors(t *testing.T) {
	_, err := NewProxy(ProxyOptions{Root: "."})
	require.True(t, errors.Is(err, tools.ErrNoClient))

	_, err = NewProxy(ProxyOptions{Root: ".", Languages: []string{"unknown-language"}})
	require.ErrorContains(t, err, "unsupported language")

	_, err = NewProxy(ProxyOptions{
		Root:      ".",
		Languages: []string{"zig"},
		Servers:   map[string]settings.ServerSettings{"zig": {Command: "zls"}},
	})
	require.ErrorContains(t, err, "extensions required")
}

func TestLookupAndInfer(t *testing.T) {
	desc, ok := LookupLSPDescriptor("GOPLS")
	require.True(t, ok)
	require.Equal(t, "go", desc.Language)
	require.Equal(t, "gopls", desc.Command)

	require.Equal(t, "cpp", InferLanguageByExtension("src/main.cc"))
	require.Equal(t, "typescript", InferLanguageByExtension("web/app.tsx"))
	require.Equal(t, "", InferLanguageByExtension("Makefile"))

	keys := SupportedLSPKeys()
	require.IsIncreasing(t, keys)
	require.Contains(t, keys, "rust-analyzer")

	seen := map[string]bool{}
	for _, desc := range Descriptors() {
		require.False(t, seen[desc.Language])
		seen[desc.Language] = true
	}
	require.True(t, seen["python"])
}
