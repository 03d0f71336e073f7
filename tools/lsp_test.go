package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/refhints/framework/editor"
)

type stubLSPClient struct {
	mu          sync.Mutex
	symbols     []protocol.DocumentSymbol
	refs        []protocol.Location
	refsErr     error
	symbolCalls int
	versions    []int32
	positions   []protocol.Position
	closed      int
}

func (s *stubLSPClient) DocumentSymbols(ctx context.Context, file string) ([]protocol.DocumentSymbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbolCalls++
	return s.symbols, nil
}

func (s *stubLSPClient) References(ctx context.Context, file string, pos protocol.Position) ([]protocol.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, pos)
	return s.refs, s.refsErr
}

func (s *stubLSPClient) SyncDocument(ctx context.Context, file, languageID string, version int32, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, version)
	return nil
}

func (s *stubLSPClient) Close() error {
	s.closed++
	return nil
}

func TestProxyRoutesByExtension(t *testing.T) {
	proxy := NewProxy(0)
	client := &stubLSPClient{}
	proxy.Register(".go", client)
	proxy.Register("mod", client)

	got, err := proxy.ClientFor("/ws/main.go")
	require.NoError(t, err)
	assert.Same(t, client, got)

	_, err = proxy.ClientFor("/ws/lib.rs")
	assert.True(t, errors.Is(err, ErrNoClient))
	assert.ElementsMatch(t, []string{"go", "mod"}, proxy.Extensions())

	require.NoError(t, proxy.Close())
	assert.Equal(t, 1, client.closed)
	assert.Empty(t, proxy.Extensions())
}

func TestProxyCachesSymbolsByContent(t *testing.T) {
	proxy := NewProxy(4)
	client := &stubLSPClient{symbols: []protocol.DocumentSymbol{{Name: "main"}}}
	proxy.Register("go", client)
	ctx := context.Background()

	first := editor.NewSnapshot("/ws/main.go", "go", "package main\n")
	_, err := proxy.DocumentSymbols(ctx, first)
	require.NoError(t, err)
	_, err = proxy.DocumentSymbols(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, client.symbolCalls)
	assert.Equal(t, []int32{1}, client.versions)

	second := editor.NewSnapshot("/ws/main.go", "go", "package main\n\nfunc main() {}\n")
	_, err = proxy.DocumentSymbols(ctx, second)
	require.NoError(t, err)
	_, err = proxy.References(ctx, second, protocol.Position{Line: 2, Character: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, client.symbolCalls)
	assert.Equal(t, []int32{1, 2}, client.versions, "same text must not be synced twice")
}

const utf16Sample = "package p\n\nvar x = \"\U0001F600\"; var Y = 1\n"

func TestLSPSourcesConvertUTF16(t *testing.T) {
	client := &stubLSPClient{
		symbols: []protocol.DocumentSymbol{{
			Name: "Y",
			Range: protocol.Range{
				Start: protocol.Position{Line: 2, Character: 14},
				End:   protocol.Position{Line: 2, Character: 23},
			},
			SelectionRange: protocol.Range{
				Start: protocol.Position{Line: 2, Character: 18},
				End:   protocol.Position{Line: 2, Character: 19},
			},
		}},
		refs: []protocol.Location{{URI: protocol.DocumentURI(pathToURI("/ws/other.go"))}},
	}
	proxy := NewProxy(0)
	proxy.Register("go", client)
	snap := editor.NewSnapshot("/ws/p.go", "go", utf16Sample)
	ctx := context.Background()

	symbols, err := (&LSPSymbolSource{Proxy: proxy}).DocumentSymbols(ctx, snap)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, strings.Index(utf16Sample, "var Y"), symbols[0].Range.Start)
	assert.Equal(t, strings.Index(utf16Sample, "Y"), symbols[0].SelectionRange.Start)
	assert.Equal(t, strings.Index(utf16Sample, "Y")+1, symbols[0].SelectionRange.End)

	refs := &LSPReferenceService{Proxy: proxy}
	locs, ok, err := refs.References(ctx, snap, strings.Index(utf16Sample, "Y"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, locs, 1)
	assert.Equal(t, filepath.FromSlash("/ws/other.go"), locs[0].Path)
	assert.Equal(t, protocol.Position{Line: 2, Character: 18}, client.positions[0])
}

func TestLSPReferenceServiceNoResult(t *testing.T) {
	client := &stubLSPClient{}
	proxy := NewProxy(0)
	proxy.Register("go", client)
	refs := &LSPReferenceService{Proxy: proxy}
	ctx := context.Background()

	_, ok, err := refs.References(ctx, editor.NewSnapshot("/ws/p.go", "go", "package p\n"), 0)
	assert.NoError(t, err)
	assert.False(t, ok, "null result means no answer")

	client.refsErr = errors.New("server crashed")
	_, ok, err = refs.References(ctx, editor.NewSnapshot("/ws/p.go", "go", "package p\n"), 0)
	assert.Error(t, err)
	assert.False(t, ok)

	_, ok, err = refs.References(ctx, editor.NewSnapshot("/ws/lib.rs", "rust", "fn main() {}\n"), 0)
	assert.NoError(t, err)
	assert.False(t, ok, "files without a server have no answer")

	symbols, err := (&LSPSymbolSource{Proxy: proxy}).DocumentSymbols(ctx, editor.NewSnapshot("/ws/lib.rs", "rust", ""))
	assert.NoError(t, err)
	assert.Nil(t, symbols)
}

func TestUTF16RoundTrip(t *testing.T) {
	snap := editor.NewSnapshot("/ws/p.go", "go", utf16Sample)
	for _, off := range []int{0, 9, 11, 20, strings.Index(utf16Sample, "Y"), len(utf16Sample)} {
		assert.Equal(t, off, positionToOffset(snap, offsetToPosition(snap, off)), "offset %d", off)
	}
	assert.Equal(t, strings.Index(utf16Sample, "\"; var"), positionToOffset(snap, protocol.Position{Line: 2, Character: 10}),
		"inside a surrogate pair rounds up")
	assert.Equal(t, len(utf16Sample)-1, positionToOffset(snap, protocol.Position{Line: 2, Character: 400}))
}

func TestDecodeDocumentSymbols(t *testing.T) {
	hierarchical := `[{"name":"Server","kind":23,"range":{"start":{"line":1,"character":0},"end":{"line":4,"character":1}},
		"selectionRange":{"start":{"line":1,"character":5},"end":{"line":1,"character":11}},
		"children":[{"name":"addr","kind":8,"range":{"start":{"line":2,"character":1},"end":{"line":2,"character":12}},
		"selectionRange":{"start":{"line":2,"character":1},"end":{"line":2,"character":5}}}]}]`
	symbols, err := decodeDocumentSymbols(json.RawMessage(hierarchical))
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "addr", symbols[0].Children[0].Name)

	flat := `[{"name":"main","kind":12,"location":{"uri":"file:///ws/main.go",
		"range":{"start":{"line":3,"character":0},"end":{"line":5,"character":1}}}}]`
	symbols, err = decodeDocumentSymbols(json.RawMessage(flat))
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, uint32(3), symbols[0].SelectionRange.Start.Line)

	symbols, err = decodeDocumentSymbols(json.RawMessage("null"))
	assert.NoError(t, err)
	assert.Nil(t, symbols)

	_, err = decodeDocumentSymbols(json.RawMessage(`{"bogus":true}`))
	assert.Error(t, err)
}

type fakeServer struct {
	mu     sync.Mutex
	notifs []string
	params []string
}

func (f *fakeServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if req.Notif {
		f.mu.Lock()
		f.notifs = append(f.notifs, req.Method)
		if req.Params != nil {
			f.params = append(f.params, string(*req.Params))
		} else {
			f.params = append(f.params, "")
		}
		f.mu.Unlock()
		return nil, nil
	}
	switch req.Method {
	case "initialize":
		return map[string]interface{}{"capabilities": map[string]interface{}{}}, nil
	case "textDocument/documentSymbol":
		return []protocol.DocumentSymbol{{Name: "main", Kind: protocol.SymbolKindFunction}}, nil
	case "textDocument/references":
		var params protocol.ReferenceParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		if params.Position.Line == 0 {
			return nil, nil
		}
		return []protocol.Location{{URI: params.TextDocument.URI}}, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: req.Method}
}

func (f *fakeServer) notifications() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notifs...), append([]string(nil), f.params...)
}

func TestProcessClientProtocol(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	server := &fakeServer{}
	ctx, cancel := context.WithCancel(context.Background())
	serverConn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(server.handle))
	defer serverConn.Close()

	client := newConnClient(ctx, cancel, ProcessLSPConfig{LanguageID: "go"}, clientSide)
	defer client.Close()
	root := t.TempDir()
	require.NoError(t, client.initialize(ctx, root))

	file := filepath.Join(root, "main.go")
	require.NoError(t, client.SyncDocument(ctx, file, "", 1, "package main\n"))
	require.NoError(t, client.SyncDocument(ctx, file, "go", 2, "package main\n\nfunc main() {}\n"))

	symbols, err := client.DocumentSymbols(ctx, file)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "main", symbols[0].Name)

	locs, err := client.References(ctx, file, protocol.Position{Line: 0})
	require.NoError(t, err)
	assert.Nil(t, locs, "null answer")
	locs, err = client.References(ctx, file, protocol.Position{Line: 2, Character: 5})
	require.NoError(t, err)
	assert.Len(t, locs, 1)

	methods, params := server.notifications()
	assert.Equal(t, []string{"initialized", "textDocument/didOpen", "textDocument/didChange"}, methods)
	assert.Contains(t, params[1], `"languageId":"go"`)
	assert.Contains(t, params[2], `"version":2`)
	assert.NotContains(t, params[2], `"range"`, "full-text changes carry no range")

	var provider ProcessMetadataProvider = client
	meta := provider.ProcessMetadata()
	assert.Zero(t, meta.PID)
	assert.False(t, meta.Started.IsZero())
}

func TestURIConversion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir", "main.go")
	uri := pathToURI(path)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.Equal(t, path, uriToPath(uri))
}

func TestLSPOutlineSource(t *testing.T) {
	client := &stubLSPClient{symbols: []protocol.DocumentSymbol{
		{Name: "x", Range: protocol.Range{Start: protocol.Position{Line: 2}, End: protocol.Position{Line: 2, Character: 12}}},
		{Name: "Y", Range: protocol.Range{Start: protocol.Position{Line: 2, Character: 14}, End: protocol.Position{Line: 2, Character: 23}}},
	}}
	proxy := NewProxy(0)
	proxy.Register("go", client)
	outline := &LSPOutlineSource{Proxy: proxy}

	entries := outline.Outline(editor.NewSnapshot("/ws/p.go", "go", utf16Sample))
	require.Len(t, entries, 2)
	assert.Equal(t, strings.Index(utf16Sample, "var x"), entries[0].Start)
	assert.Equal(t, strings.Index(utf16Sample, "var Y"), entries[1].Start)
	assert.Nil(t, outline.Outline(editor.NewSnapshot("/ws/lib.rs", "rust", "fn main() {}\n")))
}
