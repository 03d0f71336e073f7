package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
)

// ProcessLSPConfig defines the configuration for spinning up a language server process.
type ProcessLSPConfig struct {
	Command    string
	Args       []string
	RootDir    string
	LanguageID string
	// Stderr receives the server's stderr; nil discards it.
	Stderr io.Writer
}

type processLSPClient struct {
	cfg         ProcessLSPConfig
	cmd         *exec.Cmd
	conn        *jsonrpc2.Conn
	cancel      context.CancelFunc
	mu          sync.Mutex
	openedFiles map[protocol.DocumentURI]bool
	started     time.Time
}

// NewProcessLSPClient launches the configured language server and performs the LSP handshake.
func NewProcessLSPClient(cfg ProcessLSPConfig) (LSPClient, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required for LSP client")
	}
	if cfg.LanguageID == "" {
		return nil, errors.New("language id is required for LSP client")
	}
	root := cfg.RootDir
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = absRoot
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	client := newConnClient(ctx, cancel, cfg, &stdioReadWriteCloser{reader: stdout, writer: stdin})
	client.cmd = cmd
	if err := client.initialize(ctx, absRoot); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// newConnClient speaks LSP over rwc. The handshake is left to the caller.
func newConnClient(ctx context.Context, cancel context.CancelFunc, cfg ProcessLSPConfig, rwc io.ReadWriteCloser) *processLSPClient {
	client := &processLSPClient{
		cfg:         cfg,
		cancel:      cancel,
		openedFiles: make(map[protocol.DocumentURI]bool),
		started:     time.Now(),
	}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	client.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(handleServerRequest))
	return client
}

// handleServerRequest answers the requests servers commonly send during
// startup; notifications are ignored.
func handleServerRequest(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if req.Notif {
		return nil, nil
	}
	switch req.Method {
	case "window/workDoneProgress/create", "client/registerCapability", "client/unregisterCapability":
		return nil, nil
	case "workspace/configuration":
		var params protocol.ConfigurationParams
		if req.Params != nil {
			if err := json.Unmarshal(*req.Params, &params); err != nil {
				return nil, err
			}
		}
		return make([]interface{}, len(params.Items)), nil
	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled"}
	}
}

func (c *processLSPClient) initialize(ctx context.Context, root string) error {
	params := &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   protocol.DocumentURI(pathToURI(root)),
		ClientInfo: &protocol.ClientInfo{
			Name:    "refhints",
			Version: "0.1",
		},
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				References: &protocol.ReferencesTextDocumentClientCapabilities{},
				DocumentSymbol: &protocol.DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
			},
		},
	}
	var result protocol.InitializeResult
	if err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	return c.conn.Notify(ctx, "initialized", &protocol.InitializedParams{})
}

// Close terminates the underlying process and JSON-RPC connection.
func (c *processLSPClient) Close() error {
	if c == nil {
		return nil
	}
	if c.conn != nil {
		_ = c.conn.Notify(context.Background(), "exit", nil)
		_ = c.conn.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
	return nil
}

// fullTextChange replaces the whole document. It omits the range field so
// servers do not read it as an edit at 0:0.
type fullTextChange struct {
	Text string `json:"text"`
}

type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []fullTextChange                         `json:"contentChanges"`
}

func (c *processLSPClient) SyncDocument(ctx context.Context, file, languageID string, version int32, text string) error {
	uri := protocol.DocumentURI(pathToURI(file))
	c.mu.Lock()
	opened := c.openedFiles[uri]
	c.openedFiles[uri] = true
	c.mu.Unlock()

	if !opened {
		if languageID == "" {
			languageID = c.cfg.LanguageID
		}
		params := protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        uri,
				LanguageID: protocol.LanguageIdentifier(languageID),
				Version:    version,
				Text:       text,
			},
		}
		if err := c.conn.Notify(ctx, "textDocument/didOpen", params); err != nil {
			c.mu.Lock()
			delete(c.openedFiles, uri)
			c.mu.Unlock()
			return err
		}
		return nil
	}
	params := didChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []fullTextChange{{Text: text}},
	}
	return c.conn.Notify(ctx, "textDocument/didChange", params)
}

func (c *processLSPClient) References(ctx context.Context, file string, pos protocol.Position) ([]protocol.Location, error) {
	params := protocol.ReferenceParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(pathToURI(file))},
			Position:     pos,
		},
		Context: protocol.ReferenceContext{IncludeDeclaration: false},
	}
	var raw json.RawMessage
	if err := c.conn.Call(ctx, "textDocument/references", params, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	resp := []protocol.Location{}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *processLSPClient) DocumentSymbols(ctx context.Context, file string) ([]protocol.DocumentSymbol, error) {
	params := protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(pathToURI(file))},
	}
	var raw json.RawMessage
	if err := c.conn.Call(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		return nil, err
	}
	return decodeDocumentSymbols(raw)
}

// decodeDocumentSymbols accepts either response shape of
// textDocument/documentSymbol.
func decodeDocumentSymbols(raw json.RawMessage) ([]protocol.DocumentSymbol, error) {
	if isNull(raw) {
		return nil, nil
	}
	var infoSymbols []protocol.SymbolInformation
	if err := json.Unmarshal(raw, &infoSymbols); err == nil && len(infoSymbols) > 0 && infoSymbols[0].Location.URI != "" {
		symbols := make([]protocol.DocumentSymbol, 0, len(infoSymbols))
		for _, sym := range infoSymbols {
			symbols = append(symbols, protocol.DocumentSymbol{
				Name:           sym.Name,
				Kind:           sym.Kind,
				Range:          sym.Location.Range,
				SelectionRange: sym.Location.Range,
			})
		}
		return symbols, nil
	}
	var docSymbols []protocol.DocumentSymbol
	if err := json.Unmarshal(raw, &docSymbols); err != nil {
		return nil, errors.New("document symbol response not understood")
	}
	return docSymbols, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}

func pathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" {
		path = strings.ReplaceAll(path, "\\", "/")
		return "file:///" + strings.ReplaceAll(path, ":", "%3A")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}

func uriToPath(uri string) string {
	uri = strings.TrimPrefix(uri, "file://")
	if runtime.GOOS == "windows" {
		uri = strings.TrimPrefix(uri, "/")
	}
	uri = strings.ReplaceAll(uri, "%3A", ":")
	return filepath.FromSlash(uri)
}

// Wrapper helpers for known servers.

func NewRustAnalyzerClient(root string) (LSPClient, error) {
	return NewProcessLSPClient(ProcessLSPConfig{
		Command:    "rust-analyzer",
		RootDir:    root,
		LanguageID: "rust",
	})
}

func NewGoplsClient(root string) (LSPClient, error) {
	return NewProcessLSPClient(ProcessLSPConfig{
		Command:    "gopls",
		Args:       []string{"serve"},
		RootDir:    root,
		LanguageID: "go",
	})
}

func NewClangdClient(root string) (LSPClient, error) {
	return NewProcessLSPClient(ProcessLSPConfig{
		Command:    "clangd",
		RootDir:    root,
		LanguageID: "c",
	})
}

func NewTypeScriptClient(root string) (LSPClient, error) {
	return NewProcessLSPClient(ProcessLSPConfig{
		Command:    "typescript-language-server",
		Args:       []string{"--stdio"},
		RootDir:    root,
		LanguageID: "typescript",
	})
}

func NewLuaClient(root string) (LSPClient, error) {
	return NewProcessLSPClient(ProcessLSPConfig{
		Command:    "lua-language-server",
		RootDir:    root,
		LanguageID: "lua",
	})
}

func NewPythonLSPClient(root string) (LSPClient, error) {
	return NewProcessLSPClient(ProcessLSPConfig{
		Command:    "pylsp",
		RootDir:    root,
		LanguageID: "python",
	})
}
