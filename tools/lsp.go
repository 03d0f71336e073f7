package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/refhints/framework/editor"
)

// ErrNoClient is returned when no language server is registered for a file.
var ErrNoClient = errors.New("no LSP client")

// DefaultSymbolCacheSize bounds the number of cached document symbol trees.
const DefaultSymbolCacheSize = 128

// LSPClient defines required operations for the language server proxy.
type LSPClient interface {
	// DocumentSymbols returns the hierarchical symbols of file. Servers that
	// answer with flat SymbolInformation are converted to childless symbols.
	DocumentSymbols(ctx context.Context, file string) ([]protocol.DocumentSymbol, error)
	// References lists uses of the symbol at pos, excluding its declaration.
	// A nil slice means the server answered null.
	References(ctx context.Context, file string, pos protocol.Position) ([]protocol.Location, error)
	// SyncDocument sends the full text of file to the server, opening it on
	// first use.
	SyncDocument(ctx context.Context, file, languageID string, version int32, text string) error
	Close() error
}

type docState struct {
	version int32
	hash    uint64
}

// Proxy manages multiple LSP clients keyed by file extension.
type Proxy struct {
	mu      sync.RWMutex
	clients map[string]LSPClient

	// syncMu serializes document synchronisation so concurrent reference
	// queries on one snapshot send it once.
	syncMu sync.Mutex
	docs   map[string]docState

	symbols *lru.Cache[string, []protocol.DocumentSymbol]
}

// NewProxy creates a proxy instance with an LRU symbol cache of size
// entries; size <= 0 selects DefaultSymbolCacheSize.
func NewProxy(size int) *Proxy {
	if size <= 0 {
		size = DefaultSymbolCacheSize
	}
	cache, _ := lru.New[string, []protocol.DocumentSymbol](size)
	return &Proxy{
		clients: make(map[string]LSPClient),
		docs:    make(map[string]docState),
		symbols: cache,
	}
}

// Register registers a client for a file extension, with or without the
// leading dot.
func (p *Proxy) Register(ext string, client LSPClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[strings.TrimPrefix(ext, ".")] = client
}

// ClientFor returns the client registered for file's extension.
func (p *Proxy) ClientFor(file string) (LSPClient, error) {
	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	p.mu.RLock()
	defer p.mu.RUnlock()
	client, ok := p.clients[ext]
	if !ok {
		return nil, fmt.Errorf("%w for extension %q", ErrNoClient, ext)
	}
	return client, nil
}

// Extensions lists the registered extensions.
func (p *Proxy) Extensions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	exts := make([]string, 0, len(p.clients))
	for ext := range p.clients {
		exts = append(exts, ext)
	}
	return exts
}

// sync pushes snap to the server unless the server already holds the same
// text. Versions increase monotonically per document.
func (p *Proxy) sync(ctx context.Context, client LSPClient, snap editor.Snapshot) error {
	uri := pathToURI(snap.Path())
	hash := snap.Hash()
	p.syncMu.Lock()
	defer p.syncMu.Unlock()
	state, ok := p.docs[uri]
	if ok && state.hash == hash {
		return nil
	}
	languageID := snap.LanguageID()
	if languageID == "" {
		languageID = strings.TrimPrefix(filepath.Ext(snap.Path()), ".")
	}
	next := docState{version: state.version + 1, hash: hash}
	if err := client.SyncDocument(ctx, snap.Path(), languageID, next.version, snap.Text()); err != nil {
		return fmt.Errorf("sync %s: %w", snap.Path(), err)
	}
	p.docs[uri] = next
	return nil
}

func symbolCacheKey(snap editor.Snapshot) string {
	return fmt.Sprintf("%s@%016x", pathToURI(snap.Path()), snap.Hash())
}

// DocumentSymbols returns the symbol tree for snap, served from the cache
// when the same text was asked for before.
func (p *Proxy) DocumentSymbols(ctx context.Context, snap editor.Snapshot) ([]protocol.DocumentSymbol, error) {
	key := symbolCacheKey(snap)
	if cached, ok := p.symbols.Get(key); ok {
		return cached, nil
	}
	client, err := p.ClientFor(snap.Path())
	if err != nil {
		return nil, err
	}
	if err := p.sync(ctx, client, snap); err != nil {
		return nil, err
	}
	symbols, err := client.DocumentSymbols(ctx, snap.Path())
	if err != nil {
		return nil, err
	}
	p.symbols.Add(key, symbols)
	return symbols, nil
}

// References asks the server for uses of the symbol at pos in snap.
func (p *Proxy) References(ctx context.Context, snap editor.Snapshot, pos protocol.Position) ([]protocol.Location, error) {
	client, err := p.ClientFor(snap.Path())
	if err != nil {
		return nil, err
	}
	if err := p.sync(ctx, client, snap); err != nil {
		return nil, err
	}
	return client.References(ctx, snap.Path(), pos)
}

// Close shuts down every registered client once.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[LSPClient]bool)
	var errs []error
	for ext, client := range p.clients {
		if !seen[client] {
			seen[client] = true
			if err := client.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(p.clients, ext)
	}
	p.symbols.Purge()
	return errors.Join(errs...)
}
