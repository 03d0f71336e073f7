package cliutils

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lexcodex/refhints/internal/settings"
	"github.com/lexcodex/refhints/tools"
)

// LSPDescriptor captures metadata needed to start and register an LSP client.
type LSPDescriptor struct {
	// Language is the canonical key, also sent as the LSP language id.
	Language   string
	Command    string
	Factory    func(root string) (tools.LSPClient, error)
	Extensions []string
}

var lspDescriptorMap = map[string]LSPDescriptor{}

func init() {
	addDescriptor([]string{"go", "gopls"}, LSPDescriptor{Language: "go", Command: "gopls", Factory: tools.NewGoplsClient, Extensions: []string{"go"}})
	addDescriptor([]string{"rust", "rs", "rust-analyzer"}, LSPDescriptor{Language: "rust", Command: "rust-analyzer", Factory: tools.NewRustAnalyzerClient, Extensions: []string{"rs"}})
	addDescriptor([]string{"cpp", "clang", "clangd", "c", "cc"}, LSPDescriptor{Language: "cpp", Command: "clangd", Factory: tools.NewClangdClient, Extensions: []string{"c", "h", "cpp", "hpp", "cc", "cxx"}})
	addDescriptor([]string{"typescript", "ts"}, LSPDescriptor{Language: "typescript", Command: "typescript-language-server", Factory: tools.NewTypeScriptClient, Extensions: []string{"ts", "tsx"}})
	addDescriptor([]string{"javascript", "js"}, LSPDescriptor{Language: "javascript", Command: "typescript-language-server", Factory: tools.NewTypeScriptClient, Extensions: []string{"js", "jsx"}})
	addDescriptor([]string{"lua"}, LSPDescriptor{Language: "lua", Command: "lua-language-server", Factory: tools.NewLuaClient, Extensions: []string{"lua"}})
	addDescriptor([]string{"python", "py", "pylsp"}, LSPDescriptor{Language: "python", Command: "pylsp", Factory: tools.NewPythonLSPClient, Extensions: []string{"py"}})
}

func addDescriptor(keys []string, desc LSPDescriptor) {
	for _, key := range keys {
		lspDescriptorMap[strings.ToLower(key)] = desc
	}
}

// LookupLSPDescriptor finds the descriptor for a given key/alias.
func LookupLSPDescriptor(language string) (LSPDescriptor, bool) {
	desc, ok := lspDescriptorMap[strings.ToLower(language)]
	return desc, ok
}

// SupportedLSPKeys lists known aliases, sorted.
func SupportedLSPKeys() []string {
	keys := make([]string, 0, len(lspDescriptorMap))
	for key := range lspDescriptorMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Descriptors lists one descriptor per canonical language, sorted.
func Descriptors() []LSPDescriptor {
	seen := map[string]bool{}
	var out []LSPDescriptor
	for _, desc := range lspDescriptorMap {
		if seen[desc.Language] {
			continue
		}
		seen[desc.Language] = true
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

// ProxyOptions selects the language servers started for a proxy.
type ProxyOptions struct {
	Root      string
	Languages []string
	// Servers come from the settings file and take precedence over the
	// built-in descriptors for the same language.
	Servers map[string]settings.ServerSettings
	Stderr  io.Writer
}

// NewProxy starts one client per requested language and registers it for
// the language's extensions. Closing the proxy stops the servers.
func NewProxy(opts ProxyOptions) (*tools.Proxy, error) {
	if len(opts.Languages) == 0 {
		return nil, fmt.Errorf("%w: no language selected", tools.ErrNoClient)
	}
	proxy := tools.NewProxy(0)
	started := map[string]bool{}
	for _, language := range opts.Languages {
		key := canonicalLanguage(language)
		if started[key] {
			continue
		}
		client, extensions, err := startClient(language, key, opts)
		if err != nil {
			_ = proxy.Close()
			return nil, err
		}
		started[key] = true
		for _, ext := range extensions {
			proxy.Register(ext, client)
		}
	}
	return proxy, nil
}

func canonicalLanguage(language string) string {
	if desc, ok := LookupLSPDescriptor(language); ok {
		return desc.Language
	}
	return strings.ToLower(language)
}

func startClient(language, key string, opts ProxyOptions) (tools.LSPClient, []string, error) {
	desc, known := LookupLSPDescriptor(language)
	if server, ok := lookupServer(opts.Servers, language, key); ok {
		extensions := server.Extensions
		if len(extensions) == 0 {
			extensions = desc.Extensions
		}
		if len(extensions) == 0 {
			return nil, nil, fmt.Errorf("lsp server %s: extensions required", language)
		}
		client, err := tools.NewProcessLSPClient(tools.ProcessLSPConfig{
			Command:    server.Command,
			Args:       server.Args,
			RootDir:    opts.Root,
			LanguageID: key,
			Stderr:     opts.Stderr,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start %s: %w", server.Command, err)
		}
		return client, extensions, nil
	}
	if !known {
		return nil, nil, fmt.Errorf("unsupported language %s", language)
	}
	client, err := desc.Factory(opts.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", desc.Command, err)
	}
	return client, desc.Extensions, nil
}

func lookupServer(servers map[string]settings.ServerSettings, keys ...string) (settings.ServerSettings, bool) {
	for _, key := range keys {
		if server, ok := servers[key]; ok && server.Command != "" {
			return server, true
		}
	}
	return settings.ServerSettings{}, false
}

// InferLanguageByExtension returns a language key given a file path.
func InferLanguageByExtension(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return ""
	}
	switch ext {
	case "go":
		return "go"
	case "rs":
		return "rust"
	case "c", "h", "cpp", "hpp", "cc", "cxx":
		return "cpp"
	case "ts", "tsx":
		return "typescript"
	case "js", "jsx":
		return "javascript"
	case "lua":
		return "lua"
	case "py":
		return "python"
	default:
		return ext
	}
}
