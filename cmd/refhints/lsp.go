package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/cmd/internal/cliutils"
	"github.com/lexcodex/refhints/framework/ast"
	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/tools"
)

func newLSPCmd(c *cli) *cobra.Command {
	var (
		language string
		file     string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Probe language servers, or list the symbols a server reports for a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if file == "" {
				for _, desc := range cliutils.Descriptors() {
					if language != "" && desc.Language != language {
						continue
					}
					writeProbe(out, runtimesvc.ProbeBinary(desc.Language, desc.Command))
				}
				return nil
			}
			if language == "" {
				language = cliutils.InferLanguageByExtension(file)
			}
			s, err := c.loadSettings()
			if err != nil {
				return err
			}
			var stderr io.Writer = io.Discard
			if c.cfg.Verbose {
				stderr = cmd.ErrOrStderr()
			}
			proxy, err := cliutils.NewProxy(cliutils.ProxyOptions{
				Root:      c.cfg.Workspace,
				Languages: []string{language},
				Servers:   s.LSP,
				Stderr:    stderr,
			})
			if err != nil {
				return err
			}
			defer proxy.Close()
			path := file
			if !filepath.IsAbs(path) {
				path = filepath.Join(c.cfg.Workspace, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if client, err := proxy.ClientFor(path); err == nil {
				if provider, ok := client.(tools.ProcessMetadataProvider); ok {
					meta := provider.ProcessMetadata()
					fmt.Fprintf(out, "server %s pid %d\n", meta.Command, meta.PID)
				}
			}
			snap := editor.NewSnapshot(path, ast.NewLanguageDetector().Detect(path), string(data))
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			symbols, err := proxy.DocumentSymbols(ctx, snap)
			if err != nil {
				return err
			}
			writeSymbols(out, symbols, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "lang", "", "Language key (go, rust, cpp, typescript, javascript, lua, python)")
	cmd.Flags().StringVar(&file, "file", "", "File to request document symbols for")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	return cmd
}

func writeProbe(w io.Writer, server runtimesvc.ServerBinary) {
	if server.Error != "" {
		fmt.Fprintf(w, "%-12s %-28s missing (%s)\n", server.Language, server.Command, server.Error)
		return
	}
	fmt.Fprintf(w, "%-12s %-28s %s\n", server.Language, server.Command, server.Path)
}

func writeSymbols(w io.Writer, symbols []protocol.DocumentSymbol, depth int) {
	for _, sym := range symbols {
		fmt.Fprintf(w, "%*s%v %s %d:%d\n", depth*2, "", sym.Kind, sym.Name,
			sym.SelectionRange.Start.Line+1, sym.SelectionRange.Start.Character+1)
		writeSymbols(w, sym.Children, depth+1)
	}
}
