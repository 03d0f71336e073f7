package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/cmd/internal/cliutils"
	"github.com/lexcodex/refhints/internal/settings"
	"github.com/lexcodex/refhints/tools"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds the persistent flags shared by every command.
type cli struct {
	cfg runtimesvc.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: runtimesvc.DefaultConfig()}
	root := &cobra.Command{
		Use:           "refhints",
		Short:         "Reference count hints for the symbols of a source file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.cfg.Normalize()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.Workspace, "workspace", c.cfg.Workspace, "Workspace directory")
	flags.StringVar(&c.cfg.ConfigPath, "config", "", "Settings file (default <workspace>/.refhints/config.yaml)")
	flags.StringVar(&c.cfg.Backend, "backend", "", "Reference backend (index or lsp)")
	flags.BoolVar(&c.cfg.Verbose, "verbose", false, "Trace every refresh in the log")

	root.AddCommand(
		newAnnotateCmd(c),
		newViewCmd(c),
		newIndexCmd(c),
		newStatusCmd(c),
		newLSPCmd(c),
		newConfigCmd(c),
	)
	return root
}

// runOptions tunes runWithRuntime for one command.
type runOptions struct {
	// files decide which language servers the lsp backend starts.
	files         []string
	logOutput     io.Writer
	watchFiles    bool
	watchSettings bool
}

// loadSettings reads the settings the runtime will see, without logging.
func (c *cli) loadSettings() (settings.Settings, error) {
	store, err := settings.Open(c.cfg.Workspace, c.cfg.ConfigPath, log.New(io.Discard, "", 0))
	if err != nil {
		return settings.Settings{}, err
	}
	return store.Settings(), nil
}

// buildProxy starts language servers when the lsp backend is selected.
func (c *cli) buildProxy(s settings.Settings, files []string, stderr io.Writer) (*tools.Proxy, error) {
	backend := c.cfg.Backend
	if backend == "" {
		backend = s.SymbolRefHints.Backend
	}
	if backend != settings.BackendLSP {
		return nil, nil
	}
	var languages []string
	for _, file := range files {
		if language := cliutils.InferLanguageByExtension(file); language != "" {
			languages = append(languages, language)
		}
	}
	for language := range s.LSP {
		languages = append(languages, language)
	}
	return cliutils.NewProxy(cliutils.ProxyOptions{
		Root:      c.cfg.Workspace,
		Languages: languages,
		Servers:   s.LSP,
		Stderr:    stderr,
	})
}

func (c *cli) runWithRuntime(cmd *cobra.Command, opts runOptions, fn func(context.Context, *runtimesvc.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.loadSettings()
	if err != nil {
		return err
	}
	stderr := io.Discard
	if c.cfg.Verbose && opts.logOutput != nil {
		stderr = opts.logOutput
	}
	proxy, err := c.buildProxy(s, opts.files, stderr)
	if err != nil {
		return err
	}
	rt, err := runtimesvc.New(ctx, runtimesvc.Options{
		Config:        c.cfg,
		LogOutput:     opts.logOutput,
		Proxy:         proxy,
		WatchFiles:    opts.watchFiles,
		WatchSettings: opts.watchSettings,
	})
	if err != nil {
		if proxy != nil {
			_ = proxy.Close()
		}
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}
