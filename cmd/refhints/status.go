package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend, index and language server diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWithRuntime(cmd, runOptions{}, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				out := cmd.OutOrStdout()
				snap := rt.Status()
				fmt.Fprintf(out, "workspace: %s\n", snap.Workspace)
				fmt.Fprintf(out, "settings:  %s\n", rt.Settings.Path())
				fmt.Fprintf(out, "backend:   %s\n", snap.Backend)
				fmt.Fprintf(out, "enabled:   %v\n", snap.Enabled)
				if snap.Index != nil {
					fmt.Fprintf(out, "index:     %d files, %d symbols, %d references\n",
						snap.Index.TotalFiles, snap.Index.TotalSymbols, snap.Index.TotalRefs)
				}
				for _, server := range rt.ProbeServers() {
					writeProbe(out, server)
				}
				return nil
			})
		},
	}
}
