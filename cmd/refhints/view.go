package main

import (
	"context"

	"github.com/spf13/cobra"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/app/refhints/tui"
)

func newViewCmd(c *cli) *cobra.Command {
	var reindex bool
	cmd := &cobra.Command{
		Use:   "view FILE",
		Short: "Show FILE with live reference hints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the viewer; logs go to the log file only.
			opts := runOptions{files: args, watchFiles: true, watchSettings: true}
			return c.runWithRuntime(cmd, opts, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				if err := ensureIndex(ctx, rt, reindex, rt.Logger.Writer()); err != nil {
					return err
				}
				if _, err := rt.OpenFile(args[0]); err != nil {
					return err
				}
				return tui.Run(ctx, rt)
			})
		},
	}
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the index before opening the viewer")
	return cmd
}
