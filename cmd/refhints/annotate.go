package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

func newAnnotateCmd(c *cli) *cobra.Command {
	var (
		list    bool
		reindex bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "annotate FILE",
		Short: "Print FILE with a reference count before each symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{files: args}
			if c.cfg.Verbose {
				opts.logOutput = cmd.ErrOrStderr()
			}
			return c.runWithRuntime(cmd, opts, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				if err := ensureIndex(ctx, rt, reindex, cmd.ErrOrStderr()); err != nil {
					return err
				}
				view, err := rt.OpenFile(args[0])
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				annotations, err := rt.Annotate(ctx)
				if err != nil {
					return err
				}
				snap, _ := view.ActiveSnapshot()
				if list {
					writeAnnotationList(cmd.OutOrStdout(), snap, annotations)
					return nil
				}
				writeAnnotated(cmd.OutOrStdout(), snap, view.Inlays())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "Print one path:line:col entry per hint instead of the file")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the index before annotating")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up waiting for hints after this long")
	return cmd
}

// ensureIndex builds the index when asked to or when it is empty.
func ensureIndex(ctx context.Context, rt *runtimesvc.Runtime, force bool, progress io.Writer) error {
	if rt.Index == nil {
		return nil
	}
	if !force {
		stats, err := rt.Index.Stats()
		if err == nil && stats.TotalFiles > 0 {
			return nil
		}
	}
	report, err := rt.IndexWorkspace(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(progress, "indexed %d of %d files in %s\n", report.Indexed, report.Scanned, report.Duration.Round(time.Millisecond))
	return nil
}

func writeAnnotated(w io.Writer, snap editor.Snapshot, inlays []editor.Inlay) {
	lines := editor.RenderLines(snap, inlays)
	width := len(fmt.Sprint(len(lines)))
	for _, line := range lines {
		fmt.Fprintf(w, "%*d  %s\n", width, line.Number, line.String())
	}
}

func writeAnnotationList(w io.Writer, snap editor.Snapshot, annotations []refhints.Annotation) {
	for _, a := range annotations {
		p := snap.OffsetToPoint(a.Position)
		fmt.Fprintf(w, "%s:%d:%d: %s\n", snap.Path(), p.Line+1, p.Column+1, a.Text)
	}
}
