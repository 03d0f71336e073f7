package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/internal/settings"
)

func newIndexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the workspace reference index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Backend == "" {
				c.cfg.Backend = settings.BackendIndex
			}
			return c.runWithRuntime(cmd, runOptions{}, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				report, err := rt.IndexWorkspace(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "scanned %d, indexed %d, skipped %d, failed %d in %s\n",
					report.Scanned, report.Indexed, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
				stats, err := rt.Index.Stats()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d files, %d symbols, %d references, %d bytes\n",
					stats.TotalFiles, stats.TotalSymbols, stats.TotalRefs, stats.DatabaseSize)
				languages := make([]string, 0, len(stats.FilesByLanguage))
				for language := range stats.FilesByLanguage {
					languages = append(languages, language)
				}
				sort.Strings(languages)
				for _, language := range languages {
					fmt.Fprintf(out, "  %-12s %d\n", language, stats.FilesByLanguage[language])
				}
				return nil
			})
		},
	}
}
