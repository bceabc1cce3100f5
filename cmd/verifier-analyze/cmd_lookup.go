package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abyrne55/verifier-log-analysis/internal/format"
)

func newLookupCmd(rf *rootFlags) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "lookup CID...",
		Short: "Show whether clusters use a hosted control plane",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd, rf)
			if err != nil {
				return err
			}
			classifier, err := newClassifier(cfg)
			if err != nil {
				return err
			}
			// Failures are reported per row below.
			_ = classifier.Resolve(cmd.Context(), args, cfg.Parallel)

			mode := format.ASCII
			if markdown {
				mode = format.Markdown
			}
			tb := format.NewTable(mode).Header("Cluster", "HCP")
			failed := 0
			for _, id := range args {
				hosted, err := classifier.IsHostedControlPlane(cmd.Context(), id)
				if err != nil {
					failed++
					tb.Row(id, "error: "+err.Error())
					continue
				}
				tb.Row(id, hosted)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tb.String())
			if failed > 0 {
				return fmt.Errorf("%d of %d lookups failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render a Markdown table")
	addOCMFlags(cmd)
	return cmd
}
