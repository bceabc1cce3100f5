package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abyrne55/verifier-log-analysis/internal/merge"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
)

func newValidateCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check that every row of a verifier cron log parses",
		Long: `Validate parses every row of the CSV (use - for stdin) without contacting
any service. It stops at the first malformed row and reports its line and
field; otherwise it prints the number of rows, distinct clusters and
duplicate rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(cmd, rf); err != nil {
				return err
			}
			in, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			r, err := record.NewReader(in)
			if err != nil {
				return err
			}

			idx := merge.NewIndex()
			rows := 0
			for {
				o, err := r.Read()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				rows++
				idx.Add(o)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d valid rows, %d clusters, %d duplicate rows\n",
				args[0], rows, idx.Len(), idx.Duplicates())
			return nil
		},
	}
}
