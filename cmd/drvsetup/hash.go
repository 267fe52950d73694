package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/integrity"
)

func (a *app) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file> [expected-sha256]",
		Short: "Compute a file's SHA-256, or verify it against an expected value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				sum, err := integrity.ComputeSHA256(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s\n", sum, path)
				return nil
			}

			res, err := integrity.Verify(path, args[1])
			if err != nil {
				return err
			}
			if !res.Valid {
				fmt.Fprintf(out, "MISMATCH %s\n  expected: %s\n  computed: %s\n", path, res.Expected, res.Computed)
				return withCode(ExitEntriesFailed, fmt.Errorf("sha256 mismatch for %s", path))
			}
			fmt.Fprintf(out, "OK %s\n", path)
			return nil
		},
	}
}
