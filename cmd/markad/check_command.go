package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"markad/internal/config"
	"markad/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [recording]",
		Short: "Check external tools, directories, and optionally a recording",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			recording := ""
			if len(args) == 1 {
				if recording, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}

			var rows [][]string
			failed := 0
			for _, st := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				state := "ok"
				if !st.Available {
					state = "missing"
					if st.Optional {
						state = "missing (optional)"
					} else {
						failed++
					}
				}
				detail := st.Detail
				if st.Available {
					detail = st.Path
				}
				rows = append(rows, []string{st.Name, st.Command, state, detail})
			}
			for _, r := range preflight.RunAll(cmd.Context(), cfg, recording) {
				state := "ok"
				if !r.Passed {
					state = "failed"
					failed++
				}
				rows = append(rows, []string{r.Name, "", state, r.Detail})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Command", "State", "Detail"}, rows, nil))
			if failed > 0 {
				return errors.New(pluralChecks(failed) + " failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All checks passed")
			return nil
		},
	}
}

func pluralChecks(n int) string {
	if n == 1 {
		return "1 check"
	}
	return fmt.Sprintf("%d checks", n)
}
