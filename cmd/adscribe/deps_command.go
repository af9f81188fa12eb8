package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"adscribe/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries used by the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))

			missing := 0
			for _, status := range statuses {
				if !status.Available && !status.Optional {
					missing++
				}
			}

			if jsonOut {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					state := "ok"
					if !status.Available {
						state = "missing"
						if status.Optional {
							state = "missing (optional)"
						}
					}
					rows = append(rows, []string{status.Name, status.Command, state, status.Description})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Dependency", "Command", "State", "Used for"}, rows, nil))
			}

			if missing > 0 {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
