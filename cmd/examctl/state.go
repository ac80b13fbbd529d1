package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the server view of an assignment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, c, _ := setup(cmd)
			if err := requireIDs(v, "assignment"); err != nil {
				return err
			}
			state, err := c.State(cmd.Context(), v.GetInt64("assignment"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		},
	}
	cmd.Flags().Int64("assignment", 0, "Assignment ID (or EXAMCTL_ASSIGNMENT)")
	return cmd
}
