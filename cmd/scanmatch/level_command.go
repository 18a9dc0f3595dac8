package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scanmatch/internal/ipc"
)

func newLevelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "level [1-7]",
		Short: "Show or set the matching level (1 lenient, 7 strict)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := 0
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 || parsed > 7 {
					return fmt.Errorf("matching level must be a number from 1 to 7, got %q", args[0])
				}
				level = parsed
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MatchingLevel(level)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Matching level: %d\n", resp.Level)
				return nil
			})
		},
	}
}
