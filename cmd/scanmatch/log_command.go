package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scanmatch/internal/logs"
)

func newLogCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			stdout := cmd.OutOrStdout()

			chunk, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range chunk.Lines {
				fmt.Fprintln(stdout, line)
			}
			if !follow {
				if len(chunk.Lines) == 0 && chunk.Offset == 0 {
					fmt.Fprintf(stdout, "No daemon log at %s\n", path)
				}
				return nil
			}

			runCtx, cancel := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			offset := chunk.Offset
			for {
				next, err := logs.Since(runCtx, path, offset, 5*time.Second)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, line := range next.Lines {
					fmt.Fprintln(stdout, line)
				}
				offset = next.Offset
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	return cmd
}
