package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"scanmatch/internal/ipc"
	"scanmatch/internal/logging"
)

const followWaitMillis = 5000

func newMessagesCommand(ctx *commandContext) *cobra.Command {
	var follow, asJSON bool
	var limit int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show the daemon's status message log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runCtx, cancel := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Messages(ipc.MessagesRequest{Limit: limit})
				if err != nil {
					return err
				}
				if asJSON && !follow {
					events := resp.Events
					if events == nil {
						events = []logging.LogEvent{}
					}
					return writeJSON(cmd, events)
				}
				since := printEvents(stdout, resp.Events, resp.Next, asJSON, colorize)
				for follow && runCtx.Err() == nil {
					resp, err := client.Messages(ipc.MessagesRequest{Since: since, WaitMillis: followWaitMillis})
					if err != nil {
						if runCtx.Err() != nil {
							return nil
						}
						return err
					}
					since = printEvents(stdout, resp.Events, max(resp.Next, since), asJSON, colorize)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new messages")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of messages to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON (one event per line with --follow)")
	return cmd
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printEvents writes events and returns the sequence to resume from.
func printEvents(out io.Writer, events []logging.LogEvent, next uint64, asJSON, colorize bool) uint64 {
	since := next
	for _, evt := range events {
		if asJSON {
			fmt.Fprintln(out, eventJSON(evt))
		} else {
			fmt.Fprintln(out, formatEvent(evt, colorize))
		}
		if evt.Sequence > since {
			since = evt.Sequence
		}
	}
	return since
}

func formatEvent(evt logging.LogEvent, colorize bool) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("15:04:05"))
	b.WriteByte(' ')
	level := strings.ToUpper(evt.Level)
	if colorize {
		if color := statusKindColor(levelKind(level)); color != "" {
			level = color + level + ansiReset
		}
	}
	fmt.Fprintf(&b, "%-5s ", level)
	if evt.Component != "" {
		fmt.Fprintf(&b, "[%s] ", evt.Component)
	}
	b.WriteString(evt.Message)
	if len(evt.Fields) > 0 {
		keys := make([]string, 0, len(evt.Fields))
		for k := range evt.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
		}
	}
	return b.String()
}

func levelKind(level string) statusKind {
	switch level {
	case "ERROR":
		return statusError
	case "WARN":
		return statusWarn
	default:
		return statusInfo
	}
}
