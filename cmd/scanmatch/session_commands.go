package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scanmatch/internal/ipc"
	"scanmatch/internal/scanner"
	"scanmatch/internal/session"
)

func newSessionCommands(ctx *commandContext) []*cobra.Command {
	transition := func(use, short, done string, call func(*ipc.Client) (*ipc.SessionResponse, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := call(client)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (state: %s)\n", done, humanize(resp.State))
					return nil
				})
			},
		}
	}

	refreshCmd := transition("refresh", "Rescan for attached scanners", "Refresh requested",
		func(c *ipc.Client) (*ipc.SessionResponse, error) { return c.Refresh() })
	openCmd := transition("open", "Open the selected scanner", "Open requested",
		func(c *ipc.Client) (*ipc.SessionResponse, error) { return c.Open() })
	closeCmd := transition("close", "Close the open scanner", "Close requested",
		func(c *ipc.Client) (*ipc.SessionResponse, error) { return c.CloseDevice() })
	stopCmd := transition("stop", "Abort the running capture", "Stop requested",
		func(c *ipc.Client) (*ipc.SessionResponse, error) { return c.Stop() })

	return []*cobra.Command{
		refreshCmd,
		openCmd,
		closeCmd,
		newStartCommand(ctx),
		stopCmd,
		newCaptureTypeCommand(ctx),
	}
}

func actionNames() []string {
	kinds := session.ActionKinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:       "start <" + strings.Join(actionNames(), "|") + ">",
		Short:     "Start a capture action on the open scanner",
		Args:      cobra.ExactArgs(1),
		ValidArgs: actionNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := session.ParseActionKind(args[0])
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(kind.String())
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Started %s (action %s)\n", kind, resp.ActionID)
				if wait <= 0 {
					return nil
				}
				status, err := waitForAction(client, resp.ActionID, wait)
				if err != nil {
					return err
				}
				for _, line := range sessionLines(status, false) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the action to finish")
	return cmd
}

func waitForAction(client *ipc.Client, actionID string, timeout time.Duration) (*ipc.StatusResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		status, err := client.Status()
		if err != nil {
			return nil, err
		}
		if last := status.LastAction; last != nil && last.ActionID == actionID {
			return status, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("action %s did not finish within %s", actionID, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func newCaptureTypeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capture-type [type]",
		Short: "Show or select the capture type of the open scanner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if len(args) == 1 {
					if _, err := client.SetCaptureType(args[0]); err != nil {
						return err
					}
				}
				status, err := client.Status()
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(status.CaptureTypes))
				for _, name := range status.CaptureTypes {
					marker := ""
					if name == status.CaptureType {
						marker = "*"
					}
					description := name
					if t, err := scanner.ParseCaptureType(name); err == nil {
						description = t.Description()
					}
					rows = append(rows, []string{marker, name, description})
				}
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No capture types available; open a scanner first")
					return nil
				}
				fmt.Fprint(stdout, renderTable([]string{"", "Type", "Description"}, rows, nil))
				return nil
			})
		},
	}
}
