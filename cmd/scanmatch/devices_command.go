package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scanmatch/internal/scanner/fprintd"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List scanners known to the daemon and to fprintd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if client, err := ctx.dialClient(); err != nil {
				fmt.Fprintln(stdout, renderStatusLine("Scanners", statusWarn, "daemon not running", colorize))
			} else {
				status, statusErr := client.Status()
				client.Close()
				if statusErr != nil {
					return statusErr
				}
				device := status.Device
				if device == "" {
					device = "none selected"
				}
				kind := statusOK
				if status.DeviceCount == 0 {
					kind = statusWarn
				}
				fmt.Fprintln(stdout, renderStatusLine("Scanners", kind, fmt.Sprintf("%d attached, %s", status.DeviceCount, device), colorize))
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("fprintd", colorize) {
				fmt.Fprintln(stdout, line)
			}
			queryCtx, cancel := context.WithTimeout(commandContextOrBackground(cmd), 5*time.Second)
			defer cancel()
			return listFprintdReaders(queryCtx, stdout, username, colorize)
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "List fprintd fingers enrolled for this user (defaults to the current user)")
	return cmd
}

func listFprintdReaders(ctx context.Context, out io.Writer, username string, colorize bool) error {
	client, err := fprintd.Connect()
	if err == nil {
		var readers []fprintd.Reader
		readers, err = client.Readers(ctx)
		if err == nil {
			return renderReaders(ctx, out, client, readers, resolveUsername(username))
		}
	}
	if errors.Is(err, fprintd.ErrUnavailable) {
		fmt.Fprintln(out, renderStatusLine("fprintd", statusWarn, "not available on the system bus", colorize))
		return nil
	}
	return err
}

func renderReaders(ctx context.Context, out io.Writer, client *fprintd.Client, readers []fprintd.Reader, username string) error {
	if len(readers) == 0 {
		fmt.Fprintln(out, "No fprintd readers")
		return nil
	}
	rows := make([][]string, 0, len(readers))
	for _, r := range readers {
		fingers := "-"
		if username != "" {
			if list, err := client.EnrolledFingers(ctx, r.Path, username); err == nil && len(list) > 0 {
				fingers = strings.Join(list, ", ")
			}
		}
		def := ""
		if r.Default {
			def = "*"
		}
		rows = append(rows, []string{def, r.Name, r.ScanType, strconv.Itoa(int(r.EnrollStages)), fingers})
	}
	fmt.Fprint(out, renderTable(
		[]string{"", "Reader", "Scan type", "Enroll stages", "Enrolled (" + username + ")"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func resolveUsername(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
