package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scanmatch/internal/daemonctl"
	"scanmatch/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, scanner and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			stdout := cmd.OutOrStdout()
			renderStatus(stdout, snapshot, shouldColorize(stdout))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(out io.Writer, snapshot *daemonctl.StatusSnapshot, colorize bool) {
	status := snapshot.Status

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	switch {
	case !snapshot.Reachable:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
	case !status.Running:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, fmt.Sprintf("Listening (pid %d) but session stopped", status.PID), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	}
	fmt.Fprintln(out, renderValueLine("Matcher", fmt.Sprintf("%s (level %d)", status.Engine, status.MatchingLevel)))
	fmt.Fprintln(out, renderValueLine("Enrolled users", fmt.Sprintf("%d (%s)", status.Enrolled, formatBytes(status.DatabaseBytes))))
	fmt.Fprintln(out, renderValueLine("Database", status.DatabasePath))
	fmt.Fprintln(out, renderValueLine("Exports", status.ExportDir))

	if snapshot.Reachable && status.Running {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Session", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, line := range sessionLines(status, colorize) {
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Environment", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range snapshot.Checks {
		fmt.Fprintln(out, renderStatusLine(check.Name, checkKind(check), check.Detail, colorize))
	}
}

func sessionLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("State", stateKind(status.State), humanize(status.State), colorize),
	}
	if text := strings.TrimSpace(status.StatusText); text != "" {
		lines = append(lines, renderValueLine("Status", text))
	}
	device := status.Device
	if device == "" {
		device = "-"
	}
	lines = append(lines,
		renderValueLine("Scanner", fmt.Sprintf("%s (%d attached, open: %s)", device, status.DeviceCount, yesNo(status.DeviceOpen))),
	)
	if status.CaptureType != "" {
		lines = append(lines, renderValueLine("Capture type", humanize(status.CaptureType)))
	}
	if status.Action != "" {
		progress := fmt.Sprintf("%s %d/%d", humanize(status.Action), status.ImagesCaptured, status.ImagesRequired)
		if text := strings.TrimSpace(status.ActionText); text != "" {
			progress += " - " + text
		}
		lines = append(lines, renderValueLine("Action", progress))
	}
	if len(status.Qualities) > 0 {
		lines = append(lines, renderValueLine("Finger quality", strings.Join(status.Qualities, ", ")))
	}
	if status.Preview != "" {
		lines = append(lines, renderValueLine("Preview", status.Preview))
	}
	if last := status.LastAction; last != nil {
		detail := fmt.Sprintf("%s: %d image(s), %d template(s)", humanize(last.Kind), last.Images, last.Templates)
		if last.Quality > 0 {
			detail += ", NFIQ " + strconv.Itoa(last.Quality)
		}
		kind := statusOK
		if !last.Finished {
			kind = statusWarn
			detail += " (aborted)"
		}
		lines = append(lines, renderStatusLine("Last action", kind, detail, colorize))
	}
	if match := status.LastMatch; match != nil {
		if match.Matched {
			lines = append(lines, renderStatusLine("Last match", statusOK, fmt.Sprintf("%s (score %d)", match.Name, match.Score), colorize))
		} else {
			lines = append(lines, renderStatusLine("Last match", statusWarn, "No match", colorize))
		}
	}
	if status.PendingEnrollment {
		lines = append(lines, renderStatusLine("Enrollment", statusInfo, "Template pending; run `scanmatch enroll --name <user>`", colorize))
	}
	return lines
}
