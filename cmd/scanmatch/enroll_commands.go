package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scanmatch/internal/export"
	"scanmatch/internal/ipc"
	"scanmatch/internal/records"
)

func newEnrollCommand(ctx *commandContext) *cobra.Command {
	var name, description string
	var update bool
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Store the template from the last enroll action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enroll(ipc.EnrollRequest{Name: name, Description: description, Update: update})
				if err != nil {
					return enrollError(err, name)
				}
				verb := "Enrolled"
				if update {
					verb = "Updated"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d byte template)\n", verb, resp.Record.Name, resp.Record.TemplateBytes)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "User name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Free-form description")
	cmd.Flags().BoolVar(&update, "update", false, "Replace the template of an existing user")
	return cmd
}

// enrollError adds a hint to the store's duplicate and missing-user errors.
// Errors cross the socket as text, so the sentinels are matched by message.
func enrollError(err error, name string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, records.ErrAlreadyEnrolled.Error()):
		return fmt.Errorf("%s is already enrolled; rerun with --update to replace the template", name)
	case strings.Contains(msg, records.ErrNotEnrolled.Error()):
		return fmt.Errorf("%s is not enrolled; rerun without --update to add the user", name)
	}
	return err
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatName, base string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the image or template of the last action to the export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := export.ParseFormat(formatName); err != nil {
				return fmt.Errorf("%w (choose one of %s)", err, strings.Join(formatNames(), ", "))
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Export(ipc.ExportRequest{Format: formatName, Name: base})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", resp.Path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "png", "Export format: "+strings.Join(formatNames(), ", "))
	cmd.Flags().StringVarP(&base, "name", "n", "", "Base file name (defaults to a timestamp)")
	return cmd
}

func formatNames() []string {
	formats := export.Formats()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.String())
	}
	return names
}
