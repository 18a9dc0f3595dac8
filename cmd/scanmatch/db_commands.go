package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scanmatch/internal/ipc"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and maintain the enrollment database",
	}
	dbCmd.AddCommand(newDBListCommand(ctx))
	dbCmd.AddCommand(newDBShowCommand(ctx))
	dbCmd.AddCommand(newDBRemoveCommand(ctx))
	dbCmd.AddCommand(newDBClearCommand(ctx))
	return dbCmd
}

func newDBListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List enrolled users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := ctx.openRecords()
			if err != nil {
				return err
			}
			defer session.Close()

			list, err := session.Access.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if list == nil {
					list = []ipc.Record{}
				}
				return writeJSON(cmd, list)
			}
			size, err := session.Access.Size(cmd.Context())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(stdout, "No users enrolled")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, rec := range list {
				rows = append(rows, []string{
					rec.Name,
					rec.Description,
					formatTime(rec.CreatedAt),
					formatTime(rec.ModifiedAt),
					strconv.Itoa(rec.TemplateBytes),
				})
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"Name", "Description", "Created", "Modified", "Template"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(stdout, "%d user(s), database %s\n", len(list), formatBytes(size))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDBShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one enrolled user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openRecords()
			if err != nil {
				return err
			}
			defer session.Close()

			rec, err := session.Access.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("%s is not enrolled", args[0])
			}
			if asJSON {
				return writeJSON(cmd, rec)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
				{"Name", rec.Name},
				{"Description", rec.Description},
				{"Created", formatTime(rec.CreatedAt)},
				{"Modified", formatTime(rec.ModifiedAt)},
				{"Finger position", strconv.Itoa(rec.Finger)},
				{"Image size", fmt.Sprintf("%dx%d", rec.Width, rec.Height)},
				{"Template", fmt.Sprintf("v%d, %d bytes", rec.TemplateVersion, rec.TemplateBytes)},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDBRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>...",
		Aliases: []string{"rm"},
		Short:   "Remove enrolled users",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openRecords()
			if err != nil {
				return err
			}
			defer session.Close()

			stdout := cmd.OutOrStdout()
			var failed []string
			for _, name := range args {
				if err := session.Access.Remove(cmd.Context(), name); err != nil {
					fmt.Fprintf(stdout, "%s: %v\n", name, err)
					failed = append(failed, name)
					continue
				}
				fmt.Fprintf(stdout, "Removed %s\n", name)
			}
			if len(failed) > 0 {
				return fmt.Errorf("could not remove %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func newDBClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every enrolled user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the database without --yes")
			}
			session, err := ctx.openRecords()
			if err != nil {
				return err
			}
			defer session.Close()

			removed, err := session.Access.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d user(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the database")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
