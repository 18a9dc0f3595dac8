package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"scanmatch/internal/logging"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// eventJSON renders one message log event as a single JSON line.
func eventJSON(evt logging.LogEvent) string {
	data, err := json.Marshal(evt)
	if err != nil {
		return "{}"
	}
	return string(data)
}
