package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

// resolveCmd implements: showwatch resolve "<raw date>"...
var resolveCmd = &cobra.Command{
	Use:   "resolve <raw date>...",
	Short: "Show how listing date strings are interpreted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResolved(cmd.OutOrStdout(), args)
	},
}

func printResolved(w io.Writer, raws []string) error {
	rows := make([][]string, 0, len(raws))
	for _, raw := range raws {
		r := datetime.Resolve(raw)
		rule, start := "unrecognized", ""
		if r.Recognized() {
			rule = r.Rule
			start = r.Start.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{raw, rule, string(r.Tag), start, storage.DateKey(r, raw)})
	}
	_, err := fmt.Fprintln(w, renderTable([]string{"RAW", "RULE", "TAG", "START (UTC)", "DATE KEY"}, rows))
	return err
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
