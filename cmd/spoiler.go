package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/superjcast/showwatch/internal/app"
	"github.com/superjcast/showwatch/internal/utils"
	"github.com/superjcast/showwatch/pkg/storage"
)

var spoilerCmd = &cobra.Command{
	Use:   "spoiler",
	Short: "Open, end or list spoiler embargoes by hand",
}

var spoilerOpenCmd = &cobra.Command{
	Use:   "open <title>",
	Short: "Open an embargo and announce it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		mode, _ := cmd.Flags().GetString("mode")
		thumb, _ := cmd.Flags().GetString("thumb")
		if m := storage.Mode(mode); m != storage.ModePrimary && m != storage.ModeSecondary {
			return fmt.Errorf("unknown mode %q, use primary or secondary", mode)
		}

		env, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		e, err := env.Spoiler.Open(cmd.Context(), args[0], storage.Mode(mode), hours, thumb)
		if errors.Is(err, storage.ErrEmbargoExists) {
			fmt.Fprintf(cmd.OutOrStdout(), "Spoiler embargo for %s already exists.\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Spoiler embargo for %s open until %s.\n", e.Title, e.EndsAt.Format(time.RFC1123))
		return nil
	},
}

var spoilerEndCmd = &cobra.Command{
	Use:   "end <title>",
	Short: "End an embargo now and announce it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		err = env.Spoiler.End(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrEmbargoNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No spoiler embargo found for %s.\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Spoiler embargo for %s ended.\n", args[0])
		return nil
	},
}

var spoilerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List active embargoes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		active, err := db.ActiveEmbargoes(cmd.Context(), "")
		if err != nil {
			return err
		}
		if len(active) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No active spoiler embargoes.")
			return nil
		}
		now := time.Now()
		rows := make([][]string, 0, len(active))
		for _, e := range active {
			rows = append(rows, []string{e.Title, string(e.Mode), e.EndsAt.UTC().Format("2006-01-02 15:04 MST"), humanize.RelTime(e.EndsAt, now, "ago", "from now")})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"TITLE", "MODE", "ENDS", ""}, rows))
		return nil
	},
}

// newEnv builds the full environment for commands that notify.
func newEnv(cmd *cobra.Command) (*app.Env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, utils.Log)
}

func init() {
	rootCmd.AddCommand(spoilerCmd)
	spoilerCmd.AddCommand(spoilerOpenCmd, spoilerEndCmd, spoilerStatusCmd)
	spoilerOpenCmd.Flags().Int("hours", 14, "Embargo length in hours")
	spoilerOpenCmd.Flags().String("mode", string(storage.ModePrimary), "Embargo mode: primary or secondary")
	spoilerOpenCmd.Flags().String("thumb", "", "Image shown with the announcement")
}
