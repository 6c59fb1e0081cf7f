package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/superjcast/showwatch/pkg/calendar"
	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/storage"
)

var showsCmd = &cobra.Command{
	Use:   "shows",
	Short: "Inspect and edit stored shows",
}

func collectionFlag(cmd *cobra.Command) (storage.Collection, error) {
	c, _ := cmd.Flags().GetString("collection")
	col := storage.Collection(c)
	if !col.Valid() {
		return "", fmt.Errorf("unknown collection %q", c)
	}
	return col, nil
}

var showsNextCmd = &cobra.Command{
	Use:   "next",
	Short: "List the next upcoming shows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listShows(cmd, func(db *storage.DB, col storage.Collection, now time.Time, n int) ([]storage.Show, error) {
			return db.NextShows(cmd.Context(), col, now, n)
		})
	},
}

var showsLastCmd = &cobra.Command{
	Use:   "last",
	Short: "List the most recent past shows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listShows(cmd, func(db *storage.DB, col storage.Collection, now time.Time, n int) ([]storage.Show, error) {
			return db.LastShows(cmd.Context(), col, now, n)
		})
	},
}

func listShows(cmd *cobra.Command, query func(*storage.DB, storage.Collection, time.Time, int) ([]storage.Show, error)) error {
	col, err := collectionFlag(cmd)
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("number")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	shows, err := query(db, col, now, n)
	if err != nil {
		return err
	}
	if len(shows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No shows found.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(showHeaders, showRows(shows, now)))
	return nil
}

var showsAddOtherCmd = &cobra.Command{
	Use:   "add-other <name> <start RFC3339>",
	Short: "Add a show of another promotion; its embargo uses the secondary mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return fmt.Errorf("start must look like 2022-05-15T17:00:00+09:00: %w", err)
		}
		hours, _ := cmd.Flags().GetInt("hours")
		if hours <= 0 {
			hours = viper.GetInt("spoiler.other_hours")
		}
		card, _ := cmd.Flags().GetString("card")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ch, err := db.UpsertShow(cmd.Context(), storage.Show{
			Collection:   storage.CollectionOther,
			Name:         args[0],
			DateKey:      start.Format("2006-01-02"),
			Start:        start.UTC(),
			SourceTZ:     datetime.TagUTC,
			RawWhen:      args[1],
			Card:         card,
			SpoilerHours: hours,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ch.Type, ch.Key)
		return nil
	},
}

var showsICSCmd = &cobra.Command{
	Use:   "ics",
	Short: "Export scheduled and other shows as iCalendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var shows []storage.Show
		for _, col := range []storage.Collection{storage.CollectionSchedule, storage.CollectionOther} {
			list, err := db.ListShows(cmd.Context(), col)
			if err != nil {
				return err
			}
			shows = append(shows, list...)
		}
		ics := calendar.Build(shows, time.Now())
		if out == "" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), ics)
			return err
		}
		return os.WriteFile(out, []byte(ics), 0o644)
	},
}

func init() {
	rootCmd.AddCommand(showsCmd)
	showsCmd.AddCommand(showsNextCmd, showsLastCmd, showsAddOtherCmd, showsICSCmd)
	for _, c := range []*cobra.Command{showsNextCmd, showsLastCmd} {
		c.Flags().IntP("number", "n", 5, "Number of shows to list")
		c.Flags().StringP("collection", "c", string(storage.CollectionSchedule), "Collection: schedule, result or other")
	}
	showsAddOtherCmd.Flags().Int("hours", 0, "Embargo length in hours (default spoiler.other_hours)")
	showsAddOtherCmd.Flags().String("card", "", "Link to the card or tickets")
	showsICSCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
}
