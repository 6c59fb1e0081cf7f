package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/superjcast/showwatch/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the showwatch database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := viper.GetString("db.path")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints row counts of every collection in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"TABLE", "ROWS"}, statsRows(stats), 2))
		return nil
	},
}

func statsRows(s storage.Stats) [][]string {
	cols := make([]string, 0, len(s.Shows))
	for c := range s.Shows {
		cols = append(cols, string(c))
	}
	sort.Strings(cols)
	var rows [][]string
	for _, c := range cols {
		rows = append(rows, []string{"shows/" + c, strconv.Itoa(s.Shows[storage.Collection(c)])})
	}
	return append(rows,
		[]string{"shows marked new", strconv.Itoa(s.NewShows)},
		[]string{"active embargoes", strconv.Itoa(s.Embargoes)},
		[]string{"episodes", strconv.Itoa(s.Episodes)},
		[]string{"profiles", strconv.Itoa(s.Profiles)},
		[]string{"profiles pending removal", strconv.Itoa(s.RemovedPending)},
	)
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd, statsCmd)
}
