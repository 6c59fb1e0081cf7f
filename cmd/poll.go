package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/superjcast/showwatch/internal/app"
	"github.com/superjcast/showwatch/internal/utils"
	"github.com/superjcast/showwatch/pkg/tasks"
)

var pollTasks = []string{tasks.TaskShows, tasks.TaskBroadcasts, tasks.TaskProfiles, tasks.TaskEpisodes, tasks.TaskSpoiler, tasks.TaskAnnounce}

// pollCmd implements: showwatch poll <task>
// Runs exactly one tick of the task, the same way the daemon would.
var pollCmd = &cobra.Command{
	Use:       "poll <" + strings.Join(pollTasks, "|") + ">",
	Short:     "Run one tick of a periodic task and exit",
	Args:      cobra.ExactValidArgs(1),
	ValidArgs: pollTasks,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		lock, err := utils.NewDBLock(cfg.DB.Path)
		if err != nil {
			return err
		}
		if err := lock.TryLock(); err != nil {
			return err
		}
		defer lock.Unlock()

		env, err := app.New(cmd.Context(), cfg, utils.Log)
		if err != nil {
			return err
		}
		defer env.Close()

		jobs := tasks.Jobs(env)
		job, ok := tasks.ByName(jobs, args[0])
		if !ok {
			return fmt.Errorf("unknown task: '%s'. See 'showwatch poll --help'", args[0])
		}
		return tasks.NewScheduler(jobs, env.Metrics, utils.Log).RunOnce(cmd.Context(), job)
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}
