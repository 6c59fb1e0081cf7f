package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/superjcast/showwatch/internal/app"
	"github.com/superjcast/showwatch/internal/server"
	"github.com/superjcast/showwatch/internal/utils"
	"github.com/superjcast/showwatch/pkg/tasks"
)

// runCmd implements: showwatch run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every periodic task, and the status server if configured, until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

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
		defer func() {
			if err := lock.Unlock(); err != nil {
				utils.Log.Warn(err)
			}
		}()

		env, err := app.New(ctx, cfg, utils.Log)
		if err != nil {
			return err
		}
		defer env.Close()

		serverDone := make(chan struct{})
		if cfg.HTTP.Listen != "" {
			srv := server.New(env.DB, env.Metrics.Handler(), cfg.HTTP.Username, cfg.HTTP.Password, utils.Log.WithField("component", "server"))
			srv.Now = env.Now
			go func() {
				defer close(serverDone)
				if err := srv.Start(ctx, cfg.HTTP.Listen); err != nil {
					utils.Log.Errorf("Status server stopped: %v", err)
					stop()
				}
			}()
		} else {
			close(serverDone)
		}

		sched := tasks.NewScheduler(tasks.Jobs(env), env.Metrics, utils.Log)
		err = sched.Run(ctx)
		<-serverDone
		utils.Log.Info("Shutting down")
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
