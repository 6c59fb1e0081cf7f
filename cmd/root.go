package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/superjcast/showwatch/internal/config"
	"github.com/superjcast/showwatch/internal/utils"
	"github.com/superjcast/showwatch/pkg/storage"
)

var cfgFile string

const (
	LOGO = `       _                                _       _
   ___| |__   _____      ____ _____ _| |_ ___| |__
  / __| '_ \ / _ \ \ /\ / /\ V  V / _' | __/ __| '_ \
  \__ \ | | | (_) \ V  V /  \_/\_/ (_| | || (__| | | |
  |___/_| |_|\___/ \_/\_/          \__,_|\__\___|_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "showwatch",
	Short: "Event schedule watcher with spoiler embargoes.",
	Long: LOGO + `showwatch scrapes a promotion's event listings and broadcast schedule,
keeps them in a local database and announces new shows, live broadcasts and
spoiler embargoes to the configured notification sinks.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.showwatch.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("logformat", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the SQLite database (overrides db.path)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("loglevel"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("logformat"))
	_ = viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Secrets usually live in a .env next to the binary.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Error reading .env: %s\n", err)
	}

	home, err := homedir.Dir()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".showwatch")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SHOWWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			configPath := filepath.Join(home, ".showwatch.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	// Init log library
	utils.SetLogLevel(viper.GetString("log.level"))
	utils.SetLogFormat(viper.GetString("log.format"))
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// openDB opens the configured database for the read-only commands.
func openDB() (*storage.DB, error) {
	path := viper.GetString("db.path")
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return db, nil
}
