/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seckatie/birdmark/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "birdmark",
	Short: "Back up X (Twitter) bookmarks as standalone HTML pages",
	Long: `birdmark backs up your X (Twitter) bookmarks as individual HTML pages
that preserve the original tweet appearance with embedded media, and
serves the resulting archive through a local read-only viewer.

Run 'birdmark backup' to fetch and store your bookmarks, then
'birdmark serve' to browse them.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "config.json", "Path to the OAuth credentials file")
	rootCmd.PersistentFlags().StringP("dir", "d", "bookmark_backups", "Backup directory")
	rootCmd.PersistentFlags().String("log-file", "bookmark_backup.log", "Log file path")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

// initLogger builds the logger from the persistent flags.
func initLogger(cmd *cobra.Command) (*zap.Logger, error) {
	logFile, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return nil, err
	}
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	return logging.New(level, logFile)
}
