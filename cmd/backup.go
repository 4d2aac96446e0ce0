/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The backup command fetches the authenticated user's bookmarks and
// stores each one as a standalone HTML page with downloaded media.
//
// Features:
//   - OAuth 2.0 authorization code flow with PKCE; tokens are cached
//     and refreshed automatically.
//   - Incremental runs: bookmarks already on disk are skipped.
//   - Raw fetches are snapshotted so a run can be replayed offline.
//
// Example usage:
//
//	birdmark backup
//	birdmark backup --replay=bookmark_backups/api_responses/get_bookmarks.json
//	birdmark backup --no-snapshot --dir=/mnt/archive
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seckatie/birdmark/internal/core"
	"github.com/seckatie/birdmark/internal/core/auth"
	"github.com/seckatie/birdmark/internal/core/config"
	"github.com/seckatie/birdmark/internal/core/twitter"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Fetch bookmarks and archive them as HTML pages",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBackup(cmd); err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
	},
}

// runBackup is the main function for the backup command.
func runBackup(cmd *cobra.Command) error {
	logger, err := initLogger(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return fmt.Errorf("failed to read --dir: %w", err)
	}
	replay, err := cmd.Flags().GetString("replay")
	if err != nil {
		return fmt.Errorf("failed to read --replay: %w", err)
	}
	noSnapshot, err := cmd.Flags().GetBool("no-snapshot")
	if err != nil {
		return fmt.Errorf("failed to read --no-snapshot: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := core.NewStore(dir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize backup directory: %w", err)
	}

	opts := core.BackupOptions{SkipSnapshot: noSnapshot}
	var fetcher core.BookmarkFetcher

	if replay != "" {
		bookmarks, err := core.LoadSnapshot(replay)
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		if len(bookmarks) == 0 {
			logger.Info("Snapshot contains no bookmarks", zap.String("path", replay))
			return nil
		}
		logger.Info("Replaying snapshot",
			zap.String("path", replay), zap.Int("bookmarks", len(bookmarks)))
		opts.Override = bookmarks
	} else {
		client, err := buildClient(ctx, cmd, logger)
		if err != nil {
			return err
		}
		fetcher = client
	}

	if _, err := core.RunBackup(ctx, fetcher, store, logger, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Backup interrupted by user")
			return nil
		}
		return err
	}
	return nil
}

// buildClient runs the credential flow and returns an authenticated
// API client.
func buildClient(ctx context.Context, cmd *cobra.Command, logger *zap.Logger) (*twitter.Client, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to read --config: %w", err)
	}
	tokenFile, err := cmd.Flags().GetString("token-file")
	if err != nil {
		return nil, fmt.Errorf("failed to read --token-file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, config.ErrCreatedDefault) {
		logger.Info("Created default config file", zap.String("path", configPath))
		logger.Info("Please update the config file with your OAuth 2.0 credentials")
		return nil, fmt.Errorf("config file %s needs your OAuth credentials", configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	token, err := auth.NewProvider(cfg, tokenFile, logger).Obtain(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain OAuth 2.0 token: %w", err)
	}

	return twitter.NewClient(token.AccessToken), nil
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().String("replay", "", "Replay a stored API snapshot instead of fetching")
	backupCmd.Flags().Bool("no-snapshot", false, "Skip writing the raw API response to disk")
	backupCmd.Flags().String("token-file", "oauth2_token.json", "Path to the cached OAuth token")
}
