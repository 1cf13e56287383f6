package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"Cadenza/cache"
	"Cadenza/config"
	"Cadenza/core/library"
	"Cadenza/db"
	"Cadenza/logger"
	"Cadenza/repository"

	"github.com/spf13/cobra"
)

var scanForce bool

// scanCmd runs one library scan and exits. Useful from cron or after a
// bulk import, without keeping the server up.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one library scan and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
		})

		if err := db.ConnectDB(cfg); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.DB.Close()
		if err := db.InitDB(); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		if err := db.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer db.CloseRedis()

		scanner := library.NewScanner(
			repository.NewMySQLMediaIndex(db.DB),
			cache.NewScanCache(db.RedisClient),
			cache.NewArtworkOverrides(db.RedisClient),
			cache.NewOpenedFiles(db.RedisClient),
			library.FileExtractor{},
			library.Options{
				MinTrackDuration: cfg.MinTrackDuration,
				ScanCacheMaxAge:  cfg.ScanCacheMaxAge,
			})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		var outcome library.RefreshOutcome
		if scanForce {
			outcome = scanner.ForceRefresh(ctx)
		} else {
			outcome = scanner.LoadOrRefresh(ctx)
		}
		fmt.Fprintf(os.Stdout, "scan %s: %d tracks in %s\n",
			outcome.Status, outcome.TrackCount, outcome.Duration)
		if outcome.Err != nil {
			return outcome.Err
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "ignore the cached scan result")
	rootCmd.AddCommand(scanCmd)
}
