// Command scrapevault drives the crawl/download Controller from a
// terminal, exposing crawl, download, history, and version
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scrapevault/scrapevault/internal/config"
	"github.com/scrapevault/scrapevault/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFile string
	logLevel   string
	verbose    bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "scrapevault",
	Short:   "A site-scoped resource crawler and downloader",
	Version: version,
	Long: `scrapevault crawls a site for downloadable resources -- images,
videos, audios, HLS playlists, and documents -- and downloads a
selection of what it found to disk.

  scrapevault crawl https://example.com
  scrapevault download --task 1 --output ./out
  scrapevault history`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logCfg := logging.Config{
			Level:      cfg.Logging.Level,
			LogDir:     cfg.Logging.LogDir,
			MaxSize:    cfg.Logging.Rotation.MaxSize,
			MaxBackups: cfg.Logging.Rotation.MaxBackups,
			MaxAge:     cfg.Logging.Rotation.MaxAge,
			Compress:   cfg.Logging.Rotation.Compress,
		}
		if logLevel != "" {
			logCfg.Level = logLevel
		}
		if err := logging.Init(logCfg); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if verbose {
			log.Info().Msg("verbose mode enabled")
		}

		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console output")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scrapevault %s (built %s)\n", version, buildTime)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
