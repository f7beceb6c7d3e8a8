package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scrapevault/scrapevault/internal/catalog"
	"github.com/scrapevault/scrapevault/internal/controller"
	"github.com/scrapevault/scrapevault/internal/models"
)

var (
	crawlDepth       int
	crawlWorkers     int
	crawlAdaptive    bool
	crawlCrossDomain bool
	crawlSavePath    string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a site and catalog the resources it links to",
	Args:  cobra.ExactArgs(1),
	RunE:  runCrawl,
}

func init() {
	crawlCmd.Flags().IntVarP(&crawlDepth, "depth", "d", 0, "crawl depth (1-10, 0 uses the config default)")
	crawlCmd.Flags().IntVarP(&crawlWorkers, "workers", "w", 0, "worker count to validate (1-20, 0 uses the config default); the crawl pool sizes itself from the CPU count and does not receive this value")
	crawlCmd.Flags().BoolVar(&crawlAdaptive, "adaptive", true, "scale workers up under load")
	crawlCmd.Flags().BoolVar(&crawlCrossDomain, "cross-domain", false, "follow links off the seed's host")
	crawlCmd.Flags().StringVarP(&crawlSavePath, "save-path", "o", "", "save path recorded on the crawl's catalog task")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	seed := args[0]
	depth := crawlDepth
	if depth == 0 {
		depth = appConfig.Crawl.MaxDepth
	}
	workers := crawlWorkers
	if workers == 0 {
		workers = appConfig.Crawl.Workers
	}

	if err := validateCrawlFlags(seed, depth, workers); err != nil {
		return err
	}

	cat, err := catalog.Open(appConfig.Catalog.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	ctrl := controller.New(cat)
	ctrl.SetCrawlFetchOptions(crawlFetchOptions(appConfig.Fetch))

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("interrupt received, cancelling crawl")
		ctrl.Cancel()
		stop()
	}()

	bar := controller.NewProgressBar(-1, "crawling")

	go func() {
		if err := ctrl.StartCrawl(ctx, seed, depth, crawlSavePath, crawlAdaptive, crawlCrossDomain); err != nil {
			log.Error().Err(err).Msg("crawl failed to start")
		}
	}()

	final := controller.Drain(ctrl.Events(), bar, func(msg string) {
		if verbose {
			fmt.Fprintln(os.Stderr, msg)
		}
	})

	switch final.Kind {
	case controller.EventError:
		return fmt.Errorf("crawl failed: %s", final.Message)
	case controller.EventFinished:
		counts := final.Data.Counts()
		fmt.Println()
		fmt.Println("crawl finished:")
		for _, cat := range models.AllCategories {
			fmt.Printf("  %-14s %d\n", cat, counts[cat])
		}
		fmt.Printf("catalog task id: %d\n", ctrl.TaskID())
		return nil
	default:
		return nil
	}
}
