package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scrapevault/scrapevault/internal/aggregate"
	"github.com/scrapevault/scrapevault/internal/catalog"
	"github.com/scrapevault/scrapevault/internal/controller"
	"github.com/scrapevault/scrapevault/internal/models"
)

var (
	downloadTaskID     int64
	downloadOutputDir  string
	downloadWorkers    int
	downloadCategories []string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a selection of a crawled task's resources",
	Long: `download resumes a previously-run crawl task from the catalog and
downloads a selection of its resources. Resources already marked
completed for the task are skipped.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Int64Var(&downloadTaskID, "task", 0, "catalog task id to download from (required)")
	downloadCmd.Flags().StringVarP(&downloadOutputDir, "output", "o", "", "output directory (required)")
	downloadCmd.Flags().IntVarP(&downloadWorkers, "workers", "w", 0, "worker count (0 uses the config default)")
	downloadCmd.Flags().StringSliceVar(&downloadCategories, "categories", nil, "comma-separated categories to download (default: all)")
	downloadCmd.MarkFlagRequired("task")
	downloadCmd.MarkFlagRequired("output")
}

func runDownload(cmd *cobra.Command, args []string) error {
	workers := downloadWorkers
	if workers == 0 {
		workers = appConfig.Download.Workers
	}
	if err := validateDownloadFlags(downloadOutputDir, workers); err != nil {
		return err
	}
	categories, err := parseCategories(downloadCategories)
	if err != nil {
		return err
	}

	cat, err := catalog.Open(appConfig.Catalog.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	task, records, ok := cat.GetTaskDetails(downloadTaskID)
	if !ok {
		return fmt.Errorf("no catalog task with id %d", downloadTaskID)
	}

	data := snapshotFromRecords(task.SourceURL, records)

	if err := os.MkdirAll(downloadOutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctrl := controller.New(cat)
	ctrl.SetDownloadFetchOptions(downloadFetchOptions(appConfig.Fetch))
	ctrl.SetDownloadTuning(downloadTuning(appConfig.Download))
	if err := ctrl.LoadResumeSnapshot(data, downloadTaskID); err != nil {
		return err
	}

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("interrupt received, cancelling download")
		ctrl.Cancel()
		stop()
	}()

	bar := controller.NewProgressBar(-1, "downloading")

	go func() {
		if err := ctrl.StartDownload(ctx, categories, downloadOutputDir, workers); err != nil {
			log.Error().Err(err).Msg("download failed to start")
		}
	}()

	final := controller.Drain(ctrl.Events(), bar, func(msg string) {
		if verbose {
			fmt.Fprintln(os.Stderr, msg)
		}
	})

	fmt.Println()
	fmt.Printf("downloaded %d/%d resources into %s\n", final.Done, final.Total, downloadOutputDir)
	return nil
}

// snapshotFromRecords rebuilds a ScrapedData from a task's
// not-yet-completed resource records, so a download run can resume a
// task across process restarts without re-crawling. Completed records
// are skipped; a re-run only retries what did not already succeed last
// time.
func snapshotFromRecords(sourceURL string, records []models.ResourceRecord) models.ScrapedData {
	agg := aggregate.New(sourceURL)
	for _, rec := range records {
		if rec.Status == models.ResourceStatusCompleted {
			continue
		}
		agg.Add(&models.Resource{
			URL:    rec.URL,
			Type:   rec.Type,
			Title:  rec.Filename,
			Status: models.ResourceStatusPending,
		})
	}
	return agg.Snapshot()
}
