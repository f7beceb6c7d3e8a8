package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrapevault/scrapevault/internal/catalog"
)

var historyShowID int64

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List catalog tasks from past crawl and download runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int64Var(&historyShowID, "show", 0, "print the resource detail for a single task id")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(appConfig.Catalog.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	if historyShowID != 0 {
		return printTaskDetail(cat, historyShowID)
	}

	tasks, err := cat.GetAllTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks recorded yet")
		return nil
	}

	fmt.Printf("%-4s %-10s %-10s %-20s %s\n", "ID", "STATUS", "PROGRESS", "CREATED", "SOURCE")
	for _, t := range tasks {
		fmt.Printf("%-4d %-10s %-10s %-20s %s\n",
			t.ID, t.Status, fmt.Sprintf("%d/%d", t.DownloadedItems, t.TotalItems),
			t.CreatedAt.Format("2006-01-02 15:04:05"), t.SourceURL)
	}
	return nil
}

func printTaskDetail(cat *catalog.Catalog, id int64) error {
	task, records, ok := cat.GetTaskDetails(id)
	if !ok {
		return fmt.Errorf("no catalog task with id %d", id)
	}

	fmt.Printf("task %d: %s (%s)\n", task.ID, task.SourceURL, task.Status)
	fmt.Printf("created: %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
	if task.FinishedAt != nil {
		fmt.Printf("finished: %s\n", task.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("resources: %d\n", len(records))
	for _, r := range records {
		fmt.Printf("  [%s] %-8s %s\n", r.Status, r.Type, r.URL)
	}
	return nil
}
