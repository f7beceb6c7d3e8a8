package catalog

import (
	"path/filepath"
	"testing"

	"github.com/scrapevault/scrapevault/internal/models"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// Invariant #4: a Task reaching a terminal status has finished_at set
// and finished_at >= created_at.
func TestTerminalStatusSetsFinishedAt(t *testing.T) {
	c := openTestCatalog(t)

	id, err := c.CreateTask("http://example.test", "/tmp/out")
	if err != nil || id <= 0 {
		t.Fatalf("CreateTask: id=%d err=%v", id, err)
	}

	if err := c.UpdateTaskStatus(id, models.TaskScanned, true); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	task, _, ok := c.GetTaskDetails(id)
	if !ok {
		t.Fatal("expected task to exist")
	}
	if task.Status != models.TaskScanned {
		t.Fatalf("expected status scanned, got %q", task.Status)
	}
	if task.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
	if task.FinishedAt.Before(task.CreatedAt) {
		t.Fatalf("finished_at %v is before created_at %v", task.FinishedAt, task.CreatedAt)
	}
}

// Invariant #8: add_resource(task, r); add_resource(task, r) is
// idempotent -- the second call returns -1.
func TestAddResourceIsIdempotent(t *testing.T) {
	c := openTestCatalog(t)

	id, _ := c.CreateTask("http://example.test", "/tmp/out")
	rec := models.ResourceRecord{URL: "http://example.test/a.jpg", Type: models.ResourceImage, Status: models.ResourceStatusPending}

	first, err := c.AddResource(id, rec)
	if err != nil || first <= 0 {
		t.Fatalf("first AddResource: id=%d err=%v", first, err)
	}

	second, err := c.AddResource(id, rec)
	if err != nil {
		t.Fatalf("second AddResource returned error: %v", err)
	}
	if second != -1 {
		t.Fatalf("expected -1 on duplicate add, got %d", second)
	}

	_, records, _ := c.GetTaskDetails(id)
	if len(records) != 1 {
		t.Fatalf("expected exactly one resource row, got %d", len(records))
	}
}

// Invariant #9: create_task; update_task_status(..., finished=true);
// get_task_details returns identical status/finished_at regardless of
// repeated updates with the same value.
func TestRepeatedStatusUpdateIsStable(t *testing.T) {
	c := openTestCatalog(t)

	id, _ := c.CreateTask("http://example.test", "/tmp/out")
	if err := c.UpdateTaskStatus(id, models.TaskCompleted, true); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	first, _, _ := c.GetTaskDetails(id)

	if err := c.UpdateTaskStatus(id, models.TaskCompleted, true); err != nil {
		t.Fatalf("second UpdateTaskStatus: %v", err)
	}
	second, _, _ := c.GetTaskDetails(id)

	if first.Status != second.Status {
		t.Fatalf("status changed across repeated update: %q vs %q", first.Status, second.Status)
	}
	if first.FinishedAt == nil || second.FinishedAt == nil {
		t.Fatal("expected finished_at set on both reads")
	}
	if !first.FinishedAt.Equal(*second.FinishedAt) {
		t.Fatalf("finished_at changed across repeated update: %v vs %v", first.FinishedAt, second.FinishedAt)
	}
}

func TestUpdateResourceStatusPartialUpdate(t *testing.T) {
	c := openTestCatalog(t)

	id, _ := c.CreateTask("http://example.test", "/tmp/out")
	c.AddResource(id, models.ResourceRecord{URL: "http://example.test/a.jpg", Type: models.ResourceImage})

	if err := c.UpdateResourceStatus(id, "http://example.test/a.jpg", models.ResourceStatusCompleted, "/tmp/out/a.jpg", 1024, ""); err != nil {
		t.Fatalf("UpdateResourceStatus: %v", err)
	}

	_, records, _ := c.GetTaskDetails(id)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Status != models.ResourceStatusCompleted || r.LocalPath != "/tmp/out/a.jpg" || r.FileSize != 1024 {
		t.Fatalf("unexpected record after update: %+v", r)
	}
}

func TestDeleteTaskCascadesResources(t *testing.T) {
	c := openTestCatalog(t)

	id, _ := c.CreateTask("http://example.test", "/tmp/out")
	c.AddResource(id, models.ResourceRecord{URL: "http://example.test/a.jpg", Type: models.ResourceImage})

	if err := c.DeleteTask(id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	_, _, ok := c.GetTaskDetails(id)
	if ok {
		t.Fatal("expected task to be gone after delete")
	}

	var remaining int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM resources WHERE task_id = ?`, id).Scan(&remaining); err != nil {
		t.Fatalf("count resources: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected the deleted task's resources to be gone, got %d", remaining)
	}
}
