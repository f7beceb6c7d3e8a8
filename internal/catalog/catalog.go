// Package catalog implements Catalog: the durable, crash-safe store of
// Tasks and Resources. Schema and operation semantics (insert-or-dedup
// resources, partial-field status updates, finished_at set once on
// terminal status) follow a one-call-per-connection design, translated
// here onto Go's database/sql over a shared *sql.DB -- database/sql
// already pools short-lived connections per query, so a literal
// open/use/close-per-operation translation would only add overhead
// without changing behavior.
package catalog

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/scrapevault/scrapevault/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_url TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME,
	total_items INTEGER NOT NULL DEFAULT 0,
	downloaded_items INTEGER NOT NULL DEFAULT 0,
	save_path TEXT
);

CREATE TABLE IF NOT EXISTS resources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	type TEXT,
	filename TEXT,
	local_path TEXT,
	file_size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	error TEXT,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_resources_task_url ON resources(task_id, url);
`

// Catalog is the sqlite-backed Tasks/Resources store. All methods are
// safe for concurrent use; database/sql serializes sqlite writers
// internally and WAL lets readers proceed alongside them.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path, enables
// WAL and foreign keys, runs an integrity check, and applies the
// schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, models.NewError(models.KindStorage, "catalog.Open", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite allows one writer; WAL lets readers share it safely enough for this workload

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, models.NewError(models.KindStorage, "catalog.Open", path, err)
		}
	}

	var integrity string
	if err := db.QueryRow("PRAGMA integrity_check;").Scan(&integrity); err != nil {
		log.Error().Err(err).Msg("catalog: integrity check failed to run")
	} else if integrity != "ok" {
		log.Error().Str("result", integrity).Msg("catalog: integrity check reported corruption")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, models.NewError(models.KindStorage, "catalog.Open", path, err)
	}

	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// CreateTask inserts a new Task row and returns its id, or -1 on
// failure (logged, not propagated -- errors are swallowed at this
// storage boundary).
func (c *Catalog) CreateTask(sourceURL, savePath string) (int64, error) {
	res, err := c.db.Exec(
		`INSERT INTO tasks (source_url, status, save_path, created_at) VALUES (?, ?, ?, ?)`,
		sourceURL, models.TaskRunning, savePath, time.Now(),
	)
	if err != nil {
		log.Error().Err(err).Str("source_url", sourceURL).Msg("catalog: create_task failed")
		return -1, nil
	}
	return res.LastInsertId()
}

// UpdateTaskStatus updates a Task's status, setting finished_at when
// finished is true.
func (c *Catalog) UpdateTaskStatus(id int64, status models.TaskStatus, finished bool) error {
	var err error
	if finished {
		// COALESCE keeps the first finished_at across repeated
		// status updates with finished=true.
		_, err = c.db.Exec(`UPDATE tasks SET status = ?, finished_at = COALESCE(finished_at, ?) WHERE id = ?`, status, time.Now(), id)
	} else {
		_, err = c.db.Exec(`UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		log.Error().Err(err).Int64("task_id", id).Msg("catalog: update_task_status failed")
	}
	return nil
}

// UpdateTaskProgress sets downloaded/total counters on a Task.
func (c *Catalog) UpdateTaskProgress(id int64, downloaded, total int) error {
	if _, err := c.db.Exec(`UPDATE tasks SET downloaded_items = ?, total_items = ? WHERE id = ?`, downloaded, total, id); err != nil {
		log.Error().Err(err).Int64("task_id", id).Msg("catalog: update_task_progress failed")
	}
	return nil
}

// DeleteTask removes a Task and its Resources.
func (c *Catalog) DeleteTask(id int64) error {
	if _, err := c.db.Exec(`DELETE FROM resources WHERE task_id = ?`, id); err != nil {
		log.Error().Err(err).Int64("task_id", id).Msg("catalog: delete_task resources failed")
	}
	if _, err := c.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		log.Error().Err(err).Int64("task_id", id).Msg("catalog: delete_task failed")
	}
	return nil
}

// ClearAllTasks deletes every Task and Resource and resets the
// autoincrement counters.
func (c *Catalog) ClearAllTasks() error {
	for _, stmt := range []string{
		`DELETE FROM resources`,
		`DELETE FROM tasks`,
		`DELETE FROM sqlite_sequence WHERE name IN ('tasks', 'resources')`,
	} {
		if _, err := c.db.Exec(stmt); err != nil {
			log.Error().Err(err).Msg("catalog: clear_all_tasks failed")
			return nil
		}
	}
	return nil
}

// AddResource inserts a Resource row for task_id, returning -1 without
// error when (task_id, url) already exists -- idempotent by design.
func (c *Catalog) AddResource(taskID int64, r models.ResourceRecord) (int64, error) {
	var existingID int64
	err := c.db.QueryRow(`SELECT id FROM resources WHERE task_id = ? AND url = ?`, taskID, r.URL).Scan(&existingID)
	if err == nil {
		return -1, nil
	}
	if err != sql.ErrNoRows {
		log.Error().Err(err).Str("url", r.URL).Msg("catalog: add_resource dedup check failed")
		return -1, nil
	}

	res, err := c.db.Exec(
		`INSERT INTO resources (task_id, url, type, filename, local_path, file_size, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, r.URL, r.Type, r.Filename, r.LocalPath, r.FileSize, r.Status, nullableString(r.Error),
	)
	if err != nil {
		log.Error().Err(err).Str("url", r.URL).Msg("catalog: add_resource insert failed")
		return -1, nil
	}
	return res.LastInsertId()
}

// UpdateResourceStatus updates a resource row identified by
// (task_id, url). local_path/size/error are only overwritten when
// non-empty/non-zero, matching the original's partial-update style.
func (c *Catalog) UpdateResourceStatus(taskID int64, url string, status models.ResourceStatus, localPath string, size int64, errMsg string) error {
	query := "UPDATE resources SET status = ?, updated_at = ?"
	args := []any{status, time.Now()}

	if localPath != "" {
		query += ", local_path = ?"
		args = append(args, localPath)
	}
	if size > 0 {
		query += ", file_size = ?"
		args = append(args, size)
	}
	if errMsg != "" {
		query += ", error = ?"
		args = append(args, errMsg)
	}

	query += " WHERE task_id = ? AND url = ?"
	args = append(args, taskID, url)

	if _, err := c.db.Exec(query, args...); err != nil {
		log.Error().Err(err).Str("url", url).Msg("catalog: update_resource_status failed")
	}
	return nil
}

// GetAllTasks returns every Task ordered most-recent first, for the
// history CLI subcommand.
func (c *Catalog) GetAllTasks() ([]models.Task, error) {
	rows, err := c.db.Query(`SELECT id, source_url, status, created_at, finished_at, total_items, downloaded_items, save_path
		FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		log.Error().Err(err).Msg("catalog: get_all_tasks failed")
		return nil, nil
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			log.Error().Err(err).Msg("catalog: get_all_tasks scan failed")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTaskDetails returns a single Task and its resource records, or a
// zero-valued Task with ok=false if no such task exists.
func (c *Catalog) GetTaskDetails(id int64) (models.Task, []models.ResourceRecord, bool) {
	row := c.db.QueryRow(`SELECT id, source_url, status, created_at, finished_at, total_items, downloaded_items, save_path
		FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Error().Err(err).Int64("task_id", id).Msg("catalog: get_task_details failed")
		}
		return models.Task{}, nil, false
	}

	rows, err := c.db.Query(`SELECT id, task_id, url, type, filename, local_path, file_size, status, error, updated_at
		FROM resources WHERE task_id = ?`, id)
	if err != nil {
		log.Error().Err(err).Int64("task_id", id).Msg("catalog: get_task_details resources failed")
		return t, nil, true
	}
	defer rows.Close()

	var records []models.ResourceRecord
	for rows.Next() {
		var r models.ResourceRecord
		var filename, localPath, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.TaskID, &r.URL, &r.Type, &filename, &localPath, &r.FileSize, &r.Status, &errMsg, &r.UpdatedAt); err != nil {
			log.Error().Err(err).Msg("catalog: resource scan failed")
			continue
		}
		r.Filename = filename.String
		r.LocalPath = localPath.String
		r.Error = errMsg.String
		records = append(records, r)
	}

	return t, records, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var finishedAt sql.NullTime
	var savePath sql.NullString
	if err := row.Scan(&t.ID, &t.SourceURL, &t.Status, &t.CreatedAt, &finishedAt, &t.TotalItems, &t.DownloadedItems, &savePath); err != nil {
		return models.Task{}, err
	}
	if finishedAt.Valid {
		t.FinishedAt = &finishedAt.Time
	}
	t.SavePath = savePath.String
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
