package repository

import (
	"database/sql"

	"github.com/dcreum/dcrflow/internal/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
)

// BookmarkRepository persists the recent and relevant workflow lists. These
// are discovery seeds only: the cached names are overwritten on every touch
// and the ledger remains authoritative.
type BookmarkRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewBookmarkRepository(db *sql.DB, clock core.Clock) *BookmarkRepository {
	return &BookmarkRepository{db: db, clock: clock}
}

// TouchRecent records that a workflow was just opened, refreshing its cached
// name and timestamp.
func (r *BookmarkRepository) TouchRecent(workflowID uint64, name string) error {
	return r.upsert("recent_workflows", workflowID, name)
}

// ListRecent returns the most recently opened workflows, newest first.
func (r *BookmarkRepository) ListRecent(limit int) ([]*domain.Bookmark, error) {
	query := `
		SELECT workflow_id, name, touched
		FROM recent_workflows
		ORDER BY touched DESC
		LIMIT ` + placeholder(1)
	return r.list(query, limit)
}

// MarkRelevant pins a workflow to the relevant list.
func (r *BookmarkRepository) MarkRelevant(workflowID uint64, name string) error {
	return r.upsert("relevant_workflows", workflowID, name)
}

// UnmarkRelevant removes a workflow from the relevant list. Removing an
// absent entry is a no-op.
func (r *BookmarkRepository) UnmarkRelevant(workflowID uint64) error {
	query := `DELETE FROM relevant_workflows WHERE workflow_id = ` + placeholder(1)
	_, err := r.db.Exec(query, int64(workflowID))
	return err
}

// ListRelevant returns every pinned workflow, most recently pinned first.
func (r *BookmarkRepository) ListRelevant() ([]*domain.Bookmark, error) {
	query := `
		SELECT workflow_id, name, touched
		FROM relevant_workflows
		ORDER BY touched DESC
	`
	return r.list(query)
}

func (r *BookmarkRepository) upsert(table string, workflowID uint64, name string) error {
	base := `
		INSERT INTO ` + table + ` (workflow_id, name, touched)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `)
	`
	var query string
	if isMysql() {
		query = base + ` ON DUPLICATE KEY UPDATE name = VALUES(name), touched = VALUES(touched)`
	} else {
		query = base + ` ON CONFLICT (workflow_id) DO UPDATE SET name = EXCLUDED.name, touched = EXCLUDED.touched`
	}
	_, err := r.db.Exec(query, int64(workflowID), name, r.clock.Now().UTC())
	return err
}

func (r *BookmarkRepository) list(query string, args ...any) ([]*domain.Bookmark, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := make([]*domain.Bookmark, 0)
	for rows.Next() {
		var b domain.Bookmark
		var id int64
		if err := rows.Scan(&id, &b.Name, &b.Touched); err != nil {
			return nil, err
		}
		b.WorkflowID = uint64(id)
		bookmarks = append(bookmarks, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookmarks, nil
}
