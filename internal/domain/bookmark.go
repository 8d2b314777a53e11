package domain

import "time"

// Bookmark is one entry of the locally persisted "recent" or "relevant"
// workflow lists. These only seed discovery: the name is a cached display
// value and is superseded by the next ledger sync.
type Bookmark struct {
	WorkflowID uint64    // ledger workflow id
	Name       string    // cached display name
	Touched    time.Time // last opened (recent) or added (relevant)
}
