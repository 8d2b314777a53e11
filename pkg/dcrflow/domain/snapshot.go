package domain

import "time"

// Snapshot is the mirrored form of a workflow: a dense, read-only copy of the
// ledger's authoritative state produced by a full sync. A snapshot is built
// off to the side and published by replacing the previous one wholesale, so
// readers never observe a partially updated workflow. It is deliberately a
// different type from Workflow: mirrored state has no mutating operations.
type Snapshot struct {
	WorkflowID uint64       `json:"workflowId"`
	Name       string       `json:"name"`
	Activities []Activity   `json:"activities"`
	Relations  []Relation   `json:"relations"`
	Creation   CreationInfo `json:"creation"`
	SyncedAt   time.Time    `json:"syncedAt"`
}

// Activity returns the activity with the given ledger id, or nil.
func (s *Snapshot) Activity(id uint32) *Activity {
	if int(id) >= len(s.Activities) {
		return nil
	}
	return &s.Activities[id]
}
