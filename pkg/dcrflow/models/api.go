package models

import (
	"time"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
)

// SnapshotResponse is the API view of a mirrored workflow.
type SnapshotResponse struct {
	WorkflowID uint64             `json:"workflowId"`
	Name       string             `json:"name"`
	HasSynced  bool               `json:"hasSynced"`
	Creator    domain.Address     `json:"creator,omitempty"`
	Block      uint64             `json:"block,omitempty"`
	TxHash     domain.Hash        `json:"txHash,omitempty"`
	SyncedAt   time.Time          `json:"syncedAt,omitempty"`
	Activities []ActivityResponse `json:"activities"`
	Relations  []domain.Relation  `json:"relations"`
}

// ActivityResponse adds the optimistic pending-execution marker to the
// mirrored activity state.
type ActivityResponse struct {
	ID               uint32           `json:"id"`
	Name             string           `json:"name"`
	Included         bool             `json:"included"`
	Executed         bool             `json:"executed"`
	Pending          bool             `json:"pending"`
	CanExecute       bool             `json:"canExecute"`
	AuthDisabled     bool             `json:"authDisabled"`
	Whitelist        []domain.Address `json:"whitelist,omitempty"`
	PendingExecution bool             `json:"pendingExecution"`
}

// CreateActivityRequest is one activity of a draft submitted for creation.
type CreateActivityRequest struct {
	Name      string           `json:"name"`
	Included  bool             `json:"included"`
	Executed  bool             `json:"executed"`
	Pending   bool             `json:"pending"`
	Whitelist []domain.Address `json:"whitelist,omitempty"`
}

// CreateRelationRequest is one relation of a draft, with the type in its
// textual form.
type CreateRelationRequest struct {
	From uint32 `json:"from"`
	To   uint32 `json:"to"`
	Type string `json:"type"`
}

// CreateWorkflowRequest is the payload for submitting a drafted workflow to
// the ledger.
type CreateWorkflowRequest struct {
	Name       string                  `json:"name"`
	Activities []CreateActivityRequest `json:"activities"`
	Relations  []CreateRelationRequest `json:"relations"`
}

// CreateWorkflowResponse is returned once the draft is submitted; the
// workflow only exists on the ledger once the creation event is observed.
type CreateWorkflowResponse struct {
	TxHash domain.Hash `json:"txHash"`
}

// ExecuteRequest asks for one activity execution on a mirrored workflow.
type ExecuteRequest struct {
	ActivityID uint32 `json:"activityId"`
}

// ExecuteResponse carries the submitted transaction hash; confirmation
// arrives later via the event stream.
type ExecuteResponse struct {
	TxHash domain.Hash `json:"txHash"`
}

// PendingResponse lists optimistic submissions that are not yet confirmed.
type PendingResponse struct {
	Pending map[domain.Hash]uint32 `json:"pending"`
}

// BookmarkResponse is one entry of the recent or relevant workflow lists.
type BookmarkResponse struct {
	WorkflowID uint64 `json:"workflowId"`
	Name       string `json:"name"`
}
