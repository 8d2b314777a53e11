package domain

import "time"

// EventType discriminates the two ledger event variants.
type EventType string

const (
	EventWorkflowCreation EventType = "workflow-creation"
	EventExecution        EventType = "execution"
)

// Event is a ledger-observed event after local resolution: the block
// timestamp is looked up for both variants, and execution events additionally
// carry the resolved workflow and activity names. Events are immutable once
// constructed and the local log they live in is append-only; duplicate
// delivery of the same ledger event may appear twice in the log.
//
// This is a tagged variant: ActivityID and ActivityName are only meaningful
// when Type is EventExecution.
type Event struct {
	Type         EventType `json:"type"`
	WorkflowID   uint64    `json:"workflowId"`
	WorkflowName string    `json:"workflowName"`
	ActivityID   uint32    `json:"activityId,omitempty"`
	ActivityName string    `json:"activityName,omitempty"`
	Sender       Address   `json:"sender"`
	BlockNumber  uint64    `json:"blockNumber"`
	BlockHash    Hash      `json:"blockHash"`
	TxHash       Hash      `json:"txHash"`
	Timestamp    time.Time `json:"timestamp"`
}

// CreationInfo is the cached provenance of a workflow, taken from the first
// observed creation event and never re-fetched.
type CreationInfo struct {
	Creator     Address `json:"creator"`
	BlockNumber uint64  `json:"blockNumber"`
	TxHash      Hash    `json:"txHash"`
}
