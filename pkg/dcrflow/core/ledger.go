package core

import (
	"context"
	"time"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/models"
)

// Ledger event kind discriminators as emitted on the wire. Anything else is
// dropped by the mirror.
const (
	EventKindCreation  = "LogWorkflowCreation"
	EventKindExecution = "LogExecution"
)

// RawEvent is a ledger emission before local resolution. WorkflowName is only
// set on creation events, ActivityID only on execution events.
type RawEvent struct {
	Kind         string
	WorkflowID   uint64
	WorkflowName string
	ActivityID   uint32
	Sender       domain.Address
	BlockNumber  uint64
	BlockHash    domain.Hash
	TxHash       domain.Hash
}

// Subscription is a live event stream for one workflow and one event kind.
// Events arrive in ledger emission order within a subscription; nothing is
// guaranteed across subscriptions. Unsubscribe tears the stream down and
// eventually closes the channel.
type Subscription interface {
	Events() <-chan RawEvent
	Unsubscribe()
}

// Ledger is the capability interface over the external workflow ledger. All
// reads mirror the ledger's call surface one to one; the two writes are
// fire-and-confirm: they return a transaction hash and the actual state
// change is only observed later through an event subscription.
type Ledger interface {
	// Account is the identity this client submits writes as.
	Account() domain.Address

	GetWorkflowName(ctx context.Context, workflowID uint64) (string, error)
	GetActivityCount(ctx context.Context, workflowID uint64) (uint32, error)
	GetActivityName(ctx context.Context, workflowID uint64, activityID uint32) (string, error)
	IsIncluded(ctx context.Context, workflowID uint64, activityID uint32) (bool, error)
	IsExecuted(ctx context.Context, workflowID uint64, activityID uint32) (bool, error)
	IsPending(ctx context.Context, workflowID uint64, activityID uint32) (bool, error)
	CanExecute(ctx context.Context, workflowID uint64, activityID uint32) (bool, error)
	IsAuthDisabled(ctx context.Context, workflowID uint64, activityID uint32) (bool, error)
	GetIncludes(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error)
	GetExcludes(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error)
	GetResponses(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error)
	GetConditions(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error)
	GetMilestones(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error)
	GetAccountWhitelist(ctx context.Context, workflowID uint64, activityID uint32) ([]domain.Address, error)

	// BlockTimestamp resolves the timestamp of a mined block.
	BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)

	CreateWorkflow(ctx context.Context, args *models.CreateWorkflowArgs) (domain.Hash, error)
	Execute(ctx context.Context, workflowID uint64, activityID uint32) (domain.Hash, error)

	SubscribeCreations(ctx context.Context, workflowID uint64) (Subscription, error)
	SubscribeExecutions(ctx context.Context, workflowID uint64) (Subscription, error)
}
