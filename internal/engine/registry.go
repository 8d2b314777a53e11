package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/editor"
)

// MirrorRegistry hands out one WorkflowMirror per workflow id and owns their
// lifecycles. Releasing an id tears down that mirror's subscriptions so a
// discarded instance can never write into a successor.
type MirrorRegistry struct {
	ledger core.Ledger
	clock  core.Clock

	mu      sync.Mutex
	mirrors map[uint64]*WorkflowMirror
}

func NewMirrorRegistry(ledger core.Ledger, clock core.Clock) *MirrorRegistry {
	return &MirrorRegistry{
		ledger:  ledger,
		clock:   clock,
		mirrors: make(map[uint64]*WorkflowMirror),
	}
}

// Acquire returns the live mirror for a workflow id, starting one on first
// use. If the initial sync fails the mirror is closed and the error
// propagated; a retry starts fresh.
func (r *MirrorRegistry) Acquire(ctx context.Context, workflowID uint64) (*WorkflowMirror, error) {
	r.mu.Lock()
	if m, ok := r.mirrors[workflowID]; ok {
		r.mu.Unlock()
		return m, nil
	}
	m := NewWorkflowMirror(workflowID, r.ledger, r.clock)
	r.mirrors[workflowID] = m
	r.mu.Unlock()

	if err := m.Start(ctx); err != nil {
		r.Release(workflowID)
		return nil, err
	}
	return m, nil
}

// Release closes and forgets the mirror for a workflow id, if any.
func (r *MirrorRegistry) Release(workflowID uint64) {
	r.mu.Lock()
	m, ok := r.mirrors[workflowID]
	delete(r.mirrors, workflowID)
	r.mu.Unlock()
	if ok {
		m.Close()
		slog.Info("released workflow mirror", "workflow_id", workflowID)
	}
}

// CloseAll tears down every live mirror. Used at shutdown.
func (r *MirrorRegistry) CloseAll() {
	r.mu.Lock()
	mirrors := r.mirrors
	r.mirrors = make(map[uint64]*WorkflowMirror)
	r.mu.Unlock()
	for _, m := range mirrors {
		m.Close()
	}
}

// Create encodes a draft and submits it to the ledger. The workflow id is
// only known once the creation event is observed.
func (r *MirrorRegistry) Create(ctx context.Context, draft *editor.Draft) (domain.Hash, error) {
	args, err := draft.Encode()
	if err != nil {
		return "", err
	}
	tx, err := r.ledger.CreateWorkflow(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: create workflow: %v", ErrLedgerCall, err)
	}
	slog.Info("workflow creation submitted", "name", draft.Name(), "tx", tx)
	return tx, nil
}
