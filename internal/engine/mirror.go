package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
)

// ErrLedgerCall wraps any failed or timed-out ledger read or write. A failed
// sync never publishes a partial snapshot: the previous one stays valid.
var ErrLedgerCall = errors.New("ledger call failed")

// WorkflowMirror keeps a local, read-only copy of one ledger workflow
// current. It owns two event subscriptions (creations and executions), an
// append-only event log and the pending-execution tracker. Every callback is
// bound to the mirror instance that created it, so a closed mirror can never
// touch the state of a successor opened for the same workflow id.
type WorkflowMirror struct {
	workflowID uint64
	ledger     core.Ledger
	clock      core.Clock
	log        *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	snapshot  *domain.Snapshot
	hasSynced bool
	creation  *domain.CreationInfo
	events    []domain.Event
	closed    bool

	pending *PendingTracker
}

func NewWorkflowMirror(workflowID uint64, ledger core.Ledger, clock core.Clock) *WorkflowMirror {
	return &WorkflowMirror{
		workflowID: workflowID,
		ledger:     ledger,
		clock:      clock,
		log:        slog.With("workflow_id", workflowID),
		pending:    NewPendingTracker(),
	}
}

// Start opens both event subscriptions and runs the initial sync. The
// subscriptions outlive the call and are torn down by Close. A failed
// initial sync is returned to the caller; the mirror stays usable and a
// later Sync may still succeed.
func (m *WorkflowMirror) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	creations, err := m.ledger.SubscribeCreations(ctx, m.workflowID)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: subscribe creations: %v", ErrLedgerCall, err)
	}
	executions, err := m.ledger.SubscribeExecutions(ctx, m.workflowID)
	if err != nil {
		creations.Unsubscribe()
		cancel()
		return fmt.Errorf("%w: subscribe executions: %v", ErrLedgerCall, err)
	}

	m.wg.Add(2)
	go m.consume(ctx, creations)
	go m.consume(ctx, executions)

	return m.Sync(ctx)
}

// Close cancels the mirror's subscriptions and waits for its event loops to
// drain. After Close no callback of this instance mutates anything.
func (m *WorkflowMirror) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *WorkflowMirror) consume(ctx context.Context, sub core.Subscription) {
	defer m.wg.Done()
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Events():
			if !ok {
				return
			}
			m.handleRaw(ctx, raw)
		}
	}
}

// handleRaw resolves one ledger emission into a log entry. Execution events
// additionally trigger exactly one sync, because execution changes derived
// state only the ledger can recompute.
func (m *WorkflowMirror) handleRaw(ctx context.Context, raw core.RawEvent) {
	switch raw.Kind {
	case core.EventKindCreation:
		ev, err := m.resolveCreation(ctx, raw)
		if err != nil {
			m.log.Error("resolving creation event failed", "tx", raw.TxHash, "error", err)
			return
		}
		m.append(ev, &domain.CreationInfo{
			Creator:     raw.Sender,
			BlockNumber: raw.BlockNumber,
			TxHash:      raw.TxHash,
		})
	case core.EventKindExecution:
		ev, err := m.resolveExecution(ctx, raw)
		if err != nil {
			m.log.Error("resolving execution event failed", "tx", raw.TxHash, "error", err)
			return
		}
		m.append(ev, nil)
		if err := m.Sync(ctx); err != nil {
			m.log.Warn("sync after execution event failed", "error", err)
		}
	default:
		// Unknown discriminator: log and drop, never append.
		m.log.Warn("dropping unknown ledger event", "kind", raw.Kind, "tx", raw.TxHash)
	}
}

func (m *WorkflowMirror) append(ev domain.Event, creation *domain.CreationInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	// Duplicate delivery is tolerated: the log appends regardless, and the
	// creation cache only takes the first observation.
	if creation != nil && m.creation == nil {
		m.creation = creation
		if m.snapshot != nil {
			patched := *m.snapshot
			patched.Creation = *creation
			m.snapshot = &patched
		}
	}
	m.events = append(m.events, ev)
	m.pending.Reconcile(m.events)
}

func (m *WorkflowMirror) resolveCreation(ctx context.Context, raw core.RawEvent) (domain.Event, error) {
	ts, err := m.ledger.BlockTimestamp(ctx, raw.BlockNumber)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: block timestamp: %v", ErrLedgerCall, err)
	}
	return domain.Event{
		Type:         domain.EventWorkflowCreation,
		WorkflowID:   raw.WorkflowID,
		WorkflowName: raw.WorkflowName,
		Sender:       raw.Sender,
		BlockNumber:  raw.BlockNumber,
		BlockHash:    raw.BlockHash,
		TxHash:       raw.TxHash,
		Timestamp:    ts,
	}, nil
}

func (m *WorkflowMirror) resolveExecution(ctx context.Context, raw core.RawEvent) (domain.Event, error) {
	ts, err := m.ledger.BlockTimestamp(ctx, raw.BlockNumber)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: block timestamp: %v", ErrLedgerCall, err)
	}
	wfName, err := m.ledger.GetWorkflowName(ctx, raw.WorkflowID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: workflow name: %v", ErrLedgerCall, err)
	}
	actName, err := m.ledger.GetActivityName(ctx, raw.WorkflowID, raw.ActivityID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: activity name: %v", ErrLedgerCall, err)
	}
	return domain.Event{
		Type:         domain.EventExecution,
		WorkflowID:   raw.WorkflowID,
		WorkflowName: wfName,
		ActivityID:   raw.ActivityID,
		ActivityName: actName,
		Sender:       raw.Sender,
		BlockNumber:  raw.BlockNumber,
		BlockHash:    raw.BlockHash,
		TxHash:       raw.TxHash,
		Timestamp:    ts,
	}, nil
}

// Sync fetches the whole workflow from the ledger and replaces the published
// snapshot atomically. All reads are issued concurrently and joined; if any
// single read fails the staged snapshot is discarded wholesale. Concurrent
// Sync calls are permitted; callers needing strict ordering must serialize.
func (m *WorkflowMirror) Sync(ctx context.Context) error {
	var (
		failMu sync.Mutex
		merr   *multierror.Error
	)
	fail := func(err error) {
		failMu.Lock()
		merr = multierror.Append(merr, err)
		failMu.Unlock()
	}

	var (
		wg    sync.WaitGroup
		name  string
		count uint32
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		n, err := m.ledger.GetWorkflowName(ctx, m.workflowID)
		if err != nil {
			fail(fmt.Errorf("workflow name: %w", err))
			return
		}
		name = n
	}()
	go func() {
		defer wg.Done()
		c, err := m.ledger.GetActivityCount(ctx, m.workflowID)
		if err != nil {
			fail(fmt.Errorf("activity count: %w", err))
			return
		}
		count = c
	}()
	wg.Wait()
	if err := merr.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCall, err)
	}

	acts := make([]domain.Activity, count)
	// peers[i] holds the five adjacency lists of activity i in wire-code
	// order, so the assembled relation order is deterministic regardless of
	// read completion order.
	peers := make([][5][]uint32, count)

	for i := uint32(0); i < count; i++ {
		i := i
		a := &acts[i]
		a.ID = i

		m.fetch(ctx, &wg, fail, "activity name", func(ctx context.Context) error {
			n, err := m.ledger.GetActivityName(ctx, m.workflowID, i)
			a.Name = n
			return err
		})
		m.fetch(ctx, &wg, fail, "included", func(ctx context.Context) error {
			v, err := m.ledger.IsIncluded(ctx, m.workflowID, i)
			a.Included = v
			return err
		})
		m.fetch(ctx, &wg, fail, "executed", func(ctx context.Context) error {
			v, err := m.ledger.IsExecuted(ctx, m.workflowID, i)
			a.Executed = v
			return err
		})
		m.fetch(ctx, &wg, fail, "pending", func(ctx context.Context) error {
			v, err := m.ledger.IsPending(ctx, m.workflowID, i)
			a.Pending = v
			return err
		})
		m.fetch(ctx, &wg, fail, "can execute", func(ctx context.Context) error {
			v, err := m.ledger.CanExecute(ctx, m.workflowID, i)
			a.CanExecute = v
			return err
		})
		m.fetch(ctx, &wg, fail, "whitelist", func(ctx context.Context) error {
			wl, err := m.ledger.GetAccountWhitelist(ctx, m.workflowID, i)
			a.Whitelist = wl
			return err
		})

		adjacency := []struct {
			name string
			read func(context.Context, uint64, uint32) ([]uint32, error)
		}{
			{"includes", m.ledger.GetIncludes},
			{"excludes", m.ledger.GetExcludes},
			{"responses", m.ledger.GetResponses},
			{"conditions", m.ledger.GetConditions},
			{"milestones", m.ledger.GetMilestones},
		}
		for typ, adj := range adjacency {
			typ, adj := typ, adj
			m.fetch(ctx, &wg, fail, adj.name, func(ctx context.Context) error {
				ids, err := adj.read(ctx, m.workflowID, i)
				peers[i][typ] = ids
				return err
			})
		}
	}
	wg.Wait()
	if err := merr.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCall, err)
	}

	staging := &domain.Snapshot{
		WorkflowID: m.workflowID,
		Name:       name,
		Activities: acts,
	}
	for i := uint32(0); i < count; i++ {
		for typ, ids := range peers[i] {
			for _, peer := range ids {
				rel := domain.Relation{From: i, To: peer, Type: domain.RelationType(typ)}
				if rel.Type == domain.RelationCondition || rel.Type == domain.RelationMilestone {
					// The adjacency query returns prerequisites; this
					// activity is the constrained end.
					rel.From, rel.To = peer, i
				}
				staging.Relations = append(staging.Relations, rel)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if m.creation != nil {
		staging.Creation = *m.creation
	}
	staging.SyncedAt = m.clock.Now()
	m.snapshot = staging
	m.hasSynced = true
	return nil
}

func (m *WorkflowMirror) fetch(ctx context.Context, wg *sync.WaitGroup, fail func(error), what string, read func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := read(ctx); err != nil {
			fail(fmt.Errorf("%s: %w", what, err))
		}
	}()
}

// ExecuteActivity submits an execution to the ledger and records it as
// pending. The returned hash identifies the transaction, not its effect;
// confirmation arrives through the execution event stream.
func (m *WorkflowMirror) ExecuteActivity(ctx context.Context, activityID uint32) (domain.Hash, error) {
	tx, err := m.ledger.Execute(ctx, m.workflowID, activityID)
	if err != nil {
		return "", fmt.Errorf("%w: execute activity %d: %v", ErrLedgerCall, activityID, err)
	}
	m.pending.Record(activityID, tx)
	m.log.Info("execution submitted", "activity_id", activityID, "tx", tx)
	return tx, nil
}

func (m *WorkflowMirror) WorkflowID() uint64 { return m.workflowID }

// Snapshot returns the last published snapshot, or nil before the first
// successful sync. The snapshot is never mutated after publication.
func (m *WorkflowMirror) Snapshot() *domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// HasSynced reports whether at least one sync has succeeded. It latches true
// and never reverts.
func (m *WorkflowMirror) HasSynced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasSynced
}

// Creation returns the cached creation info once a creation event has been
// observed.
func (m *WorkflowMirror) Creation() (domain.CreationInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creation == nil {
		return domain.CreationInfo{}, false
	}
	return *m.creation, true
}

// Events returns a copy of the append-only event log.
func (m *WorkflowMirror) Events() []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Event(nil), m.events...)
}

// Pending exposes the pending-execution tracker.
func (m *WorkflowMirror) Pending() *PendingTracker {
	return m.pending
}
