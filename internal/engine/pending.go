package engine

import (
	"sort"
	"sync"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
)

// PendingTracker records optimistically submitted executions until the
// ledger confirms them through the event stream. Entries are keyed by
// transaction hash so two submissions for the same activity clear
// independently, each on its own confirmation.
type PendingTracker struct {
	mu   sync.Mutex
	byTx map[domain.Hash]uint32
}

func NewPendingTracker() *PendingTracker {
	return &PendingTracker{byTx: make(map[domain.Hash]uint32)}
}

// Record stores a submission immediately after the execute call returned its
// transaction hash.
func (p *PendingTracker) Record(activityID uint32, tx domain.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byTx[tx] = activityID
}

// Reconcile removes every entry whose transaction appears as an execution
// event in the log, regardless of which client submitted it. It is
// idempotent: replaying the same log removes nothing further. Returns the
// number of entries cleared.
func (p *PendingTracker) Reconcile(events []domain.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cleared := 0
	for _, ev := range events {
		if ev.Type != domain.EventExecution {
			continue
		}
		if _, ok := p.byTx[ev.TxHash]; ok {
			delete(p.byTx, ev.TxHash)
			cleared++
		}
	}
	return cleared
}

// Entries returns a copy of the tx-to-activity mapping.
func (p *PendingTracker) Entries() map[domain.Hash]uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[domain.Hash]uint32, len(p.byTx))
	for tx, id := range p.byTx {
		out[tx] = id
	}
	return out
}

// Activities returns the distinct activity ids with at least one pending
// submission, sorted ascending.
func (p *PendingTracker) Activities() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[uint32]bool, len(p.byTx))
	var ids []uint32
	for _, id := range p.byTx {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *PendingTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byTx)
}
