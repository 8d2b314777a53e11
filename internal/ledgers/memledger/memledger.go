// Package memledger implements the ledger capability in memory, with the
// authoritative DCR execution semantics the real chain would enforce. It
// backs tests and the local demo deployment; a remote chain client plugs in
// behind the same core.Ledger interface.
package memledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/encoding"
	"github.com/dcreum/dcrflow/pkg/dcrflow/models"
)

type blockRecord struct {
	hash      domain.Hash
	timestamp time.Time
}

// MemoryLedger is an append-only, event-emitting workflow ledger held in
// process memory. Each write mines one block. Event streams are persistent
// watermill topics, so a late subscriber replays everything from block zero
// in emission order.
type MemoryLedger struct {
	account domain.Address
	clock   core.Clock
	pubsub  *gochannel.GoChannel
	log     *slog.Logger

	// emitMu serializes each write through its publish, so events enter the
	// stream in block order. It is never held by readers, which keeps
	// subscriber callbacks that read back into the ledger deadlock-free.
	emitMu sync.Mutex

	mu        sync.Mutex
	workflows []*domain.Workflow
	creators  []domain.Address
	blocks    map[uint64]blockRecord
	lastBlock uint64
}

func New(account domain.Address, clock core.Clock) *MemoryLedger {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		Persistent:          true, // replay to late subscribers, fromBlock 0 semantics
	}, watermill.NopLogger{})
	return &MemoryLedger{
		account: account,
		clock:   clock,
		pubsub:  pubsub,
		blocks:  make(map[uint64]blockRecord),
		log:     slog.With("module", "memledger"),
	}
}

func (m *MemoryLedger) Account() domain.Address { return m.account }

// CreateWorkflow validates and stores the argument tuple and emits the
// creation event. The returned hash only confirms submission; observers
// learn the workflow id from the event.
func (m *MemoryLedger) CreateWorkflow(ctx context.Context, args *models.CreateWorkflowArgs) (domain.Hash, error) {
	wf, err := encoding.Decode(args)
	if err != nil {
		return "", err
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	workflowID := uint64(len(m.workflows))
	m.workflows = append(m.workflows, wf)
	m.creators = append(m.creators, m.account)
	block, blockHash := m.mineBlock()
	tx := newHash()
	m.mu.Unlock()

	raw := core.RawEvent{
		Kind:         core.EventKindCreation,
		WorkflowID:   workflowID,
		WorkflowName: wf.Name,
		Sender:       m.account,
		BlockNumber:  block,
		BlockHash:    blockHash,
		TxHash:       tx,
	}
	if err := m.publish(creationTopic(workflowID), raw); err != nil {
		return "", err
	}
	m.log.Info("workflow created", "workflow_id", workflowID, "name", wf.Name, "block", block)
	return tx, nil
}

// Execute applies one activity execution with full DCR semantics, or fails
// the way the chain would revert an ineligible call.
func (m *MemoryLedger) Execute(ctx context.Context, workflowID uint64, activityID uint32) (domain.Hash, error) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	act := wf.Activity(activityID)
	if act == nil {
		m.mu.Unlock()
		return "", fmt.Errorf("unknown activity %d in workflow %d", activityID, workflowID)
	}
	if !m.eligible(wf, act, m.account) {
		m.mu.Unlock()
		return "", fmt.Errorf("activity %d cannot execute", activityID)
	}

	act.Executed = true
	act.Pending = false
	for _, r := range wf.Relations() {
		if r.From != activityID {
			continue
		}
		peer := wf.Activity(r.To)
		if peer == nil {
			continue
		}
		switch r.Type {
		case domain.RelationInclude:
			peer.Included = true
		case domain.RelationExclude:
			peer.Included = false
		case domain.RelationResponse:
			peer.Pending = true
		}
	}

	block, blockHash := m.mineBlock()
	tx := newHash()
	m.mu.Unlock()

	raw := core.RawEvent{
		Kind:        core.EventKindExecution,
		WorkflowID:  workflowID,
		ActivityID:  activityID,
		Sender:      m.account,
		BlockNumber: block,
		BlockHash:   blockHash,
		TxHash:      tx,
	}
	if err := m.publish(executionTopic(workflowID), raw); err != nil {
		return "", err
	}
	m.log.Info("activity executed", "workflow_id", workflowID, "activity_id", activityID, "block", block)
	return tx, nil
}

// eligible is the ledger's authoritative execution check: the activity must
// be included, the caller whitelisted (or auth disabled), every included
// condition source executed, and no included milestone source pending.
func (m *MemoryLedger) eligible(wf *domain.Workflow, act *domain.Activity, sender domain.Address) bool {
	if !act.Included {
		return false
	}
	if !act.AuthDisabled() {
		allowed := false
		for _, a := range act.Whitelist {
			if a == sender {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	for _, r := range wf.Relations() {
		if r.To != act.ID {
			continue
		}
		src := wf.Activity(r.From)
		if src == nil || !src.Included {
			continue
		}
		switch r.Type {
		case domain.RelationCondition:
			if !src.Executed {
				return false
			}
		case domain.RelationMilestone:
			if src.Pending {
				return false
			}
		}
	}
	return true
}

func (m *MemoryLedger) GetWorkflowName(ctx context.Context, workflowID uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		return "", err
	}
	return wf.Name, nil
}

func (m *MemoryLedger) GetActivityCount(ctx context.Context, workflowID uint64) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		return 0, err
	}
	return uint32(wf.LiveCount()), nil
}

func (m *MemoryLedger) GetActivityName(ctx context.Context, workflowID uint64, activityID uint32) (string, error) {
	act, err := m.activity(workflowID, activityID)
	if err != nil {
		return "", err
	}
	return act.Name, nil
}

func (m *MemoryLedger) IsIncluded(ctx context.Context, workflowID uint64, activityID uint32) (bool, error) {
	act, err := m.activity(workflowID, activityID)
	if err != nil {
		return false, err
	}
	return act.Included, nil
}

func (m *MemoryLedger) IsExecuted(ctx context.Context, workflowID uint64, activityID uint32) (bool, error) {
	act, err := m.activity(workflowID, activityID)
	if err != nil {
		return false, err
	}
	return act.Executed, nil
}

func (m *MemoryLedger) IsPending(ctx context.Context, workflowID uint64, activityID uint32) (bool, error) {
	act, err := m.activity(workflowID, activityID)
	if err != nil {
		return false, err
	}
	return act.Pending, nil
}

func (m *MemoryLedger) CanExecute(ctx context.Context, workflowID uint64, activityID uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		return false, err
	}
	act := wf.Activity(activityID)
	if act == nil {
		return false, fmt.Errorf("unknown activity %d in workflow %d", activityID, workflowID)
	}
	return m.eligible(wf, act, m.account), nil
}

func (m *MemoryLedger) IsAuthDisabled(ctx context.Context, workflowID uint64, activityID uint32) (bool, error) {
	act, err := m.activity(workflowID, activityID)
	if err != nil {
		return false, err
	}
	return act.AuthDisabled(), nil
}

func (m *MemoryLedger) GetIncludes(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error) {
	return m.adjacency(workflowID, activityID, domain.RelationInclude)
}

func (m *MemoryLedger) GetExcludes(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error) {
	return m.adjacency(workflowID, activityID, domain.RelationExclude)
}

func (m *MemoryLedger) GetResponses(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error) {
	return m.adjacency(workflowID, activityID, domain.RelationResponse)
}

func (m *MemoryLedger) GetConditions(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error) {
	return m.adjacency(workflowID, activityID, domain.RelationCondition)
}

func (m *MemoryLedger) GetMilestones(ctx context.Context, workflowID uint64, activityID uint32) ([]uint32, error) {
	return m.adjacency(workflowID, activityID, domain.RelationMilestone)
}

func (m *MemoryLedger) GetAccountWhitelist(ctx context.Context, workflowID uint64, activityID uint32) ([]domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		return nil, err
	}
	act := wf.Activity(activityID)
	if act == nil {
		return nil, fmt.Errorf("unknown activity %d in workflow %d", activityID, workflowID)
	}
	return append([]domain.Address(nil), act.Whitelist...), nil
}

func (m *MemoryLedger) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.blocks[blockNumber]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown block %d", blockNumber)
	}
	return rec.timestamp, nil
}

// adjacency returns the peer ids the ledger stores for one activity and one
// relation type: targets for include/exclude/response, prerequisites for
// condition/milestone.
func (m *MemoryLedger) adjacency(workflowID uint64, activityID uint32, typ domain.RelationType) ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Activity(activityID) == nil {
		return nil, fmt.Errorf("unknown activity %d in workflow %d", activityID, workflowID)
	}
	var peers []uint32
	for _, r := range wf.Relations() {
		if r.Type != typ || r.Anchor() != activityID {
			continue
		}
		peers = append(peers, r.Peer())
	}
	return peers, nil
}

func (m *MemoryLedger) workflow(workflowID uint64) (*domain.Workflow, error) {
	if workflowID >= uint64(len(m.workflows)) {
		return nil, fmt.Errorf("unknown workflow %d", workflowID)
	}
	return m.workflows[workflowID], nil
}

func (m *MemoryLedger) activity(workflowID uint64, activityID uint32) (domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, err := m.workflow(workflowID)
	if err != nil {
		return domain.Activity{}, err
	}
	act := wf.Activity(activityID)
	if act == nil {
		return domain.Activity{}, fmt.Errorf("unknown activity %d in workflow %d", activityID, workflowID)
	}
	return act.Clone(), nil
}

// mineBlock advances the chain by one block. Callers hold the lock.
func (m *MemoryLedger) mineBlock() (uint64, domain.Hash) {
	m.lastBlock++
	rec := blockRecord{hash: newHash(), timestamp: m.clock.Now()}
	m.blocks[m.lastBlock] = rec
	return m.lastBlock, rec.hash
}

func (m *MemoryLedger) publish(topic string, raw core.RawEvent) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return m.pubsub.Publish(topic, msg)
}

func (m *MemoryLedger) SubscribeCreations(ctx context.Context, workflowID uint64) (core.Subscription, error) {
	return m.subscribe(ctx, creationTopic(workflowID))
}

func (m *MemoryLedger) SubscribeExecutions(ctx context.Context, workflowID uint64) (core.Subscription, error) {
	return m.subscribe(ctx, executionTopic(workflowID))
}

// Close shuts the pub/sub down, closing every open subscription channel.
func (m *MemoryLedger) Close() error {
	return m.pubsub.Close()
}

func creationTopic(workflowID uint64) string {
	return fmt.Sprintf("workflow.%d.creations", workflowID)
}

func executionTopic(workflowID uint64) string {
	return fmt.Sprintf("workflow.%d.executions", workflowID)
}

func newHash() domain.Hash {
	u := uuid.New()
	sum := sha256.Sum256(u[:])
	return domain.Hash("0x" + hex.EncodeToString(sum[:]))
}
