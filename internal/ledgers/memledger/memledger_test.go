package memledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/encoding"
)

const account = domain.Address("0x50b6d21bf2a1f0ca47288672cd4b4540592b4cc8")

func newTestLedger(t *testing.T) *MemoryLedger {
	t.Helper()
	m := New(account, core.NewRealClock())
	t.Cleanup(func() { m.Close() })
	return m
}

func createWorkflow(t *testing.T, m *MemoryLedger, w *domain.Workflow) uint64 {
	t.Helper()
	args, err := encoding.Encode(w)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := m.CreateWorkflow(context.Background(), args); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return uint64(len(m.workflows) - 1)
}

func waitEvent(t *testing.T, sub core.Subscription) core.RawEvent {
	t.Helper()
	select {
	case raw, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed before delivering an event")
		}
		return raw
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return core.RawEvent{}
}

func TestCreateWorkflowReplaysCreationToLateSubscriber(t *testing.T) {
	m := newTestLedger(t)

	w := domain.NewWorkflow("Replay")
	w.AddActivity("A")
	id := createWorkflow(t, m, w)

	// subscribing after the fact still delivers the creation event
	sub, err := m.SubscribeCreations(context.Background(), id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	raw := waitEvent(t, sub)
	if raw.Kind != core.EventKindCreation {
		t.Errorf("unexpected kind %q", raw.Kind)
	}
	if raw.WorkflowID != id || raw.WorkflowName != "Replay" {
		t.Errorf("unexpected event %+v", raw)
	}
	if raw.Sender != account {
		t.Errorf("expected creator %q, got %q", account, raw.Sender)
	}
	if raw.TxHash == "" || raw.BlockNumber == 0 {
		t.Errorf("event lacks provenance: %+v", raw)
	}

	ts, err := m.BlockTimestamp(context.Background(), raw.BlockNumber)
	if err != nil || ts.IsZero() {
		t.Errorf("block timestamp not recorded: %v %v", ts, err)
	}
}

func TestReadsMirrorDecodedWorkflow(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Reads")
	a := w.AddActivity("First")
	b := w.AddActivity("Second")
	w.Activity(a).Included = true
	w.Activity(b).Whitelist = []domain.Address{account}
	if err := w.AddRelation(a, b, domain.RelationCondition); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRelation(a, b, domain.RelationResponse); err != nil {
		t.Fatal(err)
	}
	id := createWorkflow(t, m, w)

	name, err := m.GetWorkflowName(ctx, id)
	if err != nil || name != "Reads" {
		t.Errorf("GetWorkflowName = %q, %v", name, err)
	}
	count, err := m.GetActivityCount(ctx, id)
	if err != nil || count != 2 {
		t.Errorf("GetActivityCount = %d, %v", count, err)
	}
	included, err := m.IsIncluded(ctx, id, a)
	if err != nil || !included {
		t.Errorf("IsIncluded(a) = %v, %v", included, err)
	}
	authDisabled, err := m.IsAuthDisabled(ctx, id, b)
	if err != nil || authDisabled {
		t.Errorf("IsAuthDisabled(b) = %v, %v", authDisabled, err)
	}
	wl, err := m.GetAccountWhitelist(ctx, id, b)
	if err != nil || len(wl) != 1 || wl[0] != account {
		t.Errorf("GetAccountWhitelist(b) = %v, %v", wl, err)
	}

	// the condition is anchored at its constrained end, the response at its
	// source
	conds, err := m.GetConditions(ctx, id, b)
	if err != nil || len(conds) != 1 || conds[0] != a {
		t.Errorf("GetConditions(b) = %v, %v", conds, err)
	}
	resps, err := m.GetResponses(ctx, id, a)
	if err != nil || len(resps) != 1 || resps[0] != b {
		t.Errorf("GetResponses(a) = %v, %v", resps, err)
	}

	if _, err := m.GetWorkflowName(ctx, 99); err == nil {
		t.Errorf("expected error for unknown workflow")
	}
	if _, err := m.IsIncluded(ctx, id, 99); err == nil {
		t.Errorf("expected error for unknown activity")
	}
}

func TestExecuteAppliesRelationEffects(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Effects")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	c := w.AddActivity("C")
	d := w.AddActivity("D")
	for _, id := range []uint32{a, b, c} {
		w.Activity(id).Included = true
	}
	if err := w.AddRelation(a, b, domain.RelationResponse); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRelation(a, c, domain.RelationExclude); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRelation(a, d, domain.RelationInclude); err != nil {
		t.Fatal(err)
	}
	id := createWorkflow(t, m, w)

	sub, err := m.SubscribeExecutions(ctx, id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	tx, err := m.Execute(ctx, id, a)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if tx == "" {
		t.Fatalf("expected a transaction hash")
	}

	raw := waitEvent(t, sub)
	if raw.Kind != core.EventKindExecution || raw.ActivityID != a {
		t.Errorf("unexpected event %+v", raw)
	}

	if executed, _ := m.IsExecuted(ctx, id, a); !executed {
		t.Errorf("A must be executed")
	}
	if pending, _ := m.IsPending(ctx, id, b); !pending {
		t.Errorf("response must set B pending")
	}
	if included, _ := m.IsIncluded(ctx, id, c); included {
		t.Errorf("exclude must remove C")
	}
	if included, _ := m.IsIncluded(ctx, id, d); !included {
		t.Errorf("include must add D")
	}
}

func TestExecuteConditionGating(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Conditions")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	w.Activity(a).Included = true
	w.Activity(b).Included = true
	if err := w.AddRelation(a, b, domain.RelationCondition); err != nil {
		t.Fatal(err)
	}
	id := createWorkflow(t, m, w)

	if ok, _ := m.CanExecute(ctx, id, b); ok {
		t.Errorf("B must be blocked while its condition source is unexecuted")
	}
	if _, err := m.Execute(ctx, id, b); err == nil {
		t.Errorf("executing a blocked activity must fail")
	}

	if _, err := m.Execute(ctx, id, a); err != nil {
		t.Fatalf("execute A failed: %v", err)
	}
	if ok, _ := m.CanExecute(ctx, id, b); !ok {
		t.Errorf("B must be eligible once A executed")
	}
	if _, err := m.Execute(ctx, id, b); err != nil {
		t.Errorf("execute B failed: %v", err)
	}
}

func TestExecuteMilestoneGating(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Milestones")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	w.Activity(a).Included = true
	w.Activity(a).Pending = true
	w.Activity(b).Included = true
	if err := w.AddRelation(a, b, domain.RelationMilestone); err != nil {
		t.Fatal(err)
	}
	id := createWorkflow(t, m, w)

	if ok, _ := m.CanExecute(ctx, id, b); ok {
		t.Errorf("B must be blocked while its milestone source is pending")
	}

	// executing A clears its pending flag
	if _, err := m.Execute(ctx, id, a); err != nil {
		t.Fatalf("execute A failed: %v", err)
	}
	if ok, _ := m.CanExecute(ctx, id, b); !ok {
		t.Errorf("B must be eligible once A is no longer pending")
	}
}

func TestExecuteExcludedMilestoneSourceDoesNotBlock(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Excluded source")
	a := w.AddActivity("A")
	b := w.AddActivity("B")
	w.Activity(a).Pending = true // excluded, so irrelevant
	w.Activity(b).Included = true
	if err := w.AddRelation(a, b, domain.RelationMilestone); err != nil {
		t.Fatal(err)
	}
	id := createWorkflow(t, m, w)

	if ok, _ := m.CanExecute(ctx, id, b); !ok {
		t.Errorf("an excluded milestone source must not block execution")
	}
}

func TestExecuteAuthorization(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Auth")
	a := w.AddActivity("Restricted")
	b := w.AddActivity("Open")
	w.Activity(a).Included = true
	w.Activity(a).Whitelist = []domain.Address{"0xsomeoneelse"}
	w.Activity(b).Included = true
	id := createWorkflow(t, m, w)

	if _, err := m.Execute(ctx, id, a); err == nil {
		t.Errorf("whitelisted activity must reject a non-listed account")
	}
	if _, err := m.Execute(ctx, id, b); err != nil {
		t.Errorf("empty whitelist disables auth: %v", err)
	}
}

func TestExecuteNotIncluded(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	w := domain.NewWorkflow("Excluded")
	a := w.AddActivity("A")
	id := createWorkflow(t, m, w)

	if _, err := m.Execute(ctx, id, a); err == nil {
		t.Errorf("an excluded activity must not execute")
	}
	if _, err := m.Execute(ctx, id, 9); err == nil {
		t.Errorf("an unknown activity must not execute")
	}
}

func TestConcurrentExecutionsEmitInBlockOrder(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	const n = 8
	w := domain.NewWorkflow("Parallel")
	for i := 0; i < n; i++ {
		id := w.AddActivity(string(rune('A' + i)))
		w.Activity(id).Included = true
	}
	id := createWorkflow(t, m, w)

	sub, err := m.SubscribeExecutions(ctx, id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for i := uint32(0); i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Execute(ctx, id, i); err != nil {
				t.Errorf("execute %d failed: %v", i, err)
			}
		}()
	}
	wg.Wait()

	// events must arrive in the order their blocks were mined
	var last uint64
	for i := 0; i < n; i++ {
		raw := waitEvent(t, sub)
		if raw.BlockNumber <= last {
			t.Fatalf("event %d out of order: block %d after block %d", i, raw.BlockNumber, last)
		}
		last = raw.BlockNumber
	}
}
