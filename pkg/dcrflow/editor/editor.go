// Package editor provides the authoring layer over the graph model: spatial
// hints for rendering, state-flag editing, whitelist management and a cached
// encoding of the draft for submission.
package editor

import (
	"errors"
	"fmt"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/encoding"
	"github.com/dcreum/dcrflow/pkg/dcrflow/models"
)

var ErrWhitelistOverflow = errors.New("whitelist is full")

// Draft is a locally authored workflow that has not been submitted to the
// ledger. Every mutation invalidates the cached encoding, so callers always
// submit what they last edited.
type Draft struct {
	wf      *domain.Workflow
	hints   map[uint32]any
	encoded *models.CreateWorkflowArgs
}

func NewDraft(name string) *Draft {
	return &Draft{
		wf:    domain.NewWorkflow(name),
		hints: make(map[uint32]any),
	}
}

// AddActivity creates an activity and stores the caller's opaque spatial
// hint, to be consumed once by the next rendering cycle.
func (d *Draft) AddActivity(name string, hint any) uint32 {
	id := d.wf.AddActivity(name)
	if hint != nil {
		d.hints[id] = hint
	}
	d.dirty()
	return id
}

// TakeHint returns the stored spatial hint for an activity and clears it.
func (d *Draft) TakeHint(id uint32) any {
	h, ok := d.hints[id]
	if ok {
		delete(d.hints, id)
	}
	return h
}

func (d *Draft) RemoveActivity(id uint32) {
	d.wf.RemoveActivity(id)
	delete(d.hints, id)
	d.dirty()
}

func (d *Draft) AddRelation(from, to uint32, typ domain.RelationType) error {
	if err := d.wf.AddRelation(from, to, typ); err != nil {
		return err
	}
	d.dirty()
	return nil
}

func (d *Draft) RemoveRelations(match func(domain.Relation) bool) int {
	n := d.wf.RemoveRelations(match)
	if n > 0 {
		d.dirty()
	}
	return n
}

func (d *Draft) SetIncluded(id uint32, v bool) error {
	return d.setFlag(id, func(a *domain.Activity) { a.Included = v })
}

func (d *Draft) SetExecuted(id uint32, v bool) error {
	return d.setFlag(id, func(a *domain.Activity) { a.Executed = v })
}

func (d *Draft) SetPending(id uint32, v bool) error {
	return d.setFlag(id, func(a *domain.Activity) { a.Pending = v })
}

func (d *Draft) setFlag(id uint32, set func(*domain.Activity)) error {
	a := d.wf.Activity(id)
	if a == nil {
		return fmt.Errorf("%w: %d", domain.ErrUnknownActivity, id)
	}
	set(a)
	d.dirty()
	return nil
}

// AddWhitelist appends an account to the activity's whitelist. The list is
// bounded by the ledger's fixed slot count.
func (d *Draft) AddWhitelist(id uint32, addr domain.Address) error {
	a := d.wf.Activity(id)
	if a == nil {
		return fmt.Errorf("%w: %d", domain.ErrUnknownActivity, id)
	}
	if len(a.Whitelist) >= domain.MaxWhitelist {
		return fmt.Errorf("%w: activity %d already holds %d accounts", ErrWhitelistOverflow, id, domain.MaxWhitelist)
	}
	a.Whitelist = append(a.Whitelist, addr)
	d.dirty()
	return nil
}

// RemoveWhitelistLast drops the most recently added whitelist entry. The
// ledger's fixed-slot encoding only supports shrinking from the end.
func (d *Draft) RemoveWhitelistLast(id uint32) error {
	a := d.wf.Activity(id)
	if a == nil {
		return fmt.Errorf("%w: %d", domain.ErrUnknownActivity, id)
	}
	if len(a.Whitelist) == 0 {
		return nil
	}
	a.Whitelist = a.Whitelist[:len(a.Whitelist)-1]
	d.dirty()
	return nil
}

func (d *Draft) Name() string { return d.wf.Name }

func (d *Draft) Activity(id uint32) *domain.Activity { return d.wf.Activity(id) }

func (d *Draft) Activities() []*domain.Activity { return d.wf.Activities() }

func (d *Draft) Relations() []domain.Relation { return d.wf.Relations() }

// Encode returns the ledger call tuple for the draft, reusing the cached
// result until the next mutation.
func (d *Draft) Encode() (*models.CreateWorkflowArgs, error) {
	if d.encoded != nil {
		return d.encoded, nil
	}
	args, err := encoding.Encode(d.wf)
	if err != nil {
		return nil, err
	}
	d.encoded = args
	return args, nil
}

func (d *Draft) dirty() {
	d.encoded = nil
}
