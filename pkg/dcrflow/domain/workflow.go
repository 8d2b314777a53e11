package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownActivity = errors.New("unknown activity")

// Workflow is the editable in-memory graph model. Activities live in a
// sparse arena indexed by id: removing one leaves a tombstone so every other
// activity keeps its id until the encoder compacts the arena.
//
// A Workflow is either authored locally or rebuilt wholesale from a ledger
// sync; it is never shared between those two paths.
type Workflow struct {
	Name string

	slots     []*Activity // nil entries are tombstones
	relations []Relation
}

func NewWorkflow(name string) *Workflow {
	return &Workflow{Name: name}
}

// AddActivity places a fresh activity at the first tombstoned slot, or at the
// end when none is free, and returns its id.
func (w *Workflow) AddActivity(name string) uint32 {
	for i, slot := range w.slots {
		if slot == nil {
			id := uint32(i)
			w.slots[i] = &Activity{ID: id, Name: name}
			return id
		}
	}
	id := uint32(len(w.slots))
	w.slots = append(w.slots, &Activity{ID: id, Name: name})
	return id
}

// RemoveActivity tombstones the slot and removes every relation touching the
// activity. Removing an absent id is a no-op.
func (w *Workflow) RemoveActivity(id uint32) {
	if int(id) >= len(w.slots) || w.slots[id] == nil {
		return
	}
	w.slots[id] = nil
	w.RemoveRelations(func(r Relation) bool {
		return r.From == id || r.To == id
	})
}

// AddRelation inserts a relation between two live activities. Inserting a
// tuple that already exists is a no-op.
func (w *Workflow) AddRelation(from, to uint32, typ RelationType) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRelationType, typ)
	}
	if w.Activity(from) == nil {
		return fmt.Errorf("%w: from %d", ErrUnknownActivity, from)
	}
	if w.Activity(to) == nil {
		return fmt.Errorf("%w: to %d", ErrUnknownActivity, to)
	}
	for _, r := range w.relations {
		if r.From == from && r.To == to && r.Type == typ {
			return nil
		}
	}
	w.relations = append(w.relations, Relation{From: from, To: to, Type: typ})
	return nil
}

// RemoveRelations deletes every relation matching the predicate and returns
// how many were removed.
func (w *Workflow) RemoveRelations(match func(Relation) bool) int {
	kept := w.relations[:0]
	for _, r := range w.relations {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	removed := len(w.relations) - len(kept)
	w.relations = kept
	return removed
}

// Activity returns the live activity with the given id, or nil.
func (w *Workflow) Activity(id uint32) *Activity {
	if int(id) >= len(w.slots) {
		return nil
	}
	return w.slots[id]
}

// Activities returns the live activities in id order.
func (w *Workflow) Activities() []*Activity {
	out := make([]*Activity, 0, len(w.slots))
	for _, a := range w.slots {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Relations returns a copy of the relation list.
func (w *Workflow) Relations() []Relation {
	return append([]Relation(nil), w.relations...)
}

// LiveCount is the number of non-tombstoned activities.
func (w *Workflow) LiveCount() int {
	n := 0
	for _, a := range w.slots {
		if a != nil {
			n++
		}
	}
	return n
}
