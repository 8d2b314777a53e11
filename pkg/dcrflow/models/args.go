package models

import "github.com/dcreum/dcrflow/pkg/dcrflow/domain"

// CreateWorkflowArgs is the exact ordered argument tuple of the ledger's
// createWorkflow call. All arrays are flat; ActivityData demarcates the
// variable-length sub-arrays (relations and whitelist entries) per activity
// so the ledger needs no per-entry length prefixes.
type CreateWorkflowArgs struct {
	// Names holds the workflow name followed by one entry per activity,
	// each right-padded with spaces to the full 32-byte slot.
	Names [][32]byte
	// ActivityStates holds the (included, executed, pending) triple per
	// activity.
	ActivityStates [][3]bool
	// ActivityData holds (relation count anchored at this activity,
	// whitelist size) per activity.
	ActivityData [][2]uint32
	// RelationTypes and RelationActivityIDs run in parallel, sorted by
	// anchor id; each entry is the wire code and the peer activity id.
	RelationTypes       []uint8
	RelationActivityIDs []uint32
	// AccountWhitelist is the concatenation of every activity's whitelist
	// in compacted id order.
	AccountWhitelist []domain.Address
	// AuthDisabled is true per activity iff its whitelist is empty.
	AuthDisabled []bool
}

// ActivityCount is the number of activities described by the tuple.
func (a *CreateWorkflowArgs) ActivityCount() int {
	if len(a.Names) == 0 {
		return 0
	}
	return len(a.Names) - 1
}
