// Package encoding converts between the editable graph model and the
// ledger's flat, fixed-width createWorkflow argument layout. Both directions
// are pure functions over their input.
package encoding

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/models"
)

var (
	ErrNameTooLong = errors.New("name exceeds 32 bytes")
	ErrInvalidArgs = errors.New("malformed argument layout")
)

// Encode serializes a workflow into the ledger call tuple. Tombstoned
// activity slots are compacted away: surviving activities are renumbered
// densely in their original order and relations are remapped through the
// same table. Relations referencing a tombstone cannot occur because
// RemoveActivity cascades.
func Encode(w *domain.Workflow) (*models.CreateWorkflowArgs, error) {
	live := w.Activities()
	remap := make(map[uint32]uint32, len(live))
	for i, a := range live {
		remap[a.ID] = uint32(i)
	}

	rels := w.Relations()
	for i := range rels {
		if !rels[i].Type.Valid() {
			return nil, fmt.Errorf("%w: code %d", domain.ErrInvalidRelationType, rels[i].Type)
		}
		rels[i].From = remap[rels[i].From]
		rels[i].To = remap[rels[i].To]
	}
	// Stable: relations sharing an anchor keep their original order.
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].Anchor() < rels[j].Anchor()
	})

	counts := make([]uint32, len(live))
	args := &models.CreateWorkflowArgs{}
	for _, r := range rels {
		counts[r.Anchor()]++
		args.RelationTypes = append(args.RelationTypes, uint8(r.Type))
		args.RelationActivityIDs = append(args.RelationActivityIDs, r.Peer())
	}

	packed, err := packName(w.Name)
	if err != nil {
		return nil, err
	}
	args.Names = append(args.Names, packed)

	for i, a := range live {
		packed, err := packName(a.Name)
		if err != nil {
			return nil, err
		}
		args.Names = append(args.Names, packed)
		args.ActivityStates = append(args.ActivityStates, [3]bool{a.Included, a.Executed, a.Pending})
		args.ActivityData = append(args.ActivityData, [2]uint32{counts[i], uint32(len(a.Whitelist))})
		args.AccountWhitelist = append(args.AccountWhitelist, a.Whitelist...)
		args.AuthDisabled = append(args.AuthDisabled, a.AuthDisabled())
	}
	return args, nil
}

// Decode rebuilds a dense workflow from the flat tuple. It is the inverse of
// Encode for any workflow without tombstones.
func Decode(args *models.CreateWorkflowArgs) (*domain.Workflow, error) {
	if len(args.Names) == 0 {
		return nil, fmt.Errorf("%w: missing workflow name", ErrInvalidArgs)
	}
	n := len(args.Names) - 1
	if len(args.ActivityStates) != n || len(args.ActivityData) != n || len(args.AuthDisabled) != n {
		return nil, fmt.Errorf("%w: %d activities, %d states, %d data, %d auth flags",
			ErrInvalidArgs, n, len(args.ActivityStates), len(args.ActivityData), len(args.AuthDisabled))
	}
	if len(args.RelationTypes) != len(args.RelationActivityIDs) {
		return nil, fmt.Errorf("%w: %d relation types, %d relation ids",
			ErrInvalidArgs, len(args.RelationTypes), len(args.RelationActivityIDs))
	}

	w := domain.NewWorkflow(unpackName(args.Names[0]))

	var relOffset, wlOffset uint32
	type decodedRelation struct {
		from, to uint32
		typ      domain.RelationType
	}
	var rels []decodedRelation
	for i := 0; i < n; i++ {
		id := w.AddActivity(unpackName(args.Names[i+1]))
		a := w.Activity(id)
		a.Included = args.ActivityStates[i][0]
		a.Executed = args.ActivityStates[i][1]
		a.Pending = args.ActivityStates[i][2]

		// Widened so an absurd count cannot wrap past the bound.
		relCount, wlCount := args.ActivityData[i][0], args.ActivityData[i][1]
		if uint64(relOffset)+uint64(relCount) > uint64(len(args.RelationTypes)) {
			return nil, fmt.Errorf("%w: relation counts exceed relation arrays", ErrInvalidArgs)
		}
		if uint64(wlOffset)+uint64(wlCount) > uint64(len(args.AccountWhitelist)) {
			return nil, fmt.Errorf("%w: whitelist sizes exceed whitelist array", ErrInvalidArgs)
		}

		for _, peer := range args.RelationActivityIDs[relOffset : relOffset+relCount] {
			typ := domain.RelationType(args.RelationTypes[relOffset])
			if !typ.Valid() {
				return nil, fmt.Errorf("%w: code %d", domain.ErrInvalidRelationType, typ)
			}
			rel := decodedRelation{from: id, to: peer, typ: typ}
			if typ == domain.RelationCondition || typ == domain.RelationMilestone {
				rel.from, rel.to = peer, id
			}
			rels = append(rels, rel)
			relOffset++
		}

		a.Whitelist = append([]domain.Address(nil), args.AccountWhitelist[wlOffset:wlOffset+wlCount]...)
		wlOffset += wlCount
	}
	if int(relOffset) != len(args.RelationTypes) {
		return nil, fmt.Errorf("%w: %d relations demarcated, %d encoded", ErrInvalidArgs, relOffset, len(args.RelationTypes))
	}
	if int(wlOffset) != len(args.AccountWhitelist) {
		return nil, fmt.Errorf("%w: %d whitelist entries demarcated, %d encoded", ErrInvalidArgs, wlOffset, len(args.AccountWhitelist))
	}

	// Relations are added after every activity slot exists because a peer
	// may have a higher id than its anchor.
	for _, r := range rels {
		if err := w.AddRelation(r.from, r.to, r.typ); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func packName(s string) ([32]byte, error) {
	if len(s) > domain.MaxNameBytes {
		return [32]byte{}, fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, s, len(s))
	}
	var b [32]byte
	copy(b[:], s)
	for i := len(s); i < len(b); i++ {
		b[i] = ' '
	}
	return b, nil
}

func unpackName(b [32]byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}
