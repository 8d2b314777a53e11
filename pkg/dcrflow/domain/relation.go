package domain

import (
	"errors"
	"fmt"
)

// RelationType identifies one of the five DCR constraint relations. The
// numeric values are the ledger's wire codes and must not be reordered.
type RelationType uint8

const (
	RelationInclude RelationType = iota
	RelationExclude
	RelationResponse
	RelationCondition
	RelationMilestone
)

var ErrInvalidRelationType = errors.New("invalid relation type")

func (t RelationType) Valid() bool {
	return t <= RelationMilestone
}

func (t RelationType) String() string {
	switch t {
	case RelationInclude:
		return "include"
	case RelationExclude:
		return "exclude"
	case RelationResponse:
		return "response"
	case RelationCondition:
		return "condition"
	case RelationMilestone:
		return "milestone"
	default:
		return fmt.Sprintf("relation(%d)", uint8(t))
	}
}

// ParseRelationType maps the textual form back to the wire code.
func ParseRelationType(s string) (RelationType, error) {
	switch s {
	case "include":
		return RelationInclude, nil
	case "exclude":
		return RelationExclude, nil
	case "response":
		return RelationResponse, nil
	case "condition":
		return RelationCondition, nil
	case "milestone":
		return RelationMilestone, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRelationType, s)
}

// Relation is a directed constraint between two activities. For include,
// exclude and response From is the triggering activity; for condition and
// milestone To is the constrained activity and From the prerequisite.
type Relation struct {
	From uint32       `json:"from"`
	To   uint32       `json:"to"`
	Type RelationType `json:"type"`
}

// Anchor returns the activity id the relation is grouped under in the
// ledger's flat encoding.
func (r Relation) Anchor() uint32 {
	if r.Type == RelationCondition || r.Type == RelationMilestone {
		return r.To
	}
	return r.From
}

// Peer returns the end opposite the anchor.
func (r Relation) Peer() uint32 {
	if r.Type == RelationCondition || r.Type == RelationMilestone {
		return r.From
	}
	return r.To
}
