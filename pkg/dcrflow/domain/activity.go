package domain

// Address is a ledger account address in its textual (hex) form.
type Address string

// Hash is a block or transaction hash in its textual (hex) form.
type Hash string

// MaxNameBytes is the fixed slot size the ledger reserves for workflow and
// activity names.
const MaxNameBytes = 32

// MaxWhitelist is the maximum number of accounts an activity whitelist may
// hold, matching the ledger's fixed-slot layout.
const MaxWhitelist = 32

// Activity is a single step in a DCR workflow graph.
type Activity struct {
	ID       uint32    `json:"id"`
	Name     string    `json:"name"`
	Included bool      `json:"included"`
	Executed bool      `json:"executed"`
	Pending  bool      `json:"pending"`
	// CanExecute is derived by the ledger and only meaningful on mirrored
	// activities; it is never consulted when authoring.
	CanExecute bool      `json:"canExecute"`
	Whitelist  []Address `json:"whitelist,omitempty"`
}

// AuthDisabled reports whether execution authorization is disabled for this
// activity. An empty whitelist means anyone may execute.
func (a *Activity) AuthDisabled() bool {
	return len(a.Whitelist) == 0
}

// Clone returns a deep copy, detaching the whitelist backing array.
func (a *Activity) Clone() Activity {
	c := *a
	c.Whitelist = append([]Address(nil), a.Whitelist...)
	return c
}
