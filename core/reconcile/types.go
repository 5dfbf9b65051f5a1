package reconcile

// ReconcileResult represents the reconciliation output for a single key.
type ReconcileResult struct {
	// ID is the key shared by both sources (a user id for the waiting queue).
	ID string `json:"id"`

	// StorePresent indicates whether the key exists in the durable store.
	StorePresent bool `json:"store_present"`

	// CachePresent indicates whether the key exists in the cache.
	CachePresent bool `json:"cache_present"`

	// Metadata contains adapter-specific data (e.g. category, enqueued_at).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InSync reports whether both sources agree on the key.
func (r ReconcileResult) InSync() bool {
	return r.StorePresent == r.CachePresent
}

// Spec defines one reconciliation run.
type Spec struct {
	// Adapter provides the source-specific loading and planning logic.
	Adapter Adapter

	// Scope narrows the run to one partition of the data (a queue category).
	Scope string
}

// Key returns the key used to collapse concurrent runs of the same spec.
func (s *Spec) Key() string {
	return s.Adapter.Name() + "|" + s.Scope
}

// StoreItem is an entry loaded from the durable store. Adapters define the concrete type.
type StoreItem any

// CacheItem is an entry loaded from the cache. Adapters define the concrete type.
type CacheItem any

// ActionType represents the type of mutation action.
type ActionType string

const (
	// ActionAddCache writes a store-only key into the cache.
	ActionAddCache ActionType = "add_cache"
	// ActionRemoveCache drops a cache-only key from the cache.
	ActionRemoveCache ActionType = "remove_cache"
	// ActionAddStore writes a cache-only key into the store.
	ActionAddStore ActionType = "add_store"
	// ActionDeactivateStore retires a stale store-only key.
	ActionDeactivateStore ActionType = "deactivate_store"
)

// Action represents a planned mutation operation.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the entity identifier.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	// Item carries the source entry the action was planned from.
	Item any `json:"-"`
}

// ReconcilePlan contains reconciliation results and planned actions.
type ReconcilePlan struct {
	// Scope is the partition the plan was built for.
	Scope string `json:"scope"`

	// Results contains per-key reconciliation data.
	Results []ReconcileResult `json:"results"`

	// Actions contains planned mutation operations.
	Actions []Action `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a reconcile plan.
type PlanSummary struct {
	// TotalItems is the number of unique keys across both sources.
	TotalItems int `json:"total_items"`

	// InSync counts keys present in both sources.
	InSync int `json:"in_sync"`

	// MissingCache counts keys present only in the store.
	MissingCache int `json:"missing_cache"`

	// MissingStore counts keys present only in the cache.
	MissingStore int `json:"missing_store"`

	// Planned counts actions by type.
	Planned map[ActionType]int `json:"planned"`
}

// ReconcileOptions controls reconcile behavior.
type ReconcileOptions struct {
	// DryRun builds the plan without executing any mutation.
	DryRun bool
}

// ApplyResult reports what ApplyPlan executed.
type ApplyResult struct {
	// Executed counts successful actions by type.
	Executed map[ActionType]int `json:"executed"`

	// Failed lists the actions that returned an error.
	Failed []ActionError `json:"failed,omitempty"`
}

// Total returns the number of executed actions.
func (r ApplyResult) Total() int {
	total := 0
	for _, n := range r.Executed {
		total += n
	}
	return total
}

// ActionError records a failed action.
type ActionError struct {
	Action Action `json:"action"`
	Error  string `json:"error"`
}
