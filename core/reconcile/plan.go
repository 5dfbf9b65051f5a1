package reconcile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// runs collapses concurrent ReconcileAndApply calls for the same spec and options.
var runs singleflight.Group

// ReconcileWithPlan compares both sources and returns a plan with results and actions.
// It does NOT execute actions; use ApplyPlan for that.
func ReconcileWithPlan(ctx context.Context, spec *Spec) (*ReconcilePlan, error) {
	idx, err := BuildIndex(ctx, spec)
	if err != nil {
		return nil, err
	}

	results := resultsFromIndex(idx, spec.Adapter)

	summary, actions, err := buildPlanFromResults(ctx, spec, results, idx)
	if err != nil {
		return nil, err
	}

	return &ReconcilePlan{
		Scope:   spec.Scope,
		Results: results,
		Actions: actions,
		Summary: summary,
	}, nil
}

// ApplyPlan executes the actions in a reconcile plan.
// A failing action is recorded and the remaining actions still run.
// The returned error joins every action failure.
func ApplyPlan(ctx context.Context, spec *Spec, plan *ReconcilePlan, opts ReconcileOptions) (ApplyResult, error) {
	result := ApplyResult{Executed: map[ActionType]int{}}

	if opts.DryRun || len(plan.Actions) == 0 {
		return result, nil
	}

	mutator, ok := spec.Adapter.(Mutator)
	if !ok {
		return result, fmt.Errorf("adapter %s does not implement Mutator interface", spec.Adapter.Name())
	}

	var errs []error
	fail := func(action Action, err error) {
		result.Failed = append(result.Failed, ActionError{Action: action, Error: err.Error()})
		errs = append(errs, fmt.Errorf("%s %s: %w", action.Type, action.Key, err))
	}

	// Group cache additions for the batch writer
	var cacheAdds []Action
	var rest []Action
	for _, action := range plan.Actions {
		if action.Type == ActionAddCache {
			cacheAdds = append(cacheAdds, action)
			continue
		}
		rest = append(rest, action)
	}

	if len(cacheAdds) > 0 {
		if batch, ok := mutator.(CacheBatchWriter); ok {
			if err := batch.AddToCacheBatch(ctx, spec.Scope, cacheAdds); err != nil {
				for _, action := range cacheAdds {
					fail(action, err)
				}
			} else {
				result.Executed[ActionAddCache] += len(cacheAdds)
			}
		} else {
			rest = append(cacheAdds, rest...)
		}
	}

	for _, action := range rest {
		var err error
		switch action.Type {
		case ActionAddCache:
			err = mutator.AddToCache(ctx, spec.Scope, action)
		case ActionRemoveCache:
			err = mutator.RemoveFromCache(ctx, spec.Scope, action)
		case ActionAddStore:
			err = mutator.AddToStore(ctx, spec.Scope, action)
		case ActionDeactivateStore:
			err = mutator.DeactivateStore(ctx, spec.Scope, action)
		default:
			err = fmt.Errorf("unknown action type %q", action.Type)
		}
		if err != nil {
			fail(action, err)
			continue
		}
		result.Executed[action.Type]++
	}

	return result, errors.Join(errs...)
}

type runOutcome struct {
	plan   *ReconcilePlan
	result ApplyResult
}

// ReconcileAndApply plans and, unless DryRun is set, applies the plan.
// Concurrent calls for the same spec and options share one run.
func ReconcileAndApply(ctx context.Context, spec *Spec, opts ReconcileOptions) (*ReconcilePlan, ApplyResult, error) {
	key := fmt.Sprintf("%s|dry=%t", spec.Key(), opts.DryRun)

	v, err, _ := runs.Do(key, func() (interface{}, error) {
		plan, err := ReconcileWithPlan(ctx, spec)
		if err != nil {
			return nil, err
		}
		result, err := ApplyPlan(ctx, spec, plan, opts)
		return &runOutcome{plan: plan, result: result}, err
	})

	if v == nil {
		return nil, ApplyResult{Executed: map[ActionType]int{}}, err
	}
	out := v.(*runOutcome)
	return out.plan, out.result, err
}

// buildPlanFromResults generates a summary and action plan from reconciliation results.
func buildPlanFromResults(ctx context.Context, spec *Spec, results []ReconcileResult, idx *Index) (PlanSummary, []Action, error) {
	summary := PlanSummary{
		TotalItems: len(results),
		Planned:    map[ActionType]int{},
	}
	var actions []Action

	for _, result := range results {
		var (
			action Action
			err    error
		)

		switch {
		case result.StorePresent && result.CachePresent:
			summary.InSync++
			continue
		case result.StorePresent:
			summary.MissingCache++
			action, err = spec.Adapter.ResolveStoreOnly(ctx, spec.Scope, result.ID, idx.Store[result.ID])
		case result.CachePresent:
			summary.MissingStore++
			action, err = spec.Adapter.ResolveCacheOnly(ctx, spec.Scope, result.ID, idx.Cache[result.ID])
		}

		if err != nil {
			return summary, nil, fmt.Errorf("resolve %s: %w", result.ID, err)
		}
		if action.Type == "" {
			continue
		}
		if action.Key == "" {
			action.Key = result.ID
		}

		actions = append(actions, action)
		summary.Planned[action.Type]++
	}

	return summary, actions, nil
}
