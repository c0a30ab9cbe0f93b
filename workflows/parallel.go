package workflows

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/state"
)

// RunParallel fans the base state out into one private branch per chain,
// runs all chains concurrently, and folds every branch back into the base
// in declaration order.
//
// The declaration-order fold makes first-writer-wins ties reproducible
// regardless of which branch finished first. A chain that fails outright
// still contributes its branch state from the last good point; the failure
// is attributed to the chain and returned in a FanOutError alongside the
// folded state. The returned state is always usable.
func (e *Executor) RunParallel(ctx context.Context, chains []Chain, base state.State) (state.State, error) {
	started := time.Now()
	e.Observer.OnEvent(ctx, observability.Event{
		Type:      EventParallelStart,
		Level:     observability.LevelInfo,
		Timestamp: started,
		Source:    "workflows.Executor",
		Data: map[string]any{
			"workflow_id": base.WorkflowID,
			"chains":      chainNames(chains),
			"max_workers": e.MaxWorkers,
		},
	})

	snapshot := base.Clone()
	branches := make([]state.State, len(chains))
	branchErrs := make([]*BranchError, len(chains))

	var g errgroup.Group
	if e.MaxWorkers > 0 {
		g.SetLimit(e.MaxWorkers)
	}
	for i, chain := range chains {
		g.Go(func() error {
			private := snapshot.Clone()
			// Task panics are already recovered inside the Runner, so
			// this only fires when the chain machinery itself panics.
			// In that case the branch contributes its chain-entry state:
			// any intra-chain progress before the panic is lost.
			defer func() {
				if rec := recover(); rec != nil {
					branchErrs[i] = &BranchError{
						Chain: chain.Name,
						Index: i,
						Err:   fmt.Errorf("panic: %v", rec),
					}
					branches[i] = private.Apply(state.Update{
						state.FieldErrors: fmt.Sprintf("chain %s aborted: %v", chain.Name, rec),
					})
				}
			}()
			branches[i] = e.RunChain(ctx, chain, private)
			return nil
		})
	}
	// Branch failures are collected per slot, never returned through the
	// group.
	_ = g.Wait()

	folded := base
	for _, branch := range branches {
		folded = folded.Merge(branch)
	}

	var failed []*BranchError
	for _, branchErr := range branchErrs {
		if branchErr == nil {
			continue
		}
		failed = append(failed, branchErr)
		e.Observer.OnEvent(ctx, observability.Event{
			Type:      EventBranchFail,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "workflows.Executor",
			Data: map[string]any{
				"workflow_id": base.WorkflowID,
				"chain":       branchErr.Chain,
				"error":       branchErr.Err.Error(),
			},
		})
	}

	e.Observer.OnEvent(ctx, observability.Event{
		Type:      EventParallelComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "workflows.Executor",
		Data: map[string]any{
			"workflow_id":     base.WorkflowID,
			"duration_ms":     time.Since(started).Milliseconds(),
			"failed_branches": len(failed),
		},
	})

	if len(failed) > 0 {
		return folded, &FanOutError{Branches: failed}
	}
	return folded, nil
}

func chainNames(chains []Chain) []string {
	names := make([]string, len(chains))
	for i, c := range chains {
		names[i] = c.Name
	}
	return names
}
