// Package workflows runs ordered task chains against private state
// branches and fans independent chains out concurrently.
//
// Isolation is structural rather than lock based. Every concurrent branch
// works on its own deep clone of the originating snapshot and results are
// reconciled only at the fold point, in declaration order, so first-writer
// ties resolve the same way on every run.
package workflows

import (
	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/task"
)

// Group is a set of tasks that run together against one snapshot. A
// singleton group is a plain sequential step. A multi-task group holds
// intra-chain siblings with no data dependency on each other: they receive
// the same branch snapshot, run concurrently, and their outputs are folded
// back before the chain continues.
type Group []task.Task

// Chain is an ordered sequence of groups run against one private branch.
type Chain struct {
	// Name identifies the chain in error attribution and events.
	Name string

	Groups []Group
}

// NewChain builds a chain of sequential singleton groups.
func NewChain(name string, tasks ...task.Task) Chain {
	groups := make([]Group, len(tasks))
	for i, t := range tasks {
		groups[i] = Group{t}
	}
	return Chain{Name: name, Groups: groups}
}

// Tasks returns the identifiers of every task in the chain, in declaration
// order.
func (c Chain) Tasks() []string {
	var ids []string
	for _, group := range c.Groups {
		for _, t := range group {
			ids = append(ids, t.Name())
		}
	}
	return ids
}

// Executor runs chains and parallel fan-outs. MaxWorkers bounds how many
// branches run at once in a fan-out; zero means unbounded.
type Executor struct {
	Runner     *task.Runner
	Observer   observability.Observer
	MaxWorkers int
}

// NewExecutor creates an Executor with its own task runner wired to the
// observer.
func NewExecutor(observer observability.Observer, maxWorkers int) *Executor {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Executor{
		Runner:     task.NewRunner(observer),
		Observer:   observer,
		MaxWorkers: maxWorkers,
	}
}
