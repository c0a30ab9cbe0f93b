package workflows

import "fmt"

// BranchError records a whole chain failing before it could finish, which
// in practice means a panic escaped the chain machinery itself rather than
// any task. The branch's state from its last good point is still merged;
// the error is attributed to the chain by name.
type BranchError struct {
	// Chain is the name of the failed chain.
	Chain string

	// Index is the chain's position in the fan-out declaration order.
	Index int

	// Err is the captured failure.
	Err error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("chain %s failed: %v", e.Chain, e.Err)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}

// FanOutError aggregates branch failures from one parallel pass. The fold
// still happened; this error reports which chains contributed only partial
// state.
type FanOutError struct {
	Branches []*BranchError
}

func (e *FanOutError) Error() string {
	if len(e.Branches) == 1 {
		return e.Branches[0].Error()
	}
	return fmt.Sprintf("%d chains failed in parallel fan-out", len(e.Branches))
}

// Unwrap returns the underlying branch errors for errors.Is and errors.As.
func (e *FanOutError) Unwrap() []error {
	errs := make([]error, len(e.Branches))
	for i, b := range e.Branches {
		errs[i] = b
	}
	return errs
}
