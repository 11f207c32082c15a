package enhance

import (
	"fmt"
	"strings"
)

// Attempt records one failed call of a reduction strategy.
type Attempt struct {
	Strategy string
	Strength Strength
	Err      error
}

// AlgorithmError reports that every reduction strategy failed for at least one
// candidate strength. Attempts lists each failure in call order.
type AlgorithmError struct {
	Strength Strength
	Attempts []Attempt
}

func (e *AlgorithmError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "enhance: all %d reduction strategies failed for %s candidate", len(e.Attempts), e.Strength)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Strategy, a.Err)
	}
	return b.String()
}

// Unwrap exposes the individual strategy errors to errors.Is and errors.As.
func (e *AlgorithmError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}
