package hydration

import (
	"errors"
	"fmt"
)

// Failure records one candidate that could not be hydrated.
type Failure struct {
	Candidate string
	Origin    string
	Err       error
}

func (f Failure) Error() string {
	if f.Origin == "" {
		return fmt.Sprintf("%s: %v", f.Candidate, f.Err)
	}
	return fmt.Sprintf("%s (%s): %v", f.Candidate, f.Origin, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report collects the per-candidate failures of one DiscoverAndHydrate call.
// Failures degrade the result set; they never abort the call.
type Report struct {
	Failures []Failure
}

// OK reports whether every candidate was hydrated or served from cache.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

// Err joins the recorded failures, or returns nil when there are none.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Report) add(candidate, origin string, err error) {
	r.Failures = append(r.Failures, Failure{Candidate: candidate, Origin: origin, Err: err})
}
