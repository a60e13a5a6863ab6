// Package validation evaluates one shell script three ways (syntax,
// compliance checklist, functional run against the mock CLI) and folds the
// outcomes into a ScriptResult.
package validation

// Check is one row of a checklist. Its label, "<id>: <description>", is what
// lands in the passed or failed list of a result.
type Check[T any] struct {
	ID          string
	Description string
	Pass        func(T) bool
}

func (c Check[T]) Label() string {
	return c.ID + ": " + c.Description
}

// runChecks evaluates every check in table order and returns the score as a
// percentage of checks passed.
func runChecks[T any](checks []Check[T], in T) (score float64, passed, failed []string) {
	if len(checks) == 0 {
		return 0, nil, nil
	}
	for _, c := range checks {
		if c.Pass(in) {
			passed = append(passed, c.Label())
		} else {
			failed = append(failed, c.Label())
		}
	}
	return float64(len(passed)) / float64(len(checks)) * 100, passed, failed
}
