package tool

import "fmt"

// Result is the outcome of one tool execution. It is immutable once produced.
type Result struct {
	Success     bool
	Output      string
	ErrorDetail string

	// Display is optional presentation data; it is never sent to the backend.
	Display Display
}

// OK returns a successful result with the given output.
func OK(output string) Result {
	return Result{Success: true, Output: output}
}

// Fail returns a failed result carrying detail as the error.
func Fail(detail string) Result {
	return Result{Success: false, ErrorDetail: detail}
}

// Failf is Fail with formatting.
func Failf(format string, args ...any) Result {
	return Fail(fmt.Sprintf(format, args...))
}

// Content returns the text that is fed back to the backend for this result.
func (r Result) Content() string {
	if r.Success {
		return r.Output
	}
	if r.Output == "" {
		return "Error: " + r.ErrorDetail
	}
	return fmt.Sprintf("Error: %s\n%s", r.ErrorDetail, r.Output)
}
