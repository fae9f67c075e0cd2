package tools

import "strings"

// Outcome is how a tool result is read by the control loop.
type Outcome int

const (
	// Success ends the loop with a summary call.
	Success Outcome = iota
	// Failure re-offers the tools for another attempt.
	Failure
)

func (o Outcome) String() string {
	if o == Failure {
		return "failure"
	}
	return "success"
}

// failureWords mark a result as failed when found case-insensitively.
var failureWords = []string{"failed", "error", "exception", "invalid", "unknown tool"}

// ClassifyResult reads a tool result as Success or Failure.
func ClassifyResult(result string) Outcome {
	lower := strings.ToLower(result)
	for _, w := range failureWords {
		if strings.Contains(lower, w) {
			return Failure
		}
	}
	return Success
}
