package agent

import "strings"

const (
	// ContextFullMessage is returned instead of the raw error when the request overflowed the model context.
	ContextFullMessage = "The conversation no longer fits into the model's context window. Clear the history to continue."

	// IterationLimitMessage is the answer of a turn that never produced a final response.
	IterationLimitMessage = "Stopped: the tool call limit was reached before a final answer."
)

// IsContextOverflow guesses from the error text whether the provider rejected the request
// for exceeding the context window. The match is heuristic and provider specific.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}

	text := strings.ToLower(err.Error())
	return strings.Contains(text, "context_length") || strings.Contains(text, "maximum context")
}

func failureResult(err error, steps []Step) Result {
	answer := err.Error()
	if IsContextOverflow(err) {
		answer = ContextFullMessage
	}

	return Result{Answer: answer, Steps: steps, IsError: true}
}
