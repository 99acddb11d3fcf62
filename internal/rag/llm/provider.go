package llm

import (
	"context"
	"errors"
	"strings"
)

// Provider is the text completion boundary. Implementations must be safe for
// concurrent calls and wrap retryable failures with ErrTransient.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var ErrTransient = errors.New("transient llm failure")

// ErrEmptyCompletion is returned when the model answers with no text at all.
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

const instruction = "Answer the question using only the supplied context. " +
	"If the answer is not present in the context, say so explicitly."

func BuildPrompt(contextText, question string) string {
	var b strings.Builder
	b.Grow(len(instruction) + len(contextText) + len(question) + 32)
	b.WriteString(instruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// CleanAnswer trims the completion and drops a leading "Answer:" label.
func CleanAnswer(raw string) string {
	answer := strings.TrimSpace(raw)
	if len(answer) >= len("answer:") && strings.EqualFold(answer[:len("answer:")], "answer:") {
		answer = strings.TrimSpace(answer[len("answer:"):])
	}
	return answer
}
