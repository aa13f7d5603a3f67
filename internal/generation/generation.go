// Package generation provides bounded text generation: a fixed system instruction,
// temperature 0, and a hard output token limit.
package generation

import "context"

// Generator produces text for prompt under the system instruction.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// RefusingGenerator always answers with Refusal. It stands in when no model is configured,
// so every answer attempt degrades to the refusal path.
type RefusingGenerator struct {
	Refusal string
}

// Generate returns the refusal text.
func (g RefusingGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.Refusal, nil
}
