// Package llm interprets free-form commands with a language model when the
// fixed grammar does not recognise them.
package llm

import "context"

// Result is the model's reading of a command: an intent label and whatever
// entities it found ("person", "email", "date", "time", "duration", ...).
type Result struct {
	Intent  string         `json:"intent"`
	Details map[string]any `json:"details"`
}

// Interpreter turns raw text into a Result.
type Interpreter interface {
	Interpret(ctx context.Context, raw string) (Result, error)
}
