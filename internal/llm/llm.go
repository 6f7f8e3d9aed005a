// Package llm abstracts the external language model and the classification
// of its raw output.
//
// The model is a black box: it receives the conversation and returns either
// a final-answer string or a serialized function-call intent. Everything the
// rest of the system does with that output goes through Classify, which
// turns the raw text into a tagged Outcome — there is no exception-style
// "try to parse, catch, guess" flow anywhere downstream.
package llm

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the model call failed or timed out. The
// session treats it like any other unusable model response and recovers;
// it never reaches the user as an error.
var ErrModelUnavailable = errors.New("model unavailable")

// Role of a chat message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of conversation handed to the model.
type Message struct {
	Role    Role
	Content string
}

// Model produces raw output for a conversation. A tool call is returned as
// its canonical JSON serialization ({"name": ..., "arguments": {...}});
// anything else is free text. Implementations must honor ctx cancellation.
type Model interface {
	Generate(ctx context.Context, msgs []Message) (string, error)
}
