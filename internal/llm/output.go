package llm

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/koopa0/stockchat/internal/dispatch"
)

// UnparseablePrefix marks output the model wrapper could not decode. The
// remainder after the prefix is the model's usable text; recovery strips the
// prefix and returns the remainder verbatim.
const UnparseablePrefix = "Could not parse LLM output: "

// OutcomeKind tags a classified model output.
type OutcomeKind int

// Outcome kinds.
const (
	// OutcomeToolCall is a valid function-call intent.
	OutcomeToolCall OutcomeKind = iota

	// OutcomeFinalAnswer is plain text usable as-is.
	OutcomeFinalAnswer

	// OutcomeUnparseable is output that is neither; recovery decides the
	// user-facing reply.
	OutcomeUnparseable
)

// Outcome is the tagged result of classifying raw model output. Exactly one
// of Intent or Text is meaningful, per Kind: Intent for OutcomeToolCall,
// Text otherwise (for OutcomeUnparseable, Text holds the raw output).
type Outcome struct {
	Kind   OutcomeKind
	Intent *dispatch.Intent
	Text   string
}

// Classify turns raw model output into an Outcome.
//
// The raw text is first tried as a tool call: a JSON object with a string
// "name" and an object "arguments". Failing that, non-empty text is a final
// answer — unless it carries UnparseablePrefix, which routes it to recovery
// along with empty output.
func Classify(raw string) Outcome {
	trimmed := strings.TrimSpace(raw)

	if intent, ok := parseIntent(trimmed); ok {
		return Outcome{Kind: OutcomeToolCall, Intent: intent}
	}

	if trimmed == "" || strings.HasPrefix(trimmed, UnparseablePrefix) {
		return Outcome{Kind: OutcomeUnparseable, Text: trimmed}
	}

	return Outcome{Kind: OutcomeFinalAnswer, Text: trimmed}
}

// parseIntent attempts a strict decode of the tool-call wire format. gjson
// probes the shape cheaply before committing to a full unmarshal.
func parseIntent(s string) (*dispatch.Intent, bool) {
	if !gjson.Valid(s) {
		return nil, false
	}

	name := gjson.Get(s, "name")
	args := gjson.Get(s, "arguments")
	if name.Type != gjson.String || name.Str == "" || !args.IsObject() {
		return nil, false
	}

	var intent dispatch.Intent
	if err := json.Unmarshal([]byte(s), &intent); err != nil {
		return nil, false
	}
	if intent.Arguments == nil {
		intent.Arguments = map[string]any{}
	}
	return &intent, true
}
