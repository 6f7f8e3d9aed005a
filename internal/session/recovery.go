package session

import (
	"strings"

	"github.com/koopa0/stockchat/internal/llm"
)

// fallbackReply is the fixed apology used when nothing usable can be pulled
// out of the model's output. The turn still ends with a reply; recovery
// never retries the model.
const fallbackReply = "I'm sorry, I didn't catch that. Could you repeat your request?"

// Recover produces a displayable reply for an unparseable outcome. It is a
// pure function over the tagged value: when the text carries the wrapper's
// known prefix, the remainder is returned verbatim; otherwise the fixed
// fallback applies. Tool-call and final-answer outcomes pass through
// untouched by convention (callers handle those before recovery).
func Recover(o llm.Outcome) string {
	switch o.Kind {
	case llm.OutcomeFinalAnswer:
		return o.Text
	case llm.OutcomeToolCall:
		// Callers dispatch tool calls; reaching here means a routing bug
		// upstream, and the safe output is still the apology.
		return fallbackReply
	}

	if rest, ok := strings.CutPrefix(o.Text, llm.UnparseablePrefix); ok && strings.TrimSpace(rest) != "" {
		return rest
	}
	return fallbackReply
}
