package llm

import (
	"context"
	"sync"
)

// ScriptedModel is a Model fake that replays a fixed sequence of outputs.
// Test-only.
type ScriptedModel struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   [][]Message
}

// NewScriptedModel returns a fake that yields the given outputs in order.
// Once exhausted it keeps returning the last output.
func NewScriptedModel(outputs ...string) *ScriptedModel {
	return &ScriptedModel{outputs: outputs}
}

// NewFailingModel returns a fake whose Generate always fails with err.
func NewFailingModel(err error) *ScriptedModel {
	return &ScriptedModel{err: err}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, msgs []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]Message, len(msgs))
	copy(snapshot, msgs)
	m.calls = append(m.calls, snapshot)

	if m.err != nil {
		return "", m.err
	}
	if len(m.outputs) == 0 {
		return "", nil
	}
	out := m.outputs[0]
	if len(m.outputs) > 1 {
		m.outputs = m.outputs[1:]
	}
	return out, nil
}

// Calls returns the message slices passed to Generate, in order.
func (m *ScriptedModel) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
