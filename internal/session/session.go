// Package session drives the conversational request/response cycle.
//
// A session owns its turn history, submits each user utterance (plus
// history) to the model, routes the classified output to the dispatcher or
// treats it as a final answer, and always hands the caller a displayable
// string. The only error HandleTurn can return is the store becoming
// unreachable — every other failure is absorbed into the reply.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/koopa0/stockchat/internal/dispatch"
	"github.com/koopa0/stockchat/internal/llm"
	"github.com/koopa0/stockchat/internal/resolve"
	"github.com/koopa0/stockchat/internal/store"
)

// State of the per-turn machine. A turn moves
// Idle → AwaitingModel → Interpreting → (Dispatching →) Responding → Idle.
type State int

// Turn states.
const (
	StateIdle State = iota
	StateAwaitingModel
	StateInterpreting
	StateDispatching
	StateResponding
)

// String implements fmt.Stringer for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateInterpreting:
		return "interpreting"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Turn is one entry of session memory, appended in arrival order.
type Turn struct {
	Role    llm.Role
	Content string
}

// Config contains the required parameters for a Session.
type Config struct {
	Model      llm.Model
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger

	// MaxHistoryTurns caps how many past turns are replayed to the model.
	// Zero means no cap. The session's own memory is never truncated.
	MaxHistoryTurns int
}

func (cfg Config) validate() error {
	if cfg.Model == nil {
		return errors.New("model is required")
	}
	if cfg.Dispatcher == nil {
		return errors.New("dispatcher is required")
	}
	if cfg.MaxHistoryTurns < 0 {
		return errors.New("max history turns must not be negative")
	}
	return nil
}

// Session is one conversation. It is intended for a single caller; methods
// must not be invoked concurrently. The inventory may change underneath it
// at any time (the simulator runs on its own schedule), which is why lookups
// always go to the store fresh and nothing read in a turn is cached across
// the model call.
type Session struct {
	id         uuid.UUID
	model      llm.Model
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	maxHistory int
	history    []Turn
	state      State
}

// New creates a Session.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New()
	return &Session{
		id:         id,
		model:      cfg.Model,
		dispatcher: cfg.Dispatcher,
		logger:     logger.With("session_id", id.String()),
		maxHistory: cfg.MaxHistoryTurns,
		state:      StateIdle,
	}, nil
}

// ID returns the session's identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current turn state.
func (s *Session) State() State { return s.state }

// History returns a copy of the session memory in arrival order.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the session memory.
func (s *Session) Reset() {
	s.history = nil
	s.state = StateIdle
}

// HandleTurn runs one full turn for the given user input and returns the
// assistant's reply.
//
// The model call is the turn's only suspension point; the store may be
// mutated while it is in flight, so any attribute the reply needs is
// resolved after the call, never before. The returned error is non-nil only
// when the store is unreachable; malformed model output, unknown
// operations, bad arguments and model failures all fold into the reply.
func (s *Session) HandleTurn(ctx context.Context, input string) (string, error) {
	s.history = append(s.history, Turn{Role: llm.RoleUser, Content: input})

	s.state = StateAwaitingModel
	raw, err := s.model.Generate(ctx, s.promptMessages())
	if err != nil {
		// Timeout, cancellation and provider failure all take the same
		// path: recover into a displayable reply, never hang or crash.
		s.logger.Warn("model call failed", "err", err)
		return s.respond(Recover(llm.Outcome{Kind: llm.OutcomeUnparseable})), nil
	}

	s.state = StateInterpreting
	outcome := llm.Classify(raw)

	switch outcome.Kind {
	case llm.OutcomeToolCall:
		s.state = StateDispatching
		reply, err := s.dispatchIntent(ctx, *outcome.Intent)
		if err != nil {
			s.state = StateIdle
			return "", err
		}
		return s.respond(reply), nil

	case llm.OutcomeFinalAnswer:
		return s.respond(outcome.Text), nil

	default:
		return s.respond(Recover(outcome)), nil
	}
}

// respond appends the assistant turn and closes the state machine loop.
func (s *Session) respond(reply string) string {
	s.state = StateResponding
	s.history = append(s.history, Turn{Role: llm.RoleAssistant, Content: reply})
	s.state = StateIdle
	return reply
}

// promptMessages renders the history (already including the new user turn)
// for the model, bounded to the most recent maxHistory turns.
func (s *Session) promptMessages() []llm.Message {
	turns := s.history
	if s.maxHistory > 0 && len(turns) > s.maxHistory {
		turns = turns[len(turns)-s.maxHistory:]
	}
	msgs := make([]llm.Message, len(turns))
	for i, t := range turns {
		msgs[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return msgs
}

// dispatchIntent executes a tool call and formats its result. Only a store
// failure surfaces as an error; every dispatch-level rejection becomes a
// user-facing reply.
func (s *Session) dispatchIntent(ctx context.Context, intent dispatch.Intent) (string, error) {
	result, err := s.dispatcher.Dispatch(ctx, intent)
	switch {
	case err == nil:
		return formatResult(intent, result), nil

	case errors.Is(err, store.ErrNotFound):
		// Expected outcome, not a failure.
		return notFoundReply, nil

	case errors.Is(err, dispatch.ErrUnknownOperation),
		errors.Is(err, dispatch.ErrArgumentMismatch),
		errors.Is(err, resolve.ErrUnsupportedAttribute):
		s.logger.Warn("malformed dispatch request", "operation", intent.Name, "err", err)
		return fallbackReply, nil

	default:
		return "", fmt.Errorf("inventory store unavailable: %w", err)
	}
}

// notFoundReply surfaces a missing item or attribute. The "NA" marker is the
// contract; the sentence around it keeps the chat readable.
const notFoundReply = "NA — I couldn't find that item in our inventory."

// formatResult renders a successful dispatch result as natural language.
func formatResult(intent dispatch.Intent, result any) string {
	item := "that item"
	if v, ok := intent.Arguments["item"].(string); ok && v != "" {
		item = resolve.Normalize(v)
	}

	attr := ""
	switch intent.Name {
	case "get_quantity":
		attr = "quantity"
	case "get_price":
		attr = "price"
	case "get_description":
		attr = "description"
	case "get_aisle":
		attr = "aisle"
	case "query":
		if v, ok := intent.Arguments["attribute"].(string); ok {
			attr = v
		}
	}

	switch attr {
	case "quantity":
		return fmt.Sprintf("We have %v %s(s) in stock.", result, item)
	case "price":
		if f, ok := result.(float64); ok {
			return fmt.Sprintf("%s costs $%.2f.", item, f)
		}
		return fmt.Sprintf("%s costs $%v.", item, result)
	case "description":
		return fmt.Sprintf("%s: %v", item, result)
	case "aisle":
		return fmt.Sprintf("You can find %s in aisle %v.", item, result)
	default:
		return fmt.Sprintf("%s %s: %v", item, attr, result)
	}
}
