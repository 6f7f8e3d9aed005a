// Package dispatch executes structured function-call intents against a
// closed registry of inventory operations.
//
// The registry is the only place where a model-chosen name turns into
// executed behavior. Operations are declared in a fixed table at
// construction; nothing is looked up by reflection, so a misbehaving or
// adversarial model can only ever reach the five pre-declared lookups.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/koopa0/stockchat/internal/resolve"
)

// Sentinel errors. Check with errors.Is.
var (
	// ErrUnknownOperation indicates the intent names no registered operation.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrArgumentMismatch indicates the arguments do not match the
	// operation's schema (missing, extra, or wrongly typed parameters).
	ErrArgumentMismatch = errors.New("argument mismatch")
)

// Intent is a function-call request produced by the model: one registered
// operation name plus its arguments. Consumed once, never persisted.
type Intent struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Kind is the coarse parameter type checked during validation.
type Kind string

// Coarse parameter kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
)

// Param declares one operation parameter.
type Param struct {
	Name        string
	Kind        Kind
	Description string
}

// Spec describes a registered operation, for building model-side function
// schemas without a second source of truth.
type Spec struct {
	Name        string
	Description string
	Params      []Param
}

type operation struct {
	spec    Spec
	handler func(ctx context.Context, args map[string]any) (any, error)
}

// Dispatcher validates and executes intents against its registry.
type Dispatcher struct {
	ops    map[string]operation
	order  []string
	logger *slog.Logger
}

// New creates a Dispatcher whose registry is bound to the given resolver.
func New(res *resolve.Resolver, logger *slog.Logger) (*Dispatcher, error) {
	if res == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{ops: make(map[string]operation), logger: logger}

	itemParam := Param{Name: "item", Kind: KindString, Description: "The item to look up"}

	// Fixed attribute lookups, one per attribute.
	for _, op := range []struct {
		name, desc, attr string
	}{
		{"get_quantity", "Get the quantity of an item in stock", "quantity"},
		{"get_price", "Get the price of an item", "price"},
		{"get_description", "Get the description of an item", "description"},
		{"get_aisle", "Get the aisle where an item is shelved", "aisle"},
	} {
		attr := op.attr
		d.register(Spec{
			Name:        op.name,
			Description: op.desc,
			Params:      []Param{itemParam},
		}, func(ctx context.Context, args map[string]any) (any, error) {
			return res.Resolve(ctx, args["item"].(string), attr)
		})
	}

	// Generic lookup with a caller-chosen attribute.
	d.register(Spec{
		Name:        "query",
		Description: "Look up one attribute (quantity, price, description or aisle) of an item",
		Params: []Param{
			itemParam,
			{Name: "attribute", Kind: KindString, Description: "One of: quantity, price, description, aisle"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return res.Resolve(ctx, args["item"].(string), args["attribute"].(string))
	})

	return d, nil
}

func (d *Dispatcher) register(spec Spec, handler func(context.Context, map[string]any) (any, error)) {
	d.ops[spec.Name] = operation{spec: spec, handler: handler}
	d.order = append(d.order, spec.Name)
}

// Specs returns the registered operations in registration order.
func (d *Dispatcher) Specs() []Spec {
	specs := make([]Spec, 0, len(d.order))
	for _, name := range d.order {
		specs = append(specs, d.ops[name].spec)
	}
	return specs
}

// Dispatch validates the intent and runs the bound handler.
//
// The handler's result (and its store.ErrNotFound, which is an expected
// outcome rather than a failure) is returned unmodified. ErrUnknownOperation
// and ErrArgumentMismatch indicate a malformed intent.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) (any, error) {
	op, ok := d.ops[intent.Name]
	if !ok {
		d.logger.Warn("rejected unknown operation", "name", intent.Name)
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, intent.Name)
	}

	if err := validateArgs(op.spec, intent.Arguments); err != nil {
		d.logger.Warn("rejected malformed arguments", "name", intent.Name, "err", err)
		return nil, err
	}

	return op.handler(ctx, intent.Arguments)
}

// validateArgs checks that args supplies exactly the declared parameters with
// the right coarse types.
func validateArgs(spec Spec, args map[string]any) error {
	if len(args) != len(spec.Params) {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d",
			ErrArgumentMismatch, spec.Name, len(spec.Params), len(args))
	}

	for _, p := range spec.Params {
		v, ok := args[p.Name]
		if !ok {
			return fmt.Errorf("%w: %s missing %q", ErrArgumentMismatch, spec.Name, p.Name)
		}
		if !matchesKind(v, p.Kind) {
			return fmt.Errorf("%w: %s argument %q must be a %s, got %T",
				ErrArgumentMismatch, spec.Name, p.Name, p.Kind, v)
		}
	}
	return nil
}

// matchesKind reports whether v has the coarse type k. Numbers tolerate the
// representations different JSON decoders produce.
func matchesKind(v any, k Kind) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	default:
		return false
	}
}
