// Package resolve maps free-text item references and attribute names onto
// inventory store lookups.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/koopa0/stockchat/internal/store"
)

// ErrUnsupportedAttribute indicates the attribute name is outside the known
// set (quantity, price, description, aisle).
var ErrUnsupportedAttribute = errors.New("unsupported attribute")

// attributes maps user-facing attribute names to store attributes.
var attributes = map[string]store.Attribute{
	"quantity":    store.AttrQuantity,
	"price":       store.AttrPrice,
	"description": store.AttrDescription,
	"aisle":       store.AttrAisle,
}

// Attributes returns the supported attribute names, for prompt and schema
// construction.
func Attributes() []string {
	return []string{"quantity", "price", "description", "aisle"}
}

// Normalize turns a raw item reference into the store's canonical name form:
// whitespace trimmed, a plural suffix reduced to singular, first letter
// capitalized.
//
// Singularization is deliberately a blunt suffix rule: strip one trailing
// "s" unless the word ends in "ss". Irregular plurals come out wrong
// ("potatoes" -> "Potatoe"); that limit is part of the contract, not a bug
// to fix here. Normalize is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	if len(s) > 1 && strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") {
		s = s[:len(s)-1]
	}

	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Resolver normalizes item references and answers attribute lookups against
// the store.
type Resolver struct {
	store *store.Store
}

// New creates a Resolver bound to the given store.
func New(s *store.Store) (*Resolver, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Resolver{store: s}, nil
}

// Resolve normalizes rawItem, finds it in the store and reads the named
// attribute. store.ErrNotFound when the item does not exist (an expected
// outcome); ErrUnsupportedAttribute for attribute names outside the known
// set.
func (r *Resolver) Resolve(ctx context.Context, rawItem, attribute string) (any, error) {
	attr, ok := attributes[strings.ToLower(strings.TrimSpace(attribute))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAttribute, attribute)
	}

	name := Normalize(rawItem)
	if name == "" {
		return nil, store.ErrNotFound
	}

	id, err := r.store.FindID(ctx, name)
	if err != nil {
		return nil, err
	}

	return r.store.GetAttribute(ctx, id, attr)
}
