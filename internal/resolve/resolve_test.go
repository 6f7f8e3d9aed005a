package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/koopa0/stockchat/internal/database"
	"github.com/koopa0/stockchat/internal/log"
	"github.com/koopa0/stockchat/internal/store"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"apples", "Apple"},
		{"  apples  ", "Apple"},
		{"apple", "Apple"},
		{"Apple", "Apple"},
		{"bananas", "Banana"},
		{"glass", "Glass"},      // double-s suffix untouched
		{"GLASS", "GLASS"},      // case-insensitive suffix check
		{"potatoes", "Potatoe"}, // known heuristic limit
		{"s", "S"},              // single letter never stripped to empty
		{"", ""},
		{"   ", ""},
		{"milk", "Milk"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"apples", "Apples", "glass", "potatoes", "  eggs ", "", "s", "ss", "Ss"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.Seed(context.Background(), db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s, err := store.New(db, log.NewNop())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r, err := New(s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, s
}

func TestResolve(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	t.Run("quantity matches store at call time", func(t *testing.T) {
		items, err := s.Items(ctx)
		if err != nil {
			t.Fatalf("Items: %v", err)
		}
		for _, it := range items {
			got, err := r.Resolve(ctx, it.Name, "quantity")
			if err != nil {
				t.Fatalf("Resolve(%s, quantity) error = %v", it.Name, err)
			}
			if got != it.QuantityInStock {
				t.Errorf("Resolve(%s, quantity) = %v, want %d", it.Name, got, it.QuantityInStock)
			}
		}
	})

	t.Run("plural and lowercase references resolve", func(t *testing.T) {
		got, err := r.Resolve(ctx, "apples", "price")
		if err != nil {
			t.Fatalf("Resolve(apples, price) error = %v", err)
		}
		if got != 0.75 {
			t.Errorf("Resolve(apples, price) = %v, want 0.75", got)
		}
	})

	t.Run("string attributes", func(t *testing.T) {
		got, err := r.Resolve(ctx, "milk", "aisle")
		if err != nil {
			t.Fatalf("Resolve(milk, aisle) error = %v", err)
		}
		if got != "Dairy 4" {
			t.Errorf("Resolve(milk, aisle) = %v, want Dairy 4", got)
		}
	})

	t.Run("missing item is NotFound not failure", func(t *testing.T) {
		_, err := r.Resolve(ctx, "unicorns", "price")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Resolve(unicorns) error = %v, want store.ErrNotFound", err)
		}
	})

	t.Run("unsupported attribute", func(t *testing.T) {
		_, err := r.Resolve(ctx, "apples", "color")
		if !errors.Is(err, ErrUnsupportedAttribute) {
			t.Errorf("Resolve(apples, color) error = %v, want ErrUnsupportedAttribute", err)
		}
	})

	t.Run("attribute name is case-insensitive", func(t *testing.T) {
		if _, err := r.Resolve(ctx, "apples", " Quantity "); err != nil {
			t.Errorf("Resolve(apples, ' Quantity ') error = %v", err)
		}
	})

	t.Run("empty item reference", func(t *testing.T) {
		_, err := r.Resolve(ctx, "   ", "quantity")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Resolve(blank) error = %v, want store.ErrNotFound", err)
		}
	})
}

func TestResolveSeesFreshState(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()

	id, err := s.FindID(ctx, "Apple")
	if err != nil {
		t.Fatalf("FindID: %v", err)
	}

	before, err := r.Resolve(ctx, "apples", "quantity")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if _, err := s.DecrementStock(ctx, id, 1); err != nil {
		t.Fatalf("DecrementStock: %v", err)
	}

	after, err := r.Resolve(ctx, "apples", "quantity")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if after != before.(int)-1 {
		t.Errorf("Resolve after decrement = %v, want %d", after, before.(int)-1)
	}
}
