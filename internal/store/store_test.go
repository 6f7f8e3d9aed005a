package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/koopa0/stockchat/internal/database"
	"github.com/koopa0/stockchat/internal/log"
)

// newTestStore opens a fresh migrated database in a temp dir and inserts the
// given items.
func newTestStore(t *testing.T, items ...Item) *Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, it := range items {
		_, err := db.Exec(
			"INSERT INTO inventory (ProductName, QuantityInStock, Price, Description, Aisle) VALUES (?, ?, ?, ?, ?)",
			it.Name, it.QuantityInStock, it.Price, it.Description, it.Aisle)
		if err != nil {
			t.Fatalf("insert %s: %v", it.Name, err)
		}
	}

	s, err := New(db, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestFindID(t *testing.T) {
	s := newTestStore(t, Item{Name: "Apple", QuantityInStock: 50, Price: 0.75})
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		id, err := s.FindID(ctx, "Apple")
		if err != nil {
			t.Fatalf("FindID(Apple) error = %v", err)
		}
		if id == 0 {
			t.Error("FindID returned zero id")
		}
	})

	t.Run("no fuzzy matching", func(t *testing.T) {
		for _, name := range []string{"apple", "Apples", " Apple"} {
			if _, err := s.FindID(ctx, name); !errors.Is(err, ErrNotFound) {
				t.Errorf("FindID(%q) error = %v, want ErrNotFound", name, err)
			}
		}
	})
}

func TestGetAttribute(t *testing.T) {
	s := newTestStore(t, Item{
		Name: "Milk", QuantityInStock: 30, Price: 3.20,
		Description: "Whole milk, 1 gallon", Aisle: "Dairy 4",
	})
	ctx := context.Background()

	id, err := s.FindID(ctx, "Milk")
	if err != nil {
		t.Fatalf("FindID: %v", err)
	}

	tests := []struct {
		attr Attribute
		want any
	}{
		{AttrQuantity, 30},
		{AttrPrice, 3.20},
		{AttrDescription, "Whole milk, 1 gallon"},
		{AttrAisle, "Dairy 4"},
	}
	for _, tt := range tests {
		t.Run(string(tt.attr), func(t *testing.T) {
			got, err := s.GetAttribute(ctx, id, tt.attr)
			if err != nil {
				t.Fatalf("GetAttribute(%s) error = %v", tt.attr, err)
			}
			if got != tt.want {
				t.Errorf("GetAttribute(%s) = %v (%T), want %v (%T)", tt.attr, got, got, tt.want, tt.want)
			}
		})
	}

	t.Run("missing item", func(t *testing.T) {
		if _, err := s.GetAttribute(ctx, 9999, AttrQuantity); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAttribute(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestDecrementStock(t *testing.T) {
	ctx := context.Background()

	t.Run("decrement returns new quantity", func(t *testing.T) {
		s := newTestStore(t, Item{Name: "Bread", QuantityInStock: 5, Price: 2.50})
		id, _ := s.FindID(ctx, "Bread")

		got, err := s.DecrementStock(ctx, id, 2)
		if err != nil {
			t.Fatalf("DecrementStock error = %v", err)
		}
		if got != 3 {
			t.Errorf("DecrementStock = %d, want 3", got)
		}
	})

	t.Run("never goes negative", func(t *testing.T) {
		s := newTestStore(t, Item{Name: "Bread", QuantityInStock: 3, Price: 2.50})
		id, _ := s.FindID(ctx, "Bread")

		// S=3, N=10 decrements of 1: exactly 3 succeed, the rest fail.
		var failures int
		for i := 0; i < 10; i++ {
			if _, err := s.DecrementStock(ctx, id, 1); err != nil {
				if !errors.Is(err, ErrInsufficientStock) {
					t.Fatalf("unexpected error: %v", err)
				}
				failures++
			}
		}
		if failures != 7 {
			t.Errorf("failures = %d, want 7", failures)
		}

		qty, err := s.GetAttribute(ctx, id, AttrQuantity)
		if err != nil {
			t.Fatalf("GetAttribute: %v", err)
		}
		if qty != 0 {
			t.Errorf("final quantity = %v, want 0", qty)
		}
	})

	t.Run("rejects below-zero without mutating", func(t *testing.T) {
		s := newTestStore(t, Item{Name: "Bread", QuantityInStock: 1, Price: 2.50})
		id, _ := s.FindID(ctx, "Bread")

		if _, err := s.DecrementStock(ctx, id, 2); !errors.Is(err, ErrInsufficientStock) {
			t.Fatalf("error = %v, want ErrInsufficientStock", err)
		}
		qty, _ := s.GetAttribute(ctx, id, AttrQuantity)
		if qty != 1 {
			t.Errorf("quantity mutated to %v on failed decrement", qty)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		s := newTestStore(t)
		if _, err := s.DecrementStock(ctx, 42, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		s := newTestStore(t, Item{Name: "Bread", QuantityInStock: 1})
		id, _ := s.FindID(ctx, "Bread")
		if _, err := s.DecrementStock(ctx, id, 0); err == nil {
			t.Error("DecrementStock(0) succeeded, want error")
		}
	})
}

func TestDecrementStockConcurrent(t *testing.T) {
	const initial = 40
	s := newTestStore(t, Item{Name: "Egg", QuantityInStock: initial, Price: 0.35})
	ctx := context.Background()
	id, _ := s.FindID(ctx, "Egg")

	// 10 goroutines x 6 decrements = 60 attempts against 40 units.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, depleted int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 6; i++ {
				_, err := s.DecrementStock(ctx, id, 1)
				mu.Lock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrInsufficientStock):
					depleted++
				default:
					t.Errorf("unexpected error: %v", err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != initial {
		t.Errorf("succeeded = %d, want %d", succeeded, initial)
	}
	if depleted != 60-initial {
		t.Errorf("depleted = %d, want %d", depleted, 60-initial)
	}

	qty, err := s.GetAttribute(ctx, id, AttrQuantity)
	if err != nil {
		t.Fatalf("GetAttribute: %v", err)
	}
	if qty != 0 {
		t.Errorf("final quantity = %v, want 0", qty)
	}
}

func TestInStock(t *testing.T) {
	s := newTestStore(t,
		Item{Name: "Apple", QuantityInStock: 2, Price: 0.75},
		Item{Name: "Banana", QuantityInStock: 0, Price: 0.25},
		Item{Name: "Milk", QuantityInStock: 7, Price: 3.20},
	)
	ctx := context.Background()

	items, err := s.InStock(ctx)
	if err != nil {
		t.Fatalf("InStock error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("InStock returned %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.QuantityInStock <= 0 {
			t.Errorf("InStock returned %s with quantity %d", it.Name, it.QuantityInStock)
		}
		if it.Name == "Banana" {
			t.Error("InStock returned depleted item")
		}
	}

	// Enumeration is fresh: depleting Apple removes it.
	id, _ := s.FindID(ctx, "Apple")
	if _, err := s.DecrementStock(ctx, id, 2); err != nil {
		t.Fatalf("DecrementStock: %v", err)
	}
	items, err = s.InStock(ctx)
	if err != nil {
		t.Fatalf("InStock error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "Milk" {
		t.Errorf("InStock after depletion = %+v, want only Milk", items)
	}
}

func TestLockRespectsCancellation(t *testing.T) {
	s := newTestStore(t, Item{Name: "Apple", QuantityInStock: 1})

	// Hold the critical section, then verify a canceled reader returns
	// instead of blocking.
	if err := s.lock(context.Background()); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer s.unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.FindID(ctx, "Apple"); !errors.Is(err, context.Canceled) {
		t.Errorf("FindID under held lock with canceled ctx = %v, want context.Canceled", err)
	}
}
