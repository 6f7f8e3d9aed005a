// Package store implements the inventory store, the single source of truth
// for item attributes.
//
// Two independent actors touch the store: the conversational session (reads,
// per user turn) and the purchase simulator (read-modify-writes, on its own
// schedule). Every operation runs inside one exclusive critical section, so
// a decrement and a concurrent attribute read never observe a torn
// intermediate state. Callers need no locking of their own.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel errors. Check with errors.Is.
var (
	// ErrNotFound indicates the item (or requested attribute value) does not
	// exist. This is an expected outcome, not a failure: callers surface it
	// as "NA".
	ErrNotFound = errors.New("item not found")

	// ErrInsufficientStock indicates a decrement would take quantity below
	// zero. The store is left unchanged.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Attribute names an item column readable through GetAttribute.
type Attribute string

// Attributes exposed to lookups.
const (
	AttrQuantity    Attribute = "quantity"
	AttrPrice       Attribute = "price"
	AttrDescription Attribute = "description"
	AttrAisle       Attribute = "aisle"
)

// Item is one inventory record.
type Item struct {
	ProductID       int64
	Name            string
	QuantityInStock int
	Price           float64
	Description     string
	Aisle           string
}

// Store provides serialized access to the inventory table.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *sql.DB
	mu     chan struct{} // buffered-1 semaphore; respects context cancellation
	logger *slog.Logger
}

// New creates a Store over an opened, migrated database handle.
func New(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		mu:     make(chan struct{}, 1),
		logger: logger,
	}
	return s, nil
}

// lock acquires the store's critical section, honoring ctx cancellation so an
// aborted session turn never blocks behind the simulator.
func (s *Store) lock(ctx context.Context) error {
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() {
	<-s.mu
}

// FindID returns the ProductID for an exact name match. Normalized or fuzzy
// matching belongs to the resolver, not here.
func (s *Store) FindID(ctx context.Context, name string) (int64, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT ProductID FROM inventory WHERE ProductName = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find id for %q: %w", name, err)
	}
	return id, nil
}

// GetAttribute reads a single attribute of the item with the given id.
// Returns int for quantity, float64 for price and string for description and
// aisle. ErrNotFound if no such item.
func (s *Store) GetAttribute(ctx context.Context, id int64, attr Attribute) (any, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	var column string
	switch attr {
	case AttrQuantity:
		column = "QuantityInStock"
	case AttrPrice:
		column = "Price"
	case AttrDescription:
		column = "Description"
	case AttrAisle:
		column = "Aisle"
	default:
		return nil, fmt.Errorf("unknown attribute %q", attr)
	}

	// Column name comes from the switch above, never from input.
	query := fmt.Sprintf("SELECT %s FROM inventory WHERE ProductID = ?", column)

	switch attr {
	case AttrQuantity:
		var v int
		if err := s.scanOne(ctx, query, id, &v); err != nil {
			return nil, err
		}
		return v, nil
	case AttrPrice:
		var v float64
		if err := s.scanOne(ctx, query, id, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		var v string
		if err := s.scanOne(ctx, query, id, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (s *Store) scanOne(ctx context.Context, query string, id int64, dest any) error {
	err := s.db.QueryRowContext(ctx, query, id).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read attribute: %w", err)
	}
	return nil
}

// DecrementStock atomically reduces QuantityInStock by amount and returns the
// resulting quantity. ErrInsufficientStock if the decrement would go
// negative; the row is then left untouched.
func (s *Store) DecrementStock(ctx context.Context, id int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("decrement amount must be positive, got %d", amount)
	}
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()

	var current int
	err := s.db.QueryRowContext(ctx,
		"SELECT QuantityInStock FROM inventory WHERE ProductID = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}

	if current < amount {
		return current, fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, current, amount)
	}

	next := current - amount
	if _, err := s.db.ExecContext(ctx,
		"UPDATE inventory SET QuantityInStock = ? WHERE ProductID = ?", next, id); err != nil {
		return 0, fmt.Errorf("write stock: %w", err)
	}

	s.logger.Debug("stock decremented", "product_id", id, "amount", amount, "remaining", next)
	return next, nil
}

// InStock enumerates items with positive stock, freshly from the table. The
// simulator calls this per purchase; the result must never be cached because
// the set shrinks as stock depletes.
func (s *Store) InStock(ctx context.Context) ([]Item, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	return s.queryItems(ctx,
		"SELECT ProductID, ProductName, QuantityInStock, Price, Description, Aisle FROM inventory WHERE QuantityInStock > 0 ORDER BY ProductID")
}

// Items returns the whole inventory, in ProductID order.
func (s *Store) Items(ctx context.Context) ([]Item, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	return s.queryItems(ctx,
		"SELECT ProductID, ProductName, QuantityInStock, Price, Description, Aisle FROM inventory ORDER BY ProductID")
}

func (s *Store) queryItems(ctx context.Context, query string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.QuantityInStock, &it.Price, &it.Description, &it.Aisle); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}
