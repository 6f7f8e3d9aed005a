package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/koopa0/stockchat/internal/store"
)

// Messages carried by events that did not move stock.
const (
	// msgNoStock is emitted when nothing in the store has positive stock.
	msgNoStock = "no stock available"

	// msgOutOfStock is emitted when the chosen item sold out between
	// enumeration and decrement (another actor got there first).
	msgOutOfStock = "out of stock"
)

// Simulator sells one unit of a randomly chosen in-stock item per call,
// recording every outcome on its feed. It owns the feed and the event
// sequence; everyone else reads.
//
// Simulator is safe for concurrent use: it may run on its own timer fully
// concurrently with session turns, coordinated only through the store's
// critical section and the feed's ordering.
type Simulator struct {
	store  *store.Store
	feed   *Feed
	logger *slog.Logger

	// mu makes sequence assignment and publication one atomic step, so feed
	// order always equals sequence order.
	mu  sync.Mutex
	seq uint64
}

// New creates a Simulator writing to feed.
func New(st *store.Store, feed *Feed, logger *slog.Logger) (*Simulator, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if feed == nil {
		return nil, fmt.Errorf("feed is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{store: st, feed: feed, logger: logger}, nil
}

// Feed returns the simulator's update feed for observers.
func (s *Simulator) Feed() *Feed { return s.feed }

// SimulatePurchase sells one unit of a uniformly chosen in-stock item and
// returns the recorded event. The in-stock set is enumerated fresh on every
// call — it shrinks as stock depletes, so caching it would pick dead items.
//
// When nothing is in stock the store is left untouched and the event says
// so. The returned error is non-nil only when the store is unreachable; in
// that case nothing is appended to the feed.
func (s *Simulator) SimulatePurchase(ctx context.Context) (Event, error) {
	items, err := s.store.InStock(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("enumerate stock: %w", err)
	}

	if len(items) == 0 {
		return s.emit(Event{Message: msgNoStock}), nil
	}

	pick := items[rand.Intn(len(items))]
	remaining, err := s.store.DecrementStock(ctx, pick.ProductID, 1)
	switch {
	case err == nil:
		s.logger.Debug("simulated purchase", "item", pick.Name, "remaining", remaining)
		return s.emit(Event{
			ItemName:          pick.Name,
			Delta:             -1,
			ResultingQuantity: remaining,
			Message:           fmt.Sprintf("sold 1 %s, %d remaining", pick.Name, remaining),
		}), nil

	case errors.Is(err, store.ErrInsufficientStock):
		// Lost the race for the last unit; record it without mutating.
		return s.emit(Event{
			ItemName:          pick.Name,
			ResultingQuantity: remaining,
			Message:           msgOutOfStock,
		}), nil

	default:
		return Event{}, fmt.Errorf("decrement %s: %w", pick.Name, err)
	}
}

// emit assigns the next sequence number and publishes atomically.
func (s *Simulator) emit(ev Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev.Sequence = s.seq
	s.feed.publish(ev)
	return ev
}

// Run simulates one purchase per tick until ctx is canceled. It returns nil
// on cancellation and the store error if the store becomes unreachable —
// that is fatal to the simulator, the host decides what happens next.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("simulator started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SimulatePurchase(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				s.logger.Error("simulator halted", "err", err)
				return err
			}
		}
	}
}
