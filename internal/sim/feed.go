// Package sim mutates the inventory over time, independently of query
// traffic, and publishes every stock change on an ordered update feed.
package sim

import (
	"sync"
)

// Event is one stock-change record. Sequence is assigned by the simulator,
// strictly increasing by 1 from 1, and totally orders all writes. Delta is
// negative for a sale and 0 when nothing could be sold.
type Event struct {
	Sequence          uint64
	ItemName          string
	Delta             int
	ResultingQuantity int
	Message           string
}

// Feed is the append-only log of simulator events. The simulator is its
// only writer; any number of observers subscribe read-only. A subscriber
// receives events in sequence order with no gaps and no duplicates from its
// subscription point onward — there is no replay of history.
//
// Feed is safe for concurrent use.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

// subscriber buffers published events without bound so a slow reader can
// never stall the simulator or force reordering. A pump goroutine drains
// the buffer into the reader's channel.
type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	done   chan struct{}
	ch     chan Event
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]*subscriber)}
}

// Subscribe registers an observer starting at the current sequence position.
// The returned channel yields events in order; cancel unregisters the
// observer and closes the channel. cancel is idempotent.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event), done: make(chan struct{})}
	sub.cond = sync.NewCond(&sub.mu)
	go sub.pump()

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.closed {
		f.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	f.subs[id] = sub
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			sub.close()
		})
	}
	return sub.ch, cancel
}

// Close shuts the feed down and closes every subscriber channel. Events not
// yet consumed may be dropped; order is still never violated.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[int]*subscriber)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// publish appends ev for every current subscriber. Called by the simulator
// with events in sequence order; the per-subscriber queue preserves that
// order end to end.
func (f *Feed) publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		sub.enqueue(ev)
	}
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// pump moves events from the queue to the channel, preserving order, and
// closes the channel once the subscriber is closed. A send in flight when
// the subscriber goes away is abandoned rather than leaked.
func (s *subscriber) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.done:
			return
		}
	}
}
