package orderbook

import (
	"fmt"
)

// StopBook holds stop-limit and stop-market orders until the last trade
// price satisfies their trigger condition. Orders fire in registration
// order, not trigger-price order, which keeps cascades deterministic.
type StopBook struct {
	pending []*Order
	byID    map[string]*Order
}

func NewStopBook() *StopBook {
	return &StopBook{
		pending: make([]*Order, 0),
		byID:    make(map[string]*Order),
	}
}

// Register stores a pending-trigger order at the back of the queue.
func (sb *StopBook) Register(order *Order) {
	order.Status = PendingTrigger
	sb.pending = append(sb.pending, order)
	sb.byID[order.ID] = order
}

// Cancel removes a pending order without triggering it.
func (sb *StopBook) Cancel(orderID string) (*Order, error) {
	order, exists := sb.byID[orderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	sb.remove(orderID)
	return order, nil
}

// Get returns a pending order by ID.
func (sb *StopBook) Get(orderID string) (*Order, bool) {
	order, exists := sb.byID[orderID]
	return order, exists
}

// Triggered removes and returns, in registration order, every pending
// order whose condition the last trade price now satisfies: buy stops
// fire at lastPrice >= trigger, sell stops at lastPrice <= trigger.
func (sb *StopBook) Triggered(lastPrice int64) []*Order {
	var fired []*Order
	remaining := sb.pending[:0]
	for _, order := range sb.pending {
		if satisfied(order, lastPrice) {
			fired = append(fired, order)
			delete(sb.byID, order.ID)
		} else {
			remaining = append(remaining, order)
		}
	}
	sb.pending = remaining
	return fired
}

func satisfied(order *Order, lastPrice int64) bool {
	if order.Side == Buy {
		return lastPrice >= order.TriggerPrice
	}
	return lastPrice <= order.TriggerPrice
}

// Pending returns the registered orders in registration order.
func (sb *StopBook) Pending() []*Order {
	out := make([]*Order, len(sb.pending))
	copy(out, sb.pending)
	return out
}

func (sb *StopBook) Len() int {
	return len(sb.pending)
}

func (sb *StopBook) remove(orderID string) {
	delete(sb.byID, orderID)
	for i, o := range sb.pending {
		if o.ID == orderID {
			sb.pending = append(sb.pending[:i], sb.pending[i+1:]...)
			return
		}
	}
}
