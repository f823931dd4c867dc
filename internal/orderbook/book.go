package orderbook

import (
	"fmt"
)

// PriceLevel holds the resting orders at one price, oldest first.
type PriceLevel struct {
	Price  int64
	Orders []*Order
}

func (pl *PriceLevel) TotalQuantity() int64 {
	var total int64
	for _, o := range pl.Orders {
		total += o.Remaining()
	}
	return total
}

// Book is the two-sided price level index for a single instrument.
// It is a plain owned structure: no internal locking, no matching.
// The engine serializes every mutation and runs the matching loop
// against the primitives below.
type Book struct {
	bids   []*PriceLevel // Sorted descending by price (best bid first)
	asks   []*PriceLevel // Sorted ascending by price (best ask first)
	orders map[string]*Order
}

func NewBook() *Book {
	return &Book{
		bids:   make([]*PriceLevel, 0),
		asks:   make([]*PriceLevel, 0),
		orders: make(map[string]*Order),
	}
}

// Insert adds a non-matched remainder to the back of its price level,
// creating the level if absent. Never called with zero remaining
// quantity; that would plant an order matching can never clear.
func (b *Book) Insert(order *Order) {
	if order.Remaining() <= 0 {
		panic(fmt.Sprintf("orderbook: insert of exhausted order %s", order.ID))
	}
	b.orders[order.ID] = order

	if order.Side == Buy {
		b.bids = insertIntoLevels(b.bids, order, func(level, price int64) bool {
			return level < price
		})
	} else {
		b.asks = insertIntoLevels(b.asks, order, func(level, price int64) bool {
			return level > price
		})
	}
}

// insertIntoLevels finds or creates the order's price level, keeping the
// slice sorted best-first. worse reports whether an existing level price
// sorts after the new order's price.
func insertIntoLevels(levels []*PriceLevel, order *Order, worse func(level, price int64) bool) []*PriceLevel {
	for i, level := range levels {
		if level.Price == order.Price {
			level.Orders = append(level.Orders, order)
			return levels
		}
		if worse(level.Price, order.Price) {
			newLevel := &PriceLevel{Price: order.Price, Orders: []*Order{order}}
			return append(levels[:i], append([]*PriceLevel{newLevel}, levels[i:]...)...)
		}
	}
	return append(levels, &PriceLevel{Price: order.Price, Orders: []*Order{order}})
}

// Remove takes an order out of its queue and the lookup entirely.
// Used by cancel and by full-fill cleanup.
func (b *Book) Remove(orderID string) (*Order, error) {
	order, exists := b.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	delete(b.orders, orderID)

	if order.Side == Buy {
		removeFromLevels(order, &b.bids)
	} else {
		removeFromLevels(order, &b.asks)
	}
	return order, nil
}

func removeFromLevels(order *Order, levels *[]*PriceLevel) {
	for i, level := range *levels {
		if level.Price != order.Price {
			continue
		}
		for j, o := range level.Orders {
			if o.ID == order.ID {
				level.Orders = append(level.Orders[:j], level.Orders[j+1:]...)
				break
			}
		}
		// No empty level persists.
		if len(level.Orders) == 0 {
			*levels = append((*levels)[:i], (*levels)[i+1:]...)
		}
		return
	}
}

// Get returns a resting order by ID.
func (b *Book) Get(orderID string) (*Order, bool) {
	order, exists := b.orders[orderID]
	return order, exists
}

// BestOpposite returns the best price level a taker on the given side
// matches against: the lowest ask for a buy, the highest bid for a
// sell. Nil if that side is empty.
func (b *Book) BestOpposite(taker Side) *PriceLevel {
	if taker == Buy {
		if len(b.asks) == 0 {
			return nil
		}
		return b.asks[0]
	}
	if len(b.bids) == 0 {
		return nil
	}
	return b.bids[0]
}

// PeekOldest returns the front order of a level, the next matching
// candidate by time priority.
func (b *Book) PeekOldest(level *PriceLevel) *Order {
	if level == nil || len(level.Orders) == 0 {
		panic("orderbook: peek on empty price level")
	}
	return level.Orders[0]
}

// BestBid returns the highest bid price, or 0 if no bids
func (b *Book) BestBid() int64 {
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if no asks
func (b *Book) BestAsk() int64 {
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].Price
}

// Len returns the number of resting orders.
func (b *Book) Len() int {
	return len(b.orders)
}

type LevelSnapshot struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// BidLevels aggregates the bid side best-first.
func (b *Book) BidLevels() []LevelSnapshot {
	return aggregateLevels(b.bids)
}

// AskLevels aggregates the ask side best-first.
func (b *Book) AskLevels() []LevelSnapshot {
	return aggregateLevels(b.asks)
}

func aggregateLevels(levels []*PriceLevel) []LevelSnapshot {
	out := make([]LevelSnapshot, len(levels))
	for i, level := range levels {
		out[i] = LevelSnapshot{
			Price:    level.Price,
			Quantity: level.TotalQuantity(),
		}
	}
	return out
}
