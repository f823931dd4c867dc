// Package engine is the matching core: it accepts order commands,
// matches crossing orders against the book by price-time priority,
// evaluates pending stop orders against the last trade price, and
// reports fills. All mutation is serialized behind one lock; a command
// runs its full matching loop plus trigger drain before the lock is
// released, so observers never see a crossed or half-matched book.
package engine

import (
	"sync"

	"go.uber.org/zap"

	"matchbook/internal/orderbook"
)

type Engine struct {
	symbol string

	mu     sync.RWMutex
	book   *orderbook.Book
	stops  *orderbook.StopBook
	orders map[string]*orderbook.Order // every accepted order, terminal ones included
	trades []orderbook.Trade

	seq       uint64
	lastPrice int64 // 0 until the first trade

	log *zap.Logger

	onTrade []func(orderbook.Trade)
}

func New(symbol string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		symbol: symbol,
		book:   orderbook.NewBook(),
		stops:  orderbook.NewStopBook(),
		orders: make(map[string]*orderbook.Order),
		trades: make([]orderbook.Trade, 0),
		log:    log,
	}
}

func (e *Engine) Symbol() string {
	return e.symbol
}

// OnTrade registers a callback invoked for every trade, outside the
// book lock. Register before serving commands.
func (e *Engine) OnTrade(fn func(orderbook.Trade)) {
	e.onTrade = append(e.onTrade, fn)
}

func (e *Engine) notify(trades []orderbook.Trade) {
	for _, trade := range trades {
		for _, fn := range e.onTrade {
			fn(trade)
		}
	}
}

// nextSeq hands out the process-wide monotonic sequence number used for
// both time priority and trade audit ordering. Caller holds the lock.
func (e *Engine) nextSeq() uint64 {
	e.seq++
	return e.seq
}

// BookSnapshot is a read-only projection of the book: aggregated levels
// best to worst on each side, plus the pending conditional orders.
type BookSnapshot struct {
	Symbol string                    `json:"symbol"`
	Bids   []orderbook.LevelSnapshot `json:"bids"`
	Asks   []orderbook.LevelSnapshot `json:"asks"`
	Stops  []orderbook.Order         `json:"stops"`
}

func (e *Engine) Snapshot() BookSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pending := e.stops.Pending()
	stops := make([]orderbook.Order, len(pending))
	for i, o := range pending {
		stops[i] = *o
	}

	return BookSnapshot{
		Symbol: e.symbol,
		Bids:   e.book.BidLevels(),
		Asks:   e.book.AskLevels(),
		Stops:  stops,
	}
}

// GetOrder returns a copy of an order by ID, resting or terminal.
func (e *Engine) GetOrder(orderID string) (orderbook.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	order, exists := e.orders[orderID]
	if !exists {
		return orderbook.Order{}, false
	}
	return *order, true
}

// RecentTrades returns the last n trades, oldest first.
func (e *Engine) RecentTrades(n int) []orderbook.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if n > len(e.trades) {
		n = len(e.trades)
	}
	start := len(e.trades) - n
	result := make([]orderbook.Trade, n)
	copy(result, e.trades[start:])
	return result
}

// BestBid returns the highest bid price, or 0 if no bids
func (e *Engine) BestBid() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BestBid()
}

// BestAsk returns the lowest ask price, or 0 if no asks
func (e *Engine) BestAsk() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BestAsk()
}

// LastPrice returns the last trade price, or 0 before the first trade.
func (e *Engine) LastPrice() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPrice
}
