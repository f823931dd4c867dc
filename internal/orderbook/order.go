package orderbook

import (
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the side a taker matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType int

const (
	Limit OrderType = iota
	Market
	StopLimit
	StopMarket
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case StopLimit:
		return "stop_limit"
	case StopMarket:
		return "stop_market"
	}
	return "unknown"
}

type Status int

const (
	// PendingTrigger orders sit in the stop book until the last trade
	// price satisfies their trigger condition.
	PendingTrigger Status = iota
	Open
	PartiallyFilled
	Filled
	Canceled
)

func (s Status) String() string {
	switch s {
	case PendingTrigger:
		return "pending_trigger"
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Filled || s == Canceled
}

type Order struct {
	ID           string    `json:"id"`
	Side         Side      `json:"side"`
	Type         OrderType `json:"type"`
	Price        int64     `json:"price"`         // Price in cents; 0 for market orders
	TriggerPrice int64     `json:"trigger_price"` // Stop variants only
	Quantity     int64     `json:"quantity"`
	Filled       int64     `json:"filled"`
	Status       Status    `json:"status"`
	Seq          uint64    `json:"seq"`      // Time-priority key, engine-assigned
	OCOLink      string    `json:"oco_link"` // Sibling order id, empty if not an OCO leg
	Timestamp    time.Time `json:"timestamp"`
}

func (o *Order) Remaining() int64 {
	return o.Quantity - o.Filled
}

func (o *Order) IsFilled() bool {
	return o.Filled >= o.Quantity
}

// Trade is one fill. Price is always the resting (maker) order's price.
// Immutable once produced; the settlement collaborator consumes these.
type Trade struct {
	ID           string    `json:"id"`
	Price        int64     `json:"price"`
	Quantity     int64     `json:"quantity"`
	MakerOrderID string    `json:"maker_order_id"`
	TakerOrderID string    `json:"taker_order_id"`
	TakerSide    Side      `json:"taker_side"`
	Seq          uint64    `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
}
