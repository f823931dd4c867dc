package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchbook/internal/orderbook"
)

// match runs the taker against the opposite side until its quantity is
// exhausted, the opposite side empties, or (for bounded takers) the
// best opposite level stops crossing the limit price. Trades execute at
// the resting order's price. Caller holds the write lock.
func (e *Engine) match(taker *orderbook.Order, limitPrice int64, bounded bool) []orderbook.Trade {
	var trades []orderbook.Trade

	for taker.Remaining() > 0 {
		level := e.book.BestOpposite(taker.Side)
		if level == nil {
			break
		}
		if bounded {
			if taker.Side == orderbook.Buy && level.Price > limitPrice {
				break
			}
			if taker.Side == orderbook.Sell && level.Price < limitPrice {
				break
			}
		}

		maker := e.book.PeekOldest(level)
		qty := min(taker.Remaining(), maker.Remaining())

		maker.Filled += qty
		taker.Filled += qty

		trade := orderbook.Trade{
			ID:           uuid.New().String(),
			Price:        level.Price,
			Quantity:     qty,
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
			TakerSide:    taker.Side,
			Seq:          e.nextSeq(),
			Timestamp:    time.Now(),
		}
		trades = append(trades, trade)
		e.trades = append(e.trades, trade)
		e.lastPrice = level.Price

		if maker.IsFilled() {
			maker.Status = orderbook.Filled
			e.book.Remove(maker.ID)
		} else {
			maker.Status = orderbook.PartiallyFilled
		}
		if taker.IsFilled() {
			taker.Status = orderbook.Filled
		} else {
			taker.Status = orderbook.PartiallyFilled
		}

		// An OCO leg that trades kills its sibling before the sibling
		// can itself trigger or match.
		if maker.OCOLink != "" {
			e.cancelSibling(maker)
		}
		if taker.OCOLink != "" {
			e.cancelSibling(taker)
		}
	}

	return trades
}

// cancelSibling cancels the linked OCO leg of o, wherever it currently
// lives. The link is a pair of ids resolved through the engine lookup,
// never a mutual pointer.
func (e *Engine) cancelSibling(o *orderbook.Order) {
	sibling, ok := e.orders[o.OCOLink]
	if !ok || sibling.Status.Terminal() {
		return
	}
	if _, err := e.book.Remove(sibling.ID); err != nil {
		// Not resting; either still pending or already pulled out of the
		// stop book as part of the current trigger batch.
		e.stops.Cancel(sibling.ID)
	}
	sibling.Status = orderbook.Canceled
}

// fireStops drains the trigger cascade: every pending order whose
// condition the last trade price satisfies is handed back to the
// matching loop as a newly arriving order, in registration order.
// Trades from fired orders can move the last price and fire more stops;
// the loop runs until a pass fires nothing. Runs inside the command's
// critical section so cascades resolve atomically with their command.
func (e *Engine) fireStops() []orderbook.Trade {
	if e.lastPrice == 0 {
		return nil
	}

	var trades []orderbook.Trade
	for {
		fired := e.stops.Triggered(e.lastPrice)
		if len(fired) == 0 {
			return trades
		}
		for _, order := range fired {
			// An earlier entry in this batch may have been the OCO
			// sibling that canceled this one.
			if order.Status.Terminal() {
				continue
			}
			if order.OCOLink != "" {
				e.cancelSibling(order)
			}

			// Arrives now: triggering assigns a fresh sequence number.
			order.Seq = e.nextSeq()
			order.Status = orderbook.Open

			switch {
			case order.Type == orderbook.StopLimit && order.Price > 0:
				trades = append(trades, e.match(order, order.Price, true)...)
				if !order.IsFilled() {
					e.book.Insert(order)
				}
			case order.Type == orderbook.StopMarket:
				trades = append(trades, e.match(order, 0, false)...)
				if !order.IsFilled() {
					// Market remainders never rest.
					order.Status = orderbook.Canceled
				}
			default:
				// Should be unreachable if registration validated; skip
				// rather than poison the rest of the batch.
				order.Status = orderbook.Canceled
				e.log.Warn("skipping invalid triggered order",
					zap.String("order_id", order.ID),
					zap.String("type", order.Type.String()),
					zap.Int64("price", order.Price),
				)
			}
		}
	}
}
