package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"matchbook/internal/orderbook"
)

// Result reports the outcome of one order command: the trades it
// produced (trigger-cascade fills included) and what is left of the
// commanded order.
type Result struct {
	OrderID   string            `json:"order_id"`
	Status    orderbook.Status  `json:"status"`
	Trades    []orderbook.Trade `json:"trades"`
	Remaining int64             `json:"remaining"`
}

// LimitSpec describes the plain limit leg of an OCO pair.
type LimitSpec struct {
	Side          orderbook.Side
	Price         int64
	Quantity      int64
	ClientOrderID string
}

// StopSpec describes the conditional leg of an OCO pair.
type StopSpec struct {
	Side          orderbook.Side
	Type          orderbook.OrderType // StopLimit or StopMarket
	TriggerPrice  int64
	Price         int64 // StopLimit only
	Quantity      int64
	ClientOrderID string
}

// OCOResult reports both linked legs. Trades belong to the limit leg's
// arrival (plus any cascade it set off).
type OCOResult struct {
	LimitOrderID string            `json:"limit_order_id"`
	StopOrderID  string            `json:"stop_order_id"`
	Status       orderbook.Status  `json:"status"` // limit leg
	Trades       []orderbook.Trade `json:"trades"`
	Remaining    int64             `json:"remaining"` // limit leg
}

// SubmitLimit matches a new limit order against the book and rests any
// remainder at its price level.
func (e *Engine) SubmitLimit(side orderbook.Side, price, quantity int64, clientOrderID string) (Result, error) {
	if price <= 0 {
		return Result{}, fmt.Errorf("%w: price must be positive", orderbook.ErrInvalidOrder)
	}
	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", orderbook.ErrInvalidOrder)
	}

	e.mu.Lock()
	order, err := e.addOrder(clientOrderID, side, orderbook.Limit, price, 0, quantity)
	if err != nil {
		e.mu.Unlock()
		return Result{}, err
	}
	trades := e.match(order, price, true)
	if !order.IsFilled() {
		e.book.Insert(order)
	}
	trades = append(trades, e.fireStops()...)
	res := e.result(order, trades)
	e.mu.Unlock()

	e.notify(trades)
	return res, nil
}

// SubmitMarket matches against the best opposite level until filled or
// the opposite side empties. Remainders are discarded, never rested.
func (e *Engine) SubmitMarket(side orderbook.Side, quantity int64) (Result, error) {
	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", orderbook.ErrInvalidOrder)
	}

	e.mu.Lock()
	order, err := e.addOrder("", side, orderbook.Market, 0, 0, quantity)
	if err != nil {
		e.mu.Unlock()
		return Result{}, err
	}
	trades := e.match(order, 0, false)
	if !order.IsFilled() {
		order.Status = orderbook.Canceled
	}
	trades = append(trades, e.fireStops()...)
	res := e.result(order, trades)
	e.mu.Unlock()

	e.notify(trades)
	return res, nil
}

// SubmitStopLimit registers a pending-trigger limit order. It becomes a
// live limit order once the last trade price crosses the trigger; if
// the trigger is already satisfied it fires within this command.
func (e *Engine) SubmitStopLimit(side orderbook.Side, triggerPrice, price, quantity int64, clientOrderID string) (Result, error) {
	if triggerPrice <= 0 {
		return Result{}, fmt.Errorf("%w: trigger price must be positive", orderbook.ErrInvalidOrder)
	}
	if price <= 0 {
		return Result{}, fmt.Errorf("%w: price must be positive", orderbook.ErrInvalidOrder)
	}
	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", orderbook.ErrInvalidOrder)
	}

	return e.submitStop(clientOrderID, side, orderbook.StopLimit, price, triggerPrice, quantity)
}

// SubmitStopMarket registers a pending-trigger market order.
func (e *Engine) SubmitStopMarket(side orderbook.Side, triggerPrice, quantity int64, clientOrderID string) (Result, error) {
	if triggerPrice <= 0 {
		return Result{}, fmt.Errorf("%w: trigger price must be positive", orderbook.ErrInvalidOrder)
	}
	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", orderbook.ErrInvalidOrder)
	}

	return e.submitStop(clientOrderID, side, orderbook.StopMarket, 0, triggerPrice, quantity)
}

func (e *Engine) submitStop(clientOrderID string, side orderbook.Side, typ orderbook.OrderType, price, triggerPrice, quantity int64) (Result, error) {
	e.mu.Lock()
	order, err := e.addOrder(clientOrderID, side, typ, price, triggerPrice, quantity)
	if err != nil {
		e.mu.Unlock()
		return Result{}, err
	}
	e.stops.Register(order)
	trades := e.fireStops()
	res := e.result(order, trades)
	e.mu.Unlock()

	e.notify(trades)
	return res, nil
}

// SubmitOCO places two linked legs: a limit order and a stop order.
// Activity on either leg (a fill, a trigger, or a cancel) cancels the
// other before it can itself trigger or match. If the limit leg trades
// on arrival the stop leg is canceled without ever registering.
func (e *Engine) SubmitOCO(limit LimitSpec, stop StopSpec) (OCOResult, error) {
	if limit.Price <= 0 {
		return OCOResult{}, fmt.Errorf("%w: limit leg price must be positive", orderbook.ErrInvalidOrder)
	}
	if limit.Quantity <= 0 {
		return OCOResult{}, fmt.Errorf("%w: limit leg quantity must be positive", orderbook.ErrInvalidOrder)
	}
	if stop.Type != orderbook.StopLimit && stop.Type != orderbook.StopMarket {
		return OCOResult{}, fmt.Errorf("%w: stop leg must be stop_limit or stop_market", orderbook.ErrInvalidOrder)
	}
	if stop.TriggerPrice <= 0 {
		return OCOResult{}, fmt.Errorf("%w: stop leg trigger price must be positive", orderbook.ErrInvalidOrder)
	}
	if stop.Type == orderbook.StopLimit && stop.Price <= 0 {
		return OCOResult{}, fmt.Errorf("%w: stop leg price must be positive", orderbook.ErrInvalidOrder)
	}
	if stop.Quantity <= 0 {
		return OCOResult{}, fmt.Errorf("%w: stop leg quantity must be positive", orderbook.ErrInvalidOrder)
	}
	if limit.ClientOrderID != "" && limit.ClientOrderID == stop.ClientOrderID {
		return OCOResult{}, fmt.Errorf("%w: oco legs need distinct ids", orderbook.ErrInvalidOrder)
	}

	e.mu.Lock()
	// Both ids must be free before either leg touches the book, so a
	// rejected command leaves no partial mutation behind.
	if err := e.checkID(limit.ClientOrderID); err != nil {
		e.mu.Unlock()
		return OCOResult{}, err
	}
	if err := e.checkID(stop.ClientOrderID); err != nil {
		e.mu.Unlock()
		return OCOResult{}, err
	}

	limitLeg, _ := e.addOrder(limit.ClientOrderID, limit.Side, orderbook.Limit, limit.Price, 0, limit.Quantity)
	stopPrice := stop.Price
	if stop.Type == orderbook.StopMarket {
		stopPrice = 0
	}
	stopLeg, _ := e.addOrder(stop.ClientOrderID, stop.Side, stop.Type, stopPrice, stop.TriggerPrice, stop.Quantity)
	limitLeg.OCOLink = stopLeg.ID
	stopLeg.OCOLink = limitLeg.ID

	trades := e.match(limitLeg, limitLeg.Price, true)
	if !limitLeg.IsFilled() {
		e.book.Insert(limitLeg)
	}
	// Any fill of the limit leg already canceled the stop leg.
	if !stopLeg.Status.Terminal() {
		e.stops.Register(stopLeg)
	}
	trades = append(trades, e.fireStops()...)

	res := OCOResult{
		LimitOrderID: limitLeg.ID,
		StopOrderID:  stopLeg.ID,
		Status:       limitLeg.Status,
		Trades:       trades,
		Remaining:    limitLeg.Remaining(),
	}
	e.mu.Unlock()

	e.notify(trades)
	return res, nil
}

// Modify reprices or resizes a resting order as cancel-then-reinsert:
// the order keeps its id but takes a fresh sequence number, so it
// always loses time priority. A repriced order that now crosses matches
// immediately. Omitted price keeps the old price; omitted quantity
// keeps the prior remaining quantity.
func (e *Engine) Modify(orderID string, newPrice, newQuantity *int64) (Result, error) {
	if newPrice == nil && newQuantity == nil {
		return Result{}, fmt.Errorf("%w: modify needs a new price or quantity", orderbook.ErrInvalidOrder)
	}
	if newPrice != nil && *newPrice <= 0 {
		return Result{}, fmt.Errorf("%w: price must be positive", orderbook.ErrInvalidOrder)
	}
	if newQuantity != nil && *newQuantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity must be positive", orderbook.ErrInvalidOrder)
	}

	e.mu.Lock()
	order, exists := e.book.Get(orderID)
	if !exists {
		err := e.lookupErr(orderID)
		e.mu.Unlock()
		return Result{}, err
	}
	e.book.Remove(orderID)

	price := order.Price
	if newPrice != nil {
		price = *newPrice
	}
	quantity := order.Remaining()
	if newQuantity != nil {
		quantity = *newQuantity
	}

	// Reinsert as a fresh incarnation under the same id. Fill
	// accounting restarts; prior fills stay in the trade log.
	order.Price = price
	order.Quantity = quantity
	order.Filled = 0
	order.Seq = e.nextSeq()
	order.Status = orderbook.Open
	order.Timestamp = time.Now()

	trades := e.match(order, price, true)
	if !order.IsFilled() {
		e.book.Insert(order)
	}
	trades = append(trades, e.fireStops()...)
	res := e.result(order, trades)
	e.mu.Unlock()

	e.notify(trades)
	return res, nil
}

// Cancel removes an order from whichever structure holds it, and takes
// a linked OCO sibling down with it.
func (e *Engine) Cancel(orderID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if order, err := e.book.Remove(orderID); err == nil {
		order.Status = orderbook.Canceled
		if order.OCOLink != "" {
			e.cancelSibling(order)
		}
		return e.result(order, nil), nil
	}
	if order, err := e.stops.Cancel(orderID); err == nil {
		order.Status = orderbook.Canceled
		if order.OCOLink != "" {
			e.cancelSibling(order)
		}
		return e.result(order, nil), nil
	}
	return Result{}, e.lookupErr(orderID)
}

// addOrder mints the order and records it in the audit lookup. Caller
// holds the write lock.
func (e *Engine) addOrder(clientOrderID string, side orderbook.Side, typ orderbook.OrderType, price, triggerPrice, quantity int64) (*orderbook.Order, error) {
	if err := e.checkID(clientOrderID); err != nil {
		return nil, err
	}
	id := clientOrderID
	if id == "" {
		id = uuid.New().String()
	}
	order := &orderbook.Order{
		ID:           id,
		Side:         side,
		Type:         typ,
		Price:        price,
		TriggerPrice: triggerPrice,
		Quantity:     quantity,
		Status:       orderbook.Open,
		Seq:          e.nextSeq(),
		Timestamp:    time.Now(),
	}
	e.orders[id] = order
	return order, nil
}

func (e *Engine) checkID(clientOrderID string) error {
	if clientOrderID == "" {
		return nil
	}
	if _, exists := e.orders[clientOrderID]; exists {
		return fmt.Errorf("%w: duplicate order id %s", orderbook.ErrInvalidOrder, clientOrderID)
	}
	return nil
}

// lookupErr distinguishes an id the engine has never seen from one that
// already reached a terminal state.
func (e *Engine) lookupErr(orderID string) error {
	if order, exists := e.orders[orderID]; exists && order.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", orderbook.ErrAlreadyTerminal, orderID, order.Status)
	}
	return fmt.Errorf("%w: %s", orderbook.ErrNotFound, orderID)
}

func (e *Engine) result(order *orderbook.Order, trades []orderbook.Trade) Result {
	return Result{
		OrderID:   order.ID,
		Status:    order.Status,
		Trades:    trades,
		Remaining: order.Remaining(),
	}
}
