package store

import (
	"matchbook/internal/orderbook"
)

// RecordTrade appends one fill to the ledger. Trades are immutable;
// there is no update path.
func (s *Store) RecordTrade(symbol string, trade orderbook.Trade) error {
	_, err := s.db.Exec(`
		INSERT INTO trades (id, symbol, price, quantity, maker_order_id, taker_order_id, taker_side, seq, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, symbol, trade.Price, trade.Quantity, trade.MakerOrderID,
		trade.TakerOrderID, trade.TakerSide.String(), trade.Seq, trade.Timestamp)
	return err
}

// RecordOrder appends the intake record of an accepted order.
func (s *Store) RecordOrder(symbol string, order orderbook.Order) error {
	_, err := s.db.Exec(`
		INSERT INTO orders (id, symbol, side, type, price, trigger_price, quantity, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, order.ID, symbol, order.Side.String(), order.Type.String(),
		order.Price, order.TriggerPrice, order.Quantity, order.Seq)
	return err
}

// TradeRecord is one ledger row.
type TradeRecord struct {
	ID           string
	Symbol       string
	Price        int64
	Quantity     int64
	MakerOrderID string
	TakerOrderID string
	TakerSide    string
	Seq          uint64
}

// RecentTrades returns the last n trades in sequence order, oldest
// first.
func (s *Store) RecentTrades(symbol string, n int) ([]TradeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, price, quantity, maker_order_id, taker_order_id, taker_side, seq
		FROM (
			SELECT * FROM trades WHERE symbol = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`, symbol, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// TradesForOrder returns every fill an order took part in, maker or
// taker side, in sequence order.
func (s *Store) TradesForOrder(orderID string) ([]TradeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, symbol, price, quantity, maker_order_id, taker_order_id, taker_side, seq
		FROM trades
		WHERE maker_order_id = ? OR taker_order_id = ?
		ORDER BY seq ASC
	`, orderID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrades(rows rowScanner) ([]TradeRecord, error) {
	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Price, &r.Quantity,
			&r.MakerOrderID, &r.TakerOrderID, &r.TakerSide, &r.Seq); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
