// Package store is the settlement ledger: an append-only record of the
// fills and order intake the engine reports. The engine never reads it
// back; downstream settlement and audit do.
package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// New opens the SQLite ledger and initializes the schema
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		price INTEGER NOT NULL,  -- in cents
		quantity INTEGER NOT NULL,
		maker_order_id TEXT NOT NULL,
		taker_order_id TEXT NOT NULL,
		taker_side TEXT NOT NULL,  -- 'buy' or 'sell'
		seq INTEGER NOT NULL,
		executed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		price INTEGER NOT NULL DEFAULT 0,
		trigger_price INTEGER NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_seq ON trades(seq);
	CREATE INDEX IF NOT EXISTS idx_trades_maker ON trades(maker_order_id);
	CREATE INDEX IF NOT EXISTS idx_trades_taker ON trades(taker_order_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
