// Package sqlite persists accounts, positions, trades, strategies and the
// instrument catalog. All monetary values are stored as decimal strings so
// nothing is ever rounded on the way through the database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/stockquant.db"
}

// Store is the single-writer SQLite persistence layer.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and initializes the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			balance    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS instruments (
			code       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			industry   TEXT NOT NULL DEFAULT '',
			market     TEXT NOT NULL DEFAULT '',
			last_price TEXT NOT NULL,
			prev_price TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS positions (
			account_id TEXT    NOT NULL,
			code       TEXT    NOT NULL,
			quantity   INTEGER NOT NULL,
			avg_price  TEXT    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (account_id, code)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id           TEXT PRIMARY KEY,
			account_id   TEXT    NOT NULL,
			code         TEXT    NOT NULL,
			side         TEXT    NOT NULL,
			quantity     INTEGER NOT NULL,
			price        TEXT    NOT NULL,
			commission   TEXT    NOT NULL,
			total_amount TEXT    NOT NULL,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_account ON trades (account_id, created_at);

		CREATE TABLE IF NOT EXISTS strategies (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id      TEXT    NOT NULL,
			code            TEXT    NOT NULL,
			ma_short        INTEGER NOT NULL,
			ma_long         INTEGER NOT NULL,
			momentum_days   INTEGER NOT NULL,
			lot_size        INTEGER NOT NULL,
			position        INTEGER NOT NULL DEFAULT 0,
			avg_price       TEXT    NOT NULL DEFAULT '0',
			total_profit    TEXT    NOT NULL DEFAULT '0',
			last_trade_date INTEGER NOT NULL DEFAULT 0,
			is_active       INTEGER NOT NULL DEFAULT 1,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL,
			UNIQUE (account_id, code)
		);
	`)
	return err
}

// CommitTrade atomically appends a trade, updates the account balance and
// upserts or deletes the position. pos.Quantity == 0 means the position was
// fully closed and the row is removed.
func (s *Store) CommitTrade(ctx context.Context, trade model.Trade, balance decimal.Decimal, pos model.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, account_id, code, side, quantity, price, commission, total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.AccountID, trade.Code, string(trade.Side), trade.Quantity,
		trade.Price.String(), trade.Commission.String(), trade.TotalAmount.String(), trade.CreatedAt.Unix())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert trade: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`,
		balance.String(), trade.AccountID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return fmt.Errorf("update balance: account %s not found", trade.AccountID)
	}

	if pos.Quantity == 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM positions WHERE account_id = ? AND code = ?`,
			trade.AccountID, trade.Code)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions (account_id, code, quantity, avg_price, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (account_id, code) DO UPDATE SET
				quantity = excluded.quantity,
				avg_price = excluded.avg_price,
				updated_at = excluded.updated_at
		`, pos.AccountID, pos.Code, pos.Quantity, pos.AveragePrice.String(), pos.UpdatedAt.Unix())
	}
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update position: %w", err)
	}

	return tx.Commit()
}

// InsertAccount persists a newly created account.
func (s *Store) InsertAccount(ctx context.Context, acc model.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, balance, created_at) VALUES (?, ?, ?)`,
		acc.ID, acc.Balance.String(), acc.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpsertInstrument records the latest known prices for an instrument.
// Called periodically so the catalog survives restarts with recent prices.
func (s *Store) UpsertInstrument(ctx context.Context, inst model.Instrument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instruments (code, name, industry, market, last_price, prev_price)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			last_price = excluded.last_price,
			prev_price = excluded.prev_price
	`, inst.Code, inst.Name, inst.Industry, inst.Market,
		inst.LastPrice.String(), inst.PrevPrice.String())
	if err != nil {
		return fmt.Errorf("upsert instrument: %w", err)
	}
	return nil
}

// InsertStrategy persists a new strategy and fills in its assigned ID.
func (s *Store) InsertStrategy(ctx context.Context, st *model.Strategy) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (account_id, code, ma_short, ma_long, momentum_days, lot_size,
			position, avg_price, total_profit, last_trade_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, st.AccountID, st.Code, st.Params.MAShort, st.Params.MALong, st.Params.MomentumDays,
		st.Params.LotSize, st.Position, st.AvgPrice.String(), st.TotalProfit.String(),
		unixOrZero(st.LastTradeDate), boolToInt(st.IsActive), st.CreatedAt.Unix(), st.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert strategy: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert strategy id: %w", err)
	}
	st.ID = id
	return nil
}

// UpdateStrategy writes back the mutable runtime state of a strategy.
func (s *Store) UpdateStrategy(ctx context.Context, st model.Strategy) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE strategies SET
			position = ?, avg_price = ?, total_profit = ?,
			last_trade_date = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, st.Position, st.AvgPrice.String(), st.TotalProfit.String(),
		unixOrZero(st.LastTradeDate), boolToInt(st.IsActive), st.UpdatedAt.Unix(), st.ID)
	if err != nil {
		return fmt.Errorf("update strategy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update strategy: id %d not found", st.ID)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
