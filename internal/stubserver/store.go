package stubserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	ErrPositionExists   = errors.New("position already open")
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRecord is a row of managed_positions.
type PositionRecord struct {
	ID            int64
	Symbol        string
	Side          string // buy | sell
	Amount        decimal.Decimal
	EntryPrice    decimal.Decimal
	Timeframe     string
	UnrealizedPnl decimal.Decimal
	CreatedAt     time.Time
}

// TradeRecord is a row of trade_history.
type TradeRecord struct {
	ID         int64
	Symbol     string
	Side       string
	Amount     decimal.Decimal
	EntryPrice decimal.Decimal
	ClosePrice decimal.Decimal
	Pnl        decimal.Decimal
	Status     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Store keeps positions and closed trades in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (and creates) the database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS managed_positions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL UNIQUE,
  side TEXT NOT NULL,
  amount TEXT NOT NULL,
  entry_price TEXT NOT NULL,
  timeframe TEXT NOT NULL,
  unrealized_pnl TEXT NOT NULL DEFAULT '0',
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS trade_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  amount TEXT NOT NULL,
  entry_price TEXT NOT NULL,
  close_price TEXT NOT NULL,
  pnl TEXT NOT NULL,
  status TEXT NOT NULL,
  opened_at TEXT,
  closed_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_history_closed_at ON trade_history(closed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Seed fills an empty database with demo data. It does nothing when any
// row exists.
func (s *Store) Seed(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM managed_positions) + (SELECT COUNT(*) FROM trade_history)`).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	now := s.now().Truncate(time.Second)
	day := 24 * time.Hour
	trades := []TradeRecord{
		{Symbol: "SOL/USDT", Side: "buy", Amount: dec("10"), EntryPrice: dec("140.2"), ClosePrice: dec("143.1"), Pnl: dec("29"), Status: "TAKE_PROFIT", OpenedAt: now.Add(-5*day - 3*time.Hour), ClosedAt: now.Add(-5 * day)},
		{Symbol: "ADA/USDT", Side: "sell", Amount: dec("2000"), EntryPrice: dec("0.61"), ClosePrice: dec("0.6175"), Pnl: dec("-15"), Status: "STOP_LOSS", OpenedAt: now.Add(-4*day - 6*time.Hour), ClosedAt: now.Add(-4 * day)},
		{Symbol: "BNB/USDT", Side: "buy", Amount: dec("1.5"), EntryPrice: dec("580"), ClosePrice: dec("592.4"), Pnl: dec("18.6"), Status: "TAKE_PROFIT", OpenedAt: now.Add(-3*day - 2*time.Hour), ClosedAt: now.Add(-3 * day)},
		{Symbol: "XRP/USDT", Side: "buy", Amount: dec("1500"), EntryPrice: dec("0.52"), ClosePrice: dec("0.5165"), Pnl: dec("-5.25"), Status: "CLOSED_MANUAL", OpenedAt: now.Add(-2*day - 4*time.Hour), ClosedAt: now.Add(-2 * day)},
	}
	positions := []PositionRecord{
		{Symbol: "BTC/USDT", Side: "buy", Amount: dec("0.01"), EntryPrice: dec("64200"), Timeframe: "1h", UnrealizedPnl: dec("12.4"), CreatedAt: now.Add(-6 * time.Hour)},
		{Symbol: "ETH/USDT", Side: "sell", Amount: dec("0.5"), EntryPrice: dec("3150"), Timeframe: "4h", UnrealizedPnl: dec("-3.15"), CreatedAt: now.Add(-2 * time.Hour)},
	}

	for _, t := range trades {
		if err := s.insertTrade(ctx, s.db, t); err != nil {
			return err
		}
	}
	for _, p := range positions {
		if err := s.AddPosition(ctx, p); err != nil {
			return err
		}
	}
	log.Infof("seeded %d positions and %d trades", len(positions), len(trades))
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ListPositions returns open positions, newest first.
func (s *Store) ListPositions(ctx context.Context) ([]PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, side, amount, entry_price, timeframe, unrealized_pnl, created_at
FROM managed_positions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var p PositionRecord
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Side, &p.Amount, &p.EntryPrice, &p.Timeframe, &p.UnrealizedPnl, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseStoredTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPosition looks up an open position by symbol.
func (s *Store) GetPosition(ctx context.Context, symbol string) (PositionRecord, error) {
	var p PositionRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
SELECT id, symbol, side, amount, entry_price, timeframe, unrealized_pnl, created_at
FROM managed_positions WHERE symbol = ?`, symbol).
		Scan(&p.ID, &p.Symbol, &p.Side, &p.Amount, &p.EntryPrice, &p.Timeframe, &p.UnrealizedPnl, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PositionRecord{}, ErrPositionNotFound
	}
	if err != nil {
		return PositionRecord{}, err
	}
	p.CreatedAt = parseStoredTime(createdAt)
	return p, nil
}

// ListTrades returns closed trades, oldest first.
func (s *Store) ListTrades(ctx context.Context) ([]TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, symbol, side, amount, entry_price, close_price, pnl, status, COALESCE(opened_at, ''), closed_at
FROM trade_history ORDER BY closed_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var openedAt, closedAt string
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Amount, &t.EntryPrice, &t.ClosePrice, &t.Pnl, &t.Status, &openedAt, &closedAt); err != nil {
			return nil, err
		}
		t.OpenedAt = parseStoredTime(openedAt)
		t.ClosedAt = parseStoredTime(closedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddPosition opens a position. A symbol can only be open once.
func (s *Store) AddPosition(ctx context.Context, p PositionRecord) error {
	p.Symbol = strings.TrimSpace(p.Symbol)
	if p.Symbol == "" {
		return errors.New("symbol is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if _, err := s.GetPosition(ctx, p.Symbol); err == nil {
		return ErrPositionExists
	} else if !errors.Is(err, ErrPositionNotFound) {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO managed_positions (symbol, side, amount, entry_price, timeframe, unrealized_pnl, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Side, p.Amount, p.EntryPrice, p.Timeframe, p.UnrealizedPnl, p.CreatedAt.UTC().Format(timeLayout))
	return err
}

// ClosePosition moves the position to trade_history, realising its
// unrealized P&L.
func (s *Store) ClosePosition(ctx context.Context, symbol, status string) (TradeRecord, error) {
	p, err := s.GetPosition(ctx, symbol)
	if err != nil {
		return TradeRecord{}, err
	}

	t := TradeRecord{
		Symbol:     p.Symbol,
		Side:       p.Side,
		Amount:     p.Amount,
		EntryPrice: p.EntryPrice,
		ClosePrice: closePrice(p),
		Pnl:        p.UnrealizedPnl,
		Status:     status,
		OpenedAt:   p.CreatedAt,
		ClosedAt:   s.now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TradeRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM managed_positions WHERE id = ?`, p.ID); err != nil {
		return TradeRecord{}, err
	}
	if err := s.insertTrade(ctx, tx, t); err != nil {
		return TradeRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return TradeRecord{}, err
	}
	return t, nil
}

// closePrice derives the exit price from the P&L: entry ± pnl/amount.
func closePrice(p PositionRecord) decimal.Decimal {
	if p.Amount.IsZero() {
		return p.EntryPrice
	}
	move := p.UnrealizedPnl.Div(p.Amount)
	if p.Side == "sell" {
		return p.EntryPrice.Sub(move)
	}
	return p.EntryPrice.Add(move)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertTrade(ctx context.Context, db execer, t TradeRecord) error {
	var openedAt any
	if !t.OpenedAt.IsZero() {
		openedAt = t.OpenedAt.UTC().Format(timeLayout)
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO trade_history (symbol, side, amount, entry_price, close_price, pnl, status, opened_at, closed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, t.Side, t.Amount, t.EntryPrice, t.ClosePrice, t.Pnl, t.Status, openedAt, t.ClosedAt.UTC().Format(timeLayout))
	return err
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
