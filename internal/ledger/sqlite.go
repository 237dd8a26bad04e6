package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT     NOT NULL UNIQUE,
	account    TEXT     NOT NULL,
	kind       TEXT     NOT NULL,
	asset      TEXT     NOT NULL,
	amount     TEXT     NOT NULL,
	price      TEXT     NOT NULL DEFAULT '0',
	reference  TEXT     NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_asset ON ledger_entries (account, asset);
`

// SQLite is a single-file ledger. Amounts are stored as text and summed in
// Go so no precision is lost to SQLite's floating point.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Append(ctx context.Context, entries ...Entry) ([]Entry, error) {
	prepared, err := prepare(entries, s.now())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = checkBalances(prepared, func(k balanceKey) (decimal.Decimal, error) {
		var amounts []string
		if err := tx.SelectContext(ctx, &amounts,
			`SELECT amount FROM ledger_entries WHERE account = ? AND asset = ?`, k.account, k.asset); err != nil {
			return decimal.Zero, fmt.Errorf("select amounts: %w", err)
		}
		return sum(amounts)
	})
	if err != nil {
		return nil, err
	}

	for _, e := range prepared {
		row := entryRow{
			ID:        e.ID,
			Account:   e.Account,
			Kind:      string(e.Kind),
			Asset:     e.Asset,
			Amount:    e.Amount.String(),
			Price:     e.Price.String(),
			Reference: e.Reference,
			CreatedAt: e.CreatedAt,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO ledger_entries (id, account, kind, asset, amount, price, reference, created_at)
			VALUES (:id, :account, :kind, :asset, :amount, :price, :reference, :created_at)`, row)
		if err != nil {
			return nil, fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return prepared, nil
}

func (s *SQLite) Balance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	var amounts []string
	if err := s.db.SelectContext(ctx, &amounts,
		`SELECT amount FROM ledger_entries WHERE account = ? AND asset = ?`, account, assetCode(asset)); err != nil {
		return decimal.Zero, fmt.Errorf("select amounts: %w", err)
	}
	return sum(amounts)
}

func (s *SQLite) Balances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Asset  string `db:"asset"`
		Amount string `db:"amount"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT asset, amount FROM ledger_entries WHERE account = ?`, account); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}

	out := make(map[string]decimal.Decimal)
	for _, r := range rows {
		d, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", r.Amount, err)
		}
		out[r.Asset] = out[r.Asset].Add(d)
	}
	return out, nil
}

func (s *SQLite) Entries(ctx context.Context, account string, limit int) ([]Entry, error) {
	query := `
		SELECT id, account, kind, asset, amount, price, reference, created_at
		FROM ledger_entries WHERE account = ? ORDER BY seq DESC`
	args := []any{account}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func sum(amounts []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse amount %q: %w", a, err)
		}
		total = total.Add(d)
	}
	return total, nil
}
