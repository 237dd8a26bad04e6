package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	seq        BIGSERIAL PRIMARY KEY,
	id         UUID        NOT NULL UNIQUE,
	account    TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	asset      TEXT        NOT NULL,
	amount     NUMERIC(38, 18) NOT NULL,
	price      NUMERIC(38, 18) NOT NULL DEFAULT 0,
	reference  TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_asset ON ledger_entries (account, asset);
`

// Postgres is a ledger stored in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres connects, pings and migrates the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

// Append serialises writers per account with a transaction scoped advisory
// lock, so the balance check and the inserts see a stable history.
func (p *Postgres) Append(ctx context.Context, entries ...Entry) ([]Entry, error) {
	prepared, err := prepare(entries, p.now())
	if err != nil {
		return nil, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked := map[string]bool{}
	for _, e := range prepared {
		if locked[e.Account] {
			continue
		}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, e.Account); err != nil {
			return nil, fmt.Errorf("lock account %s: %w", e.Account, err)
		}
		locked[e.Account] = true
	}

	err = checkBalances(prepared, func(k balanceKey) (decimal.Decimal, error) {
		return scanBalance(tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0)::text FROM ledger_entries WHERE account = $1 AND asset = $2`,
			k.account, k.asset))
	})
	if err != nil {
		return nil, err
	}

	for _, e := range prepared {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, account, kind, asset, amount, price, reference, created_at)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8)`,
			e.ID, e.Account, string(e.Kind), e.Asset, e.Amount.String(), e.Price.String(), e.Reference, e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return prepared, nil
}

func (p *Postgres) Balance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	return scanBalance(p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM ledger_entries WHERE account = $1 AND asset = $2`,
		account, assetCode(asset)))
}

func (p *Postgres) Balances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT asset, SUM(amount)::text FROM ledger_entries WHERE account = $1 GROUP BY asset`, account)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var asset, amount string
		if err := rows.Scan(&asset, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", amount, err)
		}
		out[asset] = d
	}
	return out, rows.Err()
}

func (p *Postgres) Entries(ctx context.Context, account string, limit int) ([]Entry, error) {
	query := `
		SELECT id::text, account, kind, asset, amount::text, price::text, reference, created_at
		FROM ledger_entries WHERE account = $1 ORDER BY seq DESC`
	args := []any{account}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.ID, &r.Account, &r.Kind, &r.Asset, &r.Amount, &r.Price, &r.Reference, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanBalance(row pgx.Row) (decimal.Decimal, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("scan balance: %w", err)
	}
	return decimal.NewFromString(s)
}

// entryRow holds a row with amounts as text, shared by the SQL backends.
type entryRow struct {
	ID        string    `db:"id"`
	Account   string    `db:"account"`
	Kind      string    `db:"kind"`
	Asset     string    `db:"asset"`
	Amount    string    `db:"amount"`
	Price     string    `db:"price"`
	Reference string    `db:"reference"`
	CreatedAt time.Time `db:"created_at"`
}

func (r entryRow) entry() (Entry, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return Entry{}, fmt.Errorf("parse amount %q: %w", r.Amount, err)
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return Entry{}, fmt.Errorf("parse price %q: %w", r.Price, err)
	}
	return Entry{
		ID:        r.ID,
		Account:   r.Account,
		Kind:      Kind(r.Kind),
		Asset:     r.Asset,
		Amount:    amount,
		Price:     price,
		Reference: r.Reference,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}
