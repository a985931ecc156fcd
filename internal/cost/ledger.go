// Package cost implements the append-only cost ledger described in spec.md
// §3: a sequence of usage/cost entries that is never mutated, whose totals
// are always the sum of every entry logged since the session started.
//
// Grounded on the teacher's audit index (internal/audit/index.go), which
// keeps an auditable, queryable SQLite projection via
// github.com/glebarez/go-sqlite. The cost ledger reuses that storage
// approach directly: unlike the audit log it has no JSONL source of truth or
// hash chain to rebuild from, because spec.md's ledger is defined purely in
// terms of its running totals, not as a tamper-evident trail.
package cost

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Usage is one request's token accounting.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheReadTokens  int64
	CacheWriteTokens int64
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + o.InputTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + o.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + o.CacheWriteTokens,
	}
}

// Entry is one immutable ledger row, matching spec.md §3's
// {usage, cost, model, timestamp} shape.
type Entry struct {
	Seq       int64
	Timestamp time.Time
	Model     string
	Provider  string
	Usage     Usage
	CostUSD   float64
}

// Totals is the running sum of every entry appended so far.
type Totals struct {
	Usage   Usage
	CostUSD float64
}

// Ledger is an append-only cost ledger backed by SQLite.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path. Mirrors the teacher's
// openIndex: WAL mode plus a busy timeout so the engine's writer and the
// CLI's occasional reader don't contend.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cost ledger %s: %w", path, err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts           TEXT NOT NULL,
			model        TEXT NOT NULL DEFAULT '',
			provider     TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cache_read_tokens INTEGER NOT NULL DEFAULT 0,
			cache_write_tokens INTEGER NOT NULL DEFAULT 0,
			cost_usd     REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_ts ON entries(ts);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cost ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Append adds an entry. Entries are never updated or deleted: this is the
// only write path the ledger exposes.
func (l *Ledger) Append(e Entry) (Entry, error) {
	res, err := l.db.Exec(
		`INSERT INTO entries (ts, model, provider, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Model, e.Provider,
		e.Usage.InputTokens, e.Usage.OutputTokens, e.Usage.CacheReadTokens, e.Usage.CacheWriteTokens, e.CostUSD,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("appending cost entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("reading cost entry seq: %w", err)
	}
	e.Seq = seq
	return e, nil
}

// Totals returns the sum of every entry appended so far.
func (l *Ledger) Totals() (Totals, error) {
	var t Totals
	row := l.db.QueryRow(`
		SELECT
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cache_read_tokens), 0),
			COALESCE(SUM(cache_write_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM entries`)
	if err := row.Scan(&t.Usage.InputTokens, &t.Usage.OutputTokens, &t.Usage.CacheReadTokens, &t.Usage.CacheWriteTokens, &t.CostUSD); err != nil {
		return Totals{}, fmt.Errorf("summing cost ledger: %w", err)
	}
	return t, nil
}

// Latest returns the most recently appended entry, or the zero Entry and
// false if the ledger is empty.
func (l *Ledger) Latest() (Entry, bool, error) {
	row := l.db.QueryRow(`
		SELECT seq, ts, model, provider, input_tokens, output_tokens, cache_read_tokens, cache_write_tokens, cost_usd
		FROM entries ORDER BY seq DESC LIMIT 1`)
	var e Entry
	var ts string
	err := row.Scan(&e.Seq, &ts, &e.Model, &e.Provider, &e.Usage.InputTokens, &e.Usage.OutputTokens, &e.Usage.CacheReadTokens, &e.Usage.CacheWriteTokens, &e.CostUSD)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading latest cost entry: %w", err)
	}
	e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return e, true, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
