// Package store provides the default turn.Store implementation: a
// Postgres-backed TurnRecord writer (§6.4) using database/sql with
// github.com/lib/pq as the driver. Writes are best-effort and retried
// with github.com/cenkalti/backoff/v4 on a background goroutine; a
// write that exhausts its retry budget is dropped with a counter
// increment, never blocking the turn pipeline (§7's never-block rule).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"github.com/turnframe/turnframe/pkg/turn"
)

// Postgres is the default turn.Store. Open a connection pool once at
// process start and share it across every session's Controller.
type Postgres struct {
	db *sql.DB

	dropped atomic.Int64
}

// Open connects to Postgres and ensures the turn_records table exists.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

// schemaDDL is deliberately minimal: persistence schema design proper is
// a §1 Non-goal, this is just enough structure to hold a
// TurnRecord (§6.4) queryably.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS turn_records (
	turn_id          TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ,
	user_text        TEXT,
	agent_text       TEXT,
	outcome          TEXT NOT NULL,
	was_interrupted  BOOLEAN NOT NULL DEFAULT false,
	tokens_prompt    INTEGER NOT NULL DEFAULT 0,
	tokens_wasted    INTEGER NOT NULL DEFAULT 0,
	latency_ms       BIGINT NOT NULL DEFAULT 0,
	transitions      JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// SaveTurn implements turn.Store. The caller (pkg/turn's Controller)
// already runs this off the hot path on its own goroutine; SaveTurn adds
// its own bounded retry on top so a transient connection blip doesn't
// drop a record outright.
func (p *Postgres) SaveTurn(ctx context.Context, rec turn.TurnRecord) error {
	transitions, err := json.Marshal(rec.Transitions)
	if err != nil {
		return fmt.Errorf("store: marshal transitions: %w", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	op := func() error {
		_, err := p.db.ExecContext(ctx, insertSQL,
			rec.TurnID, rec.SessionID, rec.StartedAt, nullTime(rec.FinishedAt),
			rec.UserText, rec.AgentText, string(rec.Outcome), rec.WasInterrupted,
			rec.TokensPrompt, rec.TokensWasted, rec.LatencyMS, transitions,
		)
		return err
	}

	if err := backoff.Retry(op, b); err != nil {
		p.dropped.Add(1)
		return fmt.Errorf("store: save turn %s: %w", rec.TurnID, err)
	}
	return nil
}

const insertSQL = `
INSERT INTO turn_records
	(turn_id, session_id, started_at, finished_at, user_text, agent_text,
	 outcome, was_interrupted, tokens_prompt, tokens_wasted, latency_ms, transitions)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (turn_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	agent_text = EXCLUDED.agent_text,
	outcome = EXCLUDED.outcome,
	tokens_wasted = EXCLUDED.tokens_wasted,
	latency_ms = EXCLUDED.latency_ms,
	transitions = EXCLUDED.transitions`

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Dropped reports how many writes exhausted their retry budget and were
// abandoned (§7's never-block rule: these are counted, not retried
// forever or allowed to block the pipeline).
func (p *Postgres) Dropped() int64 { return p.dropped.Load() }

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

var _ turn.Store = (*Postgres)(nil)
