// Package engine implements the marketplace state machine. Every mutation
// runs in a single transaction: role checks, state transition, token moves
// and the event append either all commit or none do.
package engine

import (
	"database/sql"
	"math"
	"time"

	"gigledger/internal/config"
	"gigledger/internal/events"
	"gigledger/internal/repo"
	"gigledger/internal/token"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	EventLog events.Writer
	Tokens   token.Ledger
	Config   config.Config

	// Now is injectable for tests.
	Now func() time.Time
}

func New(db *sql.DB, cfg config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		EventLog: events.Writer{DB: db},
		Tokens:   token.Ledger{DB: db, Mint: cfg.Token.Mint},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// writer returns the event writer pinned to the engine clock.
func (e Engine) writer() events.Writer {
	return events.Writer{DB: e.DB, Now: e.Now}
}

func addChecked(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrAmountOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

func subChecked(a, b int64) (int64, error) {
	return addChecked(a, -b)
}
