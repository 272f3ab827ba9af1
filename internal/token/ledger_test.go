package token

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"gigledger/internal/db"
	"gigledger/internal/migrate"
)

func newTestLedger(t *testing.T) (Ledger, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Ledger{DB: conn, Mint: "GIG"}, conn
}

func inTx(t *testing.T, conn *sql.DB, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		t.Fatalf("tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestFundAndTransfer(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()

	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Fund(ctx, tx, "alice", 500)
	})
	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Transfer(ctx, tx, "alice", "bob", 200)
	})

	if bal, _ := l.Balance(ctx, "alice"); bal != 300 {
		t.Fatalf("alice = %d, want 300", bal)
	}
	if bal, _ := l.Balance(ctx, "bob"); bal != 200 {
		t.Fatalf("bob = %d, want 200", bal)
	}
}

func TestTransferInsufficient(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()

	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Fund(ctx, tx, "alice", 100)
	})

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := l.Transfer(ctx, tx, "alice", "bob", 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if err := l.Transfer(ctx, tx, "ghost", "bob", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound", err)
	}
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	l, conn := newTestLedger(t)
	ctx := context.Background()

	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Fund(ctx, tx, "alice", 50)
	})

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.Close(ctx, tx, "alice"); !errors.Is(err, ErrAccountNotEmpty) {
		t.Fatalf("got %v, want ErrAccountNotEmpty", err)
	}
	tx.Rollback()

	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Transfer(ctx, tx, "alice", "sink", 50)
	})
	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Close(ctx, tx, "alice")
	})

	acct, err := l.Account(ctx, "alice")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Active {
		t.Fatalf("account still active after close")
	}

	// A closed account cannot send.
	inTx(t, conn, func(tx *sql.Tx) error {
		return l.Fund(ctx, tx, "carol", 10)
	})
	tx2, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx2.Rollback()
	if err := l.Transfer(ctx, tx2, "alice", "carol", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("got %v, want ErrAccountNotFound for closed sender", err)
	}
}
