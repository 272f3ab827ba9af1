// Package token keeps per-owner balances for the marketplace settlement
// token. Accounts are rows in token_accounts; every transfer runs inside
// the caller's transaction so escrow moves commit atomically with the
// state change that caused them.
package token

import (
	"context"
	"database/sql"
	"errors"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountNotEmpty   = errors.New("token account not empty")
)

type Ledger struct {
	DB   *sql.DB
	Mint string
}

// EnsureAccount creates the owner's account for the ledger mint if it does
// not exist yet and returns its address.
func (l Ledger) EnsureAccount(ctx context.Context, tx *sql.Tx, owner string) (string, error) {
	a := addr.TokenAccount(owner, l.Mint)
	_, err := tx.ExecContext(ctx, `INSERT INTO token_accounts(addr,owner,mint,balance,active) VALUES (?,?,?,0,1)
ON CONFLICT(owner,mint) DO UPDATE SET active=1`, a, owner, l.Mint)
	return a, err
}

// Fund credits an account out of thin air. It backs top-ups from outside
// the ledger's own books, the tests use it to seed employer balances.
func (l Ledger) Fund(ctx context.Context, tx *sql.Tx, owner string, amount int64) error {
	if amount <= 0 {
		return errors.New("fund amount must be positive")
	}
	a, err := l.EnsureAccount(ctx, tx, owner)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE token_accounts SET balance=balance+? WHERE addr=?`, amount, a)
	return err
}

// Transfer moves amount between two accounts, creating the destination if
// needed. The source must exist and hold at least amount.
func (l Ledger) Transfer(ctx context.Context, tx *sql.Tx, from, to string, amount int64) error {
	if amount <= 0 {
		return errors.New("transfer amount must be positive")
	}
	fromAddr := addr.TokenAccount(from, l.Mint)
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM token_accounts WHERE addr=? AND active=1`, fromAddr).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	toAddr, err := l.EnsureAccount(ctx, tx, to)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE token_accounts SET balance=balance-? WHERE addr=?`, amount, fromAddr); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE token_accounts SET balance=balance+? WHERE addr=?`, amount, toAddr)
	return err
}

// Close deactivates an account. The balance must already be zero.
func (l Ledger) Close(ctx context.Context, tx *sql.Tx, owner string) error {
	a := addr.TokenAccount(owner, l.Mint)
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM token_accounts WHERE addr=? AND active=1`, a).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}
	if balance != 0 {
		return ErrAccountNotEmpty
	}
	_, err = tx.ExecContext(ctx, `UPDATE token_accounts SET active=0 WHERE addr=?`, a)
	return err
}

// BalanceTx reads a balance inside the caller's transaction. A missing
// account reads as zero.
func (l Ledger) BalanceTx(ctx context.Context, tx *sql.Tx, owner string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM token_accounts WHERE addr=?`, addr.TokenAccount(owner, l.Mint)).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// Balance reads outside any transaction. A missing account reads as zero.
func (l Ledger) Balance(ctx context.Context, owner string) (int64, error) {
	var balance int64
	err := l.DB.QueryRowContext(ctx, `SELECT balance FROM token_accounts WHERE addr=?`, addr.TokenAccount(owner, l.Mint)).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// Account returns the full row for an owner account.
func (l Ledger) Account(ctx context.Context, owner string) (domain.TokenAccount, error) {
	var acct domain.TokenAccount
	err := l.DB.QueryRowContext(ctx, `SELECT addr,owner,mint,balance,active FROM token_accounts WHERE addr=?`, addr.TokenAccount(owner, l.Mint)).
		Scan(&acct.Addr, &acct.Owner, &acct.Mint, &acct.Balance, &acct.Active)
	if err == sql.ErrNoRows {
		return acct, ErrAccountNotFound
	}
	return acct, err
}
