package engine

import (
	"context"
	"database/sql"
	"errors"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
	"gigledger/internal/repo"
)

// closeEscrow returns the custody deposit to the employer and deactivates
// the vault. Callers guarantee the budgeted amount is already zero.
func (e Engine) closeEscrow(ctx context.Context, tx *sql.Tx, esc *domain.Escrow) error {
	if esc.Amount != 0 {
		return ErrBudgetStillRemaining
	}
	if esc.Deposit > 0 {
		if err := e.Tokens.Transfer(ctx, tx, esc.Addr, esc.Employer, esc.Deposit); err != nil {
			return ErrInvalidEscrowAmount
		}
	}
	if err := e.Tokens.Close(ctx, tx, esc.Addr); err != nil {
		return ErrInvalidEscrowAmount
	}
	esc.Closed = true
	return e.writer().Append(ctx, tx, "escrow.closed", "escrow", esc.Addr, esc.Employer, nil)
}

// recordCompletion bumps the freelancer's completed-project counter,
// creating the overview on first completion if the admin never did.
func (e Engine) recordCompletion(ctx context.Context, tx *sql.Tx, freelancerID string) error {
	o, err := e.Repo.GetOverviewTx(ctx, tx, freelancerID)
	if errors.Is(err, repo.ErrNotFound) {
		o = domain.Overview{Freelancer: freelancerID, ProjectsCompleted: 1, CreatedAt: e.nowString()}
		return e.Repo.InsertOverview(ctx, tx, o)
	}
	if err != nil {
		return err
	}
	o.ProjectsCompleted++
	return e.Repo.UpdateOverview(ctx, tx, o)
}

// Escrow returns the custody record for a project.
func (e Engine) Escrow(ctx context.Context, projectAddr string) (domain.Escrow, error) {
	esc, err := e.Repo.GetEscrow(ctx, projectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return esc, ErrProjectNotFound
	}
	return esc, err
}

// VaultBalance reads the escrow vault's live token balance.
func (e Engine) VaultBalance(ctx context.Context, projectAddr string) (int64, error) {
	return e.Tokens.Balance(ctx, addr.Escrow(projectAddr))
}
