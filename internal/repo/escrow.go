package repo

import (
	"context"
	"database/sql"

	"gigledger/internal/domain"
)

func (r Repo) GetEscrow(ctx context.Context, projectAddr string) (domain.Escrow, error) {
	return scanEscrow(r.DB.QueryRowContext(ctx, `SELECT addr,project_addr,employer,token_mint,vault_addr,amount,deposit,closed FROM escrows WHERE project_addr=?`, projectAddr))
}

func (r Repo) GetEscrowTx(ctx context.Context, tx *sql.Tx, projectAddr string) (domain.Escrow, error) {
	return scanEscrow(tx.QueryRowContext(ctx, `SELECT addr,project_addr,employer,token_mint,vault_addr,amount,deposit,closed FROM escrows WHERE project_addr=?`, projectAddr))
}

func scanEscrow(row *sql.Row) (domain.Escrow, error) {
	var e domain.Escrow
	err := row.Scan(&e.Addr, &e.ProjectAddr, &e.Employer, &e.TokenMint, &e.VaultAddr, &e.Amount, &e.Deposit, &e.Closed)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) InsertEscrow(ctx context.Context, tx *sql.Tx, e domain.Escrow) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO escrows(addr,project_addr,employer,token_mint,vault_addr,amount,deposit,closed) VALUES (?,?,?,?,?,?,?,?)`,
		e.Addr, e.ProjectAddr, e.Employer, e.TokenMint, e.VaultAddr, e.Amount, e.Deposit, e.Closed)
	return err
}

func (r Repo) UpdateEscrow(ctx context.Context, tx *sql.Tx, e domain.Escrow) error {
	res, err := tx.ExecContext(ctx, `UPDATE escrows SET amount=?, closed=? WHERE addr=?`, e.Amount, e.Closed, e.Addr)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- ratings ---

func (r Repo) GetRating(ctx context.Context, projectAddr, freelancer string) (domain.Rating, error) {
	var rating domain.Rating
	err := r.DB.QueryRowContext(ctx, `SELECT addr,project_addr,employer,freelancer,stars,feedback,rated_at FROM ratings WHERE project_addr=? AND freelancer=?`, projectAddr, freelancer).
		Scan(&rating.Addr, &rating.ProjectAddr, &rating.Employer, &rating.Freelancer, &rating.Stars, &rating.Feedback, &rating.RatedAt)
	if err == sql.ErrNoRows {
		return rating, ErrNotFound
	}
	return rating, err
}

func (r Repo) InsertRating(ctx context.Context, tx *sql.Tx, rating domain.Rating) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ratings(addr,project_addr,employer,freelancer,stars,feedback,rated_at) VALUES (?,?,?,?,?,?,?)`,
		rating.Addr, rating.ProjectAddr, rating.Employer, rating.Freelancer, rating.Stars, rating.Feedback, rating.RatedAt)
	return err
}

func (r Repo) ListRatings(ctx context.Context, freelancer string) ([]domain.Rating, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT addr,project_addr,employer,freelancer,stars,feedback,rated_at FROM ratings WHERE freelancer=? ORDER BY rated_at DESC`, freelancer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(&rating.Addr, &rating.ProjectAddr, &rating.Employer, &rating.Freelancer, &rating.Stars, &rating.Feedback, &rating.RatedAt); err != nil {
			return nil, err
		}
		res = append(res, rating)
	}
	return res, rows.Err()
}

// --- overviews ---

func (r Repo) GetOverview(ctx context.Context, freelancer string) (domain.Overview, error) {
	return scanOverview(r.DB.QueryRowContext(ctx, `SELECT freelancer,projects_completed,stars_1,stars_2,stars_3,stars_4,stars_5,average_rating,created_at FROM overviews WHERE freelancer=?`, freelancer))
}

func (r Repo) GetOverviewTx(ctx context.Context, tx *sql.Tx, freelancer string) (domain.Overview, error) {
	return scanOverview(tx.QueryRowContext(ctx, `SELECT freelancer,projects_completed,stars_1,stars_2,stars_3,stars_4,stars_5,average_rating,created_at FROM overviews WHERE freelancer=?`, freelancer))
}

func scanOverview(row *sql.Row) (domain.Overview, error) {
	var o domain.Overview
	err := row.Scan(&o.Freelancer, &o.ProjectsCompleted,
		&o.StarCounts[0], &o.StarCounts[1], &o.StarCounts[2], &o.StarCounts[3], &o.StarCounts[4],
		&o.AverageRating, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) InsertOverview(ctx context.Context, tx *sql.Tx, o domain.Overview) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO overviews(freelancer,projects_completed,stars_1,stars_2,stars_3,stars_4,stars_5,average_rating,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		o.Freelancer, o.ProjectsCompleted,
		o.StarCounts[0], o.StarCounts[1], o.StarCounts[2], o.StarCounts[3], o.StarCounts[4],
		o.AverageRating, o.CreatedAt)
	return err
}

func (r Repo) UpdateOverview(ctx context.Context, tx *sql.Tx, o domain.Overview) error {
	res, err := tx.ExecContext(ctx, `UPDATE overviews SET projects_completed=?, stars_1=?, stars_2=?, stars_3=?, stars_4=?, stars_5=?, average_rating=? WHERE freelancer=?`,
		o.ProjectsCompleted,
		o.StarCounts[0], o.StarCounts[1], o.StarCounts[2], o.StarCounts[3], o.StarCounts[4],
		o.AverageRating, o.Freelancer)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
