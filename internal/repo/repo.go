package repo

import (
	"context"
	"database/sql"
	"errors"

	"gigledger/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- admins ---

func (r Repo) InsertAdmin(ctx context.Context, tx *sql.Tx, addr string, a domain.Admin) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO admins(addr,identity,created_at) VALUES (?,?,?)`,
		addr, a.Identity, a.CreatedAt)
	return err
}

func (r Repo) GetAdmin(ctx context.Context, identity string) (domain.Admin, error) {
	var a domain.Admin
	err := r.DB.QueryRowContext(ctx, `SELECT identity,created_at FROM admins WHERE identity=?`, identity).
		Scan(&a.Identity, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// --- employers ---

func (r Repo) GetEmployer(ctx context.Context, identity string) (domain.Employer, error) {
	var e domain.Employer
	err := r.DB.QueryRowContext(ctx, `SELECT identity,user_name,company_name,active,created_at FROM employers WHERE identity=?`, identity).
		Scan(&e.Identity, &e.UserName, &e.CompanyName, &e.Active, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) UpsertEmployer(ctx context.Context, tx *sql.Tx, addr string, e domain.Employer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO employers(addr,identity,user_name,company_name,active,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(identity) DO UPDATE SET user_name=excluded.user_name, company_name=excluded.company_name, active=excluded.active`,
		addr, e.Identity, e.UserName, e.CompanyName, e.Active, e.CreatedAt)
	return err
}

func (r Repo) SetEmployerActive(ctx context.Context, tx *sql.Tx, identity string, active bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE employers SET active=? WHERE identity=?`, active, identity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListEmployers(ctx context.Context) ([]domain.Employer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT identity,user_name,company_name,active,created_at FROM employers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Employer
	for rows.Next() {
		var e domain.Employer
		if err := rows.Scan(&e.Identity, &e.UserName, &e.CompanyName, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- freelancers ---

func (r Repo) GetFreelancer(ctx context.Context, identity string) (domain.Freelancer, error) {
	var f domain.Freelancer
	err := r.DB.QueryRowContext(ctx, `SELECT identity,user_name,profession,active,created_at FROM freelancers WHERE identity=?`, identity).
		Scan(&f.Identity, &f.UserName, &f.Profession, &f.Active, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

func (r Repo) UpsertFreelancer(ctx context.Context, tx *sql.Tx, addr string, f domain.Freelancer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO freelancers(addr,identity,user_name,profession,active,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(identity) DO UPDATE SET user_name=excluded.user_name, profession=excluded.profession, active=excluded.active`,
		addr, f.Identity, f.UserName, f.Profession, f.Active, f.CreatedAt)
	return err
}

func (r Repo) SetFreelancerActive(ctx context.Context, tx *sql.Tx, identity string, active bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE freelancers SET active=? WHERE identity=?`, active, identity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListFreelancers(ctx context.Context) ([]domain.Freelancer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT identity,user_name,profession,active,created_at FROM freelancers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Freelancer
	for rows.Next() {
		var f domain.Freelancer
		if err := rows.Scan(&f.Identity, &f.UserName, &f.Profession, &f.Active, &f.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// --- helpers ---

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
