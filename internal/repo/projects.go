package repo

import (
	"context"
	"database/sql"

	"gigledger/internal/domain"
)

func (r Repo) GetProject(ctx context.Context, addr string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT addr,employer,number,title,status,total_budget,remaining_budget,tasks_count,tasks_completed,created_at FROM projects WHERE addr=?`, addr))
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, addr string) (domain.Project, error) {
	return scanProject(tx.QueryRowContext(ctx, `SELECT addr,employer,number,title,status,total_budget,remaining_budget,tasks_count,tasks_completed,created_at FROM projects WHERE addr=?`, addr))
}

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.Addr, &p.Employer, &p.Number, &p.Title, &p.Status, &p.TotalBudget, &p.RemainingBudget, &p.TasksCount, &p.TasksCompleted, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(addr,employer,number,title,status,total_budget,remaining_budget,tasks_count,tasks_completed,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.Addr, p.Employer, p.Number, p.Title, p.Status, p.TotalBudget, p.RemainingBudget, p.TasksCount, p.TasksCompleted, p.CreatedAt)
	return err
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=?, remaining_budget=?, tasks_count=?, tasks_completed=? WHERE addr=?`,
		p.Status, p.RemainingBudget, p.TasksCount, p.TasksCompleted, p.Addr)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListProjects(ctx context.Context, employer string) ([]domain.Project, error) {
	q := `SELECT addr,employer,number,title,status,total_budget,remaining_budget,tasks_count,tasks_completed,created_at FROM projects`
	args := []any{}
	if employer != "" {
		q += ` WHERE employer=?`
		args = append(args, employer)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.Addr, &p.Employer, &p.Number, &p.Title, &p.Status, &p.TotalBudget, &p.RemainingBudget, &p.TasksCount, &p.TasksCompleted, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- project details ---

func (r Repo) GetProjectDetails(ctx context.Context, projectAddr string) (domain.ProjectDetails, error) {
	return scanDetails(r.DB.QueryRowContext(ctx, `SELECT project_addr,description,requirement,deadline,assigned_freelancer,created_at FROM project_details WHERE project_addr=?`, projectAddr))
}

func (r Repo) GetProjectDetailsTx(ctx context.Context, tx *sql.Tx, projectAddr string) (domain.ProjectDetails, error) {
	return scanDetails(tx.QueryRowContext(ctx, `SELECT project_addr,description,requirement,deadline,assigned_freelancer,created_at FROM project_details WHERE project_addr=?`, projectAddr))
}

func scanDetails(row *sql.Row) (domain.ProjectDetails, error) {
	var d domain.ProjectDetails
	var assigned sql.NullString
	err := row.Scan(&d.ProjectAddr, &d.Description, &d.Requirement, &d.Deadline, &assigned, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if assigned.Valid {
		d.AssignedFreelancer = &assigned.String
	}
	return d, err
}

func (r Repo) InsertProjectDetails(ctx context.Context, tx *sql.Tx, d domain.ProjectDetails) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO project_details(project_addr,description,requirement,deadline,assigned_freelancer,created_at) VALUES (?,?,?,?,?,?)`,
		d.ProjectAddr, d.Description, d.Requirement, d.Deadline, nullableStringPtr(d.AssignedFreelancer), d.CreatedAt)
	return err
}

func (r Repo) AssignProject(ctx context.Context, tx *sql.Tx, projectAddr, freelancer string) error {
	res, err := tx.ExecContext(ctx, `UPDATE project_details SET assigned_freelancer=? WHERE project_addr=?`, freelancer, projectAddr)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
