package repo

import (
	"context"
	"database/sql"

	"gigledger/internal/domain"
)

func (r Repo) GetTask(ctx context.Context, addr string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT addr,project_addr,number,title,description,budget,status,assigned_freelancer,created_at,completed_at FROM tasks WHERE addr=?`, addr))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, addr string) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT addr,project_addr,number,title,description,budget,status,assigned_freelancer,created_at,completed_at FROM tasks WHERE addr=?`, addr))
}

func scanTask(row *sql.Row) (domain.Task, error) {
	var t domain.Task
	var assigned, completed sql.NullString
	err := row.Scan(&t.Addr, &t.ProjectAddr, &t.Number, &t.Title, &t.Description, &t.Budget, &t.Status, &assigned, &t.CreatedAt, &completed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if assigned.Valid {
		t.AssignedFreelancer = &assigned.String
	}
	if completed.Valid {
		t.CompletedAt = &completed.String
	}
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(addr,project_addr,number,title,description,budget,status,assigned_freelancer,created_at,completed_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.Addr, t.ProjectAddr, t.Number, t.Title, t.Description, t.Budget, t.Status, nullableStringPtr(t.AssignedFreelancer), t.CreatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, assigned_freelancer=?, completed_at=? WHERE addr=?`,
		t.Status, nullableStringPtr(t.AssignedFreelancer), nullableStringPtr(t.CompletedAt), t.Addr)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTasks(ctx context.Context, projectAddr string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT addr,project_addr,number,title,description,budget,status,assigned_freelancer,created_at,completed_at FROM tasks WHERE project_addr=? ORDER BY number`, projectAddr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var assigned, completed sql.NullString
		if err := rows.Scan(&t.Addr, &t.ProjectAddr, &t.Number, &t.Title, &t.Description, &t.Budget, &t.Status, &assigned, &t.CreatedAt, &completed); err != nil {
			return nil, err
		}
		if assigned.Valid {
			t.AssignedFreelancer = &assigned.String
		}
		if completed.Valid {
			t.CompletedAt = &completed.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// --- submissions ---

func (r Repo) UpsertSubmission(ctx context.Context, tx *sql.Tx, s domain.TaskSubmission) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_submissions(addr,task_addr,freelancer,poc_type,description,proof,submitted_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(freelancer,task_addr) DO UPDATE SET poc_type=excluded.poc_type, description=excluded.description, proof=excluded.proof, submitted_at=excluded.submitted_at`,
		s.Addr, s.TaskAddr, s.Freelancer, s.PocType, s.Description, s.Proof, s.SubmittedAt)
	return err
}

func (r Repo) ListSubmissions(ctx context.Context, taskAddr string) ([]domain.TaskSubmission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT addr,task_addr,freelancer,poc_type,description,proof,submitted_at FROM task_submissions WHERE task_addr=? ORDER BY submitted_at DESC`, taskAddr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskSubmission
	for rows.Next() {
		var s domain.TaskSubmission
		if err := rows.Scan(&s.Addr, &s.TaskAddr, &s.Freelancer, &s.PocType, &s.Description, &s.Proof, &s.SubmittedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
