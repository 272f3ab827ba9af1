package engine

import (
	"context"
	"errors"

	"gigledger/internal/domain"
	"gigledger/internal/repo"
)

func (e Engine) Employer(ctx context.Context, identity string) (domain.Employer, error) {
	emp, err := e.Repo.GetEmployer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return emp, ErrNotWhitelisted
	}
	return emp, err
}

func (e Engine) Freelancer(ctx context.Context, identity string) (domain.Freelancer, error) {
	fl, err := e.Repo.GetFreelancer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return fl, ErrNotWhitelisted
	}
	return fl, err
}

func (e Engine) Project(ctx context.Context, addr string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return p, ErrProjectNotFound
	}
	return p, err
}

func (e Engine) ProjectDetails(ctx context.Context, addr string) (domain.ProjectDetails, error) {
	d, err := e.Repo.GetProjectDetails(ctx, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return d, ErrProjectNotCreated
	}
	return d, err
}

func (e Engine) Task(ctx context.Context, addr string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrTaskNotFound
	}
	return t, err
}

func (e Engine) Tasks(ctx context.Context, projectAddr string) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, projectAddr)
}

func (e Engine) Projects(ctx context.Context, employer string) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx, employer)
}

func (e Engine) Submissions(ctx context.Context, taskAddr string) ([]domain.TaskSubmission, error) {
	return e.Repo.ListSubmissions(ctx, taskAddr)
}

func (e Engine) Ratings(ctx context.Context, freelancer string) ([]domain.Rating, error) {
	return e.Repo.ListRatings(ctx, freelancer)
}

func (e Engine) Badges(ctx context.Context, freelancer string) ([]domain.BadgeToken, error) {
	return e.Repo.ListBadges(ctx, freelancer)
}

// Events reads the append-only log after a cursor, newest last.
func (e Engine) Events(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return e.Repo.EventsAfter(ctx, afterID, limit)
}

// FundAccount credits an identity's token balance. Admin only; this is the
// on-ramp for employer balances, everything after it moves through escrow.
func (e Engine) FundAccount(ctx context.Context, adminID, owner string, amount int64) error {
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidBudget
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Tokens.Fund(ctx, tx, owner, amount); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, "token.funded", "token_account", owner, adminID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Balance reads an identity's token balance.
func (e Engine) Balance(ctx context.Context, owner string) (int64, error) {
	return e.Tokens.Balance(ctx, owner)
}
