package engine

import (
	"context"
	"errors"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
	"gigledger/internal/events"
	"gigledger/internal/repo"
)

const maxFeedbackLen = 500

// RateFreelancer records a one-time star rating for the freelancer who
// delivered a completed project and folds it into their overview.
func (e Engine) RateFreelancer(ctx context.Context, employerID, projectAddr string, stars int, feedback string) (domain.Rating, error) {
	var rating domain.Rating
	if _, err := e.activeEmployer(ctx, employerID); err != nil {
		return rating, err
	}
	p, err := e.Repo.GetProject(ctx, projectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return rating, ErrProjectNotFound
	}
	if err != nil {
		return rating, err
	}
	if p.Employer != employerID {
		return rating, ErrUnauthorizedEmployer
	}
	if p.Status != domain.ProjectCompleted {
		return rating, ErrProjectNotCompleted
	}
	if p.TasksCompleted != p.TasksCount {
		return rating, ErrTasksNotCompleted
	}
	if stars < 1 || stars > 5 {
		return rating, ErrInvalidStars
	}
	if len(feedback) > maxFeedbackLen {
		return rating, ErrFeedbackTooLong
	}
	d, err := e.Repo.GetProjectDetails(ctx, projectAddr)
	if err != nil {
		return rating, err
	}
	if d.AssignedFreelancer == nil {
		return rating, ErrInvalidFreelancer
	}
	freelancerID := *d.AssignedFreelancer
	if _, err := e.Repo.GetRating(ctx, projectAddr, freelancerID); err == nil {
		return rating, ErrAlreadyRated
	} else if !errors.Is(err, repo.ErrNotFound) {
		return rating, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return rating, err
	}
	defer tx.Rollback()

	rating = domain.Rating{
		Addr:        addr.Rating(projectAddr, freelancerID),
		ProjectAddr: projectAddr,
		Employer:    employerID,
		Freelancer:  freelancerID,
		Stars:       stars,
		Feedback:    feedback,
		RatedAt:     e.nowString(),
	}
	if err := e.Repo.InsertRating(ctx, tx, rating); err != nil {
		return rating, err
	}

	o, err := e.Repo.GetOverviewTx(ctx, tx, freelancerID)
	if errors.Is(err, repo.ErrNotFound) {
		o = domain.Overview{Freelancer: freelancerID, CreatedAt: e.nowString()}
		o.AddStars(stars)
		if err := e.Repo.InsertOverview(ctx, tx, o); err != nil {
			return rating, err
		}
	} else if err != nil {
		return rating, err
	} else {
		o.AddStars(stars)
		if err := e.Repo.UpdateOverview(ctx, tx, o); err != nil {
			return rating, err
		}
	}

	if err := e.writer().Append(ctx, tx, "freelancer.rated", "rating", rating.Addr, employerID, events.EventPayload{
		"project": projectAddr, "freelancer": freelancerID, "stars": stars,
	}); err != nil {
		return rating, err
	}
	return rating, tx.Commit()
}

// InitializeOverview creates an empty reputation record for a freelancer
// ahead of their first completion.
func (e Engine) InitializeOverview(ctx context.Context, adminID, freelancerID string) (domain.Overview, error) {
	var o domain.Overview
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return o, err
	}
	if _, err := e.Repo.GetFreelancer(ctx, freelancerID); errors.Is(err, repo.ErrNotFound) {
		return o, ErrNotWhitelisted
	} else if err != nil {
		return o, err
	}
	if _, err := e.Repo.GetOverview(ctx, freelancerID); err == nil {
		return o, ErrOverviewAlreadyInitialized
	} else if !errors.Is(err, repo.ErrNotFound) {
		return o, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()

	o = domain.Overview{Freelancer: freelancerID, CreatedAt: e.nowString()}
	if err := e.Repo.InsertOverview(ctx, tx, o); err != nil {
		return o, err
	}
	if err := e.writer().Append(ctx, tx, "overview.initialized", "overview", addr.Overview(freelancerID), adminID, nil); err != nil {
		return o, err
	}
	return o, tx.Commit()
}

// Overview returns a freelancer's reputation record.
func (e Engine) Overview(ctx context.Context, freelancerID string) (domain.Overview, error) {
	o, err := e.Repo.GetOverview(ctx, freelancerID)
	if errors.Is(err, repo.ErrNotFound) {
		return o, ErrOverviewNotFound
	}
	return o, err
}
