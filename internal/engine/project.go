package engine

import (
	"context"
	"errors"
	"time"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
	"gigledger/internal/events"
	"gigledger/internal/repo"
	"gigledger/internal/token"
)

const (
	maxTitleLen           = 100
	maxProjectDescription = 1000
)

// InitializeProject opens a project and funds its escrow in one step. The
// employer picks the project number; it keys the project address, so the
// same number cannot be reused. The employer is debited the full budget
// plus the configured custody deposit up front, so a project can never
// promise money it does not hold.
func (e Engine) InitializeProject(ctx context.Context, employerID string, number uint64, title string, totalBudget int64) (domain.Project, error) {
	var p domain.Project
	if _, err := e.activeEmployer(ctx, employerID); err != nil {
		return p, err
	}
	if len(title) > maxTitleLen {
		return p, ErrTitleTooLong
	}
	if totalBudget <= 0 {
		return p, ErrInvalidBudget
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	projectAddr := addr.Project(employerID, number)
	if _, err := e.Repo.GetProjectTx(ctx, tx, projectAddr); err == nil {
		return p, ErrProjectAlreadyInitialized
	} else if !errors.Is(err, repo.ErrNotFound) {
		return p, err
	}
	p = domain.Project{
		Addr:            projectAddr,
		Employer:        employerID,
		Number:          number,
		Title:           title,
		Status:          domain.ProjectOpen,
		TotalBudget:     totalBudget,
		RemainingBudget: totalBudget,
		CreatedAt:       e.nowString(),
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return p, err
	}

	escrowAddr := addr.Escrow(projectAddr)
	deposit := e.Config.Escrow.Deposit
	charge, err := addChecked(totalBudget, deposit)
	if err != nil {
		return p, err
	}
	if err := e.Tokens.Transfer(ctx, tx, employerID, escrowAddr, charge); err != nil {
		if errors.Is(err, token.ErrInsufficientFunds) {
			return p, ErrInsufficientFunds
		}
		return p, err
	}
	esc := domain.Escrow{
		Addr:        escrowAddr,
		ProjectAddr: projectAddr,
		Employer:    employerID,
		TokenMint:   e.Config.Token.Mint,
		VaultAddr:   addr.TokenAccount(escrowAddr, e.Config.Token.Mint),
		Amount:      totalBudget,
		Deposit:     deposit,
	}
	if err := e.Repo.InsertEscrow(ctx, tx, esc); err != nil {
		return p, err
	}

	if err := e.writer().Append(ctx, tx, "project.initialized", "project", projectAddr, employerID, events.EventPayload{
		"number": number, "title": title, "total_budget": totalBudget,
	}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

// AddProjectDetails attaches the description, required profession and
// deadline. A project is not acceptable by freelancers until this runs.
func (e Engine) AddProjectDetails(ctx context.Context, employerID, projectAddr, description string, requirement domain.Profession, deadline string) (domain.ProjectDetails, error) {
	var d domain.ProjectDetails
	if _, err := e.activeEmployer(ctx, employerID); err != nil {
		return d, err
	}
	p, err := e.Repo.GetProject(ctx, projectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return d, ErrProjectNotFound
	}
	if err != nil {
		return d, err
	}
	if p.Employer != employerID {
		return d, ErrUnauthorizedEmployer
	}
	if p.Status != domain.ProjectOpen {
		return d, ErrProjectNotCreated
	}
	if len(description) > maxProjectDescription {
		return d, ErrDescriptionTooLong
	}
	if !requirement.Valid() {
		return d, ErrInvalidProfession
	}
	due, err := time.Parse(time.RFC3339, deadline)
	if err != nil || !due.After(e.now()) {
		return d, ErrInvalidDeadline
	}
	if _, err := e.Repo.GetProjectDetails(ctx, projectAddr); err == nil {
		return d, ErrDetailsAlreadyAdded
	} else if !errors.Is(err, repo.ErrNotFound) {
		return d, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()

	d = domain.ProjectDetails{
		ProjectAddr: projectAddr,
		Description: description,
		Requirement: requirement,
		Deadline:    due.UTC().Format(time.RFC3339),
		CreatedAt:   e.nowString(),
	}
	if err := e.Repo.InsertProjectDetails(ctx, tx, d); err != nil {
		return d, err
	}
	if err := e.writer().Append(ctx, tx, "project.details_added", "project", projectAddr, employerID, events.EventPayload{
		"requirement": string(requirement), "deadline": d.Deadline,
	}); err != nil {
		return d, err
	}
	return d, tx.Commit()
}

// AcceptProject assigns a freelancer to an open project whose required
// profession matches theirs. First matching acceptance wins.
func (e Engine) AcceptProject(ctx context.Context, freelancerID, projectAddr string) (domain.Project, error) {
	var p domain.Project
	fl, err := e.activeFreelancer(ctx, freelancerID)
	if err != nil {
		return p, err
	}
	p, err = e.Repo.GetProject(ctx, projectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return p, ErrProjectNotFound
	}
	if err != nil {
		return p, err
	}
	d, err := e.Repo.GetProjectDetails(ctx, projectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return p, ErrProjectNotCreated
	}
	if err != nil {
		return p, err
	}
	if d.AssignedFreelancer != nil {
		return p, ErrProjectAlreadyAssigned
	}
	if p.Status != domain.ProjectOpen {
		return p, ErrInvalidProjectStatus
	}
	if fl.Profession != d.Requirement {
		return p, ErrProfessionMismatch
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	// First matching acceptance wins: recheck inside the tx, and re-read
	// the project row so the status write cannot persist a stale snapshot
	// of the task counters.
	d, err = e.Repo.GetProjectDetailsTx(ctx, tx, projectAddr)
	if err != nil {
		return p, err
	}
	if d.AssignedFreelancer != nil {
		return p, ErrProjectAlreadyAssigned
	}
	p, err = e.Repo.GetProjectTx(ctx, tx, projectAddr)
	if err != nil {
		return p, err
	}
	if p.Status != domain.ProjectOpen {
		return p, ErrInvalidProjectStatus
	}
	if err := e.Repo.AssignProject(ctx, tx, projectAddr, freelancerID); err != nil {
		return p, err
	}
	p.Status = domain.ProjectInProgress
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.writer().Append(ctx, tx, "project.accepted", "project", projectAddr, freelancerID, events.EventPayload{
		"freelancer": freelancerID,
	}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}
