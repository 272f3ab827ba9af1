package engine

import (
	"context"
	"errors"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
	"gigledger/internal/events"
	"gigledger/internal/repo"
	"gigledger/internal/token"
)

const (
	maxTaskDescription       = 500
	maxSubmissionDescription = 1000
	maxProofLen              = 100
)

// AddTask appends a budgeted task to a project. The employer picks the
// task number, which keys the task address within the project. The task's
// budget is reserved immediately: remaining_budget drops at creation, not
// approval, so a project can only complete once every unit is allocated
// and paid out.
func (e Engine) AddTask(ctx context.Context, employerID, projectAddr string, number uint64, title, description string, budget int64) (domain.Task, error) {
	var t domain.Task
	if _, err := e.activeEmployer(ctx, employerID); err != nil {
		return t, err
	}
	p, err := e.Repo.GetProject(ctx, projectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrProjectNotFound
	}
	if err != nil {
		return t, err
	}
	if p.Employer != employerID {
		return t, ErrUnauthorizedEmployer
	}
	if p.Status == domain.ProjectCompleted {
		return t, ErrInvalidProjectStatus
	}
	if len(title) > maxTitleLen {
		return t, ErrTitleTooLong
	}
	if len(description) > maxTaskDescription {
		return t, ErrDescriptionTooLong
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	p, err = e.Repo.GetProjectTx(ctx, tx, projectAddr)
	if err != nil {
		return t, err
	}
	if budget <= 0 || budget > p.RemainingBudget {
		return t, ErrInvalidBudget
	}

	taskAddr := addr.Task(projectAddr, number)
	if _, err := e.Repo.GetTaskTx(ctx, tx, taskAddr); err == nil {
		return t, ErrTaskAlreadyAdded
	} else if !errors.Is(err, repo.ErrNotFound) {
		return t, err
	}
	t = domain.Task{
		Addr:        taskAddr,
		ProjectAddr: projectAddr,
		Number:      number,
		Title:       title,
		Description: description,
		Budget:      budget,
		Status:      domain.TaskOpen,
		CreatedAt:   e.nowString(),
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return t, err
	}

	p.RemainingBudget, err = subChecked(p.RemainingBudget, budget)
	if err != nil {
		return t, err
	}
	p.TasksCount++
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return t, err
	}
	if err := e.writer().Append(ctx, tx, "task.added", "task", t.Addr, employerID, events.EventPayload{
		"project": projectAddr, "number": number, "budget": budget,
	}); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

// SubmitTask files proof of work and moves the task into review. A rejected
// task may be resubmitted; a completed task may not.
func (e Engine) SubmitTask(ctx context.Context, freelancerID, taskAddr, description string, pocType domain.PocType, proof string) (domain.Task, error) {
	var t domain.Task
	fl, err := e.activeFreelancer(ctx, freelancerID)
	if err != nil {
		return t, err
	}
	t, err = e.Repo.GetTask(ctx, taskAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrTaskNotFound
	}
	if err != nil {
		return t, err
	}
	d, err := e.Repo.GetProjectDetails(ctx, t.ProjectAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrProjectNotCreated
	}
	if err != nil {
		return t, err
	}
	if d.AssignedFreelancer == nil || *d.AssignedFreelancer != freelancerID {
		return t, ErrUnauthorizedFreelancer
	}
	switch t.Status {
	case domain.TaskOpen, domain.TaskRejected:
	case domain.TaskCompleted:
		return t, ErrTaskAlreadyAccepted
	default:
		return t, ErrInvalidTaskStatus
	}
	if domain.ProofTypeFor(fl.Profession) != pocType {
		return t, ErrInvalidPocType
	}
	if len(description) > maxSubmissionDescription {
		return t, ErrDescriptionTooLong
	}
	if len(proof) > maxProofLen {
		return t, ErrProofTooLong
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	// Recheck the status inside the tx so a concurrent approval cannot be
	// overwritten by a stale in-review write.
	t, err = e.Repo.GetTaskTx(ctx, tx, taskAddr)
	if err != nil {
		return t, err
	}
	switch t.Status {
	case domain.TaskOpen, domain.TaskRejected:
	case domain.TaskCompleted:
		return t, ErrTaskAlreadyAccepted
	default:
		return t, ErrInvalidTaskStatus
	}

	sub := domain.TaskSubmission{
		Addr:        addr.Submission(freelancerID, taskAddr),
		TaskAddr:    taskAddr,
		Freelancer:  freelancerID,
		PocType:     pocType,
		Description: description,
		Proof:       proof,
		SubmittedAt: e.nowString(),
	}
	if err := e.Repo.UpsertSubmission(ctx, tx, sub); err != nil {
		return t, err
	}
	t.Status = domain.TaskInReview
	t.AssignedFreelancer = &freelancerID
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.writer().Append(ctx, tx, "task.submitted", "task", taskAddr, freelancerID, events.EventPayload{
		"poc_type": string(pocType),
	}); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

// ApproveTask releases the task's budget from escrow to the destination
// and, on the final task, completes the project and closes the escrow.
// Everything happens in one transaction: if the completion reconciliation
// fails the release is rolled back and the task stays in review.
func (e Engine) ApproveTask(ctx context.Context, employerID, taskAddr, destination string) (domain.Task, error) {
	var t domain.Task
	if _, err := e.activeEmployer(ctx, employerID); err != nil {
		return t, err
	}
	t, err := e.Repo.GetTask(ctx, taskAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrTaskNotFound
	}
	if err != nil {
		return t, err
	}
	if t.Status == domain.TaskCompleted {
		return t, ErrTaskAlreadyAccepted
	}
	if t.Status != domain.TaskInReview {
		return t, ErrInvalidTaskStatus
	}
	if t.AssignedFreelancer == nil || *t.AssignedFreelancer != destination {
		return t, ErrInvalidFreelancer
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	// Guard against a concurrent approval: recheck inside the tx.
	t, err = e.Repo.GetTaskTx(ctx, tx, taskAddr)
	if err != nil {
		return t, err
	}
	if t.Status != domain.TaskInReview {
		return t, ErrTaskAlreadyAccepted
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, t.ProjectAddr)
	if err != nil {
		return t, err
	}
	if p.Employer != employerID {
		return t, ErrUnauthorizedEmployer
	}
	esc, err := e.Repo.GetEscrowTx(ctx, tx, t.ProjectAddr)
	if err != nil {
		return t, err
	}

	// Release first, then the checked decrement. The vault must mirror the
	// escrow record exactly after the move.
	if err := e.Tokens.Transfer(ctx, tx, esc.Addr, destination, t.Budget); err != nil {
		if errors.Is(err, token.ErrInsufficientFunds) {
			return t, ErrInvalidEscrowAmount
		}
		return t, err
	}
	esc.Amount, err = subChecked(esc.Amount, t.Budget)
	if err != nil || esc.Amount < 0 {
		return t, ErrInvalidEscrowAmount
	}
	vault, err := e.Tokens.BalanceTx(ctx, tx, esc.Addr)
	if err != nil {
		return t, err
	}
	if vault != esc.Amount+esc.Deposit {
		return t, ErrInvalidEscrowAmount
	}

	completedAt := e.nowString()
	t.Status = domain.TaskCompleted
	t.CompletedAt = &completedAt
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	p.TasksCompleted++

	projectDone := p.TasksCompleted == p.TasksCount
	if projectDone {
		if p.RemainingBudget != 0 || esc.Amount != 0 {
			return t, ErrBudgetStillRemaining
		}
		p.Status = domain.ProjectCompleted
		if err := e.closeEscrow(ctx, tx, &esc); err != nil {
			return t, err
		}
		if err := e.recordCompletion(ctx, tx, destination); err != nil {
			return t, err
		}
	}
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return t, err
	}
	if err := e.Repo.UpdateEscrow(ctx, tx, esc); err != nil {
		return t, err
	}

	if err := e.writer().Append(ctx, tx, "task.approved", "task", taskAddr, employerID, events.EventPayload{
		"destination": destination, "budget": t.Budget,
	}); err != nil {
		return t, err
	}
	if projectDone {
		if err := e.writer().Append(ctx, tx, "project.completed", "project", t.ProjectAddr, employerID, events.EventPayload{
			"tasks_completed": p.TasksCompleted,
		}); err != nil {
			return t, err
		}
	}
	return t, tx.Commit()
}

// RejectTask sends an in-review task back to the freelancer. The reserved
// budget stays against the task; resubmission keeps the reservation.
func (e Engine) RejectTask(ctx context.Context, employerID, taskAddr string) (domain.Task, error) {
	var t domain.Task
	if _, err := e.activeEmployer(ctx, employerID); err != nil {
		return t, err
	}
	t, err := e.Repo.GetTask(ctx, taskAddr)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrTaskNotFound
	}
	if err != nil {
		return t, err
	}
	p, err := e.Repo.GetProject(ctx, t.ProjectAddr)
	if err != nil {
		return t, err
	}
	if p.Employer != employerID {
		return t, ErrUnauthorizedEmployer
	}
	if t.Status != domain.TaskInReview {
		return t, ErrInvalidTaskStatus
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	// Completed is terminal: recheck inside the tx so a rejection racing
	// an approval cannot reopen a paid task.
	t, err = e.Repo.GetTaskTx(ctx, tx, taskAddr)
	if err != nil {
		return t, err
	}
	if t.Status != domain.TaskInReview {
		return t, ErrInvalidTaskStatus
	}

	t.Status = domain.TaskRejected
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.writer().Append(ctx, tx, "task.rejected", "task", taskAddr, employerID, nil); err != nil {
		return t, err
	}
	return t, tx.Commit()
}
