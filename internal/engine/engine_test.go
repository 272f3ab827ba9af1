package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gigledger/internal/config"
	"gigledger/internal/db"
	"gigledger/internal/domain"
	"gigledger/internal/migrate"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const futureDeadline = "2024-06-01T00:00:00Z"

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := New(conn, *cfg)
	e.Now = func() time.Time { return testNow }
	return e
}

// seedMarketplace initializes the admin and whitelists one employer and one
// developer freelancer, funding the employer with balance tokens.
func seedMarketplace(t *testing.T, e Engine, balance int64) (admin, employer, freelancer string) {
	t.Helper()
	ctx := context.Background()
	admin, employer, freelancer = "admin-1", "employer-1", "freelancer-1"
	if _, err := e.InitializeAdmin(ctx, admin); err != nil {
		t.Fatalf("init admin: %v", err)
	}
	if _, err := e.WhitelistEmployer(ctx, admin, employer, "Acme Ops", "Acme Inc"); err != nil {
		t.Fatalf("whitelist employer: %v", err)
	}
	if _, err := e.WhitelistFreelancer(ctx, admin, freelancer, "Dev One", domain.ProfessionDeveloper); err != nil {
		t.Fatalf("whitelist freelancer: %v", err)
	}
	if balance > 0 {
		if err := e.FundAccount(ctx, admin, employer, balance); err != nil {
			t.Fatalf("fund employer: %v", err)
		}
	}
	return admin, employer, freelancer
}

func openProject(t *testing.T, e Engine, employer, freelancer string, number uint64, budget int64) domain.Project {
	t.Helper()
	ctx := context.Background()
	p, err := e.InitializeProject(ctx, employer, number, "Build the widget", budget)
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	if _, err := e.AddProjectDetails(ctx, employer, p.Addr, "widget work", domain.ProfessionDeveloper, futureDeadline); err != nil {
		t.Fatalf("add details: %v", err)
	}
	if _, err := e.AcceptProject(ctx, freelancer, p.Addr); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return p
}

func wantCode(t *testing.T, err error, want *Error) {
	t.Helper()
	var coded *Error
	if !errors.As(err, &coded) {
		t.Fatalf("got %v, want code %s", err, want.Code)
	}
	if coded.Code != want.Code {
		t.Fatalf("got code %s, want %s", coded.Code, want.Code)
	}
}

func TestAdminInitializesOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.InitializeAdmin(ctx, "admin-1"); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, err := e.InitializeAdmin(ctx, "admin-2")
	wantCode(t, err, ErrAdminAlreadyInitialized)
}

func TestWhitelistIdempotence(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, employer, freelancer := seedMarketplace(t, e, 0)

	_, err := e.WhitelistEmployer(ctx, admin, employer, "Acme Ops", "Acme Inc")
	wantCode(t, err, ErrAlreadyWhitelisted)
	_, err = e.WhitelistFreelancer(ctx, admin, freelancer, "Dev One", domain.ProfessionDeveloper)
	wantCode(t, err, ErrAlreadyWhitelisted)

	if err := e.RemoveEmployer(ctx, admin, employer); err != nil {
		t.Fatalf("remove: %v", err)
	}
	err = e.RemoveEmployer(ctx, admin, employer)
	wantCode(t, err, ErrNotWhitelisted)
	err = e.RemoveEmployer(ctx, admin, "nobody")
	wantCode(t, err, ErrNotWhitelisted)

	// Re-whitelisting a removed identity reactivates it.
	if _, err := e.WhitelistEmployer(ctx, admin, employer, "Acme Ops", "Acme Inc"); err != nil {
		t.Fatalf("re-whitelist: %v", err)
	}
	active, err := e.ContainsEmployer(ctx, employer)
	if err != nil || !active {
		t.Fatalf("contains = %v, %v, want true", active, err)
	}
}

func TestWhitelistRequiresAdmin(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedMarketplace(t, e, 0)
	_, err := e.WhitelistEmployer(ctx, "employer-1", "other", "X", "Y")
	wantCode(t, err, ErrUnauthorizedAdmin)
}

func TestWhitelistBoundaries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, _, _ := seedMarketplace(t, e, 0)

	long := strings.Repeat("x", 51)
	_, err := e.WhitelistEmployer(ctx, admin, "e2", long, "co")
	wantCode(t, err, ErrUserNameTooLong)
	_, err = e.WhitelistEmployer(ctx, admin, "e2", "ok", long)
	wantCode(t, err, ErrCompanyNameTooLong)
	_, err = e.WhitelistFreelancer(ctx, admin, "f2", "ok", domain.Profession("plumber"))
	wantCode(t, err, ErrInvalidProfession)

	exact := strings.Repeat("x", 50)
	if _, err := e.WhitelistEmployer(ctx, admin, "e2", exact, exact); err != nil {
		t.Fatalf("50-char names should pass: %v", err)
	}
}

func TestProjectTitleBoundary(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, _ := seedMarketplace(t, e, 5000)

	if _, err := e.InitializeProject(ctx, employer, 1, strings.Repeat("t", 100), 1000); err != nil {
		t.Fatalf("100-char title should pass: %v", err)
	}
	_, err := e.InitializeProject(ctx, employer, 2, strings.Repeat("t", 101), 1000)
	wantCode(t, err, ErrTitleTooLong)
	_, err = e.InitializeProject(ctx, employer, 2, "ok", 0)
	wantCode(t, err, ErrInvalidBudget)
}

func TestProjectFundingDebitsEmployer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, _ := seedMarketplace(t, e, 1000)

	p, err := e.InitializeProject(ctx, employer, 1, "Funded", 700)
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	bal, err := e.Balance(ctx, employer)
	if err != nil || bal != 300 {
		t.Fatalf("employer balance = %d, %v, want 300", bal, err)
	}
	vault, err := e.VaultBalance(ctx, p.Addr)
	if err != nil || vault != 700 {
		t.Fatalf("vault balance = %d, %v, want 700", vault, err)
	}

	// Second project cannot over-draw the remaining 300.
	_, err = e.InitializeProject(ctx, employer, 2, "Too big", 400)
	wantCode(t, err, ErrInsufficientFunds)
}

func TestProjectNumberUniquePerEmployer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, _ := seedMarketplace(t, e, 1000)

	if _, err := e.InitializeProject(ctx, employer, 7, "First", 300); err != nil {
		t.Fatalf("init: %v", err)
	}
	_, err := e.InitializeProject(ctx, employer, 7, "Clash", 300)
	wantCode(t, err, ErrProjectAlreadyInitialized)

	// The rejected duplicate must not touch the employer's balance.
	if bal, _ := e.Balance(ctx, employer); bal != 700 {
		t.Fatalf("balance = %d, want 700", bal)
	}
	if _, err := e.InitializeProject(ctx, employer, 8, "Second", 300); err != nil {
		t.Fatalf("init with fresh number: %v", err)
	}
}

func TestProjectDetailsRules(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, _ := seedMarketplace(t, e, 1000)
	p, err := e.InitializeProject(ctx, employer, 1, "Rules", 1000)
	if err != nil {
		t.Fatalf("init project: %v", err)
	}

	_, err = e.AddProjectDetails(ctx, employer, p.Addr, "desc", domain.ProfessionDeveloper, "2020-01-01T00:00:00Z")
	wantCode(t, err, ErrInvalidDeadline)
	_, err = e.AddProjectDetails(ctx, employer, p.Addr, strings.Repeat("d", 1001), domain.ProfessionDeveloper, futureDeadline)
	wantCode(t, err, ErrDescriptionTooLong)

	if _, err := e.AddProjectDetails(ctx, employer, p.Addr, "desc", domain.ProfessionDeveloper, futureDeadline); err != nil {
		t.Fatalf("add details: %v", err)
	}
	_, err = e.AddProjectDetails(ctx, employer, p.Addr, "again", domain.ProfessionDeveloper, futureDeadline)
	wantCode(t, err, ErrDetailsAlreadyAdded)
}

func TestDetailsOnlyWhileOpen(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)

	_, err := e.AddProjectDetails(ctx, employer, p.Addr, "late", domain.ProfessionDeveloper, futureDeadline)
	wantCode(t, err, ErrProjectNotCreated)
}

func TestAcceptProject(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, employer, freelancer := seedMarketplace(t, e, 1000)
	p, err := e.InitializeProject(ctx, employer, 1, "Assignable", 1000)
	if err != nil {
		t.Fatalf("init project: %v", err)
	}

	// No details yet: not acceptable.
	_, err = e.AcceptProject(ctx, freelancer, p.Addr)
	wantCode(t, err, ErrProjectNotCreated)

	if _, err := e.AddProjectDetails(ctx, employer, p.Addr, "d", domain.ProfessionDesigner, futureDeadline); err != nil {
		t.Fatalf("details: %v", err)
	}

	// Developer cannot take a designer project.
	_, err = e.AcceptProject(ctx, freelancer, p.Addr)
	wantCode(t, err, ErrProfessionMismatch)

	if _, err := e.WhitelistFreelancer(ctx, admin, "designer-1", "Des", domain.ProfessionDesigner); err != nil {
		t.Fatalf("whitelist designer: %v", err)
	}
	got, err := e.AcceptProject(ctx, "designer-1", p.Addr)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != domain.ProjectInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}

	// First acceptance wins.
	if _, err := e.WhitelistFreelancer(ctx, admin, "designer-2", "Des2", domain.ProfessionDesigner); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	_, err = e.AcceptProject(ctx, "designer-2", p.Addr)
	wantCode(t, err, ErrProjectAlreadyAssigned)
}

func TestAcceptKeepsTaskReservations(t *testing.T) {
	// Tasks added before acceptance must survive it: the status flip may
	// not write back stale counters.
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p, err := e.InitializeProject(ctx, employer, 1, "Reserved", 1000)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := e.AddProjectDetails(ctx, employer, p.Addr, "d", domain.ProfessionDeveloper, futureDeadline); err != nil {
		t.Fatalf("details: %v", err)
	}
	if _, err := e.AddTask(ctx, employer, p.Addr, 1, "early", "", 400); err != nil {
		t.Fatalf("add task: %v", err)
	}

	if _, err := e.AcceptProject(ctx, freelancer, p.Addr); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, err := e.Project(ctx, p.Addr)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Status != domain.ProjectInProgress || got.RemainingBudget != 600 || got.TasksCount != 1 {
		t.Fatalf("project = %+v, want in_progress with 600 remaining and 1 task", got)
	}
}

func TestAddTaskBudgetBounds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)

	_, err := e.AddTask(ctx, employer, p.Addr, 1, "t", "", 0)
	wantCode(t, err, ErrInvalidBudget)
	_, err = e.AddTask(ctx, employer, p.Addr, 1, "t", "", 1001)
	wantCode(t, err, ErrInvalidBudget)

	task, err := e.AddTask(ctx, employer, p.Addr, 1, "t", "", 400)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if task.Status != domain.TaskOpen {
		t.Fatalf("status = %s, want open", task.Status)
	}
	got, err := e.Project(ctx, p.Addr)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.RemainingBudget != 600 || got.TasksCount != 1 {
		t.Fatalf("remaining=%d tasks=%d, want 600/1", got.RemainingBudget, got.TasksCount)
	}

	// Reservation is cumulative.
	_, err = e.AddTask(ctx, employer, p.Addr, 2, "t2", "", 700)
	wantCode(t, err, ErrInvalidBudget)
}

func TestTaskNumberUniquePerProject(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)

	if _, err := e.AddTask(ctx, employer, p.Addr, 3, "first", "", 400); err != nil {
		t.Fatalf("add task: %v", err)
	}
	_, err := e.AddTask(ctx, employer, p.Addr, 3, "clash", "", 400)
	wantCode(t, err, ErrTaskAlreadyAdded)

	// The rejected duplicate must not eat into the reservation.
	got, err := e.Project(ctx, p.Addr)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.RemainingBudget != 600 || got.TasksCount != 1 {
		t.Fatalf("remaining=%d tasks=%d, want 600/1", got.RemainingBudget, got.TasksCount)
	}
}

func TestSubmitTask(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, err := e.AddTask(ctx, employer, p.Addr, 1, "t", "", 1000)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	// Wrong proof type for a developer.
	_, err = e.SubmitTask(ctx, freelancer, task.Addr, "work", domain.PocDesignLink, "link")
	wantCode(t, err, ErrInvalidPocType)

	// Only the assigned freelancer may submit.
	if _, err := e.WhitelistFreelancer(ctx, admin, "dev-2", "Dev2", domain.ProfessionDeveloper); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	_, err = e.SubmitTask(ctx, "dev-2", task.Addr, "work", domain.PocUnitTests, "proof")
	wantCode(t, err, ErrUnauthorizedFreelancer)

	got, err := e.SubmitTask(ctx, freelancer, task.Addr, "work", domain.PocUnitTests, "proof")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != domain.TaskInReview {
		t.Fatalf("status = %s, want in_review", got.Status)
	}
	if got.AssignedFreelancer == nil || *got.AssignedFreelancer != freelancer {
		t.Fatalf("assigned = %v, want %s", got.AssignedFreelancer, freelancer)
	}

	// Submitting while already in review is invalid.
	_, err = e.SubmitTask(ctx, freelancer, task.Addr, "work", domain.PocUnitTests, "proof")
	wantCode(t, err, ErrInvalidTaskStatus)

	_, err = e.SubmitTask(ctx, freelancer, task.Addr, "work", domain.PocUnitTests, strings.Repeat("p", 101))
	wantCode(t, err, ErrInvalidTaskStatus) // status checked before proof length
}

func TestPartialAllocationCannotComplete(t *testing.T) {
	// Scenario: budget 1000, single task of 400. Approving the only task
	// would complete the project with 600 still remaining, so the approval
	// must fail and roll back entirely.
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, err := e.AddTask(ctx, employer, p.Addr, 1, "only", "", 400)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "work", domain.PocUnitTests, "proof"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = e.ApproveTask(ctx, employer, task.Addr, freelancer)
	wantCode(t, err, ErrBudgetStillRemaining)

	// The failed approval must not leak the transfer or the status change.
	got, err := e.Task(ctx, task.Addr)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != domain.TaskInReview {
		t.Fatalf("status = %s, want in_review after rollback", got.Status)
	}
	if bal, _ := e.Balance(ctx, freelancer); bal != 0 {
		t.Fatalf("freelancer balance = %d, want 0 after rollback", bal)
	}
	if vault, _ := e.VaultBalance(ctx, p.Addr); vault != 1000 {
		t.Fatalf("vault = %d, want 1000 after rollback", vault)
	}
}

func TestFullBudgetTaskCompletesProject(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, err := e.AddTask(ctx, employer, p.Addr, 1, "everything", "", 1000)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "work", domain.PocUnitTests, "proof"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := e.ApproveTask(ctx, employer, task.Addr, freelancer)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.CompletedAt == nil {
		t.Fatalf("task = %+v, want completed with timestamp", got)
	}

	proj, err := e.Project(ctx, p.Addr)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if proj.Status != domain.ProjectCompleted || proj.RemainingBudget != 0 || proj.TasksCompleted != 1 {
		t.Fatalf("project = %+v, want completed/0/1", proj)
	}
	esc, err := e.Escrow(ctx, p.Addr)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if !esc.Closed || esc.Amount != 0 {
		t.Fatalf("escrow = %+v, want closed with zero amount", esc)
	}
	if bal, _ := e.Balance(ctx, freelancer); bal != 1000 {
		t.Fatalf("freelancer balance = %d, want 1000", bal)
	}
	if vault, _ := e.VaultBalance(ctx, p.Addr); vault != 0 {
		t.Fatalf("vault = %d, want 0", vault)
	}

	// Completion records the freelancer's track record.
	o, err := e.Overview(ctx, freelancer)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if o.ProjectsCompleted != 1 {
		t.Fatalf("projects_completed = %d, want 1", o.ProjectsCompleted)
	}

	// A completed task cannot be approved again.
	_, err = e.ApproveTask(ctx, employer, task.Addr, freelancer)
	wantCode(t, err, ErrTaskAlreadyAccepted)
}

func TestMultiTaskBudgetConservation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)

	t1, err := e.AddTask(ctx, employer, p.Addr, 1, "first", "", 400)
	if err != nil {
		t.Fatalf("add t1: %v", err)
	}
	t2, err := e.AddTask(ctx, employer, p.Addr, 2, "second", "", 600)
	if err != nil {
		t.Fatalf("add t2: %v", err)
	}

	if _, err := e.SubmitTask(ctx, freelancer, t1.Addr, "w", domain.PocUnitTests, "p1"); err != nil {
		t.Fatalf("submit t1: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, t1.Addr, freelancer); err != nil {
		t.Fatalf("approve t1: %v", err)
	}

	// After the first approval the vault holds only the second reservation.
	if vault, _ := e.VaultBalance(ctx, p.Addr); vault != 600 {
		t.Fatalf("vault = %d, want 600", vault)
	}
	proj, _ := e.Project(ctx, p.Addr)
	if proj.Status != domain.ProjectInProgress {
		t.Fatalf("status = %s, want in_progress", proj.Status)
	}

	if _, err := e.SubmitTask(ctx, freelancer, t2.Addr, "w", domain.PocUnitTests, "p2"); err != nil {
		t.Fatalf("submit t2: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, t2.Addr, freelancer); err != nil {
		t.Fatalf("approve t2: %v", err)
	}

	proj, _ = e.Project(ctx, p.Addr)
	if proj.Status != domain.ProjectCompleted {
		t.Fatalf("status = %s, want completed", proj.Status)
	}
	if bal, _ := e.Balance(ctx, freelancer); bal != 1000 {
		t.Fatalf("freelancer balance = %d, want 1000", bal)
	}
}

func TestRejectAndResubmit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, err := e.AddTask(ctx, employer, p.Addr, 1, "looped", "", 1000)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "v1", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := e.RejectTask(ctx, employer, task.Addr)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != domain.TaskRejected {
		t.Fatalf("status = %s, want rejected", got.Status)
	}

	// Rejection keeps the budget reserved.
	proj, _ := e.Project(ctx, p.Addr)
	if proj.RemainingBudget != 0 {
		t.Fatalf("remaining = %d, want 0 (reservation kept)", proj.RemainingBudget)
	}

	// Only in-review tasks can be rejected or approved.
	_, err = e.RejectTask(ctx, employer, task.Addr)
	wantCode(t, err, ErrInvalidTaskStatus)
	_, err = e.ApproveTask(ctx, employer, task.Addr, freelancer)
	wantCode(t, err, ErrInvalidTaskStatus)

	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "v2", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, task.Addr, freelancer); err != nil {
		t.Fatalf("approve after resubmit: %v", err)
	}
	_, err = e.ApproveTask(ctx, employer, task.Addr, freelancer)
	wantCode(t, err, ErrTaskAlreadyAccepted)
}

func TestCompletedTaskIsTerminal(t *testing.T) {
	// Neither rejection nor resubmission may touch a paid task: a reopened
	// task could draw a second payout from other tasks' reservations.
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, err := e.AddTask(ctx, employer, p.Addr, 1, "paid", "", 1000)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "w", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, task.Addr, freelancer); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = e.RejectTask(ctx, employer, task.Addr)
	wantCode(t, err, ErrInvalidTaskStatus)
	_, err = e.SubmitTask(ctx, freelancer, task.Addr, "again", domain.PocUnitTests, "p")
	wantCode(t, err, ErrTaskAlreadyAccepted)

	got, err := e.Task(ctx, task.Addr)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != domain.TaskCompleted || got.CompletedAt == nil {
		t.Fatalf("task = %+v, want completed with timestamp", got)
	}
	if bal, _ := e.Balance(ctx, freelancer); bal != 1000 {
		t.Fatalf("freelancer balance = %d, want one payout", bal)
	}
}

func TestApproveGuards(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, employer, freelancer := seedMarketplace(t, e, 2000)
	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, err := e.AddTask(ctx, employer, p.Addr, 1, "guarded", "", 1000)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "w", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Destination must be the assigned freelancer.
	if _, err := e.WhitelistFreelancer(ctx, admin, "dev-2", "Dev2", domain.ProfessionDeveloper); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	_, err = e.ApproveTask(ctx, employer, task.Addr, "dev-2")
	wantCode(t, err, ErrInvalidFreelancer)

	// Only the owning employer may approve.
	if _, err := e.WhitelistEmployer(ctx, admin, "employer-2", "Other", "Other Co"); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	_, err = e.ApproveTask(ctx, "employer-2", task.Addr, freelancer)
	wantCode(t, err, ErrUnauthorizedEmployer)
}

func TestRatingAggregation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 2000)

	var projectSeq uint64
	completeProject := func() domain.Project {
		projectSeq++
		p := openProject(t, e, employer, freelancer, projectSeq, 1000)
		task, err := e.AddTask(ctx, employer, p.Addr, 1, "all", "", 1000)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "w", domain.PocUnitTests, "p"); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := e.ApproveTask(ctx, employer, task.Addr, freelancer); err != nil {
			t.Fatalf("approve: %v", err)
		}
		return p
	}

	p1 := completeProject()
	if _, err := e.RateFreelancer(ctx, employer, p1.Addr, 4, "solid"); err != nil {
		t.Fatalf("rate: %v", err)
	}
	o, err := e.Overview(ctx, freelancer)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if o.AverageRating != 4.0 {
		t.Fatalf("average = %v, want 4.0", o.AverageRating)
	}

	// Second rating requires a second completed project.
	_, err = e.RateFreelancer(ctx, employer, p1.Addr, 2, "again")
	wantCode(t, err, ErrAlreadyRated)

	p2 := completeProject()
	if _, err := e.RateFreelancer(ctx, employer, p2.Addr, 2, "rushed"); err != nil {
		t.Fatalf("rate second: %v", err)
	}
	o, err = e.Overview(ctx, freelancer)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if o.AverageRating != 3.0 {
		t.Fatalf("average = %v, want 3.0", o.AverageRating)
	}
	if o.StarCounts[3] != 1 || o.StarCounts[1] != 1 {
		t.Fatalf("star counts = %v, want one 4-star and one 2-star", o.StarCounts)
	}
	if o.ProjectsCompleted != 2 {
		t.Fatalf("projects_completed = %d, want 2", o.ProjectsCompleted)
	}
}

func TestRatingGuards(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	p := openProject(t, e, employer, freelancer, 1, 1000)

	// Project still in progress.
	_, err := e.RateFreelancer(ctx, employer, p.Addr, 5, "")
	wantCode(t, err, ErrProjectNotCompleted)

	task, err := e.AddTask(ctx, employer, p.Addr, 1, "all", "", 1000)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "w", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, task.Addr, freelancer); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = e.RateFreelancer(ctx, employer, p.Addr, 0, "")
	wantCode(t, err, ErrInvalidStars)
	_, err = e.RateFreelancer(ctx, employer, p.Addr, 6, "")
	wantCode(t, err, ErrInvalidStars)
	_, err = e.RateFreelancer(ctx, employer, p.Addr, 5, strings.Repeat("f", 501))
	wantCode(t, err, ErrFeedbackTooLong)
}

func TestInitializeOverview(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, _, freelancer := seedMarketplace(t, e, 0)

	if _, err := e.InitializeOverview(ctx, admin, freelancer); err != nil {
		t.Fatalf("init overview: %v", err)
	}
	_, err := e.InitializeOverview(ctx, admin, freelancer)
	wantCode(t, err, ErrOverviewAlreadyInitialized)
	_, err = e.InitializeOverview(ctx, admin, "nobody")
	wantCode(t, err, ErrNotWhitelisted)

	o, err := e.Overview(ctx, freelancer)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if o.AverageRating != 0.0 || o.ProjectsCompleted != 0 {
		t.Fatalf("fresh overview = %+v, want zeros", o)
	}
}

func TestEscrowDepositReturnedAtClose(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.Config.Escrow.Deposit = 25
	_, employer, freelancer := seedMarketplace(t, e, 1025)

	p := openProject(t, e, employer, freelancer, 1, 1000)
	if bal, _ := e.Balance(ctx, employer); bal != 0 {
		t.Fatalf("employer balance = %d, want 0 after budget+deposit", bal)
	}
	if vault, _ := e.VaultBalance(ctx, p.Addr); vault != 1025 {
		t.Fatalf("vault = %d, want 1025", vault)
	}

	task, err := e.AddTask(ctx, employer, p.Addr, 1, "all", "", 1000)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "w", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, task.Addr, freelancer); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if bal, _ := e.Balance(ctx, employer); bal != 25 {
		t.Fatalf("employer balance = %d, want deposit back", bal)
	}
	if vault, _ := e.VaultBalance(ctx, p.Addr); vault != 0 {
		t.Fatalf("vault = %d, want 0 after close", vault)
	}
}

func TestCollectibles(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin, employer, freelancer := seedMarketplace(t, e, 1000)

	c, err := e.CreateCollection(ctx, admin, "Top Developers", "https://badges.example/top-dev")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	_, err = e.CreateCollection(ctx, admin, "Top Developers", "https://elsewhere")
	wantCode(t, err, ErrCollectionExists)
	_, err = e.CreateCollection(ctx, employer, "Nope", "u")
	wantCode(t, err, ErrUnauthorizedAdmin)

	// Minting requires a track record.
	_, err = e.MintBadge(ctx, freelancer, c.Addr, "Dev One 2024", "https://badges.example/1")
	wantCode(t, err, ErrOverviewNotFound)

	p := openProject(t, e, employer, freelancer, 1, 1000)
	task, _ := e.AddTask(ctx, employer, p.Addr, 1, "all", "", 1000)
	if _, err := e.SubmitTask(ctx, freelancer, task.Addr, "w", domain.PocUnitTests, "p"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.ApproveTask(ctx, employer, task.Addr, freelancer); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := e.RateFreelancer(ctx, employer, p.Addr, 5, "great"); err != nil {
		t.Fatalf("rate: %v", err)
	}

	b, err := e.MintBadge(ctx, freelancer, c.Addr, "Dev One 2024", "https://badges.example/1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if b.Profession != domain.ProfessionDeveloper || b.ProjectsCompleted != 1 || b.AverageRating != 5.0 {
		t.Fatalf("badge snapshot = %+v", b)
	}
	_, err = e.MintBadge(ctx, freelancer, c.Addr, "Dup", "u")
	wantCode(t, err, ErrBadgeAlreadyMinted)
}

func TestEventLogRecordsMutations(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, employer, freelancer := seedMarketplace(t, e, 1000)
	openProject(t, e, employer, freelancer, 1, 1000)

	evts, err := e.Events(ctx, 0, 50)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var types []string
	for _, ev := range evts {
		types = append(types, ev.Type)
	}
	for _, want := range []string{"admin.initialized", "employer.whitelisted", "freelancer.whitelisted", "project.initialized", "project.details_added", "project.accepted"} {
		found := false
		for _, typ := range types {
			if typ == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("event %s missing from log %v", want, types)
		}
	}
}
