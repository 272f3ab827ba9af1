package engine

// Error carries a stable machine-readable code alongside the message. The
// API layer maps codes to HTTP statuses; CLI and SDK callers switch on them.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrAdminAlreadyInitialized = &Error{"admin_already_initialized", "marketplace admin is already initialized"}
	ErrUnauthorizedAdmin       = &Error{"unauthorized_admin", "caller is not the marketplace admin"}
	ErrUnauthorizedEmployer    = &Error{"unauthorized_employer", "caller is not the project employer"}
	ErrUnauthorizedFreelancer  = &Error{"unauthorized_freelancer", "caller is not the assigned freelancer"}

	ErrAlreadyWhitelisted = &Error{"already_whitelisted", "identity is already whitelisted"}
	ErrNotWhitelisted     = &Error{"not_whitelisted", "identity is not whitelisted"}

	ErrUserNameTooLong    = &Error{"user_name_too_long", "user name exceeds 50 characters"}
	ErrCompanyNameTooLong = &Error{"company_name_too_long", "company name exceeds 50 characters"}
	ErrTitleTooLong       = &Error{"title_too_long", "title exceeds 100 characters"}
	ErrDescriptionTooLong = &Error{"description_too_long", "description is too long"}
	ErrProofTooLong       = &Error{"proof_too_long", "proof of work exceeds 100 characters"}
	ErrFeedbackTooLong    = &Error{"feedback_too_long", "feedback exceeds 500 characters"}
	ErrInvalidProfession  = &Error{"invalid_profession", "unknown profession"}
	ErrInvalidStars       = &Error{"invalid_stars", "stars must be between 1 and 5"}

	ErrProjectAlreadyInitialized = &Error{"project_already_initialized", "project with this number already exists for this employer"}
	ErrTaskAlreadyAdded          = &Error{"task_already_added", "task with this number already exists in this project"}

	ErrInvalidBudget      = &Error{"invalid_budget", "budget must be positive and within the remaining project budget"}
	ErrInvalidDeadline    = &Error{"invalid_deadline", "deadline must be in the future"}
	ErrInsufficientFunds  = &Error{"insufficient_funds", "employer balance cannot cover the escrow"}
	ErrAmountOverflow     = &Error{"amount_overflow", "amount arithmetic overflowed"}
	ErrProjectNotFound    = &Error{"project_not_found", "project does not exist"}
	ErrProjectNotCreated  = &Error{"project_not_created", "project details have not been added"}
	ErrDetailsAlreadyAdded = &Error{"details_already_added", "project details were already added"}

	ErrProjectAlreadyAssigned = &Error{"project_already_assigned", "project already has an assigned freelancer"}
	ErrProfessionMismatch     = &Error{"profession_mismatch", "freelancer profession does not match the project requirement"}
	ErrInvalidProjectStatus   = &Error{"invalid_project_status", "project is not in a status that allows this operation"}

	ErrTaskNotFound        = &Error{"task_not_found", "task does not exist"}
	ErrTaskAlreadyAccepted = &Error{"task_already_accepted", "task was already completed"}
	ErrInvalidTaskStatus   = &Error{"invalid_task_status", "task is not in a status that allows this operation"}
	ErrInvalidPocType      = &Error{"invalid_poc_type", "proof type does not match the freelancer profession"}
	ErrInvalidFreelancer   = &Error{"invalid_freelancer", "freelancer did not submit this task"}

	ErrInvalidEscrowAmount  = &Error{"invalid_escrow_amount", "escrow balance does not match the remaining budget"}
	ErrBudgetStillRemaining = &Error{"budget_still_remaining", "all tasks are completed but budget remains in escrow"}
	ErrProjectNotCompleted  = &Error{"project_not_completed", "project is not completed"}
	ErrTasksNotCompleted    = &Error{"tasks_not_completed", "not all project tasks are completed"}

	ErrAlreadyRated               = &Error{"already_rated", "freelancer was already rated for this project"}
	ErrOverviewAlreadyInitialized = &Error{"overview_already_initialized", "overview already exists for this freelancer"}
	ErrOverviewNotFound           = &Error{"overview_not_found", "overview does not exist for this freelancer"}

	ErrCollectionExists   = &Error{"collection_exists", "collection with this name already exists"}
	ErrCollectionNotFound = &Error{"collection_not_found", "collection does not exist"}
	ErrBadgeAlreadyMinted = &Error{"badge_already_minted", "freelancer already holds a badge in this collection"}
)
