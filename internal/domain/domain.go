package domain

// Profession is the closed set of freelancer trades the registry accepts.
type Profession string

const (
	ProfessionDeveloper     Profession = "developer"
	ProfessionDesigner      Profession = "designer"
	ProfessionContentWriter Profession = "content_writer"
)

// Valid reports whether p is one of the known professions.
func (p Profession) Valid() bool {
	switch p {
	case ProfessionDeveloper, ProfessionDesigner, ProfessionContentWriter:
		return true
	}
	return false
}

// PocType is the proof-of-completion evidence attached to a submission.
type PocType string

const (
	PocUnitTests    PocType = "unit_tests"
	PocDesignLink   PocType = "design_link"
	PocDocumentLink PocType = "document_link"
)

func (p PocType) Valid() bool {
	switch p {
	case PocUnitTests, PocDesignLink, PocDocumentLink:
		return true
	}
	return false
}

// ProofTypeFor returns the proof type a freelancer of the given profession
// must submit. The mapping is fixed: developers hand in unit-test evidence,
// designers a design link, content writers a document link.
func ProofTypeFor(p Profession) PocType {
	switch p {
	case ProfessionDeveloper:
		return PocUnitTests
	case ProfessionDesigner:
		return PocDesignLink
	default:
		return PocDocumentLink
	}
}

type ProjectStatus string

const (
	ProjectOpen       ProjectStatus = "open"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskInReview  TaskStatus = "in_review"
	TaskCompleted TaskStatus = "completed"
	TaskRejected  TaskStatus = "rejected"
)

// Admin is the singleton authority record per admin identity.
type Admin struct {
	Identity  string `json:"identity"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Employer is a whitelisted employer registry entry. Removal flips Active
// rather than deleting the row; re-whitelisting flips it back.
type Employer struct {
	Identity    string `json:"identity"`
	UserName    string `json:"user_name"`
	CompanyName string `json:"company_name"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Freelancer is a whitelisted freelancer registry entry.
type Freelancer struct {
	Identity   string     `json:"identity"`
	UserName   string     `json:"user_name"`
	Profession Profession `json:"profession" enum:"developer,designer,content_writer"`
	Active     bool       `json:"active"`
	CreatedAt  string     `json:"created_at" format:"date-time"`
}

// Project is a budgeted unit of work owned by one employer. Addr is the
// deterministic address derived from (employer, number).
type Project struct {
	Addr            string        `json:"addr"`
	Employer        string        `json:"employer"`
	Number          uint64        `json:"number"`
	Title           string        `json:"title"`
	Status          ProjectStatus `json:"status" enum:"open,in_progress,completed"`
	TotalBudget     int64         `json:"total_budget"`
	RemainingBudget int64         `json:"remaining_budget"`
	TasksCount      int64         `json:"tasks_count"`
	TasksCompleted  int64         `json:"tasks_completed"`
	CreatedAt       string        `json:"created_at" format:"date-time"`
}

// ProjectDetails holds the requirement metadata added after project creation.
// One record per project; AssignedFreelancer is set exactly once, never cleared.
type ProjectDetails struct {
	ProjectAddr        string     `json:"project_addr"`
	Description        string     `json:"description"`
	Requirement        Profession `json:"requirement" enum:"developer,designer,content_writer"`
	Deadline           string     `json:"deadline" format:"date-time"`
	AssignedFreelancer *string    `json:"assigned_freelancer,omitempty"`
	CreatedAt          string     `json:"created_at" format:"date-time"`
}

// Task is an independently approvable unit of work within a project.
type Task struct {
	Addr               string     `json:"addr"`
	ProjectAddr        string     `json:"project_addr"`
	Number             uint64     `json:"number"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Budget             int64      `json:"budget"`
	Status             TaskStatus `json:"status" enum:"open,in_review,completed,rejected"`
	AssignedFreelancer *string    `json:"assigned_freelancer,omitempty"`
	CreatedAt          string     `json:"created_at" format:"date-time"`
	CompletedAt        *string    `json:"completed_at,omitempty" format:"date-time"`
}

// TaskSubmission is a freelancer's claim of completion plus typed proof.
// Resubmission after rejection overwrites the previous record.
type TaskSubmission struct {
	Addr        string  `json:"addr"`
	TaskAddr    string  `json:"task_addr"`
	Freelancer  string  `json:"freelancer"`
	PocType     PocType `json:"poc_type" enum:"unit_tests,design_link,document_link"`
	Description string  `json:"description,omitempty"`
	Proof       string  `json:"proof"`
	SubmittedAt string  `json:"submitted_at" format:"date-time"`
}

// Escrow custodies a project's budget. Amount mirrors the vault token
// account balance at all times; divergence is a fatal consistency violation.
type Escrow struct {
	Addr        string `json:"addr"`
	ProjectAddr string `json:"project_addr"`
	Employer    string `json:"employer"`
	TokenMint   string `json:"token_mint"`
	VaultAddr   string `json:"vault_addr"`
	Amount      int64  `json:"amount"`
	Deposit     int64  `json:"deposit"`
	Closed      bool   `json:"closed"`
}

// Rating is a one-shot 1-5 star assessment tied to one completed project.
type Rating struct {
	Addr        string `json:"addr"`
	ProjectAddr string `json:"project_addr"`
	Employer    string `json:"employer"`
	Freelancer  string `json:"freelancer"`
	Stars       int    `json:"stars" minimum:"1" maximum:"5"`
	Feedback    string `json:"feedback,omitempty"`
	RatedAt     string `json:"rated_at" format:"date-time"`
}

// Overview aggregates a freelancer's completed-project count and rating
// distribution.
type Overview struct {
	Freelancer        string   `json:"freelancer"`
	ProjectsCompleted int64    `json:"projects_completed"`
	StarCounts        [5]int64 `json:"star_counts"`
	AverageRating     float64  `json:"average_rating"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
}

// AddStars bumps the bucket for a 1-5 rating and recomputes the average.
func (o *Overview) AddStars(stars int) {
	if stars < 1 || stars > 5 {
		return
	}
	o.StarCounts[stars-1]++
	o.AverageRating = o.Average()
}

// Average is sum(star*count)/sum(count), 0.0 with no ratings.
func (o Overview) Average() float64 {
	var sum, n int64
	for i, c := range o.StarCounts {
		sum += int64(i+1) * c
		n += c
	}
	if n == 0 {
		return 0.0
	}
	return float64(sum) / float64(n)
}

// TokenAccount is a balance held in the token-transfer collaborator's ledger.
type TokenAccount struct {
	Addr    string `json:"addr"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance int64  `json:"balance"`
	Active  bool   `json:"active"`
}

// Collection is a proof-of-skill badge collection created by the admin.
type Collection struct {
	Addr      string `json:"addr"`
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Authority string `json:"authority"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// BadgeToken is an immutable snapshot of a freelancer's track record minted
// into a collection.
type BadgeToken struct {
	Addr              string     `json:"addr"`
	CollectionAddr    string     `json:"collection_addr"`
	Freelancer        string     `json:"freelancer"`
	Name              string     `json:"name"`
	URI               string     `json:"uri"`
	Profession        Profession `json:"profession"`
	ProjectsCompleted int64      `json:"projects_completed"`
	AverageRating     float64    `json:"average_rating"`
	MintedAt          string     `json:"minted_at" format:"date-time"`
}

// Event is one entry in the append-only notification log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityAddr string `json:"entity_addr,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates API callers as a registry identity.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
