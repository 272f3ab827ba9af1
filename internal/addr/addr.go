// Package addr derives deterministic record addresses. Every entity is
// addressed by a UUIDv5 over a per-kind namespace plus its identifying
// fields, so any party can recompute an address without a lookup table.
package addr

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Namespace tags. Changing one changes every derived address of that kind.
const (
	tagAdmin      = "admin"
	tagEmployer   = "employer"
	tagFreelancer = "freelancer"
	tagProject    = "project"
	tagDetails    = "project_details"
	tagTask       = "task"
	tagSubmission = "submission"
	tagEscrow     = "escrow"
	tagRating     = "rating"
	tagOverview   = "freelancer_overview"
	tagTokenAcct  = "token_account"
	tagCollection = "collection"
	tagBadge      = "badge"
)

// root namespace for all gigledger addresses.
var root = uuid.NewSHA1(uuid.NameSpaceOID, []byte("gigledger"))

func derive(tag string, fields ...string) string {
	name := tag + "|" + strings.Join(fields, "|")
	return uuid.NewSHA1(root, []byte(name)).String()
}

// Admin returns the admin authority address for an identity.
func Admin(identity string) string {
	return derive(tagAdmin, identity)
}

// Employer returns the whitelist entry address for an employer identity.
func Employer(identity string) string {
	return derive(tagEmployer, identity)
}

// Freelancer returns the whitelist entry address for a freelancer identity.
func Freelancer(identity string) string {
	return derive(tagFreelancer, identity)
}

// Project derives the project address from its owning employer and number.
func Project(employer string, number uint64) string {
	return derive(tagProject, employer, strconv.FormatUint(number, 10))
}

// Details derives the details address from the project address.
func Details(projectAddr string) string {
	return derive(tagDetails, projectAddr)
}

// Task derives the task address from the project address and task number.
func Task(projectAddr string, number uint64) string {
	return derive(tagTask, projectAddr, strconv.FormatUint(number, 10))
}

// Submission derives the submission address from the submitting freelancer
// and the task address.
func Submission(freelancer, taskAddr string) string {
	return derive(tagSubmission, freelancer, taskAddr)
}

// Escrow derives the escrow address from the project address.
func Escrow(projectAddr string) string {
	return derive(tagEscrow, projectAddr)
}

// Rating derives the rating address from the project address and the rated
// freelancer.
func Rating(projectAddr, freelancer string) string {
	return derive(tagRating, projectAddr, freelancer)
}

// Overview derives the overview address from the freelancer identity.
func Overview(freelancer string) string {
	return derive(tagOverview, freelancer)
}

// TokenAccount derives a token account address from its owner and mint,
// the way an associated token account is derived from wallet and mint.
func TokenAccount(owner, mint string) string {
	return derive(tagTokenAcct, owner, mint)
}

// Collection derives a badge collection address from its name.
func Collection(name string) string {
	return derive(tagCollection, name)
}

// Badge derives a badge token address from the collection and freelancer.
func Badge(collectionAddr, freelancer string) string {
	return derive(tagBadge, collectionAddr, freelancer)
}
