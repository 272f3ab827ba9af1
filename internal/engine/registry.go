package engine

import (
	"context"
	"errors"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
	"gigledger/internal/events"
	"gigledger/internal/repo"
)

const (
	maxUserNameLen    = 50
	maxCompanyNameLen = 50
)

// InitializeAdmin establishes the marketplace admin. It succeeds at most
// once for the lifetime of the ledger.
func (e Engine) InitializeAdmin(ctx context.Context, identity string) (domain.Admin, error) {
	var admin domain.Admin
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return admin, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return admin, err
	}
	if count > 0 {
		return admin, ErrAdminAlreadyInitialized
	}

	admin = domain.Admin{Identity: identity, CreatedAt: e.nowString()}
	if err := e.Repo.InsertAdmin(ctx, tx, addr.Admin(identity), admin); err != nil {
		return admin, err
	}
	if err := e.writer().Append(ctx, tx, "admin.initialized", "admin", addr.Admin(identity), identity, nil); err != nil {
		return admin, err
	}
	return admin, tx.Commit()
}

func (e Engine) requireAdmin(ctx context.Context, identity string) error {
	_, err := e.Repo.GetAdmin(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUnauthorizedAdmin
	}
	return err
}

// WhitelistEmployer admits an employer identity. Re-whitelisting a removed
// identity reactivates it with the new profile fields.
func (e Engine) WhitelistEmployer(ctx context.Context, adminID, identity, userName, companyName string) (domain.Employer, error) {
	var emp domain.Employer
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return emp, err
	}
	if len(userName) > maxUserNameLen {
		return emp, ErrUserNameTooLong
	}
	if len(companyName) > maxCompanyNameLen {
		return emp, ErrCompanyNameTooLong
	}

	existing, err := e.Repo.GetEmployer(ctx, identity)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return emp, err
	}
	if err == nil && existing.Active {
		return emp, ErrAlreadyWhitelisted
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return emp, err
	}
	defer tx.Rollback()

	emp = domain.Employer{
		Identity:    identity,
		UserName:    userName,
		CompanyName: companyName,
		Active:      true,
		CreatedAt:   e.nowString(),
	}
	if err := e.Repo.UpsertEmployer(ctx, tx, addr.Employer(identity), emp); err != nil {
		return emp, err
	}
	if _, err := e.Tokens.EnsureAccount(ctx, tx, identity); err != nil {
		return emp, err
	}
	if err := e.writer().Append(ctx, tx, "employer.whitelisted", "employer", addr.Employer(identity), adminID, events.EventPayload{
		"identity": identity, "user_name": userName,
	}); err != nil {
		return emp, err
	}
	return emp, tx.Commit()
}

// RemoveEmployer deactivates a whitelisted employer. Existing projects are
// untouched, the identity just cannot start new ones.
func (e Engine) RemoveEmployer(ctx context.Context, adminID, identity string) error {
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	existing, err := e.Repo.GetEmployer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotWhitelisted
	}
	if err != nil {
		return err
	}
	if !existing.Active {
		return ErrNotWhitelisted
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.SetEmployerActive(ctx, tx, identity, false); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, "employer.removed", "employer", addr.Employer(identity), adminID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// WhitelistFreelancer admits a freelancer identity with a fixed profession.
func (e Engine) WhitelistFreelancer(ctx context.Context, adminID, identity, userName string, profession domain.Profession) (domain.Freelancer, error) {
	var fl domain.Freelancer
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return fl, err
	}
	if len(userName) > maxUserNameLen {
		return fl, ErrUserNameTooLong
	}
	if !profession.Valid() {
		return fl, ErrInvalidProfession
	}

	existing, err := e.Repo.GetFreelancer(ctx, identity)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fl, err
	}
	if err == nil && existing.Active {
		return fl, ErrAlreadyWhitelisted
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fl, err
	}
	defer tx.Rollback()

	fl = domain.Freelancer{
		Identity:   identity,
		UserName:   userName,
		Profession: profession,
		Active:     true,
		CreatedAt:  e.nowString(),
	}
	if err := e.Repo.UpsertFreelancer(ctx, tx, addr.Freelancer(identity), fl); err != nil {
		return fl, err
	}
	if _, err := e.Tokens.EnsureAccount(ctx, tx, identity); err != nil {
		return fl, err
	}
	if err := e.writer().Append(ctx, tx, "freelancer.whitelisted", "freelancer", addr.Freelancer(identity), adminID, events.EventPayload{
		"identity": identity, "profession": string(profession),
	}); err != nil {
		return fl, err
	}
	return fl, tx.Commit()
}

// RemoveFreelancer deactivates a whitelisted freelancer.
func (e Engine) RemoveFreelancer(ctx context.Context, adminID, identity string) error {
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	existing, err := e.Repo.GetFreelancer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotWhitelisted
	}
	if err != nil {
		return err
	}
	if !existing.Active {
		return ErrNotWhitelisted
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.SetFreelancerActive(ctx, tx, identity, false); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, "freelancer.removed", "freelancer", addr.Freelancer(identity), adminID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ContainsEmployer reports whether an identity is an active employer.
func (e Engine) ContainsEmployer(ctx context.Context, identity string) (bool, error) {
	emp, err := e.Repo.GetEmployer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return emp.Active, nil
}

// ContainsFreelancer reports whether an identity is an active freelancer.
func (e Engine) ContainsFreelancer(ctx context.Context, identity string) (bool, error) {
	fl, err := e.Repo.GetFreelancer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fl.Active, nil
}

func (e Engine) activeEmployer(ctx context.Context, identity string) (domain.Employer, error) {
	emp, err := e.Repo.GetEmployer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return emp, ErrNotWhitelisted
	}
	if err != nil {
		return emp, err
	}
	if !emp.Active {
		return emp, ErrNotWhitelisted
	}
	return emp, nil
}

func (e Engine) activeFreelancer(ctx context.Context, identity string) (domain.Freelancer, error) {
	fl, err := e.Repo.GetFreelancer(ctx, identity)
	if errors.Is(err, repo.ErrNotFound) {
		return fl, ErrNotWhitelisted
	}
	if err != nil {
		return fl, err
	}
	if !fl.Active {
		return fl, ErrNotWhitelisted
	}
	return fl, nil
}
