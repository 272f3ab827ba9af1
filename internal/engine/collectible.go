package engine

import (
	"context"
	"errors"

	"gigledger/internal/addr"
	"gigledger/internal/domain"
	"gigledger/internal/events"
	"gigledger/internal/repo"
)

// CreateCollection opens a proof-of-skill badge collection. Admin only.
func (e Engine) CreateCollection(ctx context.Context, adminID, name, uri string) (domain.Collection, error) {
	var c domain.Collection
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return c, err
	}
	if len(name) > maxTitleLen {
		return c, ErrTitleTooLong
	}
	collectionAddr := addr.Collection(name)
	if _, err := e.Repo.GetCollection(ctx, collectionAddr); err == nil {
		return c, ErrCollectionExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return c, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()

	c = domain.Collection{
		Addr:      collectionAddr,
		Name:      name,
		URI:       uri,
		Authority: adminID,
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertCollection(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.writer().Append(ctx, tx, "collection.created", "collection", collectionAddr, adminID, events.EventPayload{
		"name": name,
	}); err != nil {
		return c, err
	}
	return c, tx.Commit()
}

// MintBadge freezes a freelancer's current track record into an immutable
// badge under a collection. One badge per freelancer per collection.
func (e Engine) MintBadge(ctx context.Context, freelancerID, collectionAddr, name, uri string) (domain.BadgeToken, error) {
	var b domain.BadgeToken
	fl, err := e.activeFreelancer(ctx, freelancerID)
	if err != nil {
		return b, err
	}
	if _, err := e.Repo.GetCollection(ctx, collectionAddr); errors.Is(err, repo.ErrNotFound) {
		return b, ErrCollectionNotFound
	} else if err != nil {
		return b, err
	}
	o, err := e.Repo.GetOverview(ctx, freelancerID)
	if errors.Is(err, repo.ErrNotFound) {
		return b, ErrOverviewNotFound
	}
	if err != nil {
		return b, err
	}
	badgeAddr := addr.Badge(collectionAddr, freelancerID)
	if _, err := e.Repo.GetBadge(ctx, badgeAddr); err == nil {
		return b, ErrBadgeAlreadyMinted
	} else if !errors.Is(err, repo.ErrNotFound) {
		return b, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return b, err
	}
	defer tx.Rollback()

	b = domain.BadgeToken{
		Addr:              badgeAddr,
		CollectionAddr:    collectionAddr,
		Freelancer:        freelancerID,
		Name:              name,
		URI:               uri,
		Profession:        fl.Profession,
		ProjectsCompleted: o.ProjectsCompleted,
		AverageRating:     o.AverageRating,
		MintedAt:          e.nowString(),
	}
	if err := e.Repo.InsertBadge(ctx, tx, b); err != nil {
		return b, err
	}
	if err := e.writer().Append(ctx, tx, "badge.minted", "badge", badgeAddr, freelancerID, events.EventPayload{
		"collection": collectionAddr, "projects_completed": o.ProjectsCompleted, "average_rating": o.AverageRating,
	}); err != nil {
		return b, err
	}
	return b, tx.Commit()
}
