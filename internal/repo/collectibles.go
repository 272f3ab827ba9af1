package repo

import (
	"context"
	"database/sql"

	"gigledger/internal/domain"
)

func (r Repo) GetCollection(ctx context.Context, addr string) (domain.Collection, error) {
	var c domain.Collection
	err := r.DB.QueryRowContext(ctx, `SELECT addr,name,uri,authority,created_at FROM collections WHERE addr=?`, addr).
		Scan(&c.Addr, &c.Name, &c.URI, &c.Authority, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertCollection(ctx context.Context, tx *sql.Tx, c domain.Collection) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO collections(addr,name,uri,authority,created_at) VALUES (?,?,?,?,?)`,
		c.Addr, c.Name, c.URI, c.Authority, c.CreatedAt)
	return err
}

func (r Repo) GetBadge(ctx context.Context, addr string) (domain.BadgeToken, error) {
	var b domain.BadgeToken
	err := r.DB.QueryRowContext(ctx, `SELECT addr,collection_addr,freelancer,name,uri,profession,projects_completed,average_rating,minted_at FROM badge_tokens WHERE addr=?`, addr).
		Scan(&b.Addr, &b.CollectionAddr, &b.Freelancer, &b.Name, &b.URI, &b.Profession, &b.ProjectsCompleted, &b.AverageRating, &b.MintedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) InsertBadge(ctx context.Context, tx *sql.Tx, b domain.BadgeToken) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO badge_tokens(addr,collection_addr,freelancer,name,uri,profession,projects_completed,average_rating,minted_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		b.Addr, b.CollectionAddr, b.Freelancer, b.Name, b.URI, b.Profession, b.ProjectsCompleted, b.AverageRating, b.MintedAt)
	return err
}

func (r Repo) ListBadges(ctx context.Context, freelancer string) ([]domain.BadgeToken, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT addr,collection_addr,freelancer,name,uri,profession,projects_completed,average_rating,minted_at FROM badge_tokens WHERE freelancer=? ORDER BY minted_at DESC`, freelancer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.BadgeToken
	for rows.Next() {
		var b domain.BadgeToken
		if err := rows.Scan(&b.Addr, &b.CollectionAddr, &b.Freelancer, &b.Name, &b.URI, &b.Profession, &b.ProjectsCompleted, &b.AverageRating, &b.MintedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
