package repo

import (
	"context"
	"database/sql"

	"gigledger/internal/domain"
)

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) EventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_addr,actor_id,payload_json FROM events WHERE id>? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r Repo) LatestEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_addr,actor_id,payload_json FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r Repo) EntityEvents(ctx context.Context, entityKind, entityAddr string, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_addr,actor_id,payload_json FROM events WHERE entity_kind=? AND entity_addr=? ORDER BY id DESC LIMIT ?`, entityKind, entityAddr, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var addr, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &addr, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.EntityAddr = addr.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}
