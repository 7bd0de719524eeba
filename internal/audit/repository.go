package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository reads audit_logs through pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectColumns = `SELECT id, occurred_at, actor_id, action, entity, entity_id, meta`

func (r *repository) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, int, error) {
	where, args := whereClause(filters)
	args = append(args, limit, offset)
	query := selectColumns + `, COUNT(*) OVER () FROM audit_logs WHERE ` + where +
		fmt.Sprintf(` ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []TimelineRow
		total int
	)
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta, &total); err != nil {
			return nil, 0, err
		}
		if err := decodeMeta(meta, &row); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 && offset > 0 {
		// COUNT(*) OVER () yields nothing past the last page.
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *repository) All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	where, args := whereClause(filters)
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, selectColumns+` FROM audit_logs WHERE `+where+
		fmt.Sprintf(` ORDER BY occurred_at DESC, id DESC LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var out TimelineRow
		var meta []byte
		if err := row.Scan(&out.ID, &out.At, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		return out, decodeMeta(meta, &out)
	})
}

func whereClause(filters TimelineFilters) (string, []any) {
	where := []string{"company_id=$1"}
	args := []any{filters.CompanyID}
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		// To is a calendar day and includes all of it.
		add("occurred_at < $%d", filters.To.AddDate(0, 0, 1))
	}
	if filters.Entity != "" {
		add("entity = $%d", filters.Entity)
	}
	if filters.EntityID != "" {
		add("entity_id = $%d", filters.EntityID)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	return strings.Join(where, " AND "), args
}

func decodeMeta(raw []byte, row *TimelineRow) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &row.Meta)
}
