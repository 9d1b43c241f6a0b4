package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-bluetrace/internal/models"
)

// PostgresGroupsRepo 设备分组的 PostgreSQL 实现
type PostgresGroupsRepo struct {
	db *sql.DB
}

func NewPostgresGroupsRepo(db *sql.DB) *PostgresGroupsRepo {
	return &PostgresGroupsRepo{db: db}
}

func (r *PostgresGroupsRepo) ListGroups(ctx context.Context) ([]*models.DeviceGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id::text, name, color, icon FROM device_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.DeviceGroup
	for rows.Next() {
		var g models.DeviceGroup
		if err := rows.Scan(&g.GroupID, &g.Name, &g.Color, &g.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

func (r *PostgresGroupsRepo) CreateGroup(ctx context.Context, g *models.DeviceGroup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_groups (group_id, name, color, icon) VALUES ($1, $2, $3, $4)`,
		g.GroupID, g.Name, g.Color, g.Icon,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (r *PostgresGroupsRepo) UpdateGroup(ctx context.Context, g *models.DeviceGroup) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_groups SET name = $2, color = $3, icon = $4 WHERE group_id = $1`,
		g.GroupID, g.Name, g.Color, g.Icon,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresGroupsRepo) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM device_groups WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
