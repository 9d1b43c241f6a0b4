package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresOUIRepo 本地厂商前缀表的 PostgreSQL 实现
// 表由 scripts/schema.sql 建立，数据来自 xlsx 导入（见 http 层）
type PostgresOUIRepo struct {
	db *sql.DB
}

func NewPostgresOUIRepo(db *sql.DB) *PostgresOUIRepo {
	return &PostgresOUIRepo{db: db}
}

func (r *PostgresOUIRepo) LookupVendor(ctx context.Context, oui string) (string, error) {
	var vendor string
	err := r.db.QueryRowContext(ctx,
		`SELECT vendor_name FROM oui_vendors WHERE oui = $1`,
		strings.ToUpper(oui),
	).Scan(&vendor)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup oui: %w", err)
	}
	return vendor, nil
}

func (r *PostgresOUIRepo) ListVendors(ctx context.Context) ([][2]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT oui, vendor_name FROM oui_vendors ORDER BY oui`)
	if err != nil {
		return nil, fmt.Errorf("failed to list oui vendors: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var oui, vendor string
		if err := rows.Scan(&oui, &vendor); err != nil {
			return nil, fmt.Errorf("failed to scan oui vendor: %w", err)
		}
		out = append(out, [2]string{oui, vendor})
	}
	return out, rows.Err()
}

func (r *PostgresOUIRepo) UpsertVendor(ctx context.Context, oui, vendorName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oui_vendors (oui, vendor_name)
		VALUES ($1, $2)
		ON CONFLICT (oui) DO UPDATE SET vendor_name = EXCLUDED.vendor_name`,
		strings.ToUpper(oui), vendorName,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert oui vendor: %w", err)
	}
	return nil
}
