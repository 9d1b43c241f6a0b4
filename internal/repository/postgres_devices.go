package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"wisefido-bluetrace/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDevicesRepo 设备档案的 PostgreSQL 实现
type PostgresDevicesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresDevicesRepo(db *sql.DB, logger *zap.Logger) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db, logger: logger}
}

const deviceColumns = `
	mac, vendor, device_type, classify_source, classify_evidence,
	adv_name, friendly_name,
	CASE WHEN group_id IS NULL THEN NULL ELSE group_id::text END as group_id,
	watched, ignored, first_seen, last_seen, total_sightings, last_rssi, service_uuids`

func scanDevice(row interface{ Scan(...any) error }) (*models.DeviceRecord, error) {
	var d models.DeviceRecord
	var uuids pq.StringArray
	err := row.Scan(
		&d.MAC, &d.Vendor, &d.DeviceType, &d.ClassifySource, &d.ClassifyEvidence,
		&d.AdvName, &d.FriendlyName, &d.GroupID,
		&d.Watched, &d.Ignored, &d.FirstSeen, &d.LastSeen,
		&d.TotalSightings, &d.LastRSSI, &uuids,
	)
	if err != nil {
		return nil, err
	}
	d.ServiceUUIDs = []string(uuids)
	return &d, nil
}

func (r *PostgresDevicesRepo) GetDevice(ctx context.Context, mac string) (*models.DeviceRecord, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices WHERE mac = $1`
	d, err := scanDevice(r.db.QueryRowContext(ctx, q, mac))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

func (r *PostgresDevicesRepo) ListDevices(ctx context.Context, filters DeviceFilters, page, size int) ([]*models.DeviceRecord, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argN := 1

	if !filters.IncludeIgnored {
		where = append(where, "ignored = FALSE")
	}
	if filters.DeviceType != "" {
		where = append(where, fmt.Sprintf("device_type = $%d", argN))
		args = append(args, filters.DeviceType)
		argN++
	}
	if filters.Watched != nil {
		where = append(where, fmt.Sprintf("watched = $%d", argN))
		args = append(args, *filters.Watched)
		argN++
	}
	if filters.GroupID != "" {
		where = append(where, fmt.Sprintf("group_id = $%d", argN))
		args = append(args, filters.GroupID)
		argN++
	}
	if filters.SearchKeyword != "" {
		where = append(where, fmt.Sprintf(
			"(mac ILIKE $%d OR vendor ILIKE $%d OR friendly_name ILIKE $%d OR adv_name ILIKE $%d)",
			argN, argN, argN, argN))
		args = append(args, "%"+filters.SearchKeyword+"%")
		argN++
	}
	if filters.SeenSince != nil {
		where = append(where, fmt.Sprintf("last_seen >= $%d", argN))
		args = append(args, *filters.SeenSince)
		argN++
	}
	if filters.SeenBefore != nil {
		where = append(where, fmt.Sprintf("last_seen <= $%d", argN))
		args = append(args, *filters.SeenBefore)
		argN++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM devices WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	q := `SELECT ` + deviceColumns + ` FROM devices WHERE ` + whereClause +
		fmt.Sprintf(" ORDER BY last_seen DESC LIMIT $%d OFFSET $%d", argN, argN+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.DeviceRecord
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return devices, total, nil
}

func (r *PostgresDevicesRepo) SearchByRange(ctx context.Context, start, end time.Time) ([]*RangeActivity, error) {
	q := `
		SELECT ` + prefixColumns("d.") + `,
			MIN(s.seen_at) as range_first,
			MAX(s.seen_at) as range_last,
			COUNT(*) as range_count
		FROM sightings s
		JOIN devices d ON d.mac = s.mac
		WHERE s.seen_at >= $1 AND s.seen_at <= $2 AND d.ignored = FALSE
		GROUP BY d.mac
		ORDER BY range_last DESC`

	rows, err := r.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to search sightings range: %w", err)
	}
	defer rows.Close()

	var results []*RangeActivity
	for rows.Next() {
		var d models.DeviceRecord
		var uuids pq.StringArray
		var ra RangeActivity
		err := rows.Scan(
			&d.MAC, &d.Vendor, &d.DeviceType, &d.ClassifySource, &d.ClassifyEvidence,
			&d.AdvName, &d.FriendlyName, &d.GroupID,
			&d.Watched, &d.Ignored, &d.FirstSeen, &d.LastSeen,
			&d.TotalSightings, &d.LastRSSI, &uuids,
			&ra.RangeFirst, &ra.RangeLast, &ra.RangeCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan range activity: %w", err)
		}
		d.ServiceUUIDs = []string(uuids)
		ra.Device = &d
		results = append(results, &ra)
	}
	return results, rows.Err()
}

func (r *PostgresDevicesRepo) GetStats(ctx context.Context, activeSince time.Time) (*DeviceStats, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE last_seen >= $1),
			COUNT(*) FILTER (WHERE watched),
			COUNT(*) FILTER (WHERE ignored),
			COALESCE(SUM(total_sightings), 0)
		FROM devices`

	var s DeviceStats
	err := r.db.QueryRowContext(ctx, q, activeSince).Scan(
		&s.TotalDevices, &s.ActiveToday, &s.WatchedCount, &s.IgnoredCount, &s.TotalSightings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get device stats: %w", err)
	}
	return &s, nil
}

func (r *PostgresDevicesRepo) CreateDevice(ctx context.Context, d *models.DeviceRecord) error {
	q := `
		INSERT INTO devices (
			mac, vendor, device_type, classify_source, classify_evidence,
			adv_name, friendly_name, watched, ignored,
			first_seen, last_seen, total_sightings, last_rssi, service_uuids
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.db.ExecContext(ctx, q,
		d.MAC, d.Vendor, d.DeviceType, d.ClassifySource, d.ClassifyEvidence,
		d.AdvName, d.FriendlyName, d.Watched, d.Ignored,
		d.FirstSeen, d.LastSeen, d.TotalSightings, d.LastRSSI, pq.Array(d.ServiceUUIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *PostgresDevicesRepo) UpdateDevice(ctx context.Context, d *models.DeviceRecord) error {
	q := `
		UPDATE devices SET
			vendor = $2, device_type = $3, classify_source = $4, classify_evidence = $5,
			adv_name = $6, first_seen = $7, last_seen = $8,
			total_sightings = $9, last_rssi = $10, service_uuids = $11
		WHERE mac = $1`

	res, err := r.db.ExecContext(ctx, q,
		d.MAC, d.Vendor, d.DeviceType, d.ClassifySource, d.ClassifyEvidence,
		d.AdvName, d.FirstSeen, d.LastSeen,
		d.TotalSightings, d.LastRSSI, pq.Array(d.ServiceUUIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDevicesRepo) SetWatched(ctx context.Context, mac string, watched bool) error {
	return r.setFlag(ctx, mac, "watched = $2", watched)
}

func (r *PostgresDevicesRepo) SetIgnored(ctx context.Context, mac string, ignored bool) error {
	return r.setFlag(ctx, mac, "ignored = $2", ignored)
}

func (r *PostgresDevicesRepo) SetFriendlyName(ctx context.Context, mac string, name string) error {
	// 空字符串清除自定义名称
	if name == "" {
		return r.setFlag(ctx, mac, "friendly_name = NULL", nil)
	}
	return r.setFlag(ctx, mac, "friendly_name = $2", name)
}

func (r *PostgresDevicesRepo) SetGroup(ctx context.Context, mac string, groupID *string) error {
	return r.setFlag(ctx, mac, "group_id = $2", groupID)
}

func (r *PostgresDevicesRepo) setFlag(ctx context.Context, mac string, setClause string, val any) error {
	q := `UPDATE devices SET ` + setClause + ` WHERE mac = $1`
	var res sql.Result
	var err error
	if strings.Contains(setClause, "$2") {
		res, err = r.db.ExecContext(ctx, q, mac, val)
	} else {
		res, err = r.db.ExecContext(ctx, q, mac)
	}
	if err != nil {
		return fmt.Errorf("failed to update device flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// prefixColumns 为列清单加表前缀（联表查询用）
func prefixColumns(prefix string) string {
	cols := []string{
		"mac", "vendor", "device_type", "classify_source", "classify_evidence",
		"adv_name", "friendly_name",
		"CASE WHEN group_id IS NULL THEN NULL ELSE group_id::text END",
		"watched", "ignored", "first_seen", "last_seen", "total_sightings", "last_rssi", "service_uuids",
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		if strings.HasPrefix(c, "CASE") {
			out[i] = strings.ReplaceAll(c, "group_id", prefix+"group_id")
			continue
		}
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}
