package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-bluetrace/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresSightingsRepo 目击历史的 PostgreSQL 实现（只追加）
type PostgresSightingsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresSightingsRepo(db *sql.DB, logger *zap.Logger) *PostgresSightingsRepo {
	return &PostgresSightingsRepo{db: db, logger: logger}
}

func (r *PostgresSightingsRepo) AppendSighting(ctx context.Context, s *models.Sighting) error {
	q := `
		INSERT INTO sightings (mac, seen_at, rssi, service_uuids)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, q, s.MAC, s.SeenAt, s.RSSI, pq.Array(s.ServiceUUIDs))
	if err != nil {
		return fmt.Errorf("failed to append sighting: %w", err)
	}
	return nil
}

func (r *PostgresSightingsRepo) QuerySightings(ctx context.Context, mac string, from, to time.Time) ([]*models.Sighting, error) {
	q := `
		SELECT sighting_id, mac, seen_at, rssi, service_uuids
		FROM sightings
		WHERE mac = $1 AND seen_at >= $2 AND seen_at <= $3
		ORDER BY seen_at ASC`

	rows, err := r.db.QueryContext(ctx, q, mac, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []*models.Sighting
	for rows.Next() {
		var s models.Sighting
		var uuids pq.StringArray
		if err := rows.Scan(&s.ID, &s.MAC, &s.SeenAt, &s.RSSI, &uuids); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		s.ServiceUUIDs = []string(uuids)
		sightings = append(sightings, &s)
	}
	return sightings, rows.Err()
}
