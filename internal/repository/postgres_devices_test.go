package repository

import (
	"context"
	"testing"
	"time"

	"wisefido-bluetrace/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func deviceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"mac", "vendor", "device_type", "classify_source", "classify_evidence",
		"adv_name", "friendly_name", "group_id",
		"watched", "ignored", "first_seen", "last_seen", "total_sightings", "last_rssi", "service_uuids",
	})
}

func TestPostgresDevicesRepo_GetDevice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresDevicesRepo(db, zap.NewNop())

	now := time.Now()
	mock.ExpectQuery(`SELECT\s+mac`).
		WithArgs("AA:BB:CC:11:22:33").
		WillReturnRows(deviceRows().AddRow(
			"AA:BB:CC:11:22:33", "Apple, Inc.", "phone", "vendor", "vendor:Apple, Inc.",
			nil, nil, nil,
			false, false, now, now, 3, -60, "{180d}",
		))

	d, err := repo.GetDevice(context.Background(), "AA:BB:CC:11:22:33")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:11:22:33", d.MAC)
	assert.Equal(t, "phone", d.DeviceType)
	require.NotNil(t, d.Vendor)
	assert.Equal(t, "Apple, Inc.", *d.Vendor)
	assert.Equal(t, []string{"180d"}, d.ServiceUUIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDevicesRepo_GetDevice_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresDevicesRepo(db, zap.NewNop())

	mock.ExpectQuery(`SELECT\s+mac`).
		WithArgs("00:00:00:00:00:00").
		WillReturnRows(deviceRows())

	_, err = repo.GetDevice(context.Background(), "00:00:00:00:00:00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDevicesRepo_ListDevices_Filters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresDevicesRepo(db, zap.NewNop())
	now := time.Now()

	// 过滤条件：排除 ignored + 类别 + 关键词
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM devices WHERE 1=1 AND ignored = FALSE`).
		WithArgs("audio", "%buds%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`ORDER BY last_seen DESC LIMIT`).
		WithArgs("audio", "%buds%", 50, 0).
		WillReturnRows(deviceRows().AddRow(
			"11:22:33:44:55:66", "Samsung Electronics", "audio", "name", "name:buds",
			"Galaxy Buds", nil, nil,
			false, false, now, now, 10, -55, "{}",
		))

	devices, total, err := repo.ListDevices(context.Background(),
		DeviceFilters{DeviceType: "audio", SearchKeyword: "buds"}, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, devices, 1)
	assert.Equal(t, "audio", devices[0].DeviceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDevicesRepo_UpdateDevice_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresDevicesRepo(db, zap.NewNop())

	mock.ExpectExec(`UPDATE devices SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	err = repo.UpdateDevice(context.Background(), &models.DeviceRecord{
		MAC:        "AA:BB:CC:11:22:33",
		DeviceType: "unknown",
		FirstSeen:  now,
		LastSeen:   now,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
