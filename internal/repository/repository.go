package repository

import (
	"context"
	"errors"
	"time"

	"wisefido-bluetrace/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// DeviceFilters 设备查询过滤器
type DeviceFilters struct {
	DeviceType     string     // 分类类别过滤
	Watched        *bool      // 是否只看关注设备
	IncludeIgnored bool       // 是否包含已隐藏设备
	SearchKeyword  string     // 关键词（MAC / 厂商 / 名称 ILIKE）
	SeenSince      *time.Time // last_seen 下限
	SeenBefore     *time.Time // last_seen 上限
	GroupID        string     // 分组过滤
}

// RangeActivity 时间段检索结果（该时间段内的目击聚合）
type RangeActivity struct {
	Device     *models.DeviceRecord `json:"device"`
	RangeFirst time.Time            `json:"range_first"`
	RangeLast  time.Time            `json:"range_last"`
	RangeCount int64                `json:"range_count"`
}

// DeviceStats 设备总体统计
type DeviceStats struct {
	TotalDevices   int64 `json:"total_devices"`
	ActiveToday    int64 `json:"active_today"`
	WatchedCount   int64 `json:"watched_count"`
	IgnoredCount   int64 `json:"ignored_count"`
	TotalSightings int64 `json:"total_sightings"`
}

// DevicesRepository 设备档案Repository接口
// 使用强类型领域模型，不使用map[string]any
type DevicesRepository interface {
	// 查询
	GetDevice(ctx context.Context, mac string) (*models.DeviceRecord, error)
	ListDevices(ctx context.Context, filters DeviceFilters, page, size int) ([]*models.DeviceRecord, int, error)
	SearchByRange(ctx context.Context, start, end time.Time) ([]*RangeActivity, error)
	GetStats(ctx context.Context, activeSince time.Time) (*DeviceStats, error)

	// 创建（首次目击时由聚合器创建）
	CreateDevice(ctx context.Context, device *models.DeviceRecord) error

	// 更新（聚合器的单记录读-改-写路径）
	UpdateDevice(ctx context.Context, device *models.DeviceRecord) error

	// 用户操作（隐藏不删除数据）
	SetWatched(ctx context.Context, mac string, watched bool) error
	SetIgnored(ctx context.Context, mac string, ignored bool) error
	SetFriendlyName(ctx context.Context, mac string, name string) error
	SetGroup(ctx context.Context, mac string, groupID *string) error
}

// SightingsRepository 目击历史Repository接口（只追加）
type SightingsRepository interface {
	AppendSighting(ctx context.Context, s *models.Sighting) error
	QuerySightings(ctx context.Context, mac string, from, to time.Time) ([]*models.Sighting, error)
}

// OUIRepository 本地厂商前缀表Repository接口
type OUIRepository interface {
	LookupVendor(ctx context.Context, oui string) (string, error)
	ListVendors(ctx context.Context) ([][2]string, error)
	UpsertVendor(ctx context.Context, oui, vendorName string) error
}

// GroupsRepository 设备分组Repository接口
type GroupsRepository interface {
	ListGroups(ctx context.Context) ([]*models.DeviceGroup, error)
	CreateGroup(ctx context.Context, g *models.DeviceGroup) error
	UpdateGroup(ctx context.Context, g *models.DeviceGroup) error
	DeleteGroup(ctx context.Context, groupID string) error
}
