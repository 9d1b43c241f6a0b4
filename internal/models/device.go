package models

import "time"

// DeviceRecord 设备档案（按规范化 MAC 作主键的持久身份）
// 仅为非随机地址创建；ignored 只做隐藏，不删除数据
type DeviceRecord struct {
	MAC              string     `json:"mac"`
	Vendor           *string    `json:"vendor"`            // 厂商名称（OUI 解析，可为空）
	DeviceType       string     `json:"device_type"`       // 分类类别
	ClassifySource   string     `json:"classify_source"`   // service_uuid / name / vendor / none
	ClassifyEvidence string     `json:"classify_evidence"` // 分类依据说明
	AdvName          *string    `json:"adv_name"`          // 广播名称（最近一次非空值）
	FriendlyName     *string    `json:"friendly_name"`     // 用户自定义名称
	GroupID          *string    `json:"group_id"`
	Watched          bool       `json:"watched"`
	Ignored          bool       `json:"ignored"`
	FirstSeen        time.Time  `json:"first_seen"`
	LastSeen         time.Time  `json:"last_seen"`
	TotalSightings   int64      `json:"total_sightings"`
	LastRSSI         *int       `json:"last_rssi"`
	ServiceUUIDs     []string   `json:"service_uuids"` // 历史观测到的服务 UUID 并集
}

// Sighting 一次目击记录（只追加的历史事实）
type Sighting struct {
	ID           int64     `json:"id"`
	MAC          string    `json:"mac"`
	SeenAt       time.Time `json:"seen_at"`
	RSSI         *int      `json:"rssi"`
	ServiceUUIDs []string  `json:"service_uuids"` // 本次广播的服务 UUID 快照
}

// DeviceGroup 设备分组
type DeviceGroup struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Icon    string `json:"icon"`
}
