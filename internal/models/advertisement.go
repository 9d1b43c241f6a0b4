package models

import "time"

// AdvertisementEvent 一次广播观测事件（瞬态，不直接落库）
// 由扫描源经 MQTT 上报，管道内消费一次即弃
type AdvertisementEvent struct {
	MAC          string    `json:"mac"`           // 原始硬件地址（未规范化）
	Name         string    `json:"name"`          // 广播名称（可为空）
	RSSI         int       `json:"rssi"`          // 信号强度 dBm
	ServiceUUIDs []string  `json:"service_uuids"` // 广播的服务 UUID 列表
	SeenAt       time.Time `json:"seen_at"`       // 观测时间
	ScannerID    string    `json:"scanner_id"`    // 扫描器标识（来自 MQTT 主题）
	BatchID      string    `json:"batch_id"`      // 扫描批次（消费链路追踪用）
}
