// Package aggregator 实现目击事件的聚合入库
//
// 单事件处理流程：
//  1. 地址规范化；随机化地址只进聚合计数桶，不建档案、不记目击
//  2. 按地址加锁，查/建设备档案
//  3. 合并能力集（并集），有新证据时重分类（只升不降）
//  4. 无论档案是否变化，总是追加目击记录（模式分析需要完整时间覆盖）
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"wisefido-bluetrace/internal/address"
	"wisefido-bluetrace/internal/classifier"
	"wisefido-bluetrace/internal/models"
	"wisefido-bluetrace/internal/repository"
	"wisefido-bluetrace/internal/resolver"

	"go.uber.org/zap"
)

// Aggregator 目击聚合器（每地址单写者的变更路径）
type Aggregator struct {
	devices    repository.DevicesRepository
	sightings  repository.SightingsRepository
	resolver   *resolver.Resolver
	randomized *RandomizedCounter
	logger     *zap.Logger
	locks      *addressLocks
}

// NewAggregator 创建聚合器
func NewAggregator(
	devices repository.DevicesRepository,
	sightings repository.SightingsRepository,
	res *resolver.Resolver,
	randomized *RandomizedCounter,
	logger *zap.Logger,
) *Aggregator {
	return &Aggregator{
		devices:    devices,
		sightings:  sightings,
		resolver:   res,
		randomized: randomized,
		logger:     logger,
		locks:      newAddressLocks(),
	}
}

// Ingest 处理一条广播事件
// 单事件失败相互隔离：格式错误或存储失败只丢弃当前事件，调用方记录
// 错误并继续消费流
func (a *Aggregator) Ingest(ctx context.Context, event *models.AdvertisementEvent) error {
	addr, err := address.Normalize(event.MAC)
	if err != nil {
		return err
	}

	// 随机化地址只做聚合计数，按设计排除在设备列表之外
	if addr.IsRandomized {
		if err := a.randomized.Record(ctx, event.SeenAt); err != nil {
			a.logger.Warn("Failed to record randomized address",
				zap.Error(err),
			)
		}
		return nil
	}

	release := a.locks.Acquire(addr.Canonical)
	defer release()

	rec, err := a.devices.GetDevice(ctx, addr.Canonical)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := a.createDevice(ctx, addr, event); err != nil {
			return err
		}
	case err != nil:
		// 存储不可用：丢弃当前事件，消费流本身不崩溃
		return fmt.Errorf("storage unavailable: %w", err)
	default:
		if err := a.updateDevice(ctx, rec, event); err != nil {
			return err
		}
	}

	// 总是追加目击记录，保证模式分析有完整的时间戳覆盖
	s := &models.Sighting{
		MAC:          addr.Canonical,
		SeenAt:       event.SeenAt,
		RSSI:         intPtr(event.RSSI),
		ServiceUUIDs: normalizeUUIDs(event.ServiceUUIDs),
	}
	if err := a.sightings.AppendSighting(ctx, s); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}

	return nil
}

// createDevice 首次目击建档：解析厂商、分类、落库
func (a *Aggregator) createDevice(ctx context.Context, addr address.Address, event *models.AdvertisementEvent) error {
	// 厂商解析失败不致命，分类器在缺失该信号的情况下继续
	vendorInfo, _ := a.resolver.Resolve(ctx, addr)
	var vendorName string
	var vendorPtr *string
	if vendorInfo != nil {
		vendorName = vendorInfo.Name
		vendorPtr = &vendorInfo.Name
	}

	uuids := normalizeUUIDs(event.ServiceUUIDs)
	result := classifier.Classify(uuids, event.Name, vendorName)

	rec := &models.DeviceRecord{
		MAC:              addr.Canonical,
		Vendor:           vendorPtr,
		DeviceType:       string(result.Category),
		ClassifySource:   string(result.Source),
		ClassifyEvidence: result.Evidence,
		FirstSeen:        event.SeenAt,
		LastSeen:         event.SeenAt,
		TotalSightings:   1,
		LastRSSI:         intPtr(event.RSSI),
		ServiceUUIDs:     uuids,
	}
	if event.Name != "" {
		rec.AdvName = &event.Name
	}

	if err := a.devices.CreateDevice(ctx, rec); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}

	a.logger.Info("New device discovered",
		zap.String("mac", addr.Canonical),
		zap.String("device_type", rec.DeviceType),
		zap.Stringp("vendor", vendorPtr),
	)
	return nil
}

// updateDevice 已知设备的读-改-写更新
func (a *Aggregator) updateDevice(ctx context.Context, rec *models.DeviceRecord, event *models.AdvertisementEvent) error {
	// 乱序事件容忍：last_seen 只增，first_seen 只减
	isNewest := !event.SeenAt.Before(rec.LastSeen)
	if event.SeenAt.After(rec.LastSeen) {
		rec.LastSeen = event.SeenAt
	}
	if event.SeenAt.Before(rec.FirstSeen) {
		rec.FirstSeen = event.SeenAt
	}
	rec.TotalSightings++
	if isNewest {
		rec.LastRSSI = intPtr(event.RSSI)
	}

	merged, capsChanged := unionUUIDs(rec.ServiceUUIDs, normalizeUUIDs(event.ServiceUUIDs))
	rec.ServiceUUIDs = merged

	nameChanged := event.Name != "" && (rec.AdvName == nil || *rec.AdvName != event.Name)
	if nameChanged {
		rec.AdvName = &event.Name
	}

	// 只有出现新证据才重分类，重复的相同广播不做多余工作
	if capsChanged || nameChanged {
		var vendorName string
		if rec.Vendor != nil {
			vendorName = *rec.Vendor
		} else if addr, err := address.Normalize(rec.MAC); err == nil {
			// 厂商先前未解析成功，借新证据之机再试一次
			if info, _ := a.resolver.Resolve(ctx, addr); info != nil {
				vendorName = info.Name
				rec.Vendor = &info.Name
			}
		}

		var advName string
		if rec.AdvName != nil {
			advName = *rec.AdvName
		}

		prev := classifier.ClassificationResult{
			Category: classifier.Category(rec.DeviceType),
			Source:   classifier.Source(rec.ClassifySource),
			Evidence: rec.ClassifyEvidence,
		}
		// 基于累计全部证据重算，再按只升不降合并
		next := classifier.Classify(rec.ServiceUUIDs, advName, vendorName)
		final := classifier.Upgrade(prev, next)
		rec.DeviceType = string(final.Category)
		rec.ClassifySource = string(final.Source)
		rec.ClassifyEvidence = final.Evidence
	}

	if err := a.devices.UpdateDevice(ctx, rec); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}
	return nil
}

// unionUUIDs 求并集（归一化后），返回是否有新增
func unionUUIDs(existing, incoming []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing))
	for _, u := range existing {
		seen[u] = true
	}
	changed := false
	merged := append([]string{}, existing...)
	for _, u := range incoming {
		if !seen[u] {
			seen[u] = true
			merged = append(merged, u)
			changed = true
		}
	}
	if changed {
		sort.Strings(merged)
	}
	return merged, changed
}

func normalizeUUIDs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		out = append(out, classifier.NormalizeUUID(u))
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

// RandomizedCounter 随机化地址的按天聚合计数桶（Redis）
type RandomizedCounter struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
}

// NewRandomizedCounter 创建计数器
func NewRandomizedCounter(kv KVStore, prefix string, ttl time.Duration) *RandomizedCounter {
	return &RandomizedCounter{kv: kv, prefix: prefix, ttl: ttl}
}

// Record 记一次随机化地址目击
func (c *RandomizedCounter) Record(ctx context.Context, seenAt time.Time) error {
	key := c.prefix + seenAt.Format("2006-01-02")
	_, err := c.kv.Incr(ctx, key, c.ttl)
	return err
}

// Count 统计最近 days 天（含当天）的随机化目击总数
func (c *RandomizedCounter) Count(ctx context.Context, ref time.Time, days int) (int64, error) {
	var total int64
	for i := 0; i < days; i++ {
		key := c.prefix + ref.AddDate(0, 0, -i).Format("2006-01-02")
		val, err := c.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrCacheMiss) {
				continue
			}
			return 0, err
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}
