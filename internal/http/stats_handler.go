package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"wisefido-bluetrace/internal/aggregator"
	"wisefido-bluetrace/internal/consumer"
	"wisefido-bluetrace/internal/repository"

	"go.uber.org/zap"
)

const statsCacheKey = "bluetrace:stats:cache"
const statsCacheTTL = 60 * time.Second

// statsPayload 总览统计响应（短期缓存，避免每次刷新都打数据库）
type statsPayload struct {
	Devices          *repository.DeviceStats `json:"devices"`
	RandomizedToday  int64                   `json:"randomized_today"`
	RandomizedWeekly int64                   `json:"randomized_weekly"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// StatsHandler 总览统计与运行指标 Handler
type StatsHandler struct {
	devices    repository.DevicesRepository
	randomized *aggregator.RandomizedCounter
	kv         aggregator.KVStore
	metrics    *consumer.Metrics // 可为 nil（消费者未启动时）
	logger     *zap.Logger
}

// NewStatsHandler 创建统计 Handler
func NewStatsHandler(
	devices repository.DevicesRepository,
	randomized *aggregator.RandomizedCounter,
	kv aggregator.KVStore,
	metrics *consumer.Metrics,
	logger *zap.Logger,
) *StatsHandler {
	return &StatsHandler{
		devices:    devices,
		randomized: randomized,
		kv:         kv,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetStats 查询总览统计
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 先查缓存
	if cached, err := h.kv.Get(ctx, statsCacheKey); err == nil {
		var payload statsPayload
		if err := json.Unmarshal([]byte(cached), &payload); err == nil {
			writeJSON(w, http.StatusOK, Ok(payload))
			return
		}
	}

	now := time.Now()
	stats, err := h.devices.GetStats(ctx, now.Truncate(24*time.Hour))
	if err != nil {
		h.logger.Error("GetStats failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	today, err := h.randomized.Count(ctx, now, 1)
	if err != nil {
		h.logger.Warn("Randomized count failed", zap.Error(err))
	}
	weekly, err := h.randomized.Count(ctx, now, 7)
	if err != nil {
		h.logger.Warn("Randomized count failed", zap.Error(err))
	}

	payload := statsPayload{
		Devices:          stats,
		RandomizedToday:  today,
		RandomizedWeekly: weekly,
		GeneratedAt:      now,
	}

	if data, err := json.Marshal(payload); err == nil {
		if err := h.kv.Set(ctx, statsCacheKey, string(data), statsCacheTTL); err != nil {
			h.logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, Ok(payload))
}

// SearchByRange 按时间段检索活跃设备
func (h *StatsHandler) SearchByRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := time.Now()
	start := parseTime(r.URL.Query().Get("start"), now.Add(-time.Hour))
	end := parseTime(r.URL.Query().Get("end"), now)
	if !start.Before(end) {
		writeJSON(w, http.StatusOK, Fail("start must be before end"))
		return
	}

	items, err := h.devices.SearchByRange(ctx, start, end)
	if err != nil {
		h.logger.Error("SearchByRange failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": len(items),
		"start": start,
		"end":   end,
	}))
}

// GetMetrics 查询消费管道运行指标
func (h *StatsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeJSON(w, http.StatusOK, Fail("consumer not running"))
		return
	}

	snapshot := h.metrics.GetSnapshot()
	var avgProcessingMs float64
	if snapshot.MessagesSucceeded > 0 {
		avgProcessingMs = float64(snapshot.TotalProcessingTime.Milliseconds()) / float64(snapshot.MessagesSucceeded)
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"messages_processed": snapshot.MessagesProcessed,
		"messages_succeeded": snapshot.MessagesSucceeded,
		"messages_failed":    snapshot.MessagesFailed,
		"errors_parse":       snapshot.ErrorsParse,
		"errors_address":     snapshot.ErrorsAddress,
		"errors_storage":     snapshot.ErrorsStorage,
		"avg_processing_ms":  avgProcessingMs,
		"uptime_seconds":     int64(time.Since(snapshot.StartTime).Seconds()),
	}))
}
