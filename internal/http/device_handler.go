package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"wisefido-bluetrace/internal/address"
	"wisefido-bluetrace/internal/config"
	"wisefido-bluetrace/internal/models"
	"wisefido-bluetrace/internal/patterns"
	"wisefido-bluetrace/internal/repository"

	"go.uber.org/zap"
)

const devicesBasePath = "/bluetrace/api/v1/devices"

// DeviceHandler 设备查询与用户操作 Handler
type DeviceHandler struct {
	devices    repository.DevicesRepository
	sightings  repository.SightingsRepository
	patternCfg config.PatternConfig
	logger     *zap.Logger
}

// NewDeviceHandler 创建设备 Handler
func NewDeviceHandler(
	devices repository.DevicesRepository,
	sightings repository.SightingsRepository,
	patternCfg config.PatternConfig,
	logger *zap.Logger,
) *DeviceHandler {
	return &DeviceHandler{
		devices:    devices,
		sightings:  sightings,
		patternCfg: patternCfg,
		logger:     logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	if r.URL.Path == devicesBasePath {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListDevices(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, devicesBasePath+"/")
	if rest == r.URL.Path {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	mac, action, _ := strings.Cut(rest, "/")
	if mac == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.GetDevice(w, r, mac)
	case action == "sightings" && r.Method == http.MethodGet:
		h.GetSightings(w, r, mac)
	case action == "watch" && r.Method == http.MethodPost:
		h.SetWatched(w, r, mac)
	case action == "ignore" && r.Method == http.MethodPost:
		h.SetIgnored(w, r, mac)
	case action == "name" && r.Method == http.MethodPost:
		h.SetFriendlyName(w, r, mac)
	case action == "group" && r.Method == http.MethodPost:
		h.SetGroup(w, r, mac)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListDevices 查询设备列表
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	filters := repository.DeviceFilters{
		DeviceType:     q.Get("device_type"),
		SearchKeyword:  q.Get("search_keyword"),
		GroupID:        q.Get("group_id"),
		IncludeIgnored: q.Get("include_ignored") == "true",
	}
	if v := q.Get("watched"); v != "" {
		watched := v == "true"
		filters.Watched = &watched
	}
	if v := q.Get("seen_since"); v != "" {
		t := parseTime(v, time.Time{})
		if !t.IsZero() {
			filters.SeenSince = &t
		}
	}
	if v := q.Get("seen_before"); v != "" {
		t := parseTime(v, time.Time{})
		if !t.IsZero() {
			filters.SeenBefore = &t
		}
	}

	items, total, err := h.devices.ListDevices(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListDevices failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// GetDevice 查询设备详情（档案 + 行为模式摘要）
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request, rawMAC string) {
	ctx := r.Context()

	mac, ok := h.canonicalMAC(w, rawMAC)
	if !ok {
		return
	}

	device, err := h.devices.GetDevice(ctx, mac)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, Fail("device not found"))
			return
		}
		h.logger.Error("GetDevice failed", zap.String("mac", mac), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	// 模式摘要按查询现算
	windowDays := parseInt(r.URL.Query().Get("window_days"), h.patternCfg.WindowDays)
	now := time.Now()
	sightings, err := h.sightings.QuerySightings(ctx, mac, now.AddDate(0, 0, -windowDays), now)
	if err != nil {
		h.logger.Error("QuerySightings failed", zap.String("mac", mac), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	summary := patterns.Analyze(sightings, windowDays, now, h.patternCfg)

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"device":   device,
		"pattern":  summary,
		"avg_rssi": averageRSSI(sightings),
	}))
}

// GetSightings 查询目击历史（RSSI 时间序列）
func (h *DeviceHandler) GetSightings(w http.ResponseWriter, r *http.Request, rawMAC string) {
	ctx := r.Context()

	mac, ok := h.canonicalMAC(w, rawMAC)
	if !ok {
		return
	}

	now := time.Now()
	from := parseTime(r.URL.Query().Get("from"), now.AddDate(0, 0, -1))
	to := parseTime(r.URL.Query().Get("to"), now)

	sightings, err := h.sightings.QuerySightings(ctx, mac, from, to)
	if err != nil {
		h.logger.Error("QuerySightings failed", zap.String("mac", mac), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": sightings,
		"total": len(sightings),
		"from":  from,
		"to":    to,
	}))
}

// SetWatched 设置关注标记
func (h *DeviceHandler) SetWatched(w http.ResponseWriter, r *http.Request, rawMAC string) {
	var body struct {
		Watched bool `json:"watched"`
	}
	h.setFlag(w, r, rawMAC, &body, func(mac string) error {
		return h.devices.SetWatched(r.Context(), mac, body.Watched)
	})
}

// SetIgnored 设置隐藏标记（不删除数据）
func (h *DeviceHandler) SetIgnored(w http.ResponseWriter, r *http.Request, rawMAC string) {
	var body struct {
		Ignored bool `json:"ignored"`
	}
	h.setFlag(w, r, rawMAC, &body, func(mac string) error {
		return h.devices.SetIgnored(r.Context(), mac, body.Ignored)
	})
}

// SetFriendlyName 设置用户自定义名称
func (h *DeviceHandler) SetFriendlyName(w http.ResponseWriter, r *http.Request, rawMAC string) {
	var body struct {
		FriendlyName string `json:"friendly_name"`
	}
	h.setFlag(w, r, rawMAC, &body, func(mac string) error {
		return h.devices.SetFriendlyName(r.Context(), mac, body.FriendlyName)
	})
}

// SetGroup 设置分组（group_id 为空表示移出分组）
func (h *DeviceHandler) SetGroup(w http.ResponseWriter, r *http.Request, rawMAC string) {
	var body struct {
		GroupID string `json:"group_id"`
	}
	h.setFlag(w, r, rawMAC, &body, func(mac string) error {
		var groupID *string
		if body.GroupID != "" {
			groupID = &body.GroupID
		}
		return h.devices.SetGroup(r.Context(), mac, groupID)
	})
}

// setFlag 用户操作的公共路径：解析请求体、规范化地址、执行更新
func (h *DeviceHandler) setFlag(w http.ResponseWriter, r *http.Request, rawMAC string, body any, update func(mac string) error) {
	if err := readBodyJSON(r, 1<<20, body); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	mac, ok := h.canonicalMAC(w, rawMAC)
	if !ok {
		return
	}

	if err := update(mac); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, Fail("device not found"))
			return
		}
		h.logger.Error("Device update failed", zap.String("mac", mac), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"mac": mac}))
}

// canonicalMAC 规范化路径中的地址参数
func (h *DeviceHandler) canonicalMAC(w http.ResponseWriter, rawMAC string) (string, bool) {
	addr, err := address.Normalize(rawMAC)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid MAC address"))
		return "", false
	}
	return addr.Canonical, true
}

// averageRSSI 计算目击列表的平均信号强度
func averageRSSI(sightings []*models.Sighting) *float64 {
	sum, n := 0, 0
	for _, s := range sightings {
		if s.RSSI != nil {
			sum += *s.RSSI
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}
