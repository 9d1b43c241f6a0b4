package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisefido-bluetrace/internal/aggregator"
	"wisefido-bluetrace/internal/config"
	"wisefido-bluetrace/internal/models"
	"wisefido-bluetrace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// fakeDevicesRepo 内存版设备Repository
type fakeDevicesRepo struct {
	devices    map[string]*models.DeviceRecord
	stats      *repository.DeviceStats
	statsCalls int
	lastFlag   map[string]any
}

func newFakeDevicesRepo() *fakeDevicesRepo {
	return &fakeDevicesRepo{
		devices:  make(map[string]*models.DeviceRecord),
		lastFlag: make(map[string]any),
	}
}

func (f *fakeDevicesRepo) GetDevice(ctx context.Context, mac string) (*models.DeviceRecord, error) {
	rec, ok := f.devices[mac]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeDevicesRepo) ListDevices(ctx context.Context, filters repository.DeviceFilters, page, size int) ([]*models.DeviceRecord, int, error) {
	var items []*models.DeviceRecord
	for _, d := range f.devices {
		if filters.DeviceType != "" && d.DeviceType != filters.DeviceType {
			continue
		}
		if !filters.IncludeIgnored && d.Ignored {
			continue
		}
		items = append(items, d)
	}
	return items, len(items), nil
}

func (f *fakeDevicesRepo) SearchByRange(ctx context.Context, start, end time.Time) ([]*repository.RangeActivity, error) {
	return []*repository.RangeActivity{}, nil
}

func (f *fakeDevicesRepo) GetStats(ctx context.Context, activeSince time.Time) (*repository.DeviceStats, error) {
	f.statsCalls++
	return f.stats, nil
}

func (f *fakeDevicesRepo) CreateDevice(ctx context.Context, device *models.DeviceRecord) error {
	f.devices[device.MAC] = device
	return nil
}

func (f *fakeDevicesRepo) UpdateDevice(ctx context.Context, device *models.DeviceRecord) error {
	f.devices[device.MAC] = device
	return nil
}

func (f *fakeDevicesRepo) SetWatched(ctx context.Context, mac string, watched bool) error {
	if _, ok := f.devices[mac]; !ok {
		return repository.ErrNotFound
	}
	f.lastFlag["watched:"+mac] = watched
	return nil
}

func (f *fakeDevicesRepo) SetIgnored(ctx context.Context, mac string, ignored bool) error {
	if _, ok := f.devices[mac]; !ok {
		return repository.ErrNotFound
	}
	f.lastFlag["ignored:"+mac] = ignored
	return nil
}

func (f *fakeDevicesRepo) SetFriendlyName(ctx context.Context, mac string, name string) error {
	if _, ok := f.devices[mac]; !ok {
		return repository.ErrNotFound
	}
	f.lastFlag["name:"+mac] = name
	return nil
}

func (f *fakeDevicesRepo) SetGroup(ctx context.Context, mac string, groupID *string) error {
	if _, ok := f.devices[mac]; !ok {
		return repository.ErrNotFound
	}
	f.lastFlag["group:"+mac] = groupID
	return nil
}

// fakeSightingsRepo 内存版目击Repository
type fakeSightingsRepo struct {
	sightings []*models.Sighting
}

func (f *fakeSightingsRepo) AppendSighting(ctx context.Context, s *models.Sighting) error {
	f.sightings = append(f.sightings, s)
	return nil
}

func (f *fakeSightingsRepo) QuerySightings(ctx context.Context, mac string, from, to time.Time) ([]*models.Sighting, error) {
	return f.sightings, nil
}

// fakeGroupsRepo 内存版分组Repository
type fakeGroupsRepo struct {
	groups map[string]*models.DeviceGroup
}

func (f *fakeGroupsRepo) ListGroups(ctx context.Context) ([]*models.DeviceGroup, error) {
	var out []*models.DeviceGroup
	for _, g := range f.groups {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeGroupsRepo) CreateGroup(ctx context.Context, g *models.DeviceGroup) error {
	f.groups[g.GroupID] = g
	return nil
}

func (f *fakeGroupsRepo) UpdateGroup(ctx context.Context, g *models.DeviceGroup) error {
	if _, ok := f.groups[g.GroupID]; !ok {
		return repository.ErrNotFound
	}
	f.groups[g.GroupID] = g
	return nil
}

func (f *fakeGroupsRepo) DeleteGroup(ctx context.Context, groupID string) error {
	if _, ok := f.groups[groupID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.groups, groupID)
	return nil
}

// fakeOUIRepo 内存版OUI表
type fakeOUIRepo struct {
	vendors map[string]string
}

func (f *fakeOUIRepo) LookupVendor(ctx context.Context, oui string) (string, error) {
	if v, ok := f.vendors[oui]; ok {
		return v, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeOUIRepo) ListVendors(ctx context.Context) ([][2]string, error) {
	var out [][2]string
	for oui, v := range f.vendors {
		out = append(out, [2]string{oui, v})
	}
	return out, nil
}

func (f *fakeOUIRepo) UpsertVendor(ctx context.Context, oui, vendorName string) error {
	f.vendors[oui] = vendorName
	return nil
}

// fakeKVStore 内存版KV
type fakeKVStore struct {
	data map[string]string
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", aggregator.ErrCacheMiss
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKVStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 1, nil
}

func seedDevice(repo *fakeDevicesRepo, mac string) *models.DeviceRecord {
	vendor := "Samsung Electronics"
	rssi := -62
	rec := &models.DeviceRecord{
		MAC:            mac,
		Vendor:         &vendor,
		DeviceType:     "wearable",
		ClassifySource: "service_uuid",
		FirstSeen:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		LastSeen:       time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC),
		TotalSightings: 42,
		LastRSSI:       &rssi,
		ServiceUUIDs:   []string{"180d"},
	}
	repo.devices[mac] = rec
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[map[string]any] {
	t.Helper()
	var result Result[map[string]any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func newTestRouter(devices *fakeDevicesRepo, sightings *fakeSightingsRepo) *Router {
	logger := zap.NewNop()
	router := NewRouter(logger)
	router.RegisterDeviceRoutes(NewDeviceHandler(devices, sightings, config.DefaultPatternConfig(), logger))
	return router
}

func TestDeviceHandler_ListDevices(t *testing.T) {
	devices := newFakeDevicesRepo()
	seedDevice(devices, "A4:C1:38:11:22:33")
	router := newTestRouter(devices, &fakeSightingsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/devices?page=1&size=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, float64(1), result.Result["total"])
}

func TestDeviceHandler_ListDevices_ExcludesIgnoredByDefault(t *testing.T) {
	devices := newFakeDevicesRepo()
	seedDevice(devices, "A4:C1:38:11:22:33")
	hidden := seedDevice(devices, "A4:C1:38:44:55:66")
	hidden.Ignored = true
	router := newTestRouter(devices, &fakeSightingsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, float64(1), decodeResult(t, rec).Result["total"])

	req = httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/devices?include_ignored=true", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, float64(2), decodeResult(t, rec).Result["total"])
}

func TestDeviceHandler_GetDevice_WithPattern(t *testing.T) {
	devices := newFakeDevicesRepo()
	seedDevice(devices, "A4:C1:38:11:22:33")
	sightings := &fakeSightingsRepo{}
	rssi := -60
	for d := 0; d < 5; d++ {
		sightings.sightings = append(sightings.sightings, &models.Sighting{
			MAC:    "A4:C1:38:11:22:33",
			SeenAt: time.Now().AddDate(0, 0, -d),
			RSSI:   &rssi,
		})
	}
	router := newTestRouter(devices, sightings)

	// 地址大小写不敏感
	req := httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/devices/a4:c1:38:11:22:33", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	result := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, result.Code)
	assert.NotNil(t, result.Result["device"])
	assert.NotNil(t, result.Result["pattern"])
	assert.Equal(t, float64(-60), result.Result["avg_rssi"])

	pattern, ok := result.Result["pattern"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), pattern["active_days"])
}

func TestDeviceHandler_GetDevice_InvalidMAC(t *testing.T) {
	router := newTestRouter(newFakeDevicesRepo(), &fakeSightingsRepo{})

	req := httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/devices/not-a-mac", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
	assert.Equal(t, "invalid MAC address", result.Message)
}

func TestDeviceHandler_UserActions(t *testing.T) {
	devices := newFakeDevicesRepo()
	seedDevice(devices, "A4:C1:38:11:22:33")
	router := newTestRouter(devices, &fakeSightingsRepo{})

	post := func(path, body string) Result[map[string]any] {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return decodeResult(t, rec)
	}

	result := post("/bluetrace/api/v1/devices/A4:C1:38:11:22:33/watch", `{"watched":true}`)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, true, devices.lastFlag["watched:A4:C1:38:11:22:33"])

	result = post("/bluetrace/api/v1/devices/A4:C1:38:11:22:33/ignore", `{"ignored":true}`)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, true, devices.lastFlag["ignored:A4:C1:38:11:22:33"])

	result = post("/bluetrace/api/v1/devices/A4:C1:38:11:22:33/name", `{"friendly_name":"Dad's watch"}`)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, "Dad's watch", devices.lastFlag["name:A4:C1:38:11:22:33"])

	result = post("/bluetrace/api/v1/devices/A4:C1:38:99:99:99/watch", `{"watched":true}`)
	assert.Equal(t, ResultError, result.Code)
	assert.Equal(t, "device not found", result.Message)
}

func TestGroupHandler_CRUD(t *testing.T) {
	logger := zap.NewNop()
	groups := &fakeGroupsRepo{groups: make(map[string]*models.DeviceGroup)}
	router := NewRouter(logger)
	router.RegisterGroupRoutes(NewGroupHandler(groups, logger))

	// create
	req := httptest.NewRequest(http.MethodPost, "/bluetrace/api/v1/groups", strings.NewReader(`{"name":"Family","color":"#3366ff","icon":"home"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	result := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, result.Code)
	groupID, _ := result.Result["group_id"].(string)
	require.NotEmpty(t, groupID)

	// list
	req = httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/groups", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, float64(1), decodeResult(t, rec).Result["total"])

	// update
	req = httptest.NewRequest(http.MethodPut, "/bluetrace/api/v1/groups/"+groupID, strings.NewReader(`{"name":"Family & Friends"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, ResultSuccess, decodeResult(t, rec).Code)
	assert.Equal(t, "Family & Friends", groups.groups[groupID].Name)

	// delete
	req = httptest.NewRequest(http.MethodDelete, "/bluetrace/api/v1/groups/"+groupID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, ResultSuccess, decodeResult(t, rec).Code)
	assert.Empty(t, groups.groups)
}

func TestGroupHandler_CreateRequiresName(t *testing.T) {
	logger := zap.NewNop()
	router := NewRouter(logger)
	router.RegisterGroupRoutes(NewGroupHandler(&fakeGroupsRepo{groups: make(map[string]*models.DeviceGroup)}, logger))

	req := httptest.NewRequest(http.MethodPost, "/bluetrace/api/v1/groups", strings.NewReader(`{"color":"#fff"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, ResultError, decodeResult(t, rec).Code)
}

func TestStatsHandler_CachesResult(t *testing.T) {
	logger := zap.NewNop()
	devices := newFakeDevicesRepo()
	devices.stats = &repository.DeviceStats{TotalDevices: 12, ActiveToday: 3}
	kv := &fakeKVStore{data: make(map[string]string)}
	counter := aggregator.NewRandomizedCounter(kv, "bluetrace:randomized:", time.Hour)

	router := NewRouter(logger)
	router.RegisterStatsRoutes(NewStatsHandler(devices, counter, kv, nil, logger))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/stats", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		result := decodeResult(t, rec)
		require.Equal(t, ResultSuccess, result.Code)
		devicesStats, ok := result.Result["devices"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(12), devicesStats["total_devices"])
	}

	// 第二次命中缓存
	assert.Equal(t, 1, devices.statsCalls)
}

func TestOUIHandler_ImportAndTemplate(t *testing.T) {
	logger := zap.NewNop()
	ouiRepo := &fakeOUIRepo{vendors: make(map[string]string)}
	router := NewRouter(logger)
	router.RegisterOUIRoutes(NewOUIHandler(ouiRepo, logger))

	// 模板下载
	req := httptest.NewRequest(http.MethodGet, "/bluetrace/api/v1/oui/template", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	// 构造导入文件：两行有效、一行前缀非法
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "OUI Prefix"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "Vendor Name"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "A4:C1:38"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "Telink Semiconductor"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "a483e7"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "Apple, Inc."))
	require.NoError(t, f.SetCellValue(sheet, "A4", "ZZ:ZZ"))
	require.NoError(t, f.SetCellValue(sheet, "B4", "Bogus"))

	var excelBuf bytes.Buffer
	_, err := f.WriteTo(&excelBuf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "oui.xlsx")
	require.NoError(t, err)
	_, err = part.Write(excelBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req = httptest.NewRequest(http.MethodPost, "/bluetrace/api/v1/oui/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	result := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, result.Code)
	assert.Equal(t, float64(2), result.Result["success_count"])
	assert.Equal(t, float64(1), result.Result["failed_count"])
	assert.Equal(t, "Telink Semiconductor", ouiRepo.vendors["A4:C1:38"])
	assert.Equal(t, "Apple, Inc.", ouiRepo.vendors["A4:83:E7"])
}

func TestNormalizeOUI(t *testing.T) {
	for raw, want := range map[string]string{
		"A4:C1:38": "A4:C1:38",
		"a4-c1-38": "A4:C1:38",
		"a4c138":   "A4:C1:38",
	} {
		got, err := normalizeOUI(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{"", "A4:C1", "A4:C1:38:00", "ZZ:ZZ:ZZ"} {
		_, err := normalizeOUI(raw)
		assert.Error(t, err, raw)
	}
}
