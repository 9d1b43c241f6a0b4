package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ServiceUUIDBeatsName(t *testing.T) {
	// 心率服务 + 手机味的名称 → 按服务档判 wearable，绝不按名称档
	result := Classify([]string{"180d"}, "Galaxy Watch", "")
	assert.Equal(t, CategoryWearable, result.Category)
	assert.Equal(t, SourceServiceUUID, result.Source)
	assert.Equal(t, "uuid:180d", result.Evidence)

	// 名称指向 phone 也不影响服务档结果
	result = Classify([]string{"180d"}, "iPhone of Bob", "")
	assert.Equal(t, CategoryWearable, result.Category)
	assert.Equal(t, SourceServiceUUID, result.Source)
}

func TestClassify_FullUUIDNormalized(t *testing.T) {
	result := Classify([]string{"0000180d-0000-1000-8000-00805f9b34fb"}, "", "")
	assert.Equal(t, CategoryWearable, result.Category)
	assert.Equal(t, "uuid:180d", result.Evidence)
}

func TestClassify_SpecificityResolvesConflict(t *testing.T) {
	// 180d(wearable, 90) vs 1812(peripheral, 60) → 特异度高者胜
	result := Classify([]string{"1812", "180d"}, "", "")
	assert.Equal(t, CategoryWearable, result.Category)
	assert.Equal(t, "uuid:180d", result.Evidence)
}

func TestClassify_SpecificityTieIsAmbiguous(t *testing.T) {
	// 1809(health, 85) vs feed(tracker, 85) → 持平判 unknown，列出全部冲突
	result := Classify([]string{"1809", "feed"}, "", "")
	assert.Equal(t, CategoryUnknown, result.Category)
	assert.Equal(t, SourceServiceUUID, result.Source)
	assert.Contains(t, result.Evidence, "1809=health")
	assert.Contains(t, result.Evidence, "feed=tracker")
}

func TestClassify_NamePatternTableOrder(t *testing.T) {
	// "galaxy watch" 在 "galaxy" 之前 → wearable 而非 phone
	result := Classify(nil, "Galaxy Watch 6", "")
	assert.Equal(t, CategoryWearable, result.Category)
	assert.Equal(t, SourceName, result.Source)

	result = Classify(nil, "Galaxy S24", "")
	assert.Equal(t, CategoryPhone, result.Category)

	result = Classify(nil, "Galaxy Buds Pro", "")
	assert.Equal(t, CategoryAudio, result.Category)
}

func TestClassify_NameCaseInsensitive(t *testing.T) {
	result := Classify(nil, "AIRPODS PRO", "")
	assert.Equal(t, CategoryAudio, result.Category)
}

func TestClassify_VendorFallback(t *testing.T) {
	// 无服务、无名称命中时才轮到厂商档
	result := Classify(nil, "", "Bose Corporation")
	assert.Equal(t, CategoryAudio, result.Category)
	assert.Equal(t, SourceVendor, result.Source)

	result = Classify(nil, "", "Garmin International")
	assert.Equal(t, CategoryWearable, result.Category)
}

func TestClassify_NameBeatsVendor(t *testing.T) {
	result := Classify(nil, "Tile Mate", "Apple, Inc.")
	assert.Equal(t, CategoryTracker, result.Category)
	assert.Equal(t, SourceName, result.Source)
}

func TestClassify_NoEvidence(t *testing.T) {
	result := Classify(nil, "", "")
	assert.Equal(t, CategoryUnknown, result.Category)
	assert.Equal(t, SourceNone, result.Source)

	// 未知 UUID、未知名称、未知厂商
	result = Classify([]string{"ffff"}, "XK-9930", "Shenzhen Nobody Tech")
	assert.Equal(t, CategoryUnknown, result.Category)
}

func TestUpgrade_StrongerTierWins(t *testing.T) {
	prev := ClassificationResult{Category: CategoryPhone, Source: SourceName, Evidence: "name:iphone"}
	next := ClassificationResult{Category: CategoryWearable, Source: SourceServiceUUID, Evidence: "uuid:180d"}
	assert.Equal(t, next, Upgrade(prev, next))
}

func TestUpgrade_WeakerTierNeverDowngrades(t *testing.T) {
	prev := ClassificationResult{Category: CategoryWearable, Source: SourceServiceUUID, Evidence: "uuid:180d"}
	next := ClassificationResult{Category: CategoryPhone, Source: SourceVendor, Evidence: "vendor:apple"}
	assert.Equal(t, prev, Upgrade(prev, next))
}

func TestUpgrade_SameTierUnknownReplaced(t *testing.T) {
	prev := ClassificationResult{Category: CategoryUnknown, Source: SourceServiceUUID, Evidence: "conflict:a,b"}
	next := ClassificationResult{Category: CategoryAudio, Source: SourceServiceUUID, Evidence: "uuid:110b"}
	assert.Equal(t, next, Upgrade(prev, next))
}

func TestNormalizeUUID(t *testing.T) {
	assert.Equal(t, "180d", NormalizeUUID("180D"))
	assert.Equal(t, "180d", NormalizeUUID("0x180d"))
	assert.Equal(t, "180d", NormalizeUUID("0000180D-0000-1000-8000-00805F9B34FB"))
	assert.Equal(t, "12345678-1234-1234-1234-123456789abc", NormalizeUUID("12345678-1234-1234-1234-123456789ABC"))
}

func TestServiceLabel(t *testing.T) {
	assert.Equal(t, "Heart Rate", ServiceLabel("180d"))
	assert.Equal(t, "dead", ServiceLabel("dead"))
}
