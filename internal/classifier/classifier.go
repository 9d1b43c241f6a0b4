// Package classifier 基于服务能力、广播名称、厂商三路信号做设备分类
//
// 优先级严格有序，首个命中档位生效，档位之间不做加权混合：
//  1. 服务 UUID 映射（同档冲突按静态特异度取最高，持平判 unknown）
//  2. 名称模式表（按表顺序）
//  3. 厂商推断表
//
// 重分类总是基于该设备累计的全部证据重算；因为高档位先求值且证据只增
// 不减，已确立的高档位结果不会被后到的弱信号降级
package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// Category 设备类别
type Category string

const (
	CategoryPhone      Category = "phone"
	CategoryTablet     Category = "tablet"
	CategoryComputer   Category = "computer"
	CategoryAudio      Category = "audio"
	CategoryWearable   Category = "wearable"
	CategoryHealth     Category = "health"
	CategoryTracker    Category = "tracker"
	CategoryTV         Category = "tv"
	CategoryVehicle    Category = "vehicle"
	CategoryPeripheral Category = "peripheral"
	CategoryIoT        Category = "iot"
	CategoryUnknown    Category = "unknown"
)

// Source 分类依据档位
type Source string

const (
	SourceServiceUUID Source = "service_uuid"
	SourceName        Source = "name"
	SourceVendor      Source = "vendor"
	SourceNone        Source = "none"
)

// ClassificationResult 分类结果（带依据说明的标签值，不是类型层级）
type ClassificationResult struct {
	Category Category `json:"category"`
	Source   Source   `json:"source"`
	Evidence string   `json:"evidence"`
}

// sourceRank 档位强度（用于升级判定）
func sourceRank(s Source) int {
	switch s {
	case SourceServiceUUID:
		return 3
	case SourceName:
		return 2
	case SourceVendor:
		return 1
	default:
		return 0
	}
}

// Classify 对给定证据做一次完整分类
// caps: 服务 UUID 集合（任意格式，内部归一化）；name/vendor 可为空
func Classify(caps []string, name string, vendor string) ClassificationResult {
	// 第 1 档：服务 UUID
	if result, ok := classifyByServices(caps); ok {
		return result
	}

	// 第 2 档：名称模式
	if name != "" {
		lower := strings.ToLower(name)
		for _, p := range namePatterns {
			if strings.Contains(lower, p.Pattern) {
				return ClassificationResult{
					Category: p.Category,
					Source:   SourceName,
					Evidence: "name:" + p.Pattern,
				}
			}
		}
	}

	// 第 3 档：厂商推断
	if vendor != "" {
		lower := strings.ToLower(vendor)
		for _, v := range vendorRules {
			if strings.Contains(lower, v.Keyword) {
				return ClassificationResult{
					Category: v.Category,
					Source:   SourceVendor,
					Evidence: "vendor:" + v.Keyword,
				}
			}
		}
	}

	return ClassificationResult{Category: CategoryUnknown, Source: SourceNone}
}

// classifyByServices 服务 UUID 档位求值
// 多个已知 UUID 指向不同类别时取特异度最高者；特异度持平且类别不同
// 则视为分类歧义：返回 unknown 并列出全部冲突证据（歧义不是错误）
func classifyByServices(caps []string) (ClassificationResult, bool) {
	type match struct {
		uuid string
		rule serviceRule
	}
	var matches []match
	for _, raw := range caps {
		u := NormalizeUUID(raw)
		if rule, ok := serviceRules[u]; ok {
			matches = append(matches, match{uuid: u, rule: rule})
		}
	}
	if len(matches) == 0 {
		return ClassificationResult{}, false
	}

	// 特异度降序，同特异度按 UUID 排序保证确定性
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rule.Specificity != matches[j].rule.Specificity {
			return matches[i].rule.Specificity > matches[j].rule.Specificity
		}
		return matches[i].uuid < matches[j].uuid
	})

	best := matches[0]
	for _, m := range matches[1:] {
		if m.rule.Specificity == best.rule.Specificity && m.rule.Category != best.rule.Category {
			// 最高特异度持平且类别冲突 → unknown + 全部冲突证据
			var parts []string
			for _, c := range matches {
				if c.rule.Specificity == best.rule.Specificity {
					parts = append(parts, fmt.Sprintf("%s=%s", c.uuid, c.rule.Category))
				}
			}
			return ClassificationResult{
				Category: CategoryUnknown,
				Source:   SourceServiceUUID,
				Evidence: "conflict:" + strings.Join(parts, ","),
			}, true
		}
	}

	return ClassificationResult{
		Category: best.rule.Category,
		Source:   SourceServiceUUID,
		Evidence: "uuid:" + best.uuid,
	}, true
}

// Upgrade 按"只升不降"策略合并新旧分类结果
// 新结果档位更强（或同档但旧结果为 unknown）时采用新结果，否则保留旧结果
func Upgrade(prev, next ClassificationResult) ClassificationResult {
	if sourceRank(next.Source) > sourceRank(prev.Source) {
		return next
	}
	if sourceRank(next.Source) == sourceRank(prev.Source) && prev.Category == CategoryUnknown {
		return next
	}
	return prev
}

// NormalizeUUID 归一化服务 UUID 为 16 位短格式小写
// 完整 128 位 Bluetooth 基础 UUID（0000xxxx-0000-1000-8000-00805f9b34fb）
// 提取 16 位段；其余输入仅做小写与裁剪
func NormalizeUUID(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	u = strings.TrimPrefix(u, "0x")
	if len(u) == 36 && strings.HasSuffix(u, "-0000-1000-8000-00805f9b34fb") && strings.HasPrefix(u, "0000") {
		return u[4:8]
	}
	return u
}

// ServiceLabel 返回服务 UUID 的展示名称，未知返回原值
func ServiceLabel(raw string) string {
	if rule, ok := serviceRules[NormalizeUUID(raw)]; ok {
		return rule.Label
	}
	return raw
}

// CategoryLabel 返回类别显示名
func CategoryLabel(c Category) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Categories 返回全部已知类别（dashboard 过滤器用）
func Categories() []Category {
	return []Category{
		CategoryPhone, CategoryTablet, CategoryComputer, CategoryAudio,
		CategoryWearable, CategoryHealth, CategoryTracker, CategoryTV,
		CategoryVehicle, CategoryPeripheral, CategoryIoT, CategoryUnknown,
	}
}
