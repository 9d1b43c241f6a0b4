package models

// FrequencyTier 出现频率档位（顺序固定，从高到低）
type FrequencyTier string

const (
	TierConstant   FrequencyTier = "constant"
	TierDaily      FrequencyTier = "daily"
	TierRegular    FrequencyTier = "regular"
	TierOccasional FrequencyTier = "occasional"
	TierRare       FrequencyTier = "rare"
)

// TimelineDay 出现时间线中的一天
type TimelineDay struct {
	Date  string `json:"date"` // "2006-01-02"
	Count int    `json:"count"`
}

// PatternSummary 行为模式摘要（派生数据，不落库，每次查询现算）
type PatternSummary struct {
	Hourly      [24]int       `json:"hourly"`       // 各小时目击计数
	Daily       [7]int        `json:"daily"`        // 各星期几目击计数（周一=0）
	Timeline    []TimelineDay `json:"timeline"`     // 最近 N 天逐日出现情况
	ActiveDays  int           `json:"active_days"`  // 窗口内有目击的天数
	WindowDays  int           `json:"window_days"`
	Tier        FrequencyTier `json:"tier"`
	Descriptor  string        `json:"descriptor"`   // 自然语言描述，如 "Daily, weekdays, evenings (6PM-8PM)"
	TotalCount  int           `json:"total_count"`  // 输入目击总数
}
