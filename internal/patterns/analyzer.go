// Package patterns 从目击历史推导行为模式
//
// 分析是纯函数：输入目击列表和时间窗口，输出摘要，不读写任何存储。
// 模式数据按查询现算，不做持久化缓存
package patterns

import (
	"fmt"
	"time"

	"wisefido-bluetrace/internal/config"
	"wisefido-bluetrace/internal/models"
)

// Analyze 分析窗口期内的出现模式
// 窗口为 [ref-windowDays+1天的零点, ref]，窗口外的目击被忽略
func Analyze(sightings []*models.Sighting, windowDays int, ref time.Time, cfg config.PatternConfig) *models.PatternSummary {
	if windowDays <= 0 {
		windowDays = cfg.WindowDays
	}

	loc := ref.Location()
	windowStart := dayStart(ref.AddDate(0, 0, -(windowDays-1)), loc)
	windowEnd := dayStart(ref, loc).AddDate(0, 0, 1)

	summary := &models.PatternSummary{
		WindowDays: windowDays,
		Tier:       models.TierRare,
	}

	perDay := make(map[string]int, windowDays)
	for _, s := range sightings {
		ts := s.SeenAt.In(loc)
		if ts.Before(windowStart) || !ts.Before(windowEnd) {
			continue
		}
		summary.TotalCount++
		summary.Hourly[ts.Hour()]++
		// 周一=0 的星期索引
		summary.Daily[(int(ts.Weekday())+6)%7]++
		perDay[ts.Format("2006-01-02")]++
	}

	summary.Timeline = make([]models.TimelineDay, 0, windowDays)
	for d := 0; d < windowDays; d++ {
		date := windowStart.AddDate(0, 0, d).Format("2006-01-02")
		count := perDay[date]
		if count > 0 {
			summary.ActiveDays++
		}
		summary.Timeline = append(summary.Timeline, models.TimelineDay{Date: date, Count: count})
	}

	summary.Tier = classifyTier(summary.ActiveDays, windowDays, cfg)
	summary.Descriptor = describe(summary, cfg)
	return summary
}

// classifyTier 按活跃天数覆盖率划档
func classifyTier(activeDays, windowDays int, cfg config.PatternConfig) models.FrequencyTier {
	ratio := float64(activeDays) / float64(windowDays)
	switch {
	case ratio >= cfg.ConstantRatio:
		return models.TierConstant
	case ratio >= cfg.DailyRatio:
		return models.TierDaily
	case ratio >= cfg.RegularRatio:
		return models.TierRegular
	case ratio >= cfg.OccasionalRatio:
		return models.TierOccasional
	default:
		return models.TierRare
	}
}

// describe 组装自然语言描述，如 "Daily, weekdays, evenings (6PM-8PM)"
// 星期和时段两个维度没有明显多数时分别省略
func describe(s *models.PatternSummary, cfg config.PatternConfig) string {
	desc := tierWord(s.Tier)

	if group := dayGroup(s.Daily, cfg); group != "" {
		desc += ", " + group
	}
	if window := dominantHourWindow(s.Hourly, s.TotalCount, cfg.DominantHourShare); window != "" {
		desc += ", " + window
	}
	return desc
}

func tierWord(t models.FrequencyTier) string {
	switch t {
	case models.TierConstant:
		return "Constant"
	case models.TierDaily:
		return "Daily"
	case models.TierRegular:
		return "Regular"
	case models.TierOccasional:
		return "Occasional"
	default:
		return "Rare"
	}
}

// dayGroup 判断工作日/周末主导
func dayGroup(daily [7]int, cfg config.PatternConfig) string {
	total := 0
	weekday := 0
	for i, n := range daily {
		total += n
		if i < 5 {
			weekday += n
		}
	}
	if total == 0 {
		return ""
	}
	share := float64(weekday) / float64(total)
	if share >= cfg.WeekdayShare {
		return "weekdays"
	}
	if 1-share >= cfg.WeekendShare {
		return "weekends"
	}
	return ""
}

// dominantHourWindow 找覆盖至少 share 比例目击的最小连续小时窗口（环形）
// 窗口跨度超过半天视为无集中时段
func dominantHourWindow(hourly [24]int, total int, share float64) string {
	if total == 0 {
		return ""
	}
	need := float64(total) * share

	bestStart, bestSpan, bestSum := -1, 0, 0
	for span := 1; span <= 12; span++ {
		for start := 0; start < 24; start++ {
			sum := 0
			for i := 0; i < span; i++ {
				sum += hourly[(start+i)%24]
			}
			if float64(sum) > need && (bestStart < 0 || sum > bestSum) {
				bestStart, bestSpan, bestSum = start, span, sum
			}
		}
		if bestStart >= 0 {
			break
		}
	}
	if bestStart < 0 {
		return ""
	}

	end := (bestStart + bestSpan) % 24
	return fmt.Sprintf("%s (%s-%s)", periodName(bestStart, bestSpan), hourLabel(bestStart), hourLabel(end))
}

// periodName 按窗口中点选取时段称呼
func periodName(start, span int) string {
	mid := (start + span/2) % 24
	switch {
	case mid >= 5 && mid < 12:
		return "mornings"
	case mid >= 12 && mid < 17:
		return "afternoons"
	case mid >= 17 && mid < 21:
		return "evenings"
	default:
		return "nights"
	}
}

func hourLabel(h int) string {
	h = h % 24
	switch {
	case h == 0:
		return "12AM"
	case h < 12:
		return fmt.Sprintf("%dAM", h)
	case h == 12:
		return "12PM"
	default:
		return fmt.Sprintf("%dPM", h-12)
	}
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
