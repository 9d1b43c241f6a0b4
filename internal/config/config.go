package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 蓝牙设备跟踪服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 跟踪服务特定配置
	Tracker struct {
		// 扫描源 MQTT 主题，格式 bluetrace/{scanner_id}/adv
		AdvTopic string

		// Redis Streams 配置
		Stream struct {
			Adv string // 广播事件流，如 "bluetrace:adv:stream"
		}
		ConsumerGroup string // 消费者组名称
		ConsumerName  string // 消费者名称（空则自动生成）
		BatchSize     int64  // 批量处理大小

		// 随机地址计数桶
		RandomizedKeyPrefix string        // 如 "bluetrace:randomized:"
		RandomizedTTL       time.Duration // 计数桶保留时长

		// 远程厂商查询
		RemoteLookupEnabled  bool
		RemoteLookupBaseURL  string        // 如 "https://api.macvendors.com"
		RemoteLookupTimeout  time.Duration // 单次查询超时
		RemoteLookupInterval time.Duration // 两次远程查询最小间隔
	}

	// 行为模式分析阈值（按窗口内出现天数占比划分频率档位，档位顺序固定）
	Pattern PatternConfig

	HTTP struct {
		Addr string // 监听地址，如 ":8080"
	}

	Log struct {
		Level  string
		Format string
	}
}

// PatternConfig 模式分析阈值配置
// 各比例为窗口内"有出现的天数 / 窗口天数"的下限
type PatternConfig struct {
	ConstantRatio   float64 // >= 该值 → constant（默认 0.85）
	DailyRatio      float64 // >= 该值 → daily（默认 0.55）
	RegularRatio    float64 // >= 该值 → regular（默认 0.25）
	OccasionalRatio float64 // >= 该值 → occasional（默认 0.07），低于则 rare

	DominantHourShare float64 // 主导时段需覆盖的目击占比（默认 0.5）
	WeekdayShare      float64 // 判定"工作日为主"的占比（默认 0.85）
	WeekendShare      float64 // 判定"周末为主"的占比（默认 0.7）

	WindowDays int // 默认分析窗口天数（默认 30）
}

// DefaultPatternConfig 默认模式分析阈值
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		ConstantRatio:     0.85,
		DailyRatio:        0.55,
		RegularRatio:      0.25,
		OccasionalRatio:   0.07,
		DominantHourShare: 0.5,
		WeekdayShare:      0.85,
		WeekendShare:      0.7,
		WindowDays:        30,
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（带默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "bluetrace")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-bluetrace")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Tracker.AdvTopic = getEnv("ADV_TOPIC", "bluetrace/+/adv")
	cfg.Tracker.Stream.Adv = getEnv("STREAM_ADV", "bluetrace:adv:stream")
	cfg.Tracker.ConsumerGroup = getEnv("CONSUMER_GROUP", "bluetrace-group")
	cfg.Tracker.ConsumerName = getEnv("CONSUMER_NAME", "")
	cfg.Tracker.BatchSize = int64(getEnvInt("BATCH_SIZE", 10))

	cfg.Tracker.RandomizedKeyPrefix = getEnv("RANDOMIZED_KEY_PREFIX", "bluetrace:randomized:")
	cfg.Tracker.RandomizedTTL = time.Duration(getEnvInt("RANDOMIZED_TTL_DAYS", 30)) * 24 * time.Hour

	cfg.Tracker.RemoteLookupEnabled = getEnvBool("REMOTE_LOOKUP_ENABLED", true)
	cfg.Tracker.RemoteLookupBaseURL = getEnv("REMOTE_LOOKUP_BASE_URL", "https://api.macvendors.com")
	cfg.Tracker.RemoteLookupTimeout = time.Duration(getEnvInt("REMOTE_LOOKUP_TIMEOUT_SEC", 5)) * time.Second
	cfg.Tracker.RemoteLookupInterval = time.Duration(getEnvInt("REMOTE_LOOKUP_INTERVAL_MS", 1000)) * time.Millisecond

	cfg.Pattern = DefaultPatternConfig()
	cfg.Pattern.ConstantRatio = getEnvFloat("PATTERN_CONSTANT_RATIO", cfg.Pattern.ConstantRatio)
	cfg.Pattern.DailyRatio = getEnvFloat("PATTERN_DAILY_RATIO", cfg.Pattern.DailyRatio)
	cfg.Pattern.RegularRatio = getEnvFloat("PATTERN_REGULAR_RATIO", cfg.Pattern.RegularRatio)
	cfg.Pattern.OccasionalRatio = getEnvFloat("PATTERN_OCCASIONAL_RATIO", cfg.Pattern.OccasionalRatio)
	cfg.Pattern.DominantHourShare = getEnvFloat("PATTERN_DOMINANT_HOUR_SHARE", cfg.Pattern.DominantHourShare)
	cfg.Pattern.WeekdayShare = getEnvFloat("PATTERN_WEEKDAY_SHARE", cfg.Pattern.WeekdayShare)
	cfg.Pattern.WeekendShare = getEnvFloat("PATTERN_WEEKEND_SHARE", cfg.Pattern.WeekendShare)
	cfg.Pattern.WindowDays = getEnvInt("PATTERN_WINDOW_DAYS", cfg.Pattern.WindowDays)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
