package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// 配置校验错误
var (
	ErrInvalidRetries   = errors.New("FETCH_MAX_RETRIES must be at least 1")
	ErrInvalidTimeout   = errors.New("FETCH_TIMEOUT must be positive")
	ErrInvalidBackoff   = errors.New("FETCH_BACKOFF must be non-negative")
	ErrMissingNewsDir   = errors.New("NEWS_DIR is required")
	ErrInvalidFallback  = errors.New("FALLBACK_DAYS must be non-negative")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrUnknownSource    = errors.New("unknown source")
	ErrInvalidParallels = errors.New("MAX_PARALLEL_SOURCES must be at least 1")
)

// DateLayout 全链路统一使用的日期格式
const DateLayout = "2006-01-02"

type Config struct {
	AppPort string

	// 为空时不启用 Basic Auth
	BasicAuthUser string
	BasicAuthPass string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// 抓取相关
	NewsDir         string
	FetchTimeout    time.Duration
	FetchMaxRetries int
	FetchBackoff    time.Duration
	FetchMaxBodyKB  int
	RespectRobots   bool

	ArticleDelay       time.Duration
	MaxArticles        int
	FallbackDays       int
	MaxParallelSources int

	// 同一天内的重复执行策略
	OnlyMissing   bool
	ForceRescrape bool

	LogLevel        string
	ExplainCacheTTL time.Duration
	Timezone        string
	SourcesFile     string
}

// Load 读取环境变量（以及可选的 .env），缺省值与线上保持一致
func Load() *Config {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:            getEnv("APP_PORT", "9000"),
		BasicAuthUser:      getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:      getEnv("APP_BASIC_PASS", ""),
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		CronSpec:           getEnv("CRON_SPEC", "0 6 * * *"),
		NewsDir:            getEnv("NEWS_DIR", "news"),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
		FetchMaxRetries:    getEnvInt("FETCH_MAX_RETRIES", 3),
		FetchBackoff:       getEnvDuration("FETCH_BACKOFF", 1500*time.Millisecond),
		FetchMaxBodyKB:     getEnvInt("FETCH_MAX_BODY_KB", 4096),
		RespectRobots:      getEnvBool("RESPECT_ROBOTS", false),
		ArticleDelay:       getEnvDuration("ARTICLE_DELAY", 1500*time.Millisecond),
		MaxArticles:        getEnvInt("MAX_ARTICLES", 10),
		FallbackDays:       getEnvInt("FALLBACK_DAYS", 3),
		MaxParallelSources: getEnvInt("MAX_PARALLEL_SOURCES", 4),
		OnlyMissing:        getEnvBool("ONLY_MISSING", false),
		ForceRescrape:      getEnvBool("FORCE_RESCRAPE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ExplainCacheTTL:    getEnvDuration("EXPLAIN_CACHE_TTL", 6*time.Hour),
		Timezone:           getEnv("TIMEZONE", "Asia/Dhaka"),
		SourcesFile:        getEnv("SOURCES_FILE", ""),
	}

	logrus.Infof("config loaded: port=%s cron=%s news_dir=%s", cfg.AppPort, cfg.CronSpec, cfg.NewsDir)
	return cfg
}

// Validate 校验抓取相关的数值配置
func (c *Config) Validate() error {
	if c.FetchMaxRetries < 1 {
		return ErrInvalidRetries
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.FetchBackoff < 0 {
		return ErrInvalidBackoff
	}
	if strings.TrimSpace(c.NewsDir) == "" {
		return ErrMissingNewsDir
	}
	if c.FallbackDays < 0 {
		return ErrInvalidFallback
	}
	if c.MaxParallelSources < 1 {
		return ErrInvalidParallels
	}
	return nil
}

// Location 返回用于计算“今天”的时区，加载失败时回退到 UTC+6
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || loc == nil {
		return time.FixedZone("BST", 6*3600)
	}
	return loc
}

// Today 按配置时区返回当天日期 YYYY-MM-DD
func (c *Config) Today() string {
	return Now().In(c.Location()).Format(DateLayout)
}

// ParseDate 校验 YYYY-MM-DD 格式
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// SourceOverride 对内置站点配置的覆盖项，未填写的字段保持内置值
type SourceOverride struct {
	Name         string   `yaml:"name"`
	Enabled      *bool    `yaml:"enabled"`
	FeedURL      string   `yaml:"feed_url"`
	MaxHeadlines int      `yaml:"max_headlines"`
	FallbackDays *int     `yaml:"fallback_days"`
	Sections     []string `yaml:"sections"`
}

// SourcesFile 对应 SOURCES_FILE 指向的 YAML 文件
type SourcesFile struct {
	Sources []SourceOverride `yaml:"sources"`
}

// LoadSources 读取站点覆盖配置；path 为空时返回空配置
func LoadSources(path string) (*SourcesFile, error) {
	if path == "" {
		return &SourcesFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}
	var sf SourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	for i, s := range sf.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("sources[%d]: name is required", i)
		}
		if s.FallbackDays != nil && *s.FallbackDays < 0 {
			return nil, fmt.Errorf("sources[%d]: %w", i, ErrInvalidFallback)
		}
	}
	return &sf, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logrus.Warnf("config: invalid %s=%q, use default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		logrus.Warnf("config: invalid %s=%q, use default %v", key, v, def)
		return def
	}
	return b
}

// getEnvDuration 支持 "1.5s" 这类写法，也兼容纯数字（按秒）
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	logrus.Warnf("config: invalid %s=%q, use default %s", key, v, def)
	return def
}

// Now returns current time, 方便后续做可测试封装
var Now = time.Now
