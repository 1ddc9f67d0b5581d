package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Source 描述一个新闻站点，例如 dailystar / jugantor
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article 全文归档，以 URL 为幂等键
type Article struct {
	ID          string            `gorm:"primaryKey;size:40" json:"id"`
	URL         string            `gorm:"size:1024;uniqueIndex" json:"url"`
	Source      string            `gorm:"size:64;index" json:"source"`
	Title       string            `gorm:"size:512" json:"title"`
	Category    string            `gorm:"size:128;index" json:"category"`
	Author      string            `gorm:"size:256" json:"author"`
	PublishedAt string            `gorm:"size:64" json:"publishedAt"`
	ScrapeDate  string            `gorm:"size:10;index" json:"scrapeDate"`
	Body        string            `gorm:"type:text" json:"body"`
	ExtraData   datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store 可选的 Postgres 归档与 Redis 缓存；两者都可以为空
type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   *logrus.Logger
}

// NewStore dsn 为空时不启用归档，redisAddr 为空时不启用缓存
func NewStore(dsn, redisAddr string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Store{log: log}

	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&Source{}, &Article{}); err != nil {
			return nil, err
		}
		s.DB = db
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnf("redis ping failed: %v", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

// ArchiveEnabled 是否配置了 Postgres
func (s *Store) ArchiveEnabled() bool {
	return s != nil && s.DB != nil
}

// EnsureSource 确保某个站点存在
func (s *Store) EnsureSource(code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.DB.Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
	}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// SaveArticles 保存一批全文，已存在的 URL 更新正文与元信息
func (s *Store) SaveArticles(items []processor.ProcessedArticle) error {
	for _, it := range items {
		a := &Article{
			ID:          it.ID,
			URL:         it.URL,
			Source:      it.Source,
			Title:       truncateRunesDB(toValidUTF8(it.Title), 512),
			Category:    truncateRunesDB(toValidUTF8(it.Category), 128),
			Author:      truncateRunesDB(toValidUTF8(it.Author), 256),
			PublishedAt: truncateRunesDB(it.PublishedAt, 64),
			ScrapeDate:  it.ScrapeDate,
			Body:        toValidUTF8(it.Body),
			ExtraData:   datatypes.JSONMap(it.RawData),
		}

		if err := s.DB.Where("url = ?", it.URL).FirstOrCreate(a).Error; err != nil {
			return err
		}
		if err := s.DB.Model(a).Updates(map[string]any{
			"title":        a.Title,
			"category":     a.Category,
			"author":       a.Author,
			"published_at": a.PublishedAt,
			"scrape_date":  a.ScrapeDate,
			"body":         a.Body,
		}).Error; err != nil {
			return fmt.Errorf("update article %s: %w", it.URL, err)
		}
	}
	return nil
}

// ListArticles 按站点与抓取日期返回归档文章，结果用 Redis 做短缓存
func (s *Store) ListArticles(ctx context.Context, source, date string, limit int) ([]Article, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	cacheKey := fmt.Sprintf("articles:list:%s:%s:%d", source, date, limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Article
	db := s.DB.WithContext(ctx).Model(&Article{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if date != "" {
		db = db.Where("scrape_date = ?", date)
	}
	if err := db.Order("created_at ASC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, time.Minute).Err()
		}
	}
	return list, nil
}
