package explainer

import (
	"context"
	"time"

	"github.com/LJTian/HeadlineHub/internal/storage"
)

// Service 在 Extractor 外面包一层缓存，只缓存成功结果
type Service struct {
	ext   *Extractor
	cache storage.Cache
	ttl   time.Duration
}

func NewService(ext *Extractor, cache storage.Cache, ttl time.Duration) *Service {
	return &Service{ext: ext, cache: cache, ttl: ttl}
}

func (s *Service) Explain(ctx context.Context, rawURL string, mode Mode) string {
	if s.cache == nil || rawURL == "" {
		return s.ext.Explain(ctx, rawURL, mode)
	}

	key := string(mode) + ":" + rawURL
	if v, ok := s.cache.Get(ctx, key); ok {
		return v
	}
	out := s.ext.Explain(ctx, rawURL, mode)
	if !IsError(out) {
		s.cache.Set(ctx, key, out, s.ttl)
	}
	return out
}
