// Package app 把配置装配成各命令共用的站点、调度器与解释器。
package app

import (
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/explainer"
	"github.com/LJTian/HeadlineHub/internal/fetcher"
	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/sirupsen/logrus"
)

// Sites 内置站点表，依次叠加 FALLBACK_DAYS、SOURCES_FILE，再按 keys 选择
func Sites(cfg *config.Config, keys []string) ([]collector.SiteConfig, error) {
	sites := collector.WithFallbackDays(collector.DefaultSites(), cfg.FallbackDays)

	sf, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	sites, err = collector.ApplyOverrides(sites, sf)
	if err != nil {
		return nil, err
	}
	return collector.Select(sites, keys)
}

// NewClient 每个站点一个客户端，cookie 互不影响
func NewClient(cfg *config.Config, site collector.SiteConfig, log *logrus.Logger) *fetcher.Client {
	return fetcher.New(fetcher.Options{
		Timeout:       cfg.FetchTimeout,
		MaxRetries:    cfg.FetchMaxRetries,
		BackoffBase:   cfg.FetchBackoff,
		MaxBodyKB:     cfg.FetchMaxBodyKB,
		Referer:       site.HomeURL,
		RespectRobots: cfg.RespectRobots,
		Logger:        log,
	})
}

func NewAdapter(cfg *config.Config, site collector.SiteConfig, log *logrus.Logger) *collector.Adapter {
	return collector.NewAdapter(site, NewClient(cfg, site, log), log)
}

// Sources 把站点配置转换为调度器的数据源
func Sources(cfg *config.Config, sites []collector.SiteConfig, log *logrus.Logger) []scheduler.Source {
	out := make([]scheduler.Source, 0, len(sites))
	for _, site := range sites {
		out = append(out, scheduler.Source{
			Key:     site.FileKey(),
			Name:    site.Name,
			Adapter: NewAdapter(cfg, site, log),
		})
	}
	return out
}

// NewScheduler cronSpec 为空时只能手动触发
func NewScheduler(cfg *config.Config, sources []scheduler.Source, cronSpec string, log *logrus.Logger) (*scheduler.Scheduler, error) {
	loc := cfg.Location()
	return scheduler.New(scheduler.Options{
		CronSpec:    cronSpec,
		Sources:     sources,
		Processor:   processor.NewSimpleProcessor(),
		Writer:      storage.NewHeadlineWriter(cfg.NewsDir),
		Logger:      log,
		MaxParallel: cfg.MaxParallelSources,
		OnlyMissing: cfg.OnlyMissing,
		Today:       cfg.Today,
		Now:         func() time.Time { return config.Now().In(loc) },
	})
}

func NewExplainer(cfg *config.Config, log *logrus.Logger) *explainer.Extractor {
	return explainer.New(explainer.Options{
		Timeout:     cfg.FetchTimeout,
		MaxRetries:  cfg.FetchMaxRetries,
		BackoffBase: cfg.FetchBackoff,
		MaxBodyKB:   cfg.FetchMaxBodyKB,
		Logger:      log,
	})
}
