package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/HeadlineHub/internal/app"
	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/logger"
	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/sirupsen/logrus"
)

// 抓取单个站点某天的全文并输出排版结果，可选写入 Postgres 归档
func main() {
	cfg := config.Load()

	source := flag.String("source", "", "source key, e.g. dailystar (required)")
	date := flag.String("date", "", "target date YYYY-MM-DD (default: today)")
	maxArticles := flag.Int("max", cfg.MaxArticles, "max number of articles")
	delay := flag.Duration("delay", cfg.ArticleDelay, "delay between article requests")
	output := flag.String("o", "", "write result to file instead of stdout")
	archive := flag.Bool("archive", false, "save articles to Postgres (needs POSTGRES_DSN)")
	flag.Parse()

	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if *source == "" {
		flag.Usage()
		os.Exit(2)
	}

	target := *date
	if target == "" {
		target = cfg.Today()
	} else if _, err := config.ParseDate(target); err != nil {
		log.Fatalf("%v", err)
	}

	sites, err := app.Sites(cfg, []string{*source})
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}
	site := sites[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	articles, err := app.NewAdapter(cfg, site, log).ScrapeFull(ctx, target, *maxArticles, *delay)
	if err != nil {
		log.Errorf("scrape %s error: %v", site.Key, err)
		stop()
		os.Exit(1)
	}

	text := collector.FormatArticles(site.Name, target, articles, config.Now().In(cfg.Location()))
	if *output != "" {
		if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
			log.Fatalf("write %s failed: %v", *output, err)
		}
		log.Infof("saved %d articles to %s", len(articles), *output)
	} else {
		fmt.Print(text)
	}

	if *archive {
		if err := archiveArticles(cfg, log, site, target, articles); err != nil {
			log.Errorf("archive %s error: %v", site.Key, err)
			stop()
			os.Exit(1)
		}
	}
}

func archiveArticles(cfg *config.Config, log *logrus.Logger, site collector.SiteConfig, date string, articles []collector.Article) error {
	store, err := storage.NewStore(cfg.PostgresDSN, "", log)
	if err != nil {
		return err
	}
	if !store.ArchiveEnabled() {
		return fmt.Errorf("POSTGRES_DSN is not set")
	}
	if _, err := store.EnsureSource(site.Key, site.Name, site.HomeURL); err != nil {
		return err
	}

	items := processor.NewSimpleProcessor().Articles(site.Key, date, articles)
	if err := store.SaveArticles(items); err != nil {
		return err
	}
	log.Infof("archived %d articles for %s", len(items), site.Key)
	return nil
}
