package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LJTian/HeadlineHub/internal/app"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/logger"
)

// 执行一轮标题采集后退出：当天文件已齐全时直接跳过
func main() {
	date := flag.String("date", "", "target date YYYY-MM-DD (default: today)")
	force := flag.Bool("force", false, "rescrape even if all headline files for the date exist")
	sources := flag.String("sources", "", "comma separated source keys (default: all enabled)")
	onlyMissing := flag.Bool("only-missing", false, "only scrape sources whose file is missing")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if *onlyMissing {
		cfg.OnlyMissing = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	target := *date
	if target == "" {
		target = cfg.Today()
	} else if _, err := config.ParseDate(target); err != nil {
		log.Fatalf("%v", err)
	}

	sites, err := app.Sites(cfg, splitKeys(*sources))
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}
	s, err := app.NewScheduler(cfg, app.Sources(cfg, sites, log), "", log)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	reports := s.Ensure(ctx, target, *force || cfg.ForceRescrape)
	stop()

	failed := 0
	for _, r := range reports {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("%-14s FAILED  %v\n", r.Source, r.Err)
		case r.Skipped:
			fmt.Printf("%-14s SKIPPED %s\n", r.Source, r.Path)
		default:
			fmt.Printf("%-14s %3d     %s\n", r.Source, r.Count, r.Path)
		}
	}
	if len(reports) > 0 && failed == len(reports) {
		os.Exit(1)
	}
}

func splitKeys(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
