package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/LJTian/HeadlineHub/internal/app"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/explainer"
	"github.com/LJTian/HeadlineHub/internal/logger"
)

// 对任意文章 URL 输出标题与正文；结果以 "Error:" 开头时退出码为 1
func main() {
	target := flag.String("url", "", "article URL (or pass it as the first argument)")
	markdown := flag.Bool("markdown", false, "output '# title' followed by the body")
	raw := flag.Bool("raw", false, "output the article as JSON")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	u := *target
	if u == "" && flag.NArg() > 0 {
		u = flag.Arg(0)
	}

	mode := explainer.ModeText
	switch {
	case *raw:
		mode = explainer.ModeRaw
	case *markdown:
		mode = explainer.ModeMarkdown
	}

	out := app.NewExplainer(cfg, log).Explain(context.Background(), u, mode)
	fmt.Println(out)
	if explainer.IsError(out) {
		os.Exit(1)
	}
}
