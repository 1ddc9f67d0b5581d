package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/HeadlineHub/internal/api"
	"github.com/LJTian/HeadlineHub/internal/app"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/explainer"
	"github.com/LJTian/HeadlineHub/internal/logger"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, log)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	sites, err := app.Sites(cfg, nil)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}

	// 开启归档时确保各站点存在
	if store.ArchiveEnabled() {
		for _, site := range sites {
			if _, err := store.EnsureSource(site.Key, site.Name, site.HomeURL); err != nil {
				log.Fatalf("ensure source %s failed: %v", site.Key, err)
			}
		}
	}

	s, err := app.NewScheduler(cfg, app.Sources(cfg, sites, log), cfg.CronSpec, log)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	// 启动时在后台补齐当天标题，不阻塞服务启动
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.RunOnce(ctx)
	}()

	svc := explainer.NewService(app.NewExplainer(cfg, log), store.CacheFor("explain:"), cfg.ExplainCacheTTL)

	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(s, storage.NewHeadlineWriter(cfg.NewsDir), svc, store, log)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Infof("starting api server at %s ...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Info("shutting down ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server shutdown: %v", err)
	}
	// 等待正在执行的定时采集结束
	select {
	case <-s.Stop().Done():
	case <-shutdownCtx.Done():
	}
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
