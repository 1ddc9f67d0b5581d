package api

import (
	"net/http"
	"strconv"

	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/explainer"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	sched   *scheduler.Scheduler
	writer  *storage.HeadlineWriter
	explain *explainer.Service
	store   *storage.Store
	log     *logrus.Logger
}

// NewServer store 可以为 nil，此时归档接口返回 503
func NewServer(sched *scheduler.Scheduler, writer *storage.HeadlineWriter, explain *explainer.Service, store *storage.Store, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{sched: sched, writer: writer, explain: explain, store: store, log: log}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/headlines", s.listHeadlines)
		v1.GET("/explain", s.explainURL)
		v1.GET("/articles", s.listArticles)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listHeadlines 当天的请求会先确保标题文件存在（全部存在时不发请求）
func (s *Server) listHeadlines(c *gin.Context) {
	today := s.sched.Today()
	date := c.DefaultQuery("date", today)
	if _, err := config.ParseDate(date); err != nil {
		badRequest(c, err.Error())
		return
	}

	var reports []scheduler.Report
	if date == today {
		reports = s.sched.EnsureToday(c.Request.Context())
	}

	texts, err := s.writer.LoadHeadlineTexts(s.sched.Keys(), date)
	if err != nil {
		s.log.Errorf("load headlines %s error: %v", date, err)
		internalError(c)
		return
	}

	failed := make(map[string]string)
	for _, r := range reports {
		if r.Err != nil {
			failed[r.Source] = r.Err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"date":    date,
			"sources": texts,
			"failed":  failed,
		},
	})
}

func (s *Server) explainURL(c *gin.Context) {
	mode, ok := explainer.ParseMode(c.Query("mode"))
	if !ok {
		badRequest(c, "mode must be text, raw or markdown")
		return
	}

	out := s.explain.Explain(c.Request.Context(), c.Query("url"), mode)
	if explainer.IsError(out) {
		status := http.StatusBadGateway
		if c.Query("url") == "" {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"code":    "explain_failed",
			"message": out,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}

func (s *Server) listArticles(c *gin.Context) {
	if !s.store.ArchiveEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "archive_disabled",
			"message": "article archive is not configured",
		})
		return
	}

	source := c.Query("source")
	date := c.Query("date")
	if date != "" {
		if _, err := config.ParseDate(date); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListArticles(c.Request.Context(), source, date, limit)
	if err != nil {
		s.log.Errorf("list articles error: %v", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "bad_request",
		"message": msg,
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
