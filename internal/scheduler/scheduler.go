package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/processor"
	"github.com/LJTian/HeadlineHub/internal/storage"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Source 一个站点在调度层的视图
type Source struct {
	Key     string
	Name    string
	Adapter collector.SiteAdapter
}

// Report 单个站点一次执行的结果。Err 非空表示抓取或写文件失败，
// 与 Count == 0（正常但当天没有标题）区分开。
type Report struct {
	RunID   string
	Source  string
	Count   int
	Path    string
	Skipped bool
	Err     error
}

type Options struct {
	CronSpec    string
	Sources     []Source
	Processor   *processor.SimpleProcessor
	Writer      *storage.HeadlineWriter
	Logger      *logrus.Logger
	MaxParallel int
	// OnlyMissing 为 true 时只补抓当天缺失的站点，默认重抓全部
	OnlyMissing bool
	// Today 返回当天日期 YYYY-MM-DD
	Today func() string
	Now   func() time.Time
}

type Scheduler struct {
	cron *cron.Cron
	opts Options
	log  *logrus.Logger
}

func New(opts Options) (*Scheduler, error) {
	if opts.Processor == nil {
		opts.Processor = processor.NewSimpleProcessor()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = len(opts.Sources)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Today == nil {
		opts.Today = func() string { return opts.Now().Format("2006-01-02") }
	}

	s := &Scheduler{
		cron: cron.New(),
		opts: opts,
		log:  opts.Logger,
	}

	if opts.CronSpec != "" {
		if _, err := s.cron.AddFunc(opts.CronSpec, s.runOnce); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止 cron，返回的 ctx 在运行中的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Keys 所有站点的 key，顺序与配置一致
func (s *Scheduler) Keys() []string {
	keys := make([]string, 0, len(s.opts.Sources))
	for _, src := range s.opts.Sources {
		keys = append(keys, src.Key)
	}
	return keys
}

// Today 当前配置时区下的日期
func (s *Scheduler) Today() string {
	return s.opts.Today()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce(ctx context.Context) []Report {
	reports := s.EnsureToday(ctx)
	s.logSummary(reports)
	return reports
}

func (s *Scheduler) runOnce() {
	s.RunOnce(context.Background())
}

// EnsureToday 保证当天的标题文件存在
func (s *Scheduler) EnsureToday(ctx context.Context) []Report {
	return s.Ensure(ctx, s.opts.Today(), false)
}

// Ensure 若 date 的所有标题文件都已存在则整体跳过（不发任何请求），
// 否则并行抓取各站点并各写一个文件。force 时忽略已有文件。
func (s *Scheduler) Ensure(ctx context.Context, date string, force bool) []Report {
	runID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"run": runID, "date": date})
	keys := s.Keys()

	if !force && s.opts.Writer.AllExist(keys, date) {
		log.Info("all headline files exist, skip scraping")
		reports := make([]Report, len(keys))
		for i, k := range keys {
			reports[i] = Report{RunID: runID, Source: k, Path: s.opts.Writer.Path(k, date), Skipped: true}
		}
		return reports
	}

	targets := make(map[string]bool, len(keys))
	for _, k := range keys {
		targets[k] = true
	}
	if s.opts.OnlyMissing && !force {
		targets = make(map[string]bool)
		for _, k := range s.opts.Writer.Missing(keys, date) {
			targets[k] = true
		}
	}

	log.Info("start collect job...")
	reports := make([]Report, len(s.opts.Sources))
	sem := semaphore.NewWeighted(int64(s.opts.MaxParallel))

	var wg sync.WaitGroup
	for i, src := range s.opts.Sources {
		if !targets[src.Key] {
			reports[i] = Report{RunID: runID, Source: src.Key, Path: s.opts.Writer.Path(src.Key, date), Skipped: true}
			continue
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				reports[i] = Report{RunID: runID, Source: src.Key, Err: err}
				return
			}
			defer sem.Release(1)
			reports[i] = s.collectOne(ctx, log, runID, src, date)
		}(i, src)
	}
	wg.Wait()

	log.Info("collect job done (all sources)")
	return reports
}

func (s *Scheduler) collectOne(ctx context.Context, log *logrus.Entry, runID string, src Source, date string) Report {
	rep := Report{RunID: runID, Source: src.Key}
	log = log.WithField("source", src.Key)

	log.Infof("fetch from %s...", src.Name)
	items, err := src.Adapter.CollectHeadlines(ctx, date)
	if err != nil {
		// 不写文件，下次 ensure 会重试该站点
		log.Errorf("fetch %s error: %v", src.Key, err)
		rep.Err = err
		return rep
	}

	headlines := s.opts.Processor.Headlines(items)
	path, err := s.opts.Writer.Write(storage.HeadlineFile{
		Key:         src.Key,
		Source:      src.Name,
		Date:        date,
		GeneratedAt: s.opts.Now(),
		Headlines:   headlines,
	})
	if err != nil {
		log.Errorf("save %s headlines error: %v", src.Key, err)
		rep.Err = err
		return rep
	}

	rep.Count = len(headlines)
	rep.Path = path
	log.Infof("%s done, fetched=%d saved=%d headlines", src.Key, len(items), len(headlines))
	return rep
}

func (s *Scheduler) logSummary(reports []Report) {
	for _, r := range reports {
		switch {
		case r.Err != nil:
			s.log.Warnf("%s: failed: %v", r.Source, r.Err)
		case r.Skipped:
			s.log.Infof("%s: skipped (file exists)", r.Source)
		default:
			s.log.Infof("%s: %d headlines -> %s", r.Source, r.Count, r.Path)
		}
	}
}
