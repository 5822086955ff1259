package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

// Fetcher 获取文章
type Fetcher interface {
	FetchArticles(ctx context.Context, sources []model.RssSource) []*model.Article
}

// PipelineService 定义一次批处理运行的应用服务接口
type PipelineService interface {
	// Run 执行一次完整的获取、评分、推送流程
	Run(ctx context.Context, params model.RunParams, sources []model.RssSource) (model.RunResult, error)
}

// PipelineDeps 流水线依赖的组件
type PipelineDeps struct {
	Fetcher  Fetcher
	Tracker  *service.DeliveryTracker
	Analyzer *service.AnalyzerService
	Notifier service.Notifier
	Metrics  *middleware.MetricsCollector
	Sleep    service.SleepFunc
}

// pipelineService 实现PipelineService接口
type pipelineService struct {
	deps PipelineDeps
	log  *logger.ContextLogger
}

// NewPipelineService 创建流水线服务
func NewPipelineService(deps PipelineDeps) PipelineService {
	if deps.Sleep == nil {
		deps.Sleep = service.ContextSleep
	}
	return &pipelineService{deps: deps, log: logger.WithContext("pipeline")}
}

// Run 执行一次批处理
//
// 顺序：学习偏好、获取、去重、黑名单、截断、评分、选择、分析推送、汇总报告、清理。
// 除配置错误和取消外，任何组件失败都只降级不报错。
func (s *pipelineService) Run(ctx context.Context, params model.RunParams, sources []model.RssSource) (model.RunResult, error) {
	s.log.Info("开始运行", "mode", params.Mode, "sources", len(sources))
	defer logger.TimeTrack("Pipeline.Run")()

	var result model.RunResult
	cfg := params.Pipeline

	blacklist, err := service.NewBlacklist(cfg.Blacklist)
	if err != nil {
		return result, err
	}

	pref := s.deps.Analyzer.LearnPreference(ctx)

	fetched := s.deps.Fetcher.FetchArticles(ctx, sources)
	result.Fetched = len(fetched)

	fresh := s.deps.Tracker.FilterUnsent(fetched)
	result.Fresh = len(fresh)

	kept, removed := service.FilterBlacklisted(fresh, blacklist)
	result.Blacklisted = removed
	s.deps.Metrics.RecordFiltered(len(fetched)-len(fresh), removed)

	batch := service.CapArticles(kept, cfg.MaxArticles)
	s.log.Info("候选文章准备完成", "fetched", result.Fetched, "fresh", result.Fresh, "blacklisted", removed, "batch", len(batch))

	if len(batch) > 0 {
		result.Fallback = s.deps.Analyzer.ScoreArticles(ctx, batch, pref)
		result.Scored = len(batch)

		switch params.Mode {
		case model.ModeSummary:
			err = s.deliverSummary(ctx, cfg, batch, &result)
		default:
			err = s.deliverRegular(ctx, cfg, batch, &result)
		}

		if err == nil && cfg.RunReport {
			err = s.sendRunReport(ctx, cfg, batch, result)
		}
	} else {
		s.log.Info("没有需要处理的新文章")
	}

	retention := time.Duration(params.Database.RetentionDays) * 24 * time.Hour
	if retention > 0 {
		s.deps.Tracker.Prune(retention)
	}

	s.log.Info("运行结束", "sent", result.Sent, "send_failed", result.SendFailed, "fallback", result.Fallback)
	if err != nil {
		return result, fmt.Errorf("运行被中断: %w", err)
	}
	return result, nil
}

// deliverRegular 高分文章逐篇分析并单独推送，只有发送成功才记录
func (s *pipelineService) deliverRegular(ctx context.Context, cfg model.PipelineConfig, batch []*model.Article, result *model.RunResult) error {
	candidates := service.SelectCandidates(batch, cfg.HighThreshold, cfg.LowThreshold, cfg.TopK)
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		s.log.Info("没有达到阈值的文章", "high", cfg.HighThreshold, "low", cfg.LowThreshold)
		return nil
	}

	pendingDelay := false
	for i, a := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && s.deps.Analyzer.ModelAvailable() {
			if err := s.deps.Sleep(ctx, seconds(cfg.LLMIntervalSeconds)); err != nil {
				return err
			}
		}
		analysis := s.deps.Analyzer.AnalyzeArticle(ctx, a)

		if pendingDelay {
			if err := s.deps.Sleep(ctx, seconds(cfg.SendDelaySeconds)); err != nil {
				return err
			}
		}

		if s.deps.Notifier.Send(ctx, FormatArticleReport(a, analysis), a.DisplayURL()) {
			s.deps.Tracker.Add(a)
			result.Sent++
			pendingDelay = true
			s.log.Info("文章推送成功", "title", a.Title, "score", a.Score())
		} else {
			result.SendFailed++
			s.log.Warn("文章推送失败，下次运行会重试", "title", a.Title)
		}
	}
	return nil
}

// deliverSummary 中间分数段的文章合并为一条汇总
func (s *pipelineService) deliverSummary(ctx context.Context, cfg model.PipelineConfig, batch []*model.Article, result *model.RunResult) error {
	band := service.MidBand(batch, cfg.LowThreshold, cfg.HighThreshold)
	result.Candidates = len(band)
	if len(band) == 0 {
		s.log.Info("没有中间分数段的文章", "low", cfg.LowThreshold, "high", cfg.HighThreshold)
		return nil
	}

	digest := s.deps.Analyzer.SummarizeDaily(ctx, band)
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.deps.Notifier.SendSummary(ctx, digest) {
		result.SendFailed++
		s.log.Warn("汇总推送失败")
		return nil
	}
	for _, a := range band {
		s.deps.Tracker.Add(a)
	}
	result.Sent = len(band)
	return nil
}

// sendRunReport 无论单篇推送是否成功都发送整轮汇总
func (s *pipelineService) sendRunReport(ctx context.Context, cfg model.PipelineConfig, batch []*model.Article, result model.RunResult) error {
	if result.Sent+result.SendFailed > 0 {
		if err := s.deps.Sleep(ctx, seconds(cfg.SendDelaySeconds)); err != nil {
			return err
		}
	}
	if !s.deps.Notifier.Send(ctx, FormatRunReport(batch, result), "") {
		s.log.Warn("整轮汇总推送失败")
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
