package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	appservice "github.com/wolfitem/ai-news-radar/internal/application/service"
	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/ai"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/database"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/notifier"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

var runMode string

// runCmd 执行一次批处理
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "获取、评分并推送一批技术新闻",
	Long: `执行一次完整的批处理：获取RSS源，去重并过滤，批量评分，
regular 模式下对高分文章逐篇深度分析并推送，summary 模式下把中间分数段
的文章合并为一条综合报告。适合由cron或CI定时调用。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadRunParams(viper.GetViper(), runMode)
		if err != nil {
			return err
		}

		result, err := runPipeline(cmd.Context(), params)
		if err != nil {
			logger.Error("运行失败", "error", err)
			return fmt.Errorf("运行失败: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "运行完成: 获取 %d 篇，新文章 %d 篇，推送 %d 篇，失败 %d 篇\n",
			result.Fetched, result.Fresh, result.Sent, result.SendFailed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runMode, "mode", "m", string(model.ModeRegular), "运行模式: regular 或 summary")
}

// runPipeline 组装所有组件并执行一次运行
func runPipeline(ctx context.Context, params model.RunParams) (model.RunResult, error) {
	monitor := logger.NewMemStatsMonitor(time.Duration(viper.GetInt("logger.memstats_interval")) * time.Second)
	monitor.Start()
	defer monitor.Stop()
	defer logger.LogMemStatsOnce()

	metrics := middleware.NewMetricsCollector()
	defer middleware.LogMetrics(metrics)

	validator := service.NewValidator()
	rssService := service.NewRssService(params.Rss, metrics)

	sources, err := loadSources(validator, rssService, params.Rss)
	if err != nil {
		return model.RunResult{}, err
	}

	normalizer := service.LinkNormalizer{KeepQueryHosts: params.Rss.KeepQueryHosts}
	tg, err := notifier.NewTelegramNotifier(params.Telegram, normalizer, metrics)
	if err != nil {
		return model.RunResult{}, err
	}

	providers, err := ai.BuildProviders(ctx, params.LLM, validator)
	if err != nil {
		return model.RunResult{}, err
	}
	defer providers.Close()

	db, err := database.Open(params.Database.FilePath)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("打开数据库失败: %w", err)
	}
	defer db.Close()

	sentRepo := database.NewSQLiteSentRepository(db)
	feedbackRepo := database.NewSQLiteFeedbackRepository(db)
	stateRepo := database.NewSQLiteStateRepository(db)

	engine := service.NewEngine(providers.Clients, service.EngineOptions{
		Backoff:     time.Duration(params.LLM.BackoffSeconds) * time.Second,
		CallTimeout: time.Duration(params.LLM.CallTimeout) * time.Second,
		Budget:      middleware.NewRunBudget(params.LLM.MaxCalls),
		Metrics:     metrics,
	})
	analyzer := service.NewAnalyzerService(engine, service.NewRuleScorer(params.Pipeline), service.AnalyzerOptions{
		Temperature:         params.LLM.Temperature,
		DescriptionMaxRunes: params.Pipeline.DescriptionMaxRunes,
		Feedback:            feedbackRepo,
		Preferences:         service.NewPreferenceCache(stateRepo, time.Duration(params.LLM.PreferenceTTLHours)*time.Hour),
		Metrics:             metrics,
	})

	pipeline := appservice.NewPipelineService(appservice.PipelineDeps{
		Fetcher:  rssService,
		Tracker:  service.NewDeliveryTracker(sentRepo, normalizer),
		Analyzer: analyzer,
		Notifier: tg,
		Metrics:  metrics,
	})
	return pipeline.Run(ctx, params, sources)
}

// loadSources 合并配置文件和OPML中的源，过滤无效URL
func loadSources(validator *service.Validator, rssService service.RssService, cfg model.RssConfig) ([]model.RssSource, error) {
	sources := append([]model.RssSource(nil), cfg.Sources...)

	if cfg.OpmlFile != "" {
		if err := validator.ValidateFilePath(cfg.OpmlFile); err != nil {
			return nil, fmt.Errorf("OPML文件验证失败: %w", err)
		}
		fromOpml, err := rssService.ParseOpml(cfg.OpmlFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, fromOpml...)
	}

	valid, errs := validator.ValidateSources(sources)
	for _, err := range errs {
		logger.Warn("跳过无效的RSS源", "error", err)
	}
	if len(valid) == 0 {
		return nil, errors.New("没有可用的RSS源 (rss.sources / rss.opml_file)")
	}
	return valid, nil
}
