package cmd

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// setDefaults 所有配置项的默认值集中在这里
func setDefaults(v *viper.Viper) {
	v.SetDefault("rss.opml_file", "")
	v.SetDefault("rss.timeout", 15)
	v.SetDefault("rss.concurrency", 0)
	v.SetDefault("rss.per_feed_limit", 15)
	v.SetDefault("rss.max_total", 150)
	v.SetDefault("rss.priority_sources", []string{})
	v.SetDefault("rss.keep_query_hosts", []string{"news.hada.io", "news.ycombinator.com"})

	v.SetDefault("llm.backoff_seconds", 2)
	v.SetDefault("llm.max_calls", 50)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.call_timeout", 60)
	v.SetDefault("llm.preference_ttl_hours", 24)

	v.SetDefault("pipeline.max_articles", 20)
	v.SetDefault("pipeline.high_threshold", 7)
	v.SetDefault("pipeline.low_threshold", 4)
	v.SetDefault("pipeline.top_k", 3)
	v.SetDefault("pipeline.send_delay_seconds", 5)
	v.SetDefault("pipeline.llm_interval_seconds", 2)
	v.SetDefault("pipeline.description_max_runes", 300)
	v.SetDefault("pipeline.blacklist", []string{})
	v.SetDefault("pipeline.preferred_sources", []string{})
	v.SetDefault("pipeline.preferred_keywords", []string{})
	v.SetDefault("pipeline.run_report", false)

	v.SetDefault("database.file_path", "data/news-radar.db")
	v.SetDefault("database.retention_days", 7)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.feedback_buttons", false)
	v.SetDefault("telegram.timeout", 30)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.console", true)
	v.SetDefault("logger.file_path", "logs/news-radar.log")
	v.SetDefault("logger.memstats_interval", 0)
}

// parseMode 校验运行模式
func parseMode(mode string) (model.RunMode, error) {
	switch model.RunMode(mode) {
	case model.ModeRegular, "":
		return model.ModeRegular, nil
	case model.ModeSummary:
		return model.ModeSummary, nil
	default:
		return "", fmt.Errorf("无效的运行模式 '%s'，可选值: regular, summary", mode)
	}
}

// loadRunParams 从viper读取一次运行的全部参数
//
// 标量逐项读取，这样配置文件只写了部分字段时其余字段仍取默认值或环境变量。
func loadRunParams(v *viper.Viper, mode string) (model.RunParams, error) {
	runMode, err := parseMode(mode)
	if err != nil {
		return model.RunParams{}, err
	}

	params := model.RunParams{
		Mode: runMode,
		Rss: model.RssConfig{
			OpmlFile:        v.GetString("rss.opml_file"),
			PrioritySources: v.GetStringSlice("rss.priority_sources"),
			Timeout:         v.GetInt("rss.timeout"),
			Concurrency:     v.GetInt("rss.concurrency"),
			PerFeedLimit:    v.GetInt("rss.per_feed_limit"),
			MaxTotal:        v.GetInt("rss.max_total"),
			KeepQueryHosts:  v.GetStringSlice("rss.keep_query_hosts"),
		},
		LLM: model.LLMConfig{
			BackoffSeconds:     v.GetInt("llm.backoff_seconds"),
			MaxCalls:           v.GetInt("llm.max_calls"),
			Temperature:        v.GetFloat64("llm.temperature"),
			CallTimeout:        v.GetInt("llm.call_timeout"),
			PreferenceTTLHours: v.GetInt("llm.preference_ttl_hours"),
		},
		Pipeline: model.PipelineConfig{
			MaxArticles:         v.GetInt("pipeline.max_articles"),
			HighThreshold:       v.GetInt("pipeline.high_threshold"),
			LowThreshold:        v.GetInt("pipeline.low_threshold"),
			TopK:                v.GetInt("pipeline.top_k"),
			SendDelaySeconds:    v.GetInt("pipeline.send_delay_seconds"),
			LLMIntervalSeconds:  v.GetInt("pipeline.llm_interval_seconds"),
			DescriptionMaxRunes: v.GetInt("pipeline.description_max_runes"),
			Blacklist:           v.GetStringSlice("pipeline.blacklist"),
			PreferredSources:    v.GetStringSlice("pipeline.preferred_sources"),
			PreferredKeywords:   v.GetStringSlice("pipeline.preferred_keywords"),
			RunReport:           v.GetBool("pipeline.run_report"),
		},
		Database: model.DatabaseConfig{
			FilePath:      v.GetString("database.file_path"),
			RetentionDays: v.GetInt("database.retention_days"),
		},
		Telegram: loadTelegramConfig(v),
	}

	if err := v.UnmarshalKey("rss.sources", &params.Rss.Sources); err != nil {
		return params, fmt.Errorf("解析 rss.sources 失败: %w", err)
	}
	if err := v.UnmarshalKey("llm.providers", &params.LLM.Providers); err != nil {
		return params, fmt.Errorf("解析 llm.providers 失败: %w", err)
	}

	if params.Pipeline.LowThreshold > params.Pipeline.HighThreshold {
		return params, fmt.Errorf("pipeline.low_threshold (%d) 不能大于 pipeline.high_threshold (%d)",
			params.Pipeline.LowThreshold, params.Pipeline.HighThreshold)
	}
	return params, nil
}

func loadTelegramConfig(v *viper.Viper) model.TelegramConfig {
	return model.TelegramConfig{
		BotToken:        v.GetString("telegram.bot_token"),
		ChatID:          v.GetString("telegram.chat_id"),
		APIEndpoint:     v.GetString("telegram.api_endpoint"),
		FeedbackButtons: v.GetBool("telegram.feedback_buttons"),
		Timeout:         v.GetInt("telegram.timeout"),
	}
}
