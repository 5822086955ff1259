package service

import (
	"strings"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// FallbackMarker 规则评分理由的前缀，用于在推送和日志中区分生存模式
const FallbackMarker = "[survival mode]"

const (
	preferredSourceScore  = 8
	preferredKeywordScore = 6
	neutralScore          = 5
)

// RuleScorer 在所有模型提供方都不可用时按固定规则评分
type RuleScorer struct {
	PreferredSources  []string
	PreferredKeywords []string
}

// NewRuleScorer 根据流水线配置创建规则评分器
func NewRuleScorer(cfg model.PipelineConfig) *RuleScorer {
	return &RuleScorer{
		PreferredSources:  cfg.PreferredSources,
		PreferredKeywords: cfg.PreferredKeywords,
	}
}

// Score 为单篇文章计算规则分数
func (r *RuleScorer) Score(a *model.Article) (int, string) {
	for _, s := range r.PreferredSources {
		if s != "" && strings.EqualFold(s, a.Source) {
			return preferredSourceScore, FallbackMarker + " 优先来源: " + a.Source
		}
	}

	title := strings.ToLower(a.Title)
	for _, kw := range r.PreferredKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return preferredKeywordScore, FallbackMarker + " 关键词: " + kw
		}
	}

	return neutralScore, FallbackMarker + " 默认分数"
}

// ScoreAll 为所有文章设置规则分数
func (r *RuleScorer) ScoreAll(articles []*model.Article) {
	for _, a := range articles {
		a.Evaluate(r.Score(a))
	}
}

// IsFallback 判断评分是否来自规则评分器
func IsFallback(a *model.Article) bool {
	return strings.HasPrefix(a.Reason(), FallbackMarker)
}
