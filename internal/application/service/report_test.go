package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
)

func TestFormatArticleReport(t *testing.T) {
	a := &model.Article{Source: "GeekNews", Title: "Go 1.23 & iterators"}
	a.Evaluate(8, "语言层面的重要更新")

	msg := FormatArticleReport(a, "<b>[技术影响]</b>\n分析")

	assert.Contains(t, msg, "Go 1.23 &amp; iterators")
	assert.Contains(t, msg, "<b>8/10</b>")
	assert.Contains(t, msg, "语言层面的重要更新")
	assert.NotContains(t, msg, "规则评分")
	assert.True(t, strings.HasSuffix(msg, "分析"))
}

func TestFormatArticleReportMarksRuleScores(t *testing.T) {
	a := &model.Article{Source: "Toss_Tech", Title: "결제"}
	a.Evaluate(service.NewRuleScorer(model.PipelineConfig{PreferredSources: []string{"Toss_Tech"}}).Score(a))

	msg := FormatArticleReport(a, service.AnalysisSkipped)

	assert.Contains(t, msg, "规则评分")
	assert.Contains(t, msg, service.AnalysisSkipped)
}

func TestFormatRunReportOrdersByScore(t *testing.T) {
	low := &model.Article{Source: "A", Title: "low"}
	low.Evaluate(3, "x")
	high := &model.Article{Source: "B", Title: "high"}
	high.Evaluate(9, "y")
	unscored := &model.Article{Source: "C", Title: "unscored"}

	msg := FormatRunReport([]*model.Article{low, unscored, high}, model.RunResult{Fetched: 5, Fresh: 3, Sent: 1, Fallback: true})

	assert.Less(t, strings.Index(msg, "high"), strings.Index(msg, "low"))
	assert.NotContains(t, msg, "unscored")
	assert.Contains(t, msg, "评分 2 篇")
	assert.Contains(t, msg, "规则评分")
}
