package service

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
)

// FormatArticleReport 生成单篇文章的推送正文，只使用 <b>/<i> 标签
func FormatArticleReport(a *model.Article, analysis string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 <b>%s</b>\n", html.EscapeString(a.Title))
	fmt.Fprintf(&b, "⭐ <b>%d/10</b> · %s\n", a.Score(), html.EscapeString(a.Source))
	if reason := a.Reason(); reason != "" {
		if service.IsFallback(a) {
			b.WriteString("⚠️ <i>规则评分（模型配额已耗尽）</i>\n")
		}
		fmt.Fprintf(&b, "💡 <i>%s</i>\n", html.EscapeString(reason))
	}
	b.WriteString("\n")
	b.WriteString(analysis)
	return b.String()
}

// FormatRunReport 生成整轮评分汇总，按分数降序列出所有已评分文章
func FormatRunReport(articles []*model.Article, result model.RunResult) string {
	scored := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if a.Scored() {
			scored = append(scored, a)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score() > scored[j].Score() })

	var b strings.Builder
	fmt.Fprintf(&b, "<b>本轮评分汇总</b>（获取 %d 篇，新文章 %d 篇，评分 %d 篇，推送 %d 篇）\n",
		result.Fetched, result.Fresh, len(scored), result.Sent)
	if result.Fallback {
		b.WriteString("⚠️ <i>本轮使用规则评分</i>\n")
	}
	b.WriteString("\n")
	for _, a := range scored {
		fmt.Fprintf(&b, "<b>%d</b> · %s <i>(%s)</i>\n", a.Score(), html.EscapeString(a.Title), html.EscapeString(a.Source))
	}
	return strings.TrimRight(b.String(), "\n")
}
