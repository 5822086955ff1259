package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

const (
	// AnalysisSkipped 引擎耗尽时的分析占位文本
	AnalysisSkipped = "<i>analysis skipped</i>: 模型配额已用完，本条仅推送标题和评分。"
	// AnalysisFailed 分析调用出错时的占位文本
	AnalysisFailed = "<i>analysis failed</i>: 模型调用出错，本条仅推送标题和评分。"
	// EvaluationFailed 评分调用出错时的理由
	EvaluationFailed = "evaluation failed"

	preferenceSampleSize = 20
	defaultDescRunes     = 300
)

// AnalyzerOptions 分析服务的配置
type AnalyzerOptions struct {
	Temperature         float64
	DescriptionMaxRunes int
	Feedback            FeedbackSource
	Preferences         *PreferenceCache
	Metrics             *middleware.MetricsCollector
}

// AnalyzerService 评分、分析、汇总和偏好学习
type AnalyzerService struct {
	engine *Engine
	rules  *RuleScorer
	opts   AnalyzerOptions
	log    *logger.ContextLogger
}

// NewAnalyzerService 创建分析服务
func NewAnalyzerService(engine *Engine, rules *RuleScorer, opts AnalyzerOptions) *AnalyzerService {
	if opts.DescriptionMaxRunes <= 0 {
		opts.DescriptionMaxRunes = defaultDescRunes
	}
	if rules == nil {
		rules = &RuleScorer{}
	}
	return &AnalyzerService{
		engine: engine,
		rules:  rules,
		opts:   opts,
		log:    logger.WithContext("analyzer"),
	}
}

// ScoreArticles 批量评分，返回是否使用了规则评分
//
// 引擎耗尽时所有文章改用规则评分；其他错误时所有文章记为1分。
// 返回后每篇文章都已有评分。
func (s *AnalyzerService) ScoreArticles(ctx context.Context, articles []*model.Article, pref model.UserPreference) bool {
	if len(articles) == 0 {
		return false
	}
	defer logger.TimeTrack("ScoreArticles")()

	if s.engine.Exhausted() {
		s.log.Warn("模型不可用，使用规则评分", "articles", len(articles))
		s.rules.ScoreAll(articles)
		s.opts.Metrics.RecordScored(len(articles), true)
		return true
	}

	text, err := s.engine.Generate(ctx, GenerateRequest{
		Prompt:      s.scorePrompt(articles, pref),
		Temperature: s.opts.Temperature,
	})
	if IsExhausted(err) {
		s.log.Warn("所有提供方已耗尽，进入生存模式", "articles", len(articles), "error", err)
		s.rules.ScoreAll(articles)
		s.opts.Metrics.RecordScored(len(articles), true)
		return true
	}
	if err != nil {
		s.log.Error("批量评分失败", "articles", len(articles), "error", err)
		for _, a := range articles {
			a.Evaluate(MissingScore, EvaluationFailed)
		}
		s.opts.Metrics.RecordScored(len(articles), false)
		return false
	}

	for i, e := range ParseScores(text, len(articles)) {
		articles[i].Evaluate(e.Score, e.Reason)
	}
	s.log.Info("批量评分完成", "articles", len(articles))
	s.opts.Metrics.RecordScored(len(articles), false)
	return false
}

func (s *AnalyzerService) scorePrompt(articles []*model.Article, pref model.UserPreference) string {
	var b strings.Builder
	b.WriteString("你是一名资深DevOps工程师。请按技术重要性为下列IT新闻标题打分（1-10），并用一句话说明理由。\n\n")
	fmt.Fprintf(&b, "读者偏好: %s\n读者不感兴趣: %s\n\n", pref.Likes, pref.Dislikes)
	b.WriteString("[回复格式]\n每篇文章一行，严格使用 [分数: 理由] 的形式，按列表顺序输出，不要输出其他内容。\n")
	b.WriteString("示例:\n[8: 新的开源大模型发布，将影响开发生态]\n[3: 单纯的企业活动宣传]\n\n[列表]\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i, a.Title, a.Source)
		if desc := truncateRunes(a.Description, s.opts.DescriptionMaxRunes); desc != "" {
			fmt.Fprintf(&b, "    %s\n", desc)
		}
	}
	return b.String()
}

// AnalyzeArticle 对单篇文章做深度分析，始终返回可发送的文本
func (s *AnalyzerService) AnalyzeArticle(ctx context.Context, a *model.Article) string {
	if s.engine.Exhausted() {
		s.log.Info("引擎已耗尽，跳过深度分析", "title", a.Title)
		return AnalysisSkipped
	}

	prompt := fmt.Sprintf(`你是一名资深DevOps工程师，请分析下面这条新闻。
要求：只能使用 <b> 和 <i> 标签，禁止使用 *、-、• 等符号，各部分之间空一行。

标题: %s
来源: %s
摘要: %s

[回复格式]
<b>[技术影响]</b>
(内容)

<b>[解读与分析]</b>
(内容)

<b>[总结]</b>
✅ (一句话总结)
`, a.Title, a.Source, truncateRunes(a.Description, s.opts.DescriptionMaxRunes))

	text, err := s.engine.Generate(ctx, GenerateRequest{Prompt: prompt, Temperature: s.opts.Temperature})
	if IsExhausted(err) {
		s.log.Warn("分析时提供方耗尽，使用占位文本", "title", a.Title)
		return AnalysisSkipped
	}
	if err != nil {
		s.log.Error("文章分析失败", "title", a.Title, "error", err)
		return AnalysisFailed
	}

	s.opts.Metrics.RecordAnalyzed()
	out := SanitizeTelegramHTML(text)
	if out == "" {
		return AnalysisFailed
	}
	return out
}

// SummarizeDaily 把多篇文章汇总为一条综合报告
//
// 模型不可用时返回本地生成的标题列表，保证总有内容可发送。
func (s *AnalyzerService) SummarizeDaily(ctx context.Context, articles []*model.Article) string {
	if len(articles) == 0 {
		return "今日没有需要汇总的新闻"
	}
	if s.engine.Exhausted() {
		return localDigest(articles)
	}

	var b strings.Builder
	b.WriteString("请汇总今天的技术新闻。禁止使用 *、-、• 等符号，只能使用 <b> 和 <i> 标签。\n\n")
	for _, a := range articles {
		fmt.Fprintf(&b, "标题: %s (来源: %s, 分数: %d, 理由: %s)\n", a.Title, a.Source, a.Score(), a.Reason())
	}
	b.WriteString(`
[回复格式]
<b>[今日核心技术趋势]</b>

<b>1. (主题)</b>
(内容)

✅ <b>最终总结</b>
(内容)
`)

	text, err := s.engine.Generate(ctx, GenerateRequest{Prompt: b.String(), Temperature: s.opts.Temperature})
	if err != nil {
		s.log.Warn("汇总失败，使用本地列表", "articles", len(articles), "error", err)
		return localDigest(articles)
	}

	s.opts.Metrics.RecordAnalyzed()
	if out := SanitizeTelegramHTML(text); out != "" {
		return out
	}
	return localDigest(articles)
}

func localDigest(articles []*model.Article) string {
	var b strings.Builder
	b.WriteString("<b>[今日新闻列表]</b>\n\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "<b>%d. %s</b> (%d分)\n%s\n\n", i+1, html.EscapeString(a.Title), a.Score(), html.EscapeString(a.Reason()))
	}
	return strings.TrimSpace(b.String())
}

// LearnPreference 根据最近的反馈学习用户偏好
//
// 没有反馈、缓存仍有效、引擎不可用或学习失败时，返回缓存值或默认偏好。
func (s *AnalyzerService) LearnPreference(ctx context.Context) model.UserPreference {
	cache := s.opts.Preferences
	cached, err := cache.Load()
	if err != nil {
		s.log.Warn("偏好缓存不可用", "error", err)
	}
	fallback := model.DefaultPreference
	if cached != nil {
		fallback = *cached
	}

	if s.opts.Feedback == nil {
		return fallback
	}

	likes, err := s.opts.Feedback.RecentByTag(model.FeedbackLike, preferenceSampleSize)
	if err != nil {
		s.log.Warn("读取反馈失败", "error", err)
		return fallback
	}
	dislikes, err := s.opts.Feedback.RecentByTag(model.FeedbackDislike, preferenceSampleSize)
	if err != nil {
		s.log.Warn("读取反馈失败", "error", err)
		return fallback
	}
	if len(likes) == 0 && len(dislikes) == 0 {
		return fallback
	}

	hash := SampleHash(likes, dislikes)
	if cache != nil && cache.Fresh(cached, hash) {
		s.log.Debug("复用缓存的偏好摘要", "sample_hash", hash[:12])
		return *cached
	}
	if s.engine.Exhausted() {
		return fallback
	}

	var b strings.Builder
	b.WriteString("根据读者的反馈，总结其感兴趣和不感兴趣的技术主题，每项不超过50字。\n\n喜欢的文章:\n")
	for _, r := range likes {
		fmt.Fprintf(&b, "- %s\n", r.Title)
	}
	b.WriteString("\n不喜欢的文章:\n")
	for _, r := range dislikes {
		fmt.Fprintf(&b, "- %s\n", r.Title)
	}
	b.WriteString("\n[回复格式]\nLIKES: <喜欢的主题>\nDISLIKES: <不喜欢的主题>\n")

	text, err := s.engine.Generate(ctx, GenerateRequest{Prompt: b.String(), Temperature: s.opts.Temperature})
	if err != nil {
		s.log.Warn("偏好学习失败，沿用已有偏好", "error", err)
		return fallback
	}
	likesText, dislikesText, err := ParsePreference(text)
	if err != nil {
		s.log.Warn("偏好响应格式错误", "error", err)
		return fallback
	}

	pref := model.UserPreference{Likes: likesText, Dislikes: dislikesText, SampleHash: hash}
	if err := cache.Save(pref); err != nil {
		s.log.Warn("保存偏好失败", "error", err)
	}
	s.log.Info("偏好摘要已更新", "likes", likesText, "dislikes", dislikesText)
	return pref
}

// truncateRunes 按字符截断，避免切断多字节字符
func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// ModelAvailable 引擎是否还可能调用模型
func (s *AnalyzerService) ModelAvailable() bool {
	return !s.engine.Exhausted()
}
