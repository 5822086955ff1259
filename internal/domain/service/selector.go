package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// Blacklist 标题黑名单，规则为不区分大小写的正则
type Blacklist struct {
	patterns []*regexp.Regexp
}

// NewBlacklist 编译黑名单规则，任何一条无法编译都返回错误
func NewBlacklist(rules []string) (*Blacklist, error) {
	b := &Blacklist{}
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + rule)
		if err != nil {
			return nil, fmt.Errorf("黑名单规则无效 %q: %w", rule, err)
		}
		b.patterns = append(b.patterns, re)
	}
	return b, nil
}

// Match 标题是否命中黑名单
func (b *Blacklist) Match(title string) bool {
	if b == nil {
		return false
	}
	for _, re := range b.patterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// FilterBlacklisted 去掉命中黑名单的文章，返回保留的文章和被去掉的数量
func FilterBlacklisted(articles []*model.Article, b *Blacklist) ([]*model.Article, int) {
	kept := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if b.Match(a.Title) {
			continue
		}
		kept = append(kept, a)
	}
	return kept, len(articles) - len(kept)
}

// CapArticles 截取前 limit 篇，limit<=0 表示不限制
func CapArticles(articles []*model.Article, limit int) []*model.Article {
	if limit <= 0 || len(articles) <= limit {
		return articles
	}
	return articles[:limit]
}

// SelectCandidates 选出需要深度分析的文章
//
// 优先选分数不低于 high 的文章，没有时退到 low；按分数降序稳定排序，
// 同分保持原有顺序，最多返回 topK 篇。
func SelectCandidates(articles []*model.Article, high, low, topK int) []*model.Article {
	candidates := scoredAtLeast(articles, high)
	if len(candidates) == 0 {
		candidates = scoredAtLeast(articles, low)
	}
	sortByScore(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// MidBand 返回分数在 [low, high) 区间的文章，用于汇总模式
func MidBand(articles []*model.Article, low, high int) []*model.Article {
	var band []*model.Article
	for _, a := range articles {
		if a.Scored() && a.Score() >= low && a.Score() < high {
			band = append(band, a)
		}
	}
	sortByScore(band)
	return band
}

func scoredAtLeast(articles []*model.Article, threshold int) []*model.Article {
	var out []*model.Article
	for _, a := range articles {
		if a.Scored() && a.Score() >= threshold {
			out = append(out, a)
		}
	}
	return out
}

func sortByScore(articles []*model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Score() > articles[j].Score()
	})
}
