package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gilliek/go-opml/opml"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

const (
	defaultFetchTimeout = 15
	defaultPerFeedLimit = 15
	defaultMaxTotal     = 150
	userAgent           = "news-radar/1.0 (+https://github.com/wolfitem/ai-news-radar)"
)

// RssService 定义RSS处理的领域服务接口
type RssService interface {
	// ParseOpml 解析OPML文件并返回RSS源列表
	ParseOpml(opmlFilePath string) ([]model.RssSource, error)

	// FetchArticles 并发获取所有源的文章，失败的源只贡献零篇文章
	FetchArticles(ctx context.Context, sources []model.RssSource) []*model.Article
}

// rssService 实现RssService接口
type rssService struct {
	config     model.RssConfig
	normalizer LinkNormalizer
	client     *http.Client
	metrics    *middleware.MetricsCollector
}

// NewRssService 创建一个新的RSS服务实例
func NewRssService(config model.RssConfig, metrics *middleware.MetricsCollector) RssService {
	if config.Timeout <= 0 {
		config.Timeout = defaultFetchTimeout
	}
	if config.PerFeedLimit <= 0 {
		config.PerFeedLimit = defaultPerFeedLimit
	}
	if config.MaxTotal <= 0 {
		config.MaxTotal = defaultMaxTotal
	}
	return &rssService{
		config:     config,
		normalizer: LinkNormalizer{KeepQueryHosts: config.KeepQueryHosts},
		client:     &http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		metrics:    metrics,
	}
}

// ParseOpml 解析OPML文件并返回RSS源列表
func (s *rssService) ParseOpml(opmlFilePath string) ([]model.RssSource, error) {
	logger.Info("开始解析OPML文件", "file", opmlFilePath)
	defer logger.TimeTrack("ParseOpml")()

	doc, err := opml.NewOPMLFromFile(opmlFilePath)
	if err != nil {
		logger.Error("解析OPML文件失败", "file", opmlFilePath, "error", err)
		return nil, fmt.Errorf("解析OPML文件失败: %w", err)
	}

	var sources []model.RssSource
	for _, outline := range doc.Outlines() {
		sources = append(sources, extractSources(outline)...)
	}

	logger.Info("OPML文件解析完成", "file", opmlFilePath, "sources_count", len(sources))
	return sources, nil
}

// extractSources 递归提取outline中的RSS源
func extractSources(outline opml.Outline) []model.RssSource {
	var sources []model.RssSource

	if outline.XMLURL != "" {
		name := outline.Title
		if name == "" {
			name = outline.Text
		}
		sources = append(sources, model.RssSource{Name: name, URL: outline.XMLURL})
	}

	for _, child := range outline.Outlines {
		sources = append(sources, extractSources(child)...)
	}

	return sources
}

// OrderSources 把优先源排在前面，其余保持原顺序
func OrderSources(sources []model.RssSource, priority []string) []model.RssSource {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[strings.ToLower(name)] = i
	}
	ordered := append([]model.RssSource(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iok := rank[strings.ToLower(ordered[i].Name)]
		rj, jok := rank[strings.ToLower(ordered[j].Name)]
		if iok && jok {
			return ri < rj
		}
		return iok && !jok
	})
	return ordered
}

// FetchArticles 从RSS源获取文章
func (s *rssService) FetchArticles(ctx context.Context, sources []model.RssSource) []*model.Article {
	logger.Info("开始获取RSS文章", "sources_count", len(sources), "timeout_seconds", s.config.Timeout, "concurrency", s.config.Concurrency)
	defer logger.TimeTrack("FetchArticles")()

	sources = OrderSources(sources, s.config.PrioritySources)
	results := make([][]*model.Article, len(sources))

	concurrency := s.config.Concurrency
	if concurrency <= 0 || concurrency > len(sources) {
		concurrency = len(sources)
	}
	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			articles, err := s.fetchSource(ctx, src)
			if err != nil {
				logger.Warn("获取RSS源失败", "source", src.Name, "url", src.URL, "error", err)
				s.metrics.RecordSource(false, 0)
				return nil
			}
			logger.Info("成功获取RSS源", "source", src.Name, "articles_count", len(articles))
			s.metrics.RecordSource(true, len(articles))
			results[i] = articles
			return nil
		})
	}
	// 单个源失败不影响其他源，这里不会返回错误
	_ = g.Wait()

	// 按源顺序合并，同一规范化链接只保留第一次出现
	seen := make(map[string]bool)
	var articles []*model.Article
	for _, group := range results {
		for _, a := range group {
			if seen[a.Link] {
				continue
			}
			seen[a.Link] = true
			articles = append(articles, a)
			if len(articles) >= s.config.MaxTotal {
				logger.Info("达到文章总数上限", "max_total", s.config.MaxTotal)
				return articles
			}
		}
	}

	logger.Info("所有RSS源处理完成", "total_articles", len(articles))
	return articles
}

// fetchSource 单次尝试获取一个源，不重试
func (s *rssService) fetchSource(ctx context.Context, src model.RssSource) ([]*model.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = s.client
	fp.UserAgent = userAgent

	feed, err := fp.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	var articles []*model.Article
	for _, item := range feed.Items {
		if len(articles) >= s.config.PerFeedLimit {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		articles = append(articles, &model.Article{
			Source:      src.Name,
			Title:       title,
			Link:        s.normalizer.Normalize(link),
			URL:         link,
			Description: StripHTML(description),
			Published:   published,
		})
	}
	return articles, nil
}
