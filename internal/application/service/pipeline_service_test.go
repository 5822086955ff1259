package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/database"
)

type scriptedProvider struct {
	replies []string
	err     error
	calls   int
}

func (p *scriptedProvider) Name() string { return "fake#1" }

func (p *scriptedProvider) Generate(context.Context, service.GenerateRequest) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	if len(p.replies) == 0 {
		return "<b>[技术影响]</b>\n分析", nil
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r, nil
}

type sentMessage struct {
	text      string
	sourceURL string
	summary   bool
}

type fakeNotifier struct {
	results  []bool
	messages []sentMessage
}

func (n *fakeNotifier) next() bool {
	if len(n.results) == 0 {
		return true
	}
	ok := n.results[0]
	n.results = n.results[1:]
	return ok
}

func (n *fakeNotifier) Send(_ context.Context, message, sourceURL string) bool {
	n.messages = append(n.messages, sentMessage{text: message, sourceURL: sourceURL})
	return n.next()
}

func (n *fakeNotifier) SendSummary(_ context.Context, message string) bool {
	n.messages = append(n.messages, sentMessage{text: message, summary: true})
	return n.next()
}

type staticFetcher []*model.Article

func (f staticFetcher) FetchArticles(context.Context, []model.RssSource) []*model.Article {
	out := make([]*model.Article, len(f))
	for i, a := range f {
		cp := *a
		out[i] = &cp
	}
	return out
}

type harness struct {
	tracker  *service.DeliveryTracker
	notifier *fakeNotifier
	sleeps   []time.Duration
	pipeline PipelineService
}

func newHarness(t *testing.T, fetcher Fetcher, provider service.AIClient, cfg model.PipelineConfig) *harness {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		tracker:  service.NewDeliveryTracker(database.NewSQLiteSentRepository(db), service.LinkNormalizer{}),
		notifier: &fakeNotifier{},
	}
	sleep := func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}

	var providers []service.AIClient
	if provider != nil {
		providers = append(providers, provider)
	}
	engine := service.NewEngine(providers, service.EngineOptions{Sleep: sleep})
	analyzer := service.NewAnalyzerService(engine, service.NewRuleScorer(cfg), service.AnalyzerOptions{})

	h.pipeline = NewPipelineService(PipelineDeps{
		Fetcher:  fetcher,
		Tracker:  h.tracker,
		Analyzer: analyzer,
		Notifier: h.notifier,
		Sleep:    sleep,
	})
	return h
}

func defaultPipelineConfig() model.PipelineConfig {
	return model.PipelineConfig{
		MaxArticles:        20,
		HighThreshold:      7,
		LowThreshold:       4,
		TopK:               3,
		SendDelaySeconds:   5,
		LLMIntervalSeconds: 1,
		Blacklist:          []string{"Sale"},
	}
}

func regularParams(cfg model.PipelineConfig) model.RunParams {
	return model.RunParams{Mode: model.ModeRegular, Pipeline: cfg, Database: model.DatabaseConfig{RetentionDays: 7}}
}

func article(source, title, link string) *model.Article {
	return &model.Article{Source: source, Title: title, URL: link, Link: service.NormalizeLink(link)}
}

func TestPipelineEndToEndWithFeeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<rss version="2.0"><channel><title>a</title><item><title>K8s news</title><link>http://a/1?x=2</link></item></channel></rss>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<rss version="2.0"><channel><title>b</title><item><title>Sale event</title><link>http://b/1</link></item></channel></rss>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := defaultPipelineConfig()
	provider := &scriptedProvider{replies: []string{"[9: Kubernetes 新版本发布]"}}
	h := newHarness(t, service.NewRssService(model.RssConfig{Timeout: 5}, nil), provider, cfg)

	result, err := h.pipeline.Run(context.Background(), regularParams(cfg), []model.RssSource{
		{Name: "A", URL: srv.URL + "/a"},
		{Name: "B", URL: srv.URL + "/b"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Blacklisted)
	assert.Equal(t, 1, result.Scored)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, "http://a/1?x=2", h.notifier.messages[0].sourceURL)
	assert.Contains(t, h.notifier.messages[0].text, "K8s news")
	assert.True(t, h.tracker.IsAlreadySent("http://a/1"))
	assert.False(t, h.tracker.IsAlreadySent("http://b/1"))
	assert.Equal(t, 2, provider.calls)
}

func TestPipelineDoesNotResendDeliveredArticles(t *testing.T) {
	cfg := defaultPipelineConfig()
	fetcher := staticFetcher{article("A", "K8s news", "http://a/1?x=2")}
	provider := &scriptedProvider{replies: []string{"[9: a]", "分析", "[9: a]"}}
	h := newHarness(t, fetcher, provider, cfg)

	first, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)
	require.NoError(t, err)
	assert.Zero(t, second.Fresh)
	assert.Zero(t, second.Sent)
	assert.Len(t, h.notifier.messages, 1)
}

func TestPipelineRecordsOnlyConfirmedSends(t *testing.T) {
	cfg := defaultPipelineConfig()
	fetcher := staticFetcher{
		article("A", "first", "https://x.com/1"),
		article("A", "second", "https://x.com/2"),
	}
	provider := &scriptedProvider{replies: []string{"[9: a]\n[8: b]"}}
	h := newHarness(t, fetcher, provider, cfg)
	h.notifier.results = []bool{false, true}

	result, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.SendFailed)
	assert.False(t, h.tracker.IsAlreadySent("https://x.com/1"))
	assert.True(t, h.tracker.IsAlreadySent("https://x.com/2"))
}

func TestPipelineSurvivalModeStillSends(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.PreferredSources = []string{"Toss_Tech"}
	fetcher := staticFetcher{
		article("Toss_Tech", "결제 시스템", "https://toss.tech/1"),
		article("GeekNews", "잡담", "https://news.hada.io/2"),
	}
	limited := service.NewProviderError("fake#1", service.KindRateLimited, 429, errors.New("quota"))
	provider := &scriptedProvider{err: limited}
	h := newHarness(t, fetcher, provider, cfg)

	result, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, 1, provider.calls)
	require.Equal(t, 1, result.Sent)
	msg := h.notifier.messages[0].text
	assert.Contains(t, msg, "결제 시스템")
	assert.Contains(t, msg, service.AnalysisSkipped)
	assert.Contains(t, msg, service.FallbackMarker)
}

func TestPipelinePacesSuccessfulSends(t *testing.T) {
	cfg := defaultPipelineConfig()
	fetcher := staticFetcher{
		article("A", "one", "https://x.com/1"),
		article("A", "two", "https://x.com/2"),
		article("A", "three", "https://x.com/3"),
		article("A", "four", "https://x.com/4"),
	}
	provider := &scriptedProvider{replies: []string{"[9: a]\n[9: b]\n[8: c]\n[10: d]"}}
	h := newHarness(t, fetcher, provider, cfg)

	result, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 3, result.Sent)
	var sendDelays, llmDelays int
	for _, d := range h.sleeps {
		switch d {
		case 5 * time.Second:
			sendDelays++
		case time.Second:
			llmDelays++
		}
	}
	assert.Equal(t, 2, sendDelays)
	assert.Equal(t, 2, llmDelays)
	assert.Equal(t, "https://x.com/4", h.notifier.messages[0].sourceURL)
}

func TestPipelineSummaryMode(t *testing.T) {
	cfg := defaultPipelineConfig()
	fetcher := staticFetcher{
		article("A", "mid", "https://x.com/1"),
		article("A", "high", "https://x.com/2"),
		article("A", "low", "https://x.com/3"),
	}
	provider := &scriptedProvider{replies: []string{"[5: a]\n[9: b]\n[2: c]", "<b>[今日核心技术趋势]</b>\n内容"}}
	h := newHarness(t, fetcher, provider, cfg)
	params := regularParams(cfg)
	params.Mode = model.ModeSummary

	result, err := h.pipeline.Run(context.Background(), params, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, h.notifier.messages, 1)
	assert.True(t, h.notifier.messages[0].summary)
	assert.True(t, h.tracker.IsAlreadySent("https://x.com/1"))
	assert.False(t, h.tracker.IsAlreadySent("https://x.com/2"))
}

func TestPipelineRunReport(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.RunReport = true
	fetcher := staticFetcher{article("A", "a < b", "https://x.com/1"), article("B", "other", "https://x.com/2")}
	provider := &scriptedProvider{replies: []string{"[9: a]\n[3: b]"}}
	h := newHarness(t, fetcher, provider, cfg)
	h.notifier.results = []bool{false, true}

	_, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)

	require.NoError(t, err)
	require.Len(t, h.notifier.messages, 2)
	report := h.notifier.messages[1]
	assert.Empty(t, report.sourceURL)
	assert.Contains(t, report.text, "a &lt; b")
	assert.Contains(t, report.text, "other")
	assert.Less(t, strings.Index(report.text, "a &lt; b"), strings.Index(report.text, "other"))
}

func TestPipelineInvalidBlacklist(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.Blacklist = []string{"("}
	h := newHarness(t, staticFetcher{}, nil, cfg)

	_, err := h.pipeline.Run(context.Background(), regularParams(cfg), nil)

	assert.Error(t, err)
}

func TestPipelineStopsWhenCancelled(t *testing.T) {
	cfg := defaultPipelineConfig()
	fetcher := staticFetcher{article("A", "one", "https://x.com/1"), article("A", "two", "https://x.com/2")}
	provider := &scriptedProvider{replies: []string{"[9: a]\n[9: b]"}}
	h := newHarness(t, fetcher, provider, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.pipeline.Run(ctx, regularParams(cfg), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.notifier.messages)
}
