package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

// MetricsCollector 收集一次运行的性能指标
type MetricsCollector struct {
	mu sync.RWMutex

	startTime time.Time

	// API调用统计
	apiCalls       int64
	apiFailures    int64
	apiRateLimited int64
	apiDurations   []time.Duration

	// RSS处理统计
	sourcesOK     int64
	sourcesFailed int64
	fetched       int64
	duplicates    int64
	blacklisted   int64
	scored        int64
	fallbackRuns  int64
	analyzed      int64
	sent          int64
	sendFailures  int64
}

// NewMetricsCollector 创建新的性能监控器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime:    time.Now(),
		apiDurations: make([]time.Duration, 0, 64),
	}
}

// RecordAPICall 记录一次模型调用
func (m *MetricsCollector) RecordAPICall(duration time.Duration, success, rateLimited bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apiCalls++
	if !success {
		m.apiFailures++
	}
	if rateLimited {
		m.apiRateLimited++
	}

	m.apiDurations = append(m.apiDurations, duration)
	if len(m.apiDurations) > 1000 {
		m.apiDurations = m.apiDurations[1:]
	}
}

// RecordSource 记录一个RSS源的处理结果
func (m *MetricsCollector) RecordSource(ok bool, articles int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok {
		m.sourcesOK++
	} else {
		m.sourcesFailed++
	}
	m.fetched += int64(articles)
}

// RecordFiltered 记录去重和黑名单过滤的数量
func (m *MetricsCollector) RecordFiltered(duplicates, blacklisted int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.duplicates += int64(duplicates)
	m.blacklisted += int64(blacklisted)
}

// RecordScored 记录评分数量
func (m *MetricsCollector) RecordScored(count int, fallback bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scored += int64(count)
	if fallback {
		m.fallbackRuns++
	}
}

// RecordAnalyzed 记录一次深度分析
func (m *MetricsCollector) RecordAnalyzed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzed++
}

// RecordDelivery 记录一次推送结果
func (m *MetricsCollector) RecordDelivery(success bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.sent++
	} else {
		m.sendFailures++
	}
}

// GetReport 获取性能报告
func (m *MetricsCollector) GetReport() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	upTime := time.Since(m.startTime)
	avgDuration := m.getAverageAPIDuration()

	return Report{
		RuntimeInfo: RuntimeInfo{
			StartTime:  m.startTime,
			Uptime:     upTime,
			ProcessSec: int64(upTime.Seconds()),
		},
		APIStats: APIStats{
			TotalCalls:     m.apiCalls,
			Successful:     m.apiCalls - m.apiFailures,
			Failed:         m.apiFailures,
			RateLimited:    m.apiRateLimited,
			SuccessRate:    m.calculateSuccessRate(),
			AverageLatency: avgDuration.Milliseconds(),
		},
		RSSStats: RSSStats{
			SourcesOK:     m.sourcesOK,
			SourcesFailed: m.sourcesFailed,
			Fetched:       m.fetched,
			Duplicates:    m.duplicates,
			Blacklisted:   m.blacklisted,
			Scored:        m.scored,
			FallbackRuns:  m.fallbackRuns,
			Analyzed:      m.analyzed,
			Sent:          m.sent,
			SendFailures:  m.sendFailures,
		},
	}
}

// getAverageAPIDuration 获取平均API响应时间
func (m *MetricsCollector) getAverageAPIDuration() time.Duration {
	if len(m.apiDurations) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range m.apiDurations {
		total += d
	}
	return total / time.Duration(len(m.apiDurations))
}

// calculateSuccessRate 计算成功率
func (m *MetricsCollector) calculateSuccessRate() float64 {
	if m.apiCalls == 0 {
		return 100.0
	}
	return float64(m.apiCalls-m.apiFailures) / float64(m.apiCalls) * 100
}

// Report 运行时报告
type Report struct {
	RuntimeInfo RuntimeInfo
	APIStats    APIStats
	RSSStats    RSSStats
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	StartTime  time.Time
	Uptime     time.Duration
	ProcessSec int64
}

// APIStats API统计信息
type APIStats struct {
	TotalCalls     int64
	Successful     int64
	Failed         int64
	RateLimited    int64
	SuccessRate    float64
	AverageLatency int64
}

// RSSStats RSS处理统计
type RSSStats struct {
	SourcesOK     int64
	SourcesFailed int64
	Fetched       int64
	Duplicates    int64
	Blacklisted   int64
	Scored        int64
	FallbackRuns  int64
	Analyzed      int64
	Sent          int64
	SendFailures  int64
}

// LogMetrics 记录指标到日志
func LogMetrics(metrics *MetricsCollector) {
	if metrics == nil {
		return
	}
	report := metrics.GetReport()
	logger.Info("📊 运行统计",
		"start_time", report.RuntimeInfo.StartTime,
		"uptime", report.RuntimeInfo.Uptime,
		"api_calls", report.APIStats.TotalCalls,
		"api_rate_limited", report.APIStats.RateLimited,
		"api_success_rate", fmt.Sprintf("%.2f%%", report.APIStats.SuccessRate),
		"api_avg_latency", fmt.Sprintf("%dms", report.APIStats.AverageLatency),
		"sources_ok", report.RSSStats.SourcesOK,
		"sources_failed", report.RSSStats.SourcesFailed,
		"articles_fetched", report.RSSStats.Fetched,
		"duplicates", report.RSSStats.Duplicates,
		"blacklisted", report.RSSStats.Blacklisted,
		"scored", report.RSSStats.Scored,
		"fallback_runs", report.RSSStats.FallbackRuns,
		"analyzed", report.RSSStats.Analyzed,
		"sent", report.RSSStats.Sent,
		"send_failures", report.RSSStats.SendFailures,
	)
}
