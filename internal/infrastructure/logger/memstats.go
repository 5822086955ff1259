package logger

import (
	"runtime"
	"sync"
	"time"
)

// MemStatsMonitor 在一次运行期间定期记录内存使用
type MemStatsMonitor struct {
	interval time.Duration
	stopped  chan struct{}
	once     sync.Once
}

// NewMemStatsMonitor 创建内存监控器
func NewMemStatsMonitor(interval time.Duration) *MemStatsMonitor {
	return &MemStatsMonitor{
		interval: interval,
		stopped:  make(chan struct{}),
	}
}

// Start 开始监控，interval<=0 时不启动
func (m *MemStatsMonitor) Start() {
	if m.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logMemStats("内存使用统计")
			case <-m.stopped:
				return
			}
		}
	}()
}

// Stop 停止监控，可重复调用
func (m *MemStatsMonitor) Stop() {
	m.once.Do(func() { close(m.stopped) })
}

// LogMemStatsOnce 记录一次内存使用统计
func LogMemStatsOnce() {
	logMemStats("内存使用统计（单次）")
}

func logMemStats(msg string) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	Debug(msg,
		"alloc_mb", stats.Alloc/1024/1024,
		"sys_mb", stats.Sys/1024/1024,
		"heap_alloc_mb", stats.HeapAlloc/1024/1024,
		"num_gc", stats.NumGC)
}
