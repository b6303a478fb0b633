package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/imageflow/image"
	"go.uber.org/zap"
)

// HealthMonitor 对注册的每个 Provider 做独立的健康探测。
// 用于在提供双路模式前预检后端可用性，从不阻塞 Generate 调用。
type HealthMonitor struct {
	mu       sync.RWMutex
	registry *image.Registry
	last     map[string]image.ProviderHealth
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewHealthMonitor 创建健康监视器。
func NewHealthMonitor(registry *image.Registry, logger *zap.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthMonitor{
		registry: registry,
		last:     make(map[string]image.ProviderHealth),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Check 按需探测所有注册 Provider，独立并发执行。
// 任何抛出（panic）都被捕获并映射为 DOWN，探测互不影响。
func (m *HealthMonitor) Check(ctx context.Context) map[string]image.ProviderHealth {
	names := m.registry.List()
	results := make(map[string]image.ProviderHealth, len(names))

	var wg sync.WaitGroup
	var resMu sync.Mutex
	for _, name := range names {
		provider, ok := m.registry.Get(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(name string, p image.Provider) {
			defer wg.Done()
			health := m.probe(ctx, name, p)
			resMu.Lock()
			results[name] = health
			resMu.Unlock()
		}(name, provider)
	}
	wg.Wait()

	m.mu.Lock()
	for name, h := range results {
		m.last[name] = h
	}
	m.mu.Unlock()

	return results
}

// probe 单个 Provider 的探测，panic 映射为 DOWN。
func (m *HealthMonitor) probe(ctx context.Context, name string, p image.Provider) (health image.ProviderHealth) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("health probe panicked",
				zap.String("provider", name),
				zap.Any("panic", r),
			)
			health = image.ProviderHealth{
				State:     image.HealthDown,
				Reason:    fmt.Sprintf("health probe panicked: %v", r),
				CheckedAt: time.Now(),
			}
		}
	}()
	return p.HealthCheck(ctx)
}

// Last 返回某个 Provider 最近一次探测结果。
func (m *HealthMonitor) Last(name string) (image.ProviderHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.last[name]
	return h, ok
}

// Start 启动后台周期探测循环。interval <= 0 时使用 60 秒。
func (m *HealthMonitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.Check(m.ctx)
			}
		}
	}()
}

// Stop 停止后台探测循环，幂等。
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(m.cancel)
}
