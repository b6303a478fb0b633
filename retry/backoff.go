// Package retry 提供带进度发布的有界指数退避重试执行器。
// 尝试计数与退避计时只存在于这里：Provider 与编排器不得自行重试。
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// Policy 定义重试策略配置，编排器构造时加载一次，运行期不修改。
type Policy struct {
	// MaxAttempts 总尝试次数（含首次，最小 1）
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// BaseBackoff 基础退避时间
	BaseBackoff time.Duration `json:"base_backoff" yaml:"base_backoff"`
	// MaxDelay 单次退避上限（0 表示不设上限）
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// DefaultPolicy 返回适用于大部分图像生成后端的默认策略。
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Status 单次派发在重试执行器内的状态。
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Event 每次状态变化发布一条。
// Progress 语义：第 i 次尝试前为 (i/MaxAttempts)*80，剩余 20% 留给
// 终态迁移，调用真正返回前进度不会报 100。
type Event struct {
	Status      Status
	Attempt     int // 0-based
	MaxAttempts int
	Progress    float64
	Err         *types.Error
}

// ProgressFunc 接收重试执行器发布的状态事件。可为 nil。
type ProgressFunc func(Event)

// Executor 重试执行器接口。
type Executor interface {
	// Do 执行函数，失败时根据错误的 Retryable 分类与策略重试。
	Do(ctx context.Context, onProgress ProgressFunc, fn func() (any, error)) (any, error)
}

// backoffExecutor 基于指数退避的执行器实现。
type backoffExecutor struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffExecutor 创建指数退避重试执行器。
func NewBackoffExecutor(policy *Policy, logger *zap.Logger) Executor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 1 * time.Second
	}

	return &backoffExecutor{
		policy: policy,
		logger: logger,
	}
}

// Do 实现 Executor.Do。
// 重试决策只看 types.IsRetryable，不检查错误分类。
func (e *backoffExecutor) Do(ctx context.Context, onProgress ProgressFunc, fn func() (any, error)) (any, error) {
	max := e.policy.MaxAttempts

	var lastErr *types.Error
	for attempt := 0; attempt < max; attempt++ {
		e.publish(onProgress, Event{
			Status:      StatusRunning,
			Attempt:     attempt,
			MaxAttempts: max,
			Progress:    float64(attempt) / float64(max) * 80,
		})

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				e.logger.Info("重试成功", zap.Int("attempt", attempt))
			}
			e.publish(onProgress, Event{
				Status:      StatusSucceeded,
				Attempt:     attempt,
				MaxAttempts: max,
				Progress:    100,
			})
			return result, nil
		}

		lastErr = types.AsError(err, "")

		if !lastErr.Retryable || attempt == max-1 {
			e.publish(onProgress, Event{
				Status:      StatusFailed,
				Attempt:     attempt,
				MaxAttempts: max,
				Progress:    float64(attempt) / float64(max) * 80,
				Err:         lastErr,
			})
			if !lastErr.Retryable {
				e.logger.Debug("错误不可重试", zap.Error(lastErr))
				return nil, lastErr
			}
			e.logger.Warn("重试次数耗尽",
				zap.Int("attempts", max),
				zap.Error(lastErr),
			)
			return nil, lastErr
		}

		delay := e.nextDelay(attempt)
		e.logger.Debug("退避后重试",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", max),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			canceled := types.NewError(types.CodeInternalError, types.KindInternal,
				fmt.Sprintf("retry canceled: %v", ctx.Err())).WithCause(ctx.Err())
			e.publish(onProgress, Event{
				Status:      StatusFailed,
				Attempt:     attempt,
				MaxAttempts: max,
				Progress:    float64(attempt) / float64(max) * 80,
				Err:         canceled,
			})
			return nil, canceled
		case <-time.After(delay):
		}
	}

	// MaxAttempts >= 1 保证循环内必然返回
	return nil, lastErr
}

// nextDelay 计算第 attempt 次失败后的退避时间：
// base·2^attempt + uniform(0, 0.1·base)。
func (e *backoffExecutor) nextDelay(attempt int) time.Duration {
	base := float64(e.policy.BaseBackoff)
	delay := base*math.Pow(2, float64(attempt)) + rand.Float64()*0.1*base

	if e.policy.MaxDelay > 0 && delay > float64(e.policy.MaxDelay) {
		delay = float64(e.policy.MaxDelay)
	}
	return time.Duration(delay)
}

func (e *backoffExecutor) publish(onProgress ProgressFunc, ev Event) {
	if onProgress != nil {
		onProgress(ev)
	}
}
