// Package orchestrator 实现双后端图像生成编排：
// 并发双路派发、顺序 failover、质量共识选择与进度发布。
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/imageflow/image"
	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/retry"
	"github.com/BaSui01/imageflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options 编排器配置，构造时一次性提供。
type Options struct {
	// RetryPolicy 默认重试策略（nil 使用 retry.DefaultPolicy）
	RetryPolicy *retry.Policy
	// ProviderPolicies 按 Provider 覆盖的重试策略
	ProviderPolicies map[string]*retry.Policy
	// Scorer 交叉验证打分器（nil 使用 NewMaxScorer）
	Scorer Scorer
	// Notify 用户可见通知侧信道（nil 为 no-op）
	Notify NotifyFunc
	// Metrics 指标收集器，可为 nil
	Metrics *metrics.Collector
	// Logger 日志器（nil 使用 zap.NewNop）
	Logger *zap.Logger
}

// Orchestrator 向两个可互换、独立易错的后端发出同一逻辑生成请求，
// 调和两者结果并返回带完整来源记录的单一权威结果。
type Orchestrator struct {
	registry    *image.Registry
	executors   map[string]retry.Executor
	defaultExec retry.Executor
	scorer      Scorer
	progress    *ProgressNotifier
	health      *HealthMonitor
	notify      NotifyFunc
	metrics     *metrics.Collector
	logger      *zap.Logger
	disposeOnce sync.Once
}

// New 创建编排器。注册表在此之后视为只读。
func New(registry *image.Registry, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = NewMaxScorer()
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(NotifyLevel, string) {}
	}

	executors := make(map[string]retry.Executor, len(opts.ProviderPolicies))
	for name, policy := range opts.ProviderPolicies {
		executors[name] = retry.NewBackoffExecutor(policy, logger.With(zap.String("provider", name)))
	}

	return &Orchestrator{
		registry:    registry,
		executors:   executors,
		defaultExec: retry.NewBackoffExecutor(opts.RetryPolicy, logger),
		scorer:      scorer,
		progress:    NewProgressNotifier(logger),
		health:      NewHealthMonitor(registry, logger),
		notify:      notify,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Registry 返回 Provider 注册表。
func (o *Orchestrator) Registry() *image.Registry { return o.registry }

// Health 返回健康监视器。
func (o *Orchestrator) Health() *HealthMonitor { return o.health }

// DualRequest 一次双路派发的参数。
type DualRequest struct {
	// RequestID 为空时自动生成。调用方想在派发前订阅进度时自行提供。
	RequestID             string
	ProviderA             string
	ProviderB             string
	Request               *image.GenerateRequest
	EnableCrossValidation bool
	// PreferredProvider 双方都成功且未开启交叉验证时的优先选择
	PreferredProvider string
}

// GenerateDualProvider 并发派发到两个 Provider 并调和结果。
//
// 结果矩阵：双败 → 整体失败并聚合双方信封；单败 → 幸存方为
// primary 且 failoverOccurred=true，不做交叉验证；双成 + 交叉验证 →
// 打分选择胜者；双成无交叉验证 → preferredProvider 或 providerA。
func (o *Orchestrator) GenerateDualProvider(ctx context.Context, dreq *DualRequest) (*DualProviderResponse, error) {
	pa, pb, err := o.resolvePair(dreq.ProviderA, dreq.ProviderB)
	if err != nil {
		return nil, err
	}
	req := dreq.Request

	// 本地校验，任一 Provider 报告无效即拒绝，不产生任何网络副作用
	if err := o.validateAgainst(req, pa, pb); err != nil {
		return nil, err
	}

	requestID := dreq.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	o.progress.Begin(requestID, pa.Name(), pb.Name())
	defer o.progress.Complete(requestID)

	o.logger.Info("dual dispatch started",
		zap.String("request_id", requestID),
		zap.String("provider_a", pa.Name()),
		zap.String("provider_b", pb.Name()),
		zap.Bool("cross_validation", dreq.EnableCrossValidation),
	)

	start := time.Now()

	// 等待双方各自落定（成功或重试耗尽），绝不因先完成方而取消对侧
	var respA, respB *image.GenerateResponse
	var errA, errB *types.Error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resp, err := o.dispatch(ctx, requestID, SlotProviderA, pa, req)
		respA, errA = resp, types.AsError(err, pa.Name())
	}()
	go func() {
		defer wg.Done()
		resp, err := o.dispatch(ctx, requestID, SlotProviderB, pb, req)
		respB, errB = resp, types.AsError(err, pb.Name())
	}()
	wg.Wait()

	totalLatency := time.Since(start)
	o.recordOutcome(pa.Name(), "dual", errA)
	o.recordOutcome(pb.Name(), "dual", errB)
	if o.metrics != nil {
		o.metrics.RecordDuration("dual", totalLatency.Seconds())
	}

	resp := &DualProviderResponse{
		RequestID:      requestID,
		TotalLatencyMs: totalLatency.Milliseconds(),
	}

	switch {
	case errA != nil && errB != nil:
		combined := types.NewError(types.CodeAllProvidersFailed, types.KindProvider,
			fmt.Sprintf("both providers failed: %s: %s; %s: %s",
				pa.Name(), errA.Message, pb.Name(), errB.Message)).
			WithDetail(pa.Name(), errA).
			WithDetail(pb.Name(), errB)
		o.logger.Error("dual dispatch failed on both providers",
			zap.String("request_id", requestID),
			zap.Error(errA),
			zap.Error(errB),
		)
		o.notify(NotifyError, combined.Message)
		return nil, combined

	case errA != nil:
		resp.Primary = respB
		resp.SelectedProvider = pb.Name()
		resp.FailoverOccurred = true
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("degraded: %s failed (%s), serving %s", pa.Name(), errA.Message, pb.Name()))
		if o.metrics != nil {
			o.metrics.RecordFailover()
		}
		o.notify(NotifyWarning, resp.Warnings[0])

	case errB != nil:
		resp.Primary = respA
		resp.SelectedProvider = pa.Name()
		resp.FailoverOccurred = true
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("degraded: %s failed (%s), serving %s", pb.Name(), errB.Message, pa.Name()))
		if o.metrics != nil {
			o.metrics.RecordFailover()
		}
		o.notify(NotifyWarning, resp.Warnings[0])

	case dreq.EnableCrossValidation:
		report := o.scorer.CrossValidate(respA, respB)
		resp.CrossValidation = report
		resp.SelectedProvider = report.Winner
		if report.Winner == pb.Name() {
			resp.Primary, resp.Secondary = respB, respA
		} else {
			resp.Primary, resp.Secondary = respA, respB
		}
		if o.metrics != nil {
			o.metrics.RecordCrossValWin(report.Winner)
		}
		o.notify(NotifySuccess, fmt.Sprintf("generation complete, %s selected by cross-validation", report.Winner))

	default:
		selected := pa.Name()
		if dreq.PreferredProvider == pb.Name() {
			selected = pb.Name()
		}
		resp.SelectedProvider = selected
		if selected == pb.Name() {
			resp.Primary, resp.Secondary = respB, respA
		} else {
			resp.Primary, resp.Secondary = respA, respB
		}
		o.notify(NotifySuccess, fmt.Sprintf("generation complete, %s selected", selected))
	}

	o.logger.Info("dual dispatch settled",
		zap.String("request_id", requestID),
		zap.String("selected", resp.SelectedProvider),
		zap.Bool("failover", resp.FailoverOccurred),
		zap.Int64("total_latency_ms", resp.TotalLatencyMs),
	)
	return resp, nil
}

// GenerateWithFallback 顺序派发：先主后备，仅在主路重试耗尽后才尝试备路。
// 面向默认不该为两路并发生成付费的调用方。
func (o *Orchestrator) GenerateWithFallback(ctx context.Context, req *image.GenerateRequest, primary, secondary string) (*image.GenerateResponse, error) {
	pp, ps, err := o.resolvePair(primary, secondary)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	o.progress.Begin(requestID, pp.Name(), ps.Name())
	defer o.progress.Complete(requestID)

	start := time.Now()

	primaryErr := o.validateFor(req, pp)
	var resp *image.GenerateResponse
	if primaryErr == nil {
		resp, primaryErr = o.dispatchNormalized(ctx, requestID, SlotProviderA, pp, req)
	}
	o.recordOutcome(pp.Name(), "fallback", types.AsError(primaryErr, pp.Name()))
	if primaryErr == nil {
		if o.metrics != nil {
			o.metrics.RecordDuration("fallback", time.Since(start).Seconds())
		}
		o.notify(NotifySuccess, fmt.Sprintf("generation complete via %s", pp.Name()))
		return resp, nil
	}

	o.logger.Warn("primary exhausted, falling back",
		zap.String("request_id", requestID),
		zap.String("primary", pp.Name()),
		zap.String("secondary", ps.Name()),
		zap.Error(primaryErr),
	)

	secondaryErr := o.validateFor(req, ps)
	if secondaryErr == nil {
		resp, secondaryErr = o.dispatchNormalized(ctx, requestID, SlotProviderB, ps, req)
	}
	o.recordOutcome(ps.Name(), "fallback", types.AsError(secondaryErr, ps.Name()))
	if o.metrics != nil {
		o.metrics.RecordDuration("fallback", time.Since(start).Seconds())
	}
	if secondaryErr == nil {
		if o.metrics != nil {
			o.metrics.RecordFailover()
		}
		o.notify(NotifyWarning, fmt.Sprintf("degraded: %s failed, served by fallback %s", pp.Name(), ps.Name()))
		return resp, nil
	}

	combined := types.NewError(types.CodeAllProvidersFailed, types.KindProvider,
		fmt.Sprintf("primary %s failed: %s; fallback %s failed: %s",
			pp.Name(), types.AsError(primaryErr, pp.Name()).Message,
			ps.Name(), types.AsError(secondaryErr, ps.Name()).Message)).
		WithDetail(pp.Name(), types.AsError(primaryErr, pp.Name())).
		WithDetail(ps.Name(), types.AsError(secondaryErr, ps.Name()))
	o.notify(NotifyError, combined.Message)
	return nil, combined
}

// CheckProvidersHealth 独立探测每个注册 Provider 的健康状态。
func (o *Orchestrator) CheckProvidersHealth(ctx context.Context) map[string]image.ProviderHealth {
	return o.health.Check(ctx)
}

// OnProgress 订阅某个请求 id 的进度快照。
func (o *Orchestrator) OnProgress(requestID string, cb ProgressCallback) {
	o.progress.OnProgress(requestID, cb)
}

// OffProgress 退订并丢弃进度聚合。
func (o *Orchestrator) OffProgress(requestID string) {
	o.progress.OffProgress(requestID)
}

// Dispose 停止后台探测并释放全部 Provider 资源，幂等。
func (o *Orchestrator) Dispose() {
	o.disposeOnce.Do(func() {
		o.health.Stop()
		o.registry.DisposeAll()
	})
}

// --- internal ---

func (o *Orchestrator) resolvePair(nameA, nameB string) (image.Provider, image.Provider, error) {
	names := o.registry.List()
	if nameA == "" && len(names) > 0 {
		nameA = names[0]
	}
	if nameB == "" {
		for _, n := range names {
			if n != nameA {
				nameB = n
				break
			}
		}
	}

	pa, ok := o.registry.Get(nameA)
	if !ok {
		return nil, nil, types.NewError(types.CodeInternalError, types.KindInternal,
			fmt.Sprintf("provider %q not registered", nameA))
	}
	pb, ok := o.registry.Get(nameB)
	if !ok {
		return nil, nil, types.NewError(types.CodeInternalError, types.KindInternal,
			fmt.Sprintf("provider %q not registered", nameB))
	}
	if pa.Name() == pb.Name() {
		return nil, nil, types.NewError(types.CodeInternalError, types.KindInternal,
			"dual dispatch requires two distinct providers")
	}
	return pa, pb, nil
}

// validateAgainst 聚合两个 Provider 的全部校验违规。
func (o *Orchestrator) validateAgainst(req *image.GenerateRequest, providers ...image.Provider) error {
	issues := make(map[string][]image.ValidationIssue)
	for _, p := range providers {
		if res := p.ValidateRequest(req); !res.Valid {
			issues[p.Name()] = res.Issues
		}
	}
	if len(issues) == 0 {
		return nil
	}

	err := types.NewError(types.CodeInvalidRequest, types.KindValidation, "request failed provider validation")
	for name, list := range issues {
		err = err.WithDetail(name, list)
	}
	return err
}

func (o *Orchestrator) validateFor(req *image.GenerateRequest, p image.Provider) error {
	return o.validateAgainst(req, p)
}

// dispatch 单路派发：重试执行器拥有退避与可重试分类，进度事件
// 映射到对应槽位。
func (o *Orchestrator) dispatch(ctx context.Context, requestID string, slot Slot, p image.Provider, req *image.GenerateRequest) (*image.GenerateResponse, error) {
	exec := o.executorFor(p.Name())
	onProgress := func(ev retry.Event) {
		if ev.Status == retry.StatusRunning && ev.Attempt > 0 && o.metrics != nil {
			o.metrics.RecordRetry(p.Name())
		}
		o.progress.Update(requestID, slot, GenerationProgress{
			Status:   mapRetryStatus(ev.Status),
			Progress: ev.Progress,
			Error:    ev.Err,
		})
	}
	return retry.DoTyped(exec, ctx, onProgress, func() (*image.GenerateResponse, error) {
		return p.Generate(ctx, req)
	})
}

func (o *Orchestrator) dispatchNormalized(ctx context.Context, requestID string, slot Slot, p image.Provider, req *image.GenerateRequest) (*image.GenerateResponse, error) {
	resp, err := o.dispatch(ctx, requestID, slot, p, req)
	if err != nil {
		return nil, types.AsError(err, p.Name())
	}
	return resp, nil
}

func (o *Orchestrator) executorFor(name string) retry.Executor {
	if exec, ok := o.executors[name]; ok {
		return exec
	}
	return o.defaultExec
}

func (o *Orchestrator) recordOutcome(provider, mode string, err *types.Error) {
	if o.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	o.metrics.RecordGeneration(provider, mode, status)
}

func mapRetryStatus(s retry.Status) GenerationStatus {
	switch s {
	case retry.StatusSucceeded:
		return StatusSucceeded
	case retry.StatusFailed:
		return StatusFailed
	default:
		return StatusRunning
	}
}
