package orchestrator

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Slot 双路派发中的槽位标识。
type Slot int

const (
	SlotProviderA Slot = iota
	SlotProviderB
)

// ProgressCallback 接收某个请求的完整进度快照。
type ProgressCallback func(*DualProviderProgress)

// ProgressNotifier 按请求 id 的进度发布/订阅。
// 每次状态变化推送完整 DualProviderProgress 快照，不做 diff 或去抖。
// 订阅不持久化：进程重启丢失全部进度历史（进度是建议性的，不是权威状态）。
type ProgressNotifier struct {
	mu     sync.RWMutex
	subs   map[string]ProgressCallback
	state  map[string]*DualProviderProgress
	logger *zap.Logger
}

// NewProgressNotifier 创建进度通知器。
func NewProgressNotifier(logger *zap.Logger) *ProgressNotifier {
	return &ProgressNotifier{
		subs:   make(map[string]ProgressCallback),
		state:  make(map[string]*DualProviderProgress),
		logger: logger,
	}
}

// OnProgress 订阅某个请求 id 的进度。同一 id 重复订阅时后者覆盖前者。
func (n *ProgressNotifier) OnProgress(requestID string, cb ProgressCallback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[requestID] = cb
}

// OffProgress 退订并丢弃该请求的进度聚合。
func (n *ProgressNotifier) OffProgress(requestID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, requestID)
	delete(n.state, requestID)
}

// Begin 为请求创建双槽位进度聚合，两个槽位都置为 queued 并推送快照。
func (n *ProgressNotifier) Begin(requestID, providerA, providerB string) {
	now := time.Now()
	n.mu.Lock()
	n.state[requestID] = &DualProviderProgress{
		RequestID: requestID,
		SlotA:     GenerationProgress{Provider: providerA, Status: StatusQueued, StartedAt: now, UpdatedAt: now},
		SlotB:     GenerationProgress{Provider: providerB, Status: StatusQueued, StartedAt: now, UpdatedAt: now},
		UpdatedAt: now,
	}
	n.mu.Unlock()
	n.push(requestID)
}

// Update 就地更新一个槽位并推送完整快照。
// 槽位进入终态后冻结，后续更新被忽略。
func (n *ProgressNotifier) Update(requestID string, slot Slot, update GenerationProgress) {
	n.mu.Lock()
	agg, ok := n.state[requestID]
	if !ok {
		n.mu.Unlock()
		return
	}

	target := &agg.SlotA
	if slot == SlotProviderB {
		target = &agg.SlotB
	}
	if target.Status.Terminal() {
		n.mu.Unlock()
		return
	}

	update.Provider = target.Provider
	update.StartedAt = target.StartedAt
	update.UpdatedAt = time.Now()
	*target = update

	agg.Overall = (agg.SlotA.Progress + agg.SlotB.Progress) / 2
	agg.UpdatedAt = update.UpdatedAt
	n.mu.Unlock()

	n.push(requestID)
}

// Complete 请求结束时丢弃进度聚合（回调保留到显式退订为止）。
func (n *ProgressNotifier) Complete(requestID string) {
	n.mu.Lock()
	delete(n.state, requestID)
	n.mu.Unlock()
}

// Snapshot 返回当前聚合的副本，没有则返回 nil。
func (n *ProgressNotifier) Snapshot(requestID string) *DualProviderProgress {
	n.mu.RLock()
	defer n.mu.RUnlock()
	agg, ok := n.state[requestID]
	if !ok {
		return nil
	}
	cp := *agg
	return &cp
}

// push 向订阅者推送快照副本。回调在锁外执行。
func (n *ProgressNotifier) push(requestID string) {
	n.mu.RLock()
	cb := n.subs[requestID]
	var snapshot *DualProviderProgress
	if agg, ok := n.state[requestID]; ok {
		cp := *agg
		snapshot = &cp
	}
	n.mu.RUnlock()

	if cb == nil || snapshot == nil {
		return
	}
	cb(snapshot)
}
