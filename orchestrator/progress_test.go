package orchestrator

import (
	"testing"

	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProgressNotifier_BeginPushesQueuedSnapshot(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())

	var got *DualProviderProgress
	n.OnProgress("req-1", func(p *DualProviderProgress) { got = p })
	n.Begin("req-1", "openai-image", "flux")

	require.NotNil(t, got)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, StatusQueued, got.SlotA.Status)
	assert.Equal(t, StatusQueued, got.SlotB.Status)
	assert.Equal(t, "openai-image", got.SlotA.Provider)
	assert.Equal(t, "flux", got.SlotB.Provider)
	assert.Equal(t, float64(0), got.Overall)
}

func TestProgressNotifier_UpdateComputesOverall(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())

	var snapshots []*DualProviderProgress
	n.OnProgress("req-1", func(p *DualProviderProgress) { snapshots = append(snapshots, p) })
	n.Begin("req-1", "openai-image", "flux")

	n.Update("req-1", SlotProviderA, GenerationProgress{Status: StatusRunning, Progress: 40})
	n.Update("req-1", SlotProviderB, GenerationProgress{Status: StatusSucceeded, Progress: 100})

	last := snapshots[len(snapshots)-1]
	assert.Equal(t, float64(70), last.Overall)
	assert.Equal(t, StatusRunning, last.SlotA.Status)
	assert.Equal(t, StatusSucceeded, last.SlotB.Status)
}

func TestProgressNotifier_TerminalSlotIsFrozen(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())
	n.Begin("req-1", "openai-image", "flux")

	env := types.NewError(types.CodeRateLimited, types.KindRateLimit, "429")
	n.Update("req-1", SlotProviderA, GenerationProgress{Status: StatusFailed, Progress: 53, Error: env})
	n.Update("req-1", SlotProviderA, GenerationProgress{Status: StatusRunning, Progress: 99})

	snap := n.Snapshot("req-1")
	require.NotNil(t, snap)
	assert.Equal(t, StatusFailed, snap.SlotA.Status, "terminal slots must not be mutated")
	assert.Equal(t, float64(53), snap.SlotA.Progress)
	assert.Equal(t, env, snap.SlotA.Error)
}

func TestProgressNotifier_UnknownRequestIgnored(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())
	n.Update("ghost", SlotProviderA, GenerationProgress{Status: StatusRunning, Progress: 10})
	assert.Nil(t, n.Snapshot("ghost"))
}

func TestProgressNotifier_OffProgressTearsDown(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())

	calls := 0
	n.OnProgress("req-1", func(*DualProviderProgress) { calls++ })
	n.Begin("req-1", "openai-image", "flux")
	require.Equal(t, 1, calls)

	n.OffProgress("req-1")
	n.Update("req-1", SlotProviderA, GenerationProgress{Status: StatusRunning, Progress: 10})
	assert.Equal(t, 1, calls, "no pushes after unsubscribe")
	assert.Nil(t, n.Snapshot("req-1"))
}

func TestProgressNotifier_CompleteDiscardsState(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())
	n.Begin("req-1", "openai-image", "flux")
	n.Complete("req-1")
	assert.Nil(t, n.Snapshot("req-1"))
}

func TestProgressNotifier_SnapshotIsACopy(t *testing.T) {
	n := NewProgressNotifier(zap.NewNop())
	n.Begin("req-1", "openai-image", "flux")

	snap := n.Snapshot("req-1")
	snap.SlotA.Progress = 99

	fresh := n.Snapshot("req-1")
	assert.Equal(t, float64(0), fresh.SlotA.Progress)
}
