package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hireloop/hireloop/internal/providers/compute"
	"github.com/hireloop/hireloop/internal/utils"
)

// fakeLauncher tracks every worker it has launched and not yet terminated.
type fakeLauncher struct {
	mu         sync.Mutex
	nextID     int
	live       map[string]bool
	provErr    error
	provDelay  time.Duration
	resets     int
	terminates int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{live: make(map[string]bool)}
}

func (f *fakeLauncher) Provision(ctx context.Context, _ compute.Spec) (compute.Handle, error) {
	if f.provDelay > 0 {
		select {
		case <-time.After(f.provDelay):
		case <-ctx.Done():
			return compute.Handle{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.provErr != nil {
		return compute.Handle{}, f.provErr
	}
	f.nextID++
	id := fmt.Sprintf("w-%d", f.nextID)
	f.live[id] = true
	return compute.Handle{ID: id, LaunchedAt: time.Now().UTC()}, nil
}

func (f *fakeLauncher) Reset(_ context.Context, _ compute.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeLauncher) Terminate(_ context.Context, h compute.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[h.ID] {
		return errors.New("terminate of unknown worker " + h.ID)
	}
	delete(f.live, h.ID)
	f.terminates++
	return nil
}

func (f *fakeLauncher) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func alwaysOpen() Window { return Window{} }

func businessHours(t *testing.T) Window {
	w, err := ParseWindow("09:00", "17:00")
	require.NoError(t, err)
	return w
}

func TestAcquireFastPathUsesStandby(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 2, Window: alwaysOpen()}, fl, testLog())

	p.Reconcile(context.Background())
	standby, inUse := p.Stats()
	require.Equal(t, 2, standby)
	require.Equal(t, 0, inUse)

	h, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)

	standby, inUse = p.Stats()
	assert.Equal(t, 1, standby)
	assert.Equal(t, 1, inUse)
	assert.Equal(t, 2, fl.liveCount(), "fast path must not provision")
}

func TestAcquireSlowPathProvisions(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 0, Window: alwaysOpen()}, fl, testLog())

	h, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)

	standby, inUse := p.Stats()
	assert.Equal(t, 0, standby)
	assert.Equal(t, 1, inUse)
}

func TestAcquireIsIdempotentPerSession(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 0, Window: alwaysOpen()}, fl, testLog())

	h1, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	h2, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, h1.ID, h2.ID)
	assert.Equal(t, 1, fl.liveCount())
}

func TestAcquireTimeoutIsCapacityExhausted(t *testing.T) {
	fl := newFakeLauncher()
	fl.provDelay = 200 * time.Millisecond
	p := New(Config{
		TargetStandby:  0,
		Window:         alwaysOpen(),
		AcquireTimeout: 20 * time.Millisecond,
	}, fl, testLog())

	_, err := p.Acquire(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeCapacity), "got %v", err)
}

func TestAcquireLauncherErrorIsProvisioningFailure(t *testing.T) {
	fl := newFakeLauncher()
	fl.provErr = errors.New("quota exceeded")
	p := New(Config{TargetStandby: 0, Window: alwaysOpen()}, fl, testLog())

	_, err := p.Acquire(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeProvisioning), "got %v", err)
}

func TestReleaseInsideWindowKeepsWorkerWarm(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 1, Window: alwaysOpen()}, fl, testLog())

	_, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	p.Release(context.Background(), "s1")

	standby, inUse := p.Stats()
	assert.Equal(t, 1, standby)
	assert.Equal(t, 0, inUse)
	assert.Equal(t, 1, fl.resets)
	assert.Equal(t, 0, fl.terminates)
}

func TestReleaseOutsideWindowTerminates(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 1, Window: businessHours(t)}, fl, testLog())
	p.SetClock(func() time.Time { return at(18, 0) })

	_, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	p.Release(context.Background(), "s1")

	standby, inUse := p.Stats()
	assert.Equal(t, 0, standby)
	assert.Equal(t, 0, inUse)
	assert.Equal(t, 0, fl.liveCount())
}

func TestReleaseIsIdempotent(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 1, Window: alwaysOpen()}, fl, testLog())

	p.Release(context.Background(), "never-acquired")
	_, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	p.Release(context.Background(), "s1")
	p.Release(context.Background(), "s1")

	standby, inUse := p.Stats()
	assert.Equal(t, 1, standby)
	assert.Equal(t, 0, inUse)
}

func TestReconcileDrainsStandbyOutsideWindow(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 3, Window: businessHours(t)}, fl, testLog())

	// 16:59: pool warms up.
	p.SetClock(func() time.Time { return at(16, 59) })
	p.Reconcile(context.Background())
	standby, _ := p.Stats()
	require.Equal(t, 3, standby)

	// Keep one in use across the boundary.
	_, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	// 17:01: standby drains to zero within one pass; the in-use worker
	// is never force-terminated.
	p.SetClock(func() time.Time { return at(17, 1) })
	p.Reconcile(context.Background())

	standby, inUse := p.Stats()
	assert.Equal(t, 0, standby)
	assert.Equal(t, 1, inUse)
	assert.Equal(t, 1, fl.liveCount())
}

func TestReconcileTopsUpDeficit(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 2, Window: alwaysOpen()}, fl, testLog())

	p.Reconcile(context.Background())
	_, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	p.Reconcile(context.Background())
	standby, inUse := p.Stats()
	assert.Equal(t, 2, standby)
	assert.Equal(t, 1, inUse)
}

func TestCloseTerminatesEverything(t *testing.T) {
	fl := newFakeLauncher()
	p := New(Config{TargetStandby: 2, Window: alwaysOpen()}, fl, testLog())

	p.Reconcile(context.Background())
	_, err := p.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	p.Close()
	assert.Equal(t, 0, fl.liveCount())

	_, err = p.Acquire(context.Background(), "s2")
	assert.Error(t, err)
}

// Pool conservation: under random interleavings of acquire/release/reconcile,
// |standby| + |inUse| always equals the number of live workers and no handle
// is ever in both sets.
func TestPoolConservationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fl := newFakeLauncher()
		target := rapid.IntRange(0, 4).Draw(rt, "target")
		p := New(Config{TargetStandby: target, Window: alwaysOpen()}, fl, testLog())

		held := map[string]bool{}
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			sid := fmt.Sprintf("s%d", rapid.IntRange(0, 5).Draw(rt, "sid"))
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				if _, err := p.Acquire(context.Background(), sid); err == nil {
					held[sid] = true
				}
			case 1:
				p.Release(context.Background(), sid)
				delete(held, sid)
			case 2:
				p.Reconcile(context.Background())
			}

			standby, inUse := p.Stats()
			if standby+inUse != fl.liveCount() {
				rt.Fatalf("conservation violated: standby=%d inUse=%d live=%d",
					standby, inUse, fl.liveCount())
			}
			if inUse != len(held) {
				rt.Fatalf("inUse mismatch: pool=%d expected=%d", inUse, len(held))
			}
		}

		p.Close()
		if fl.liveCount() != 0 {
			rt.Fatalf("close leaked %d workers", fl.liveCount())
		}
	})
}
