// Package pool keeps pre-provisioned conversational workers warm during the
// configured active window so session starts avoid cold-start latency, and
// provisions on demand outside it.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/providers/compute"
	"github.com/hireloop/hireloop/internal/utils"
)

// Config sizes the pool.
type Config struct {
	TargetStandby     int
	Window            Window
	ReconcileInterval time.Duration
	AcquireTimeout    time.Duration
	BaseSpec          compute.Spec
}

// Pool owns all standby/in-use bookkeeping behind one mutex. The
// reconciliation loop is just another caller of the same guarded operations.
type Pool struct {
	cfg      Config
	launcher compute.Launcher
	log      *logrus.Entry

	// now is swappable so window behavior is testable against a fake clock.
	now func() time.Time

	mu      sync.Mutex
	standby []compute.Handle
	inUse   map[string]compute.Handle // session id -> handle
	closed  bool
}

func New(cfg Config, launcher compute.Launcher, log *logrus.Entry) *Pool {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 30 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Pool{
		cfg:      cfg,
		launcher: launcher,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		inUse:    make(map[string]compute.Handle),
	}
}

// SetClock overrides the pool's notion of "now". Test hook.
func (p *Pool) SetClock(now func() time.Time) { p.now = now }

// Acquire hands a worker to sessionID. Fast path pops a standby worker;
// slow path provisions one synchronously under the acquire timeout. A
// deadline maps to CAPACITY_EXHAUSTED, any other launcher error to
// PROVISIONING_FAILURE; either way the caller drives the session to failed.
func (p *Pool) Acquire(ctx context.Context, sessionID string) (compute.Handle, error) {
	const op = "Pool.Acquire"

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return compute.Handle{}, utils.E(utils.CodeUnavailable, op, "pool is closed", nil)
	}
	if h, ok := p.inUse[sessionID]; ok {
		p.mu.Unlock()
		return h, nil
	}
	if n := len(p.standby); n > 0 {
		h := p.standby[n-1]
		p.standby = p.standby[:n-1]
		p.inUse[sessionID] = h
		p.mu.Unlock()
		p.log.WithFields(logrus.Fields{"session_id": sessionID, "worker_id": h.ID}).
			Debug("assigned standby worker")
		return h, nil
	}
	p.mu.Unlock()

	// Cold start. Provision outside the lock; bounded by the acquire timeout.
	pctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	start := p.now()
	h, err := p.launcher.Provision(pctx, p.cfg.BaseSpec)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(pctx.Err(), context.DeadlineExceeded) {
			p.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"timeout_ms": p.cfg.AcquireTimeout.Milliseconds(),
			}).Error("worker acquire timed out; pool may be undersized")
			return compute.Handle{}, utils.E(utils.CodeCapacity, op, "no worker available within timeout", err)
		}
		return compute.Handle{}, utils.E(utils.CodeProvisioning, op, "worker provisioning failed", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = p.launcher.Terminate(context.Background(), h)
		return compute.Handle{}, utils.E(utils.CodeUnavailable, op, "pool is closed", nil)
	}
	p.inUse[sessionID] = h
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"session_id":    sessionID,
		"worker_id":     h.ID,
		"cold_start_ms": p.now().Sub(start).Milliseconds(),
	}).Info("provisioned on-demand worker")
	return h, nil
}

// Release returns sessionID's worker. Inside the active window with a standby
// deficit the worker is reset and kept warm; otherwise it is terminated.
// Idempotent: releasing a session with no held worker is a no-op.
func (p *Pool) Release(ctx context.Context, sessionID string) {
	p.mu.Lock()
	h, ok := p.inUse[sessionID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, sessionID)
	keep := !p.closed && p.cfg.Window.Contains(p.now()) && len(p.standby) < p.cfg.TargetStandby
	p.mu.Unlock()

	log := p.log.WithFields(logrus.Fields{"session_id": sessionID, "worker_id": h.ID})

	if keep {
		if err := p.launcher.Reset(ctx, h); err != nil {
			log.WithError(err).Warn("worker reset failed, terminating")
			p.terminate(ctx, h)
			return
		}
		p.mu.Lock()
		// Re-check: the window may have closed or the pool filled while resetting.
		if !p.closed && p.cfg.Window.Contains(p.now()) && len(p.standby) < p.cfg.TargetStandby {
			p.standby = append(p.standby, h)
			p.mu.Unlock()
			log.Debug("worker returned to standby")
			return
		}
		p.mu.Unlock()
	}
	p.terminate(ctx, h)
}

func (p *Pool) terminate(ctx context.Context, h compute.Handle) {
	if err := p.launcher.Terminate(ctx, h); err != nil {
		p.log.WithError(err).WithField("worker_id", h.ID).Warn("worker terminate failed")
	}
}

// Run drives the reconciliation loop until ctx is cancelled, then tears the
// pool down.
func (p *Pool) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ReconcileInterval)
	defer ticker.Stop()

	p.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			p.Close()
			return
		case <-ticker.C:
			p.Reconcile(ctx)
		}
	}
}

// Reconcile performs one control-loop pass. The window is evaluated once at
// pass time; in-use workers are never touched.
func (p *Pool) Reconcile(ctx context.Context) {
	inside := p.cfg.Window.Contains(p.now())

	if !inside {
		// Drain standby to zero outside the window.
		p.mu.Lock()
		drained := p.standby
		p.standby = nil
		p.mu.Unlock()

		for _, h := range drained {
			p.terminate(ctx, h)
		}
		if len(drained) > 0 {
			p.log.WithField("drained", len(drained)).Info("drained standby workers outside active window")
		}
		return
	}

	p.mu.Lock()
	deficit := p.cfg.TargetStandby - len(p.standby)
	closed := p.closed
	p.mu.Unlock()
	if closed || deficit <= 0 {
		return
	}

	for i := 0; i < deficit; i++ {
		if ctx.Err() != nil {
			return
		}
		h, err := p.launcher.Provision(ctx, p.cfg.BaseSpec)
		if err != nil {
			p.log.WithError(err).Warn("standby provisioning failed, retrying next pass")
			return
		}
		p.mu.Lock()
		if p.closed || len(p.standby) >= p.cfg.TargetStandby {
			p.mu.Unlock()
			p.terminate(ctx, h)
			return
		}
		p.standby = append(p.standby, h)
		p.mu.Unlock()
	}
	p.log.WithField("provisioned", deficit).Debug("topped up standby pool")
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() (standby, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.standby), len(p.inUse)
}

// Close terminates every held worker and rejects further acquires.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	held := p.standby
	p.standby = nil
	for _, h := range p.inUse {
		held = append(held, h)
	}
	p.inUse = make(map[string]compute.Handle)
	p.mu.Unlock()

	ctx := context.Background()
	for _, h := range held {
		p.terminate(ctx, h)
	}
	p.log.WithField("terminated", len(held)).Info("worker pool closed")
}
