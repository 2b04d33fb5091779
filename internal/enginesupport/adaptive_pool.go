package enginesupport

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PageHandle wraps a pooled browser page (or any other expensive,
// reusable resource) with health scoring so the pool can retire
// instances that have become unreliable or stale rather than waiting
// for them to fail outright.
//
// Grounded on the teacher's engine.PageHandle (engine/adaptive_pool.go),
// whose retirement thresholds are documented in engine/page_health.go:
// a handle retires once its error score reaches 3.0, it has served 50
// uses, or it has lived 50 minutes, whichever comes first.
type PageHandle struct {
	ID      uint64
	Page    any
	created time.Time

	mu       sync.Mutex
	errScore float64
	useCount int
}

const (
	errScoreRetireThreshold = 3.0
	useCountRetireThreshold = 50
	maxHandleAge            = 50 * time.Minute
)

// RecordSuccess lowers the error score by 0.5 (not below zero) and counts
// one more use.
func (h *PageHandle) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	if h.errScore > 0 {
		h.errScore -= 0.5
		if h.errScore < 0 {
			h.errScore = 0
		}
	}
}

// RecordFailure penalizes the handle's health score.
func (h *PageHandle) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore++
}

// ShouldRetire reports whether the handle has crossed a retirement
// threshold: accumulated error score, total uses, or age.
func (h *PageHandle) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errScore >= errScoreRetireThreshold {
		return true
	}
	if h.useCount >= useCountRetireThreshold {
		return true
	}
	return time.Since(h.created) >= maxHandleAge
}

// PageFactory creates a new underlying resource for a PageHandle.
type PageFactory func(ctx context.Context) (any, error)

// PageDestroyer releases a resource previously created by a PageFactory.
type PageDestroyer func(page any)

// AdaptivePoolConfig tunes pool sizing and scaling behavior.
type AdaptivePoolConfig struct {
	MinSize           int
	MaxSize           int
	ScaleInterval     time.Duration
	HighPressureRatio float64 // HeapInuse/HeapSys ratio that triggers scale-down
	LowPressureRatio  float64 // defaulted but not read by the scaling loop, which only scales down
}

// Defaults fills zero-valued fields with production defaults, grounded on
// the teacher's AdaptivePool construction in engine/adaptive_pool.go.
func (c AdaptivePoolConfig) Defaults() AdaptivePoolConfig {
	if c.MinSize <= 0 {
		c.MinSize = 1
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 8
	}
	if c.ScaleInterval <= 0 {
		c.ScaleInterval = 10 * time.Second
	}
	if c.HighPressureRatio <= 0 {
		c.HighPressureRatio = 0.85
	}
	if c.LowPressureRatio <= 0 {
		c.LowPressureRatio = 0.5
	}
	return c
}

// AdaptivePool is a pool of expensive, health-scored resources (browser
// pages in practice) that grows lazily on demand up to MaxSize, trims idle
// handles when sampled Go runtime memory pressure is high, and retires
// individual handles once PageHandle.ShouldRetire reports true.
//
// Grounded on the teacher's engine.AdaptivePool.
type AdaptivePool struct {
	cfg     AdaptivePoolConfig
	factory PageFactory
	destroy PageDestroyer

	mu      sync.Mutex
	idle    []*PageHandle
	active  int
	nextID  atomic.Uint64
	stopped atomic.Bool
	stop    chan struct{}
}

// NewAdaptivePool creates a pool and starts its background scaling loop.
func NewAdaptivePool(cfg AdaptivePoolConfig, factory PageFactory, destroy PageDestroyer) *AdaptivePool {
	p := &AdaptivePool{
		cfg:     cfg.Defaults(),
		factory: factory,
		destroy: destroy,
		stop:    make(chan struct{}),
	}
	go p.scalingLoop()
	return p
}

// Get returns an idle handle if one is healthy and available, otherwise
// creates a new one (subject to MaxSize).
func (p *AdaptivePool) Get(ctx context.Context) (*PageHandle, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		h := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if h.ShouldRetire() {
			p.mu.Unlock()
			p.destroyHandle(h)
			p.mu.Lock()
			continue
		}
		p.active++
		p.mu.Unlock()
		return h, nil
	}
	if p.active >= p.cfg.MaxSize {
		p.mu.Unlock()
		return nil, fmt.Errorf("enginesupport: pool exhausted (max %d)", p.cfg.MaxSize)
	}
	p.mu.Unlock()
	return p.createHandle(ctx)
}

// Put returns a handle to the idle set, or destroys it if it should
// retire or the pool has been stopped.
func (p *AdaptivePool) Put(h *PageHandle) {
	p.mu.Lock()
	p.active--
	if p.stopped.Load() || h.ShouldRetire() {
		p.mu.Unlock()
		p.destroyHandle(h)
		return
	}
	p.idle = append(p.idle, h)
	p.mu.Unlock()
}

// Size returns the number of idle handles currently held.
func (p *AdaptivePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// ActiveCount returns the number of handles currently checked out.
func (p *AdaptivePool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Stats reports the pool's configured bounds alongside its current
// utilisation, for the service health endpoint.
func (p *AdaptivePool) Stats() (maxSize, idle, active int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.MaxSize, len(p.idle), p.active
}

// Stop halts the scaling loop and destroys all idle handles.
func (p *AdaptivePool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.stop)
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	for _, h := range idle {
		p.destroyHandle(h)
	}
}

func (p *AdaptivePool) createHandle(ctx context.Context) (*PageHandle, error) {
	page, err := p.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("enginesupport: create pooled resource: %w", err)
	}
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	return &PageHandle{
		ID:      p.nextID.Add(1),
		Page:    page,
		created: time.Now(),
	}, nil
}

func (p *AdaptivePool) destroyHandle(h *PageHandle) {
	if p.destroy != nil {
		p.destroy(h.Page)
	}
}

// scalingLoop periodically samples runtime memory pressure and trims idle
// handles when heap usage is high, mirroring the teacher's memory-aware
// scale-down (it never proactively scales up beyond demand; Get already
// grows the pool lazily up to MaxSize).
func (p *AdaptivePool) scalingLoop() {
	ticker := time.NewTicker(p.cfg.ScaleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.scaleCheck()
		}
	}
}

func (p *AdaptivePool) scaleCheck() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return
	}
	ratio := float64(m.HeapInuse) / float64(m.HeapSys)
	if ratio < p.cfg.HighPressureRatio {
		return
	}

	p.mu.Lock()
	var victim *PageHandle
	if len(p.idle) > p.cfg.MinSize {
		victim = p.idle[0]
		p.idle = p.idle[1:]
	}
	p.mu.Unlock()
	if victim != nil {
		p.destroyHandle(victim)
	}
}
