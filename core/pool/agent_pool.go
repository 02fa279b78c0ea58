// Package pool provides the bounded-concurrency execution gate used by each
// pipeline stage.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config configures an AgentPool.
type Config struct {
	// Name identifies the pool in status output.
	Name string `yaml:"name"`

	// MaxConcurrent is the number of simultaneously active executions.
	MaxConcurrent int `yaml:"max_concurrent"`

	// Adaptive enables rolling-error-rate concurrency adjustment.
	Adaptive bool `yaml:"adaptive"`

	// MinConcurrent is the adaptive floor. Defaults to 1.
	MinConcurrent int `yaml:"min_concurrent"`

	// ErrorWindowSize is the rolling window used for the error rate.
	ErrorWindowSize int `yaml:"error_window_size"`

	// ShrinkThreshold is the error rate at or above which the limit shrinks.
	ShrinkThreshold float64 `yaml:"shrink_threshold"`

	// GrowThreshold is the error rate at or below which the limit grows.
	GrowThreshold float64 `yaml:"grow_threshold"`
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig(name string, maxConcurrent int) Config {
	return Config{
		Name:            name,
		MaxConcurrent:   maxConcurrent,
		MinConcurrent:   1,
		ErrorWindowSize: 20,
		ShrinkThreshold: 0.5,
		GrowThreshold:   0.1,
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Name      string `json:"name"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Limit     int    `json:"limit"`
}

// AgentPool is a bounded-concurrency executor for one pipeline stage. A slot
// must be acquired before an execution runs; pool counters are the only
// shared mutable state and are safe under concurrent use.
type AgentPool struct {
	config Config

	mu     sync.Mutex
	cond   *sync.Cond
	limit  int
	active int

	completed atomic.Int64
	failed    atomic.Int64

	// Rolling results window for adaptive sizing.
	window      []bool
	windowIndex int
	windowFill  int
}

// New creates an AgentPool from the given configuration.
func New(cfg Config) *AgentPool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MinConcurrent <= 0 {
		cfg.MinConcurrent = 1
	}
	if cfg.MinConcurrent > cfg.MaxConcurrent {
		cfg.MinConcurrent = cfg.MaxConcurrent
	}
	if cfg.ErrorWindowSize <= 0 {
		cfg.ErrorWindowSize = 20
	}

	p := &AgentPool{
		config: cfg,
		limit:  cfg.MaxConcurrent,
		window: make([]bool, cfg.ErrorWindowSize),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Execute acquires a slot, runs fn, and releases the slot. It blocks while
// the pool is at its concurrency limit, returning early if the context is
// cancelled before a slot frees up.
func (p *AgentPool) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	err := fn(ctx)
	p.recordResult(err == nil)
	return err
}

// acquire blocks until a slot is available or the context is done.
func (p *AgentPool) acquire(ctx context.Context) error {
	// Wake waiters on cancellation; Cond has no native context support.
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.active >= p.limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.cond.Wait()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.active++
	return nil
}

// release frees a slot and wakes one waiter.
func (p *AgentPool) release() {
	p.mu.Lock()
	p.active--
	p.cond.Broadcast()
	p.mu.Unlock()
}

// recordResult updates counters and, when adaptive sizing is enabled, the
// rolling window and concurrency limit.
func (p *AgentPool) recordResult(success bool) {
	if success {
		p.completed.Add(1)
	} else {
		p.failed.Add(1)
	}

	if !p.config.Adaptive {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.window[p.windowIndex] = success
	p.windowIndex = (p.windowIndex + 1) % len(p.window)
	if p.windowFill < len(p.window) {
		p.windowFill++
	}

	p.adjustLimit()
}

// adjustLimit shrinks on a rising error rate and grows on a sustained low
// one, clamped to [MinConcurrent, MaxConcurrent]. Callers hold p.mu.
func (p *AgentPool) adjustLimit() {
	if p.windowFill < len(p.window) {
		return
	}

	rate := p.errorRateLocked()
	switch {
	case rate >= p.config.ShrinkThreshold && p.limit > p.config.MinConcurrent:
		p.limit--
	case rate <= p.config.GrowThreshold && p.limit < p.config.MaxConcurrent:
		p.limit++
		p.cond.Broadcast()
	}
}

// errorRateLocked computes the window error rate. Callers hold p.mu.
func (p *AgentPool) errorRateLocked() float64 {
	if p.windowFill == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < p.windowFill; i++ {
		if !p.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(p.windowFill)
}

// Limit returns the current concurrency limit.
func (p *AgentPool) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// Stats returns a snapshot of the pool counters.
func (p *AgentPool) Stats() Stats {
	p.mu.Lock()
	active := p.active
	limit := p.limit
	p.mu.Unlock()

	return Stats{
		Name:      p.config.Name,
		Active:    int64(active),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Limit:     limit,
	}
}
