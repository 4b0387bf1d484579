package main

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/edge-ml/go-detect/detector"
)

// acquireTimeout bounds how long a request waits for a free detector before
// the server sheds it.
const acquireTimeout = 5 * time.Second

// PoolMetrics counts pool traffic for the metrics endpoint.
type PoolMetrics struct {
	InUse           int   `json:"in_use"`
	TotalAcquired   int64 `json:"total_acquired"`
	AcquireFailures int64 `json:"acquire_failures"`
}

// DetectorPool hands out detectors to request handlers. Each pooled detector
// owns its own interpreter, so two requests never share one.
type DetectorPool struct {
	detectors chan *detector.Detector
	size      int

	mu      sync.Mutex
	closed  bool
	metrics PoolMetrics
}

// NewDetectorPool builds size detectors with build and parks them in the
// pool. A single failed build tears the whole pool down.
func NewDetectorPool(size int, build func() (*detector.Detector, error)) (*DetectorPool, error) {
	if size <= 0 {
		size = 1
	}
	pool := &DetectorPool{
		detectors: make(chan *detector.Detector, size),
		size:      size,
	}
	for i := 0; i < size; i++ {
		d, err := build()
		if err != nil {
			pool.Destroy()
			return nil, errors.Wrapf(err, "build detector %d", i)
		}
		pool.detectors <- d
	}
	return pool, nil
}

// Acquire takes a detector out of the pool, waiting up to acquireTimeout.
func (p *DetectorPool) Acquire(ctx context.Context) (*detector.Detector, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errors.New("pool is closed")
	}

	select {
	case d := <-p.detectors:
		p.mu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.mu.Unlock()
		return d, nil
	case <-time.After(acquireTimeout):
		p.mu.Lock()
		p.metrics.AcquireFailures++
		p.mu.Unlock()
		return nil, errors.New("timed out waiting for a free detector")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release puts a detector back. Detectors released after Destroy are closed
// instead.
func (p *DetectorPool) Release(d *detector.Detector) {
	p.mu.Lock()
	closed := p.closed
	if !closed {
		p.metrics.InUse--
	}
	p.mu.Unlock()

	if closed {
		d.Close()
		return
	}
	p.detectors <- d
}

// Destroy closes every parked detector. Detectors still out with handlers
// are closed on Release.
func (p *DetectorPool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.detectors)
	for d := range p.detectors {
		d.Close()
	}
}

// Size returns the pool capacity.
func (p *DetectorPool) Size() int { return p.size }

// Snapshot returns a copy of the counters.
func (p *DetectorPool) Snapshot() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}
