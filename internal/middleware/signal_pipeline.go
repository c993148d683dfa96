package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	"LaneRisk/internal/engine"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.Signal) error
}

// SignalPipeline sits between the raw feeds (WebSocket, Kafka) and the
// evaluator. It validates, throttles per source, and buffers when the
// downstream is unavailable. Invalid signals are counted and dropped without
// aborting the surrounding batch.
type SignalPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Signal
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[models.SignalSource]time.Time
	// optional signal rewrite hook, e.g. default half-life fill-in
	transform func(*models.Signal) *models.Signal
}

type PipelineOption func(*SignalPipeline)

// WithMaxRPS sets the max signals per second per source.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the buffer size used when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a rewrite hook applied before validation retry.
func WithTransform(fn func(*models.Signal) *models.Signal) PipelineOption {
	return func(p *SignalPipeline) { p.transform = fn }
}

// NewSignalPipeline creates a new pipeline.
func NewSignalPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   50,
		bufSize:  1000,
		bufCh:    make(chan *models.Signal, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[models.SignalSource]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Signal, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered signals.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SignalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the signal downstream,
// buffering on downstream errors.
func (p *SignalPipeline) Process(ctx context.Context, s *models.Signal) error {
	start := time.Now()
	if p.transform != nil {
		s = p.transform(s)
	}
	if err := engine.ValidateSignal(s); err != nil {
		p.metrics.RecordSignalRejected("validation")
		return err
	}
	p.mu.Lock()
	ok := p.allow(s.Source, start)
	p.mu.Unlock()
	if !ok {
		p.metrics.RecordSignalRejected("throttled")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *SignalPipeline) allow(source models.SignalSource, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	last := p.lastSeen[source]
	if last.IsZero() {
		p.lastSeen[source] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[source] = now
	return true
}
