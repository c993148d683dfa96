package usecase

import (
	"context"
	"time"

	"LaneRisk/internal/domain/models"
	drepo "LaneRisk/internal/domain/repository"
	mid "LaneRisk/internal/middleware"
)

// SignalCollector reads raw signals from the push stream and feeds them
// through the ingestion pipeline.
type SignalCollector struct {
	stream  drepo.SignalStream
	eval    *RiskEvaluator
	metrics drepo.Metrics
	pipe    *mid.SignalPipeline
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(stream drepo.SignalStream, eval *RiskEvaluator, metrics drepo.Metrics, pipe *mid.SignalPipeline) *SignalCollector {
	return &SignalCollector{stream: stream, eval: eval, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the signal stream is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	sigCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sigCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, sigCh <-chan *models.Signal, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok {
				if err != nil {
					c.metrics.RecordError("stream")
				}
				continue
			}
			// Closed errCh means the stream's read loop exited. Reconnect
			// and resume on fresh channels; the old ones are dead.
			sigCh, errCh = c.reopen(ctx)
			if errCh == nil {
				return
			}
		case s, ok := <-sigCh:
			if !ok {
				// Drained; errCh close drives the reconnect.
				sigCh = nil
				continue
			}
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.eval.Ingest(ctx, s)
			}
		}
	}
}

func (c *SignalCollector) reopen(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(time.Second):
			}
			continue
		}
		return c.stream.Read(ctx)
	}
}

func (c *SignalCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the pipeline and closes the stream.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
