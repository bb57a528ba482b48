package worker

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/aegis/internal/types"
)

// engine is what the pool needs from a single worker process.
type engine interface {
	Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error)
	Embed(ctx context.Context, face image.Image) ([]float64, error)
	Close()
}

// Pool fans requests out over several sidecar processes. Each request borrows an
// idle engine, so concurrency is bounded by the pool size.
type Pool struct {
	engines []engine
	idle    chan engine
}

// NewPool starts size workers. On failure the already started workers are closed.
func NewPool(ctx context.Context, size int, cfg Config) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	engines := make([]engine, 0, size)
	for i := 0; i < size; i++ {
		w, err := NewPythonWorker(ctx, i, cfg)
		if err != nil {
			for _, e := range engines {
				e.Close()
			}
			return nil, fmt.Errorf("start engine %d: %w", i, err)
		}
		engines = append(engines, w)
	}
	return newPool(engines), nil
}

func newPool(engines []engine) *Pool {
	p := &Pool{engines: engines, idle: make(chan engine, len(engines))}
	for _, e := range engines {
		p.idle <- e
	}
	return p
}

// Size returns the number of engines in the pool.
func (p *Pool) Size() int {
	return len(p.engines)
}

func (p *Pool) acquire(ctx context.Context) (engine, error) {
	select {
	case e := <-p.idle:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Detect runs detection on the next idle engine.
func (p *Pool) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	e, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { p.idle <- e }()
	return e.Detect(ctx, img)
}

// Embed runs embedding on the next idle engine.
func (p *Pool) Embed(ctx context.Context, face image.Image) ([]float64, error) {
	e, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { p.idle <- e }()
	return e.Embed(ctx, face)
}

// Close stops every engine. The pool must not be used afterwards.
func (p *Pool) Close() {
	for _, e := range p.engines {
		e.Close()
	}
}
