// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/internal/cache"
)

// batchCacheSize is the number of pass geometries kept per renderer.
const batchCacheSize = 16

// Renderer errors.
var (
	// ErrRendererClosed is returned when using a closed renderer.
	ErrRendererClosed = errors.New("render: renderer closed")

	// ErrNoParams is returned by Render before the first Update.
	ErrNoParams = errors.New("render: no parameters")

	// ErrNilBackend is returned when a renderer is given no backend.
	ErrNilBackend = errors.New("render: nil backend")
)

// Renderer is the recursive multi-pass flame renderer.
//
// It runs a state machine over a Backend:
//
//	Idle -> ComputingBounds -> BuildingInstances -> RenderingPass(k) -> Done
//
// Update replaces the parameters and resets the machine to Idle. A Render
// in progress notices the change at its next step, aborts the backend and
// returns flame.ErrSuperseded; its output is never returned.
//
// Bounds and per-pass geometry are cached and reused while the transform
// set is unchanged.
//
// Update, State, Pass and Generation may be called from any goroutine.
// Render, Rebind and Close are serialized.
//
// Example:
//
//	r, _ := render.NewRenderer(render.NewSoftwareBackend(0), render.DefaultOptions())
//	defer r.Close()
//
//	r.Update(render.Params{
//	    Set:     flame.Sierpinski(),
//	    Width:   800,
//	    Height:  600,
//	    Depth:   8,
//	    ToneMap: flame.DefaultToneMapConfig(),
//	})
//	frame, err := r.Render(ctx)
type Renderer struct {
	opts Options

	// mu serializes Render, Rebind and Close and guards the fields below.
	mu      sync.Mutex
	backend Backend
	lost    bool
	closed  bool

	boundsSet *flame.TransformSet
	bounds    flame.Rect
	boundsErr error
	batches   *cache.Cache[batchKey, flame.InstanceBatch]

	// smu guards the parameter generation and state.
	smu       sync.Mutex
	params    Params
	hasParams bool
	gen       uint64
	state     State
	pass      int
	cancel    context.CancelFunc
}

// NewRenderer returns a renderer that draws with backend. Zero option
// fields take their DefaultOptions values where zero is not meaningful.
func NewRenderer(backend Backend, opts Options) (*Renderer, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if opts.RampFactor != 0 && opts.RampFactor < 1 {
		return nil, fmt.Errorf("render: invalid ramp factor %g (must be >= 1)", opts.RampFactor)
	}
	if opts.LevelsPerPass < 0 {
		return nil, fmt.Errorf("render: invalid levels per pass %d", opts.LevelsPerPass)
	}
	return &Renderer{
		opts:    opts,
		backend: backend,
		batches: cache.New[batchKey, flame.InstanceBatch](batchCacheSize),
	}, nil
}

// Options returns the renderer options.
func (r *Renderer) Options() Options { return r.opts }

// Update replaces the frame parameters. It bumps the generation, resets
// the state to Idle and cancels a Render in progress.
func (r *Renderer) Update(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.smu.Lock()
	defer r.smu.Unlock()
	r.params = p
	r.hasParams = true
	r.gen++
	r.state = StateIdle
	r.pass = 0
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	flame.Logger().Debug("render: parameters updated", "generation", r.gen,
		"maps", p.Set.Len(), "width", p.Width, "height", p.Height, "depth", p.Depth)
	return nil
}

// State returns the current state.
func (r *Renderer) State() State {
	r.smu.Lock()
	defer r.smu.Unlock()
	return r.state
}

// Pass returns k, the pass being accumulated in StateRenderingPass, or
// the last pass in StateDone.
func (r *Renderer) Pass() int {
	r.smu.Lock()
	defer r.smu.Unlock()
	return r.pass
}

// Generation returns the number of parameter updates so far.
func (r *Renderer) Generation() uint64 {
	r.smu.Lock()
	defer r.smu.Unlock()
	return r.gen
}

// Params returns the current parameters.
func (r *Renderer) Params() Params {
	r.smu.Lock()
	defer r.smu.Unlock()
	return r.params
}

// Backend returns the backend in use.
func (r *Renderer) Backend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// begin snapshots the parameters for a new render and registers cancel
// so that Update can interrupt it.
func (r *Renderer) begin(cancel context.CancelFunc) (Params, uint64, bool) {
	r.smu.Lock()
	defer r.smu.Unlock()
	if !r.hasParams {
		return Params{}, 0, false
	}
	r.cancel = cancel
	return r.params, r.gen, true
}

// enter moves to state s for generation gen. It fails with
// flame.ErrSuperseded if the parameters changed, or with the context error.
func (r *Renderer) enter(ctx context.Context, gen uint64, s State, k int) error {
	r.smu.Lock()
	defer r.smu.Unlock()
	if r.gen != gen {
		return flame.ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		r.state = StateIdle
		return err
	}
	r.state, r.pass = s, k
	return nil
}

// reset returns to Idle unless the parameters already changed, in which
// case Update has reset the state and flame.ErrSuperseded is reported.
func (r *Renderer) reset(gen uint64, err error) error {
	r.smu.Lock()
	defer r.smu.Unlock()
	if r.gen != gen {
		return flame.ErrSuperseded
	}
	r.state, r.pass = StateIdle, 0
	return err
}

// abort discards the backend's job after err and resets the state.
func (r *Renderer) abort(gen uint64, err error) error {
	r.backend.Abort()
	if errors.Is(err, flame.ErrDeviceLost) {
		r.lost = true
		flame.Logger().Error("render: device lost, rebind required", "backend", r.backend.Name(), "error", err)
		r.reset(gen, err) //nolint:errcheck // device loss wins over supersession
		return err
	}
	return r.reset(gen, err)
}

// Render produces a frame for the current parameters.
//
// It returns an error wrapping flame.ErrDegenerateTransformSet when the
// attractor cannot be bounded, flame.ErrSuperseded when Update was called
// during the render, flame.ErrDeviceLost after device loss (until Rebind),
// or the context error when ctx is done. Budget clamps do not fail the
// render; they are reported by Frame.Budget.
func (r *Renderer) Render(ctx context.Context) (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return nil, ErrRendererClosed
	case r.lost:
		return nil, flame.ErrDeviceLost
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p, gen, ok := r.begin(cancel)
	if !ok {
		return nil, ErrNoParams
	}
	start := time.Now()
	log := flame.Logger()

	if err := r.enter(ctx, gen, StateComputingBounds, 0); err != nil {
		return nil, err
	}
	bounds, err := r.boundsFor(p.Set)
	if err != nil {
		return nil, r.reset(gen, fmt.Errorf("render: %w", err))
	}

	if err := r.enter(ctx, gen, StateBuildingInstances, 0); err != nil {
		return nil, err
	}
	job, err := r.buildJob(p, gen, bounds)
	if err != nil {
		return nil, r.reset(gen, err)
	}
	if err := r.backend.Prepare(job); err != nil {
		return nil, r.abort(gen, fmt.Errorf("render: prepare %s: %w", r.backend.Name(), err))
	}

	for k := range job.Plan.Passes {
		if err := r.enter(ctx, gen, StateRenderingPass, k); err != nil {
			r.backend.Abort()
			return nil, err
		}
		if err := r.backend.Pass(ctx, job, k); err != nil {
			return nil, r.abort(gen, fmt.Errorf("render: pass %d: %w", k, err))
		}
	}

	img, err := r.backend.Finish(ctx, job)
	if err != nil {
		return nil, r.abort(gen, fmt.Errorf("render: finish: %w", err))
	}

	// Output of a superseded job is discarded.
	if err := r.enter(ctx, gen, StateDone, job.Plan.Depth()); err != nil {
		return nil, err
	}

	frame := newFrame(job, img, time.Since(start))
	if job.NonFinite > 0 {
		log.Warn("render: non-finite density", "pixels", job.NonFinite,
			"error", flame.ErrNonFiniteDensity)
	}
	log.Debug("render: frame done", "backend", r.backend.Name(), "generation", gen,
		"passes", len(job.Plan.Passes), "draws", frame.Stats.Draws, "elapsed", frame.Stats.Elapsed)
	return frame, nil
}

// boundsFor returns the cached bounds of set, computing them when the set
// changed. A changed set also drops the cached geometry.
func (r *Renderer) boundsFor(set *flame.TransformSet) (flame.Rect, error) {
	if r.boundsSet != nil && r.boundsSet.Equal(set) {
		return r.bounds, r.boundsErr
	}
	r.bounds, r.boundsErr = flame.ComputeBounds(set, r.opts.Bounds)
	r.boundsSet = set
	r.batches.Clear()
	if r.boundsErr == nil {
		flame.Logger().Info("render: bounds computed", "min", r.bounds.Min, "max", r.bounds.Max)
	}
	return r.bounds, r.boundsErr
}

// buildJob plans the passes and gathers their geometry and seed.
func (r *Renderer) buildJob(p Params, gen uint64, bounds flame.Rect) (*Job, error) {
	n := p.Set.Len()
	cfg := r.opts.planConfig(p)
	if maxTex := r.backend.Capabilities().MaxTextureSize; maxTex > 0 {
		if cfg.Budget.MaxTextureDimension <= 0 || cfg.Budget.MaxTextureDimension > maxTex {
			cfg.Budget.MaxTextureDimension = maxTex
		}
	}
	plan, err := flame.NewPlan(cfg, n, bounds)
	if err != nil {
		return nil, fmt.Errorf("render: plan: %w", err)
	}

	tone := p.ToneMap.Resolve(plan.MaxLevel(n))
	if _, err := flame.NewToneMapper(tone); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	job := &Job{
		Generation: gen,
		Set:        p.Set,
		Bounds:     bounds,
		Plan:       plan,
		Batches:    make([]flame.InstanceBatch, len(plan.Passes)),
		ToneMap:    tone,
		Width:      p.Width,
		Height:     p.Height,
	}

	for k, ps := range plan.Passes {
		b := r.batches.GetOrCreate(keyOf(ps, p.Width, p.Height), func() flame.InstanceBatch {
			return flame.BuildBatch(p.Set, bounds, ps, p.Width, p.Height)
		})
		job.Batches[k] = b
		job.Stats.Draws += b.Draws()
	}
	cs := r.batches.Stats()
	flame.Logger().Debug("render: geometry cache", "entries", cs.Len, "hit_rate", cs.HitRate)

	if r.opts.Seed == flame.SeedFixedPoints {
		// Pass 0 draws only the seed; later passes add it again on top of
		// the maps. Passes of equal index from the end then see the same
		// seed at every depth, so density only grows with depth.
		job.Stats.Draws -= job.Batches[0].Draws()
		job.Batches[0] = flame.InstanceBatch{}
		points := p.Set.SeedPoints(plan.Passes[0].Levels())
		job.SeedBatches = make([]flame.InstanceBatch, len(plan.Passes))
		for k, ps := range plan.Passes {
			job.SeedBatches[k] = flame.BuildSeedBatch(points, bounds, ps, p.Width, p.Height)
		}
	}
	return job, nil
}

// Rebind replaces the backend, typically after flame.ErrDeviceLost. The
// old backend is closed and the generation bumped.
func (r *Renderer) Rebind(backend Backend) error {
	if backend == nil {
		return ErrNilBackend
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRendererClosed
	}
	if err := r.backend.Close(); err != nil {
		flame.Logger().Warn("render: close old backend", "backend", r.backend.Name(), "error", err)
	}
	r.backend = backend
	r.lost = false

	r.smu.Lock()
	r.gen++
	r.state, r.pass = StateIdle, 0
	r.smu.Unlock()
	flame.Logger().Info("render: backend bound", "backend", backend.Name())
	return nil
}

// Close cancels any render in progress and closes the backend.
// Safe to call more than once.
func (r *Renderer) Close() error {
	r.smu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.smu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.backend.Close()
}
