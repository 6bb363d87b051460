// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/flame"
)

// ErrNoTransformSet is returned by Update when Params has no transform set.
var ErrNoTransformSet = errors.New("render: no transform set")

// Params are the inputs of a frame. Changing any of them resets the
// pipeline.
type Params struct {
	// Set is the transform set to render.
	Set *flame.TransformSet

	// Width and Height are the viewport size in pixels.
	Width, Height int

	// Depth is K, the index of the last pass.
	Depth int

	// ToneMap selects the tone-mapping mode and its constants.
	ToneMap flame.ToneMapConfig
}

// Validate reports parameters that cannot produce a frame.
func (p Params) Validate() error {
	if p.Set == nil {
		return ErrNoTransformSet
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("render: invalid viewport %dx%d", p.Width, p.Height)
	}
	if p.Depth < 0 {
		return fmt.Errorf("render: invalid depth %d", p.Depth)
	}
	if p.ToneMap.LogBase < 0 {
		return fmt.Errorf("render: tone map log base %g must be positive", p.ToneMap.LogBase)
	}
	return nil
}

// Options tune how frames are produced. They are fixed for the lifetime of
// a Renderer.
type Options struct {
	// LevelsPerPass is the number of map applications per pass (default 1).
	LevelsPerPass int

	// Strategy splits each pass between mesh and instance levels.
	Strategy flame.Strategy

	// RampFactor is the resolution ratio between consecutive passes
	// (default 2). 1 renders every pass at full size.
	RampFactor float64

	// MinPassSize is the smallest edge of an intermediate pass.
	MinPassSize int

	// Filter is the sampling used when a pass reads the previous one.
	// The tone map always reads the final pass with linear filtering
	// where the backend supports it.
	Filter flame.Filter

	// Seed selects the density that pass 0 samples.
	Seed flame.SeedMode

	// Bounds configures the bounds computation.
	Bounds flame.BoundsOptions

	// Budget bounds the work and memory of a frame.
	Budget flame.Budget
}

// DefaultOptions returns the options the renderer uses when none are
// given: one instanced level per pass, resolution doubling per pass,
// nearest sampling and a bounds seed.
func DefaultOptions() Options {
	return Options{
		LevelsPerPass: 1,
		Strategy:      flame.StrategyInstanced,
		RampFactor:    2,
		Filter:        flame.FilterNearest,
		Seed:          flame.SeedBounds,
		Bounds:        flame.DefaultBoundsOptions(),
		Budget:        flame.DefaultBudget(),
	}
}

// planConfig combines options and parameters into a pass plan request.
func (o Options) planConfig(p Params) flame.PlanConfig {
	return flame.PlanConfig{
		Width:         p.Width,
		Height:        p.Height,
		Depth:         p.Depth,
		LevelsPerPass: o.LevelsPerPass,
		Strategy:      o.Strategy,
		RampFactor:    o.RampFactor,
		MinPassSize:   o.MinPassSize,
		Filter:        o.Filter,
		Budget:        o.Budget,
	}
}
