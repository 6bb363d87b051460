package flame

import "fmt"

// Strategy selects how a pass's levels are split between mesh geometry and
// instances. All strategies draw the same set of composed maps.
type Strategy int

const (
	// StrategyInstanced draws one bounds quad per instance; every level is
	// expanded into instances.
	StrategyInstanced Strategy = iota

	// StrategyMesh bakes every level into the vertex buffer and draws a
	// single instance.
	StrategyMesh

	// StrategyHybrid bakes half of the levels (rounded down) into the mesh
	// and expands the rest as instances.
	StrategyHybrid
)

var strategyNames = [...]string{"instanced", "mesh", "hybrid"}

// String implements fmt.Stringer.
func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses "instanced", "mesh" or "hybrid".
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// Split returns the mesh and instance levels for a pass of the given depth.
func (s Strategy) Split(levels int) (mesh, instance int) {
	switch s {
	case StrategyMesh:
		return levels, 0
	case StrategyHybrid:
		mesh = levels / 2
		return mesh, levels - mesh
	default:
		return 0, levels
	}
}

// Filter selects texel sampling for reading an iteration buffer.
type Filter int

const (
	// FilterNearest samples the closest texel.
	FilterNearest Filter = iota

	// FilterLinear interpolates the four closest texels.
	FilterLinear
)

// String implements fmt.Stringer.
func (f Filter) String() string {
	switch f {
	case FilterNearest:
		return "nearest"
	case FilterLinear:
		return "linear"
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

// ParseFilter parses "nearest" or "linear".
func ParseFilter(name string) (Filter, error) {
	switch name {
	case "nearest":
		return FilterNearest, nil
	case "linear":
		return FilterLinear, nil
	}
	return 0, fmt.Errorf("unknown filter %q", name)
}

// SeedMode selects the density that the first pass samples.
type SeedMode int

const (
	// SeedBounds seeds with density 1 over every drawn quad: the first pass
	// draws the images of the bounds box without a texture.
	SeedBounds SeedMode = iota

	// SeedFixedPoints seeds with density 1 at the texels holding each map's
	// fixed point and its images under one pass of compositions. Pass 0
	// draws only those texels and every later pass adds them again at its
	// own size. Such points lie on the attractor, and the density of each
	// output pixel never decreases with depth.
	SeedFixedPoints
)

// String implements fmt.Stringer.
func (m SeedMode) String() string {
	switch m {
	case SeedBounds:
		return "bounds"
	case SeedFixedPoints:
		return "fixed-points"
	}
	return fmt.Sprintf("SeedMode(%d)", int(m))
}

// ParseSeedMode parses "bounds" or "fixed-points".
func ParseSeedMode(name string) (SeedMode, error) {
	switch name {
	case "bounds":
		return SeedBounds, nil
	case "fixed-points":
		return SeedFixedPoints, nil
	}
	return 0, fmt.Errorf("unknown seed mode %q", name)
}
