package flame

import (
	"errors"
	"fmt"
	"math"
)

// Budget bounds the work and memory of one frame. Zero fields take the
// DefaultBudget values.
type Budget struct {
	// MaxDraws caps the composed maps drawn by one pass
	// (instances times mesh cells).
	MaxDraws int

	// MaxTextureBytes caps the estimated texture memory of a frame.
	MaxTextureBytes int64

	// MaxDepth caps the number of passes minus one.
	MaxDepth int

	// MaxTextureDimension caps the width and height of any pass.
	MaxTextureDimension int
}

// DefaultBudget returns limits that fit a typical discrete GPU.
func DefaultBudget() Budget {
	return Budget{
		MaxDraws:            1 << 16,
		MaxTextureBytes:     512 << 20,
		MaxDepth:            32,
		MaxTextureDimension: 8192,
	}
}

func (b Budget) withDefaults() Budget {
	d := DefaultBudget()
	if b.MaxDraws <= 0 {
		b.MaxDraws = d.MaxDraws
	}
	if b.MaxTextureBytes <= 0 {
		b.MaxTextureBytes = d.MaxTextureBytes
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = d.MaxDepth
	}
	if b.MaxTextureDimension <= 0 {
		b.MaxTextureDimension = d.MaxTextureDimension
	}
	return b
}

// PlanConfig describes the requested frame.
type PlanConfig struct {
	// Width and Height are the viewport size in pixels.
	Width, Height int

	// Depth is K, the index of the last pass. Passes run for k = 0..K.
	Depth int

	// LevelsPerPass is the number of map applications per pass (default 1).
	LevelsPerPass int

	// Strategy splits each pass's levels between mesh and instances.
	Strategy Strategy

	// RampFactor is the resolution ratio between consecutive passes
	// (default 2, must be >= 1). 1 renders every pass at full size.
	RampFactor float64

	// MinPassSize is the smallest edge of an intermediate pass (default 16).
	MinPassSize int

	// Filter is the sampling used when a pass reads its input.
	Filter Filter

	// Budget bounds the plan.
	Budget Budget
}

const (
	defaultRampFactor  = 2.0
	defaultMinPassSize = 16
)

// Pass is one accumulation pass.
type Pass struct {
	// Index is k, the pass number.
	Index int

	// Width and Height are the iteration buffer size in texels.
	Width, Height int

	// MeshLevels are baked into the vertex buffer, InstanceLevels expanded
	// into instances.
	MeshLevels, InstanceLevels int

	// Final marks the last pass, which is drawn letterboxed into the
	// viewport instead of filling the bounds.
	Final bool

	// Filter is the sampling used to read the previous buffer.
	Filter Filter
}

// Levels returns the map applications of this pass.
func (p Pass) Levels() int { return p.MeshLevels + p.InstanceLevels }

// Label names the pass for GPU debug markers and logs.
func (p Pass) Label() string { return fmt.Sprintf("flame accumulate %d", p.Index) }

// Plan is the ordered list of passes for one frame.
type Plan struct {
	// Passes holds passes 0..K in execution order.
	Passes []Pass

	// Width and Height are the viewport size.
	Width, Height int

	// LevelsPerPass after budget clamping.
	LevelsPerPass int

	// Clamped lists every budget clamp applied while planning.
	Clamped []*BudgetError
}

// NewPlan returns the pass plan for a set of n maps whose attractor lies in
// bounds. Budget violations clamp the plan and are recorded in
// Plan.Clamped; the returned error reports invalid configuration only.
func NewPlan(cfg PlanConfig, n int, bounds Rect) (*Plan, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Depth < 0 {
		return nil, fmt.Errorf("invalid depth %d", cfg.Depth)
	}
	if n <= 0 {
		return nil, ErrEmptyTransformSet
	}
	if !bounds.HasArea() {
		return nil, fmt.Errorf("plan bounds %v-%v: %w", bounds.Min, bounds.Max, ErrDegenerateTransformSet)
	}
	ramp := cfg.RampFactor
	if ramp == 0 {
		ramp = defaultRampFactor
	}
	if ramp < 1 || math.IsNaN(ramp) || math.IsInf(ramp, 0) {
		return nil, fmt.Errorf("invalid ramp factor %g (must be >= 1)", cfg.RampFactor)
	}
	if cfg.LevelsPerPass < 0 {
		return nil, fmt.Errorf("invalid levels per pass %d", cfg.LevelsPerPass)
	}
	levels := cfg.LevelsPerPass
	if levels == 0 {
		levels = 1
	}
	minSize := cfg.MinPassSize
	if minSize <= 0 {
		minSize = defaultMinPassSize
	}
	budget := cfg.Budget.withDefaults()
	p := &Plan{Width: cfg.Width, Height: cfg.Height}

	depth := cfg.Depth
	if depth > budget.MaxDepth {
		p.clamp("depth", int64(depth), int64(budget.MaxDepth))
		depth = budget.MaxDepth
	}

	requested := levels
	for levels > 1 {
		if c, ok := ComposedCount(n, levels); ok && c <= budget.MaxDraws {
			break
		}
		levels--
	}
	if levels != requested {
		p.clamp("levels-per-pass", int64(requested), int64(levels))
	}
	if draws, ok := ComposedCount(n, levels); !ok || draws > budget.MaxDraws {
		// One level cannot be split further: every map is still drawn.
		p.Clamped = append(p.Clamped, &BudgetError{
			Resource:  "draws",
			Requested: int64(n),
			Granted:   int64(n),
			Limit:     int64(budget.MaxDraws),
		})
	}
	p.LevelsPerPass = levels

	aw, ah := cfg.Width, cfg.Height
	if maxDim := budget.MaxTextureDimension; aw > maxDim || ah > maxDim {
		f := math.Min(float64(maxDim)/float64(aw), float64(maxDim)/float64(ah))
		nw, nh := scaleSize(aw, ah, f)
		p.clamp("texture-dimension", int64(max(aw, ah)), int64(max(nw, nh)))
		aw, ah = nw, nh
	}

	sizes := passSizes(aw, ah, depth, ramp, minSize, bounds)
	if est := estimateBytes(sizes, cfg.Width, cfg.Height); est > budget.MaxTextureBytes {
		for est > budget.MaxTextureBytes && min(aw, ah) > minSize {
			aw, ah = scaleSize(aw, ah, 0.9)
			sizes = passSizes(aw, ah, depth, ramp, minSize, bounds)
			est2 := estimateBytes(sizes, cfg.Width, cfg.Height)
			if est2 >= est {
				break
			}
			est = est2
		}
		p.clamp("texture-bytes", estimateBytes(passSizes(cfg.Width, cfg.Height, depth, ramp, minSize, bounds), cfg.Width, cfg.Height), est)
	}

	mesh, inst := cfg.Strategy.Split(levels)
	p.Passes = make([]Pass, depth+1)
	for k := range p.Passes {
		p.Passes[k] = Pass{
			Index:          k,
			Width:          sizes[k][0],
			Height:         sizes[k][1],
			MeshLevels:     mesh,
			InstanceLevels: inst,
			Final:          k == depth,
			Filter:         cfg.Filter,
		}
	}

	log := Logger()
	for _, c := range p.Clamped {
		log.Warn("flame: plan clamped", "resource", c.Resource,
			"requested", c.Requested, "granted", c.Granted)
	}
	log.Debug("flame: plan built", "passes", len(p.Passes), "levels", levels,
		"final", fmt.Sprintf("%dx%d", aw, ah), "strategy", cfg.Strategy)
	return p, nil
}

func (p *Plan) clamp(resource string, requested, granted int64) {
	p.Clamped = append(p.Clamped, &BudgetError{Resource: resource, Requested: requested, Granted: granted})
}

// Depth returns K, the index of the final pass.
func (p *Plan) Depth() int { return len(p.Passes) - 1 }

// Final returns the last pass.
func (p *Plan) Final() Pass { return p.Passes[len(p.Passes)-1] }

// TotalLevels returns the composition depth reached by the final pass.
func (p *Plan) TotalLevels() int { return p.LevelsPerPass * len(p.Passes) }

// MaxLevel returns log2 of the largest density a frame can reach, n maps
// overlapping at every level. It is the default L_max of gradient tone
// mapping.
func (p *Plan) MaxLevel(n int) float64 {
	if n < 2 {
		return 1
	}
	return float64(p.TotalLevels()) * math.Log2(float64(n))
}

// Err returns the budget clamps joined into one error, or nil.
// errors.Is(p.Err(), ErrBudgetExceeded) reports whether any clamp applied.
func (p *Plan) Err() error {
	if len(p.Clamped) == 0 {
		return nil
	}
	errs := make([]error, len(p.Clamped))
	for i, c := range p.Clamped {
		errs[i] = c
	}
	return errors.Join(errs...)
}

// TextureBytes returns the estimated texture memory of the plan.
func (p *Plan) TextureBytes() int64 {
	sizes := make([][2]int, len(p.Passes))
	for i, ps := range p.Passes {
		sizes[i] = [2]int{ps.Width, ps.Height}
	}
	return estimateBytes(sizes, p.Width, p.Height)
}

// passSizes returns the buffer size of every pass. The final pass has the
// accumulation size; earlier passes scale the bounds footprint inside the
// letterboxed final buffer down by ramp per step.
func passSizes(aw, ah, depth int, ramp float64, minSize int, bounds Rect) [][2]int {
	s := math.Min(float64(aw)/bounds.Width(), float64(ah)/bounds.Height())
	fw, fh := bounds.Width()*s, bounds.Height()*s
	sizes := make([][2]int, depth+1)
	for k := 0; k < depth; k++ {
		div := math.Pow(ramp, float64(depth-k))
		// Never larger than the final pass, whatever the rounding of the
		// footprint or the minimum size.
		sizes[k] = [2]int{
			min(aw, rampSize(fw, div, minSize)),
			min(ah, rampSize(fh, div, minSize)),
		}
	}
	sizes[depth] = [2]int{aw, ah}
	return sizes
}

func rampSize(full, div float64, minSize int) int {
	ceilFull := max(1, int(math.Ceil(full)))
	v := int(math.Ceil(full / div))
	return min(ceilFull, max(v, minSize))
}

// estimateBytes counts both R32Float iteration slots at their largest
// sizes plus the RGBA8 colour target and its readback copy.
func estimateBytes(sizes [][2]int, width, height int) int64 {
	var slot [2]int64
	for k, s := range sizes {
		b := int64(s[0]) * int64(s[1]) * 4
		slot[k%2] = max(slot[k%2], b)
	}
	return slot[0] + slot[1] + 2*int64(width)*int64(height)*4
}

func scaleSize(w, h int, f float64) (int, int) {
	return max(1, int(float64(w)*f)), max(1, int(float64(h)*f))
}
