package flame

import "fmt"

// BoundsOptions controls ComputeBounds.
type BoundsOptions struct {
	// Levels is the composition depth of the final, accepted iteration.
	// Deeper levels contract faster and give tighter boxes.
	Levels int

	// WarmupRounds caps the rounds spent on each level below Levels.
	WarmupRounds int

	// MaxRounds caps the rounds spent on the final level.
	MaxRounds int

	// Tolerance is the relative growth under which the transformed box must
	// still cover the previous one for the iteration to stop.
	Tolerance float64

	// Slack is the relative growth applied to a box that was not accepted.
	// It must be smaller than Tolerance.
	Slack float64
}

// DefaultBoundsOptions returns the options used by the renderer.
func DefaultBoundsOptions() BoundsOptions {
	return BoundsOptions{
		Levels:       3,
		WarmupRounds: 10,
		MaxRounds:    1000,
		Tolerance:    0.001,
		Slack:        0.0001,
	}
}

func (o BoundsOptions) withDefaults() BoundsOptions {
	d := DefaultBoundsOptions()
	if o.Levels <= 0 {
		o.Levels = d.Levels
	}
	if o.WarmupRounds <= 0 {
		o.WarmupRounds = d.WarmupRounds
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = d.MaxRounds
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Slack <= 0 || o.Slack >= o.Tolerance {
		o.Slack = o.Tolerance / 10
	}
	return o
}

// ComputeBounds finds an axis-aligned box B that every composition of
// Levels maps inside itself. Such a box contains the attractor.
//
// The search starts from the point box at the origin and iterates
// B <- union of M(B) over all compositions M, raising the depth one level
// at a time. A round is accepted when B covers its image and the image,
// grown by Tolerance, still covers B. Otherwise the image, grown by Slack,
// becomes the next B.
//
// The returned error wraps ErrDegenerateTransformSet when the final level
// does not converge within MaxRounds (the last box is returned alongside),
// when the box diverges, or when it has zero area.
func ComputeBounds(set *TransformSet, opts BoundsOptions) (Rect, error) {
	if set == nil || set.Len() == 0 {
		return Rect{}, ErrEmptyTransformSet
	}
	opts = opts.withDefaults()
	log := Logger()

	b := RectFromPoint(Point{})
	total := 0
	for level := 0; level <= opts.Levels; level++ {
		if !b.IsFinite() {
			b = RectFromPoint(Point{})
		}
		final := level == opts.Levels
		comps := ComposeLevels(set, Identity(), level)

		converged := false
		for round := 1; ; round++ {
			total++
			after := transformUnion(b, comps)
			if !final && round > opts.WarmupRounds {
				b = after
				break
			}
			if b.Contains(after) && after.Grow(opts.Tolerance).Contains(b) {
				converged = true
				break
			}
			b = after.Grow(opts.Slack)
			if !b.IsFinite() && !final {
				break
			}
			if final && (round >= opts.MaxRounds || !b.IsFinite()) {
				break
			}
		}
		if !final {
			continue
		}
		if !b.IsFinite() {
			return b, fmt.Errorf("bounds diverged after %d rounds: %w", total, ErrDegenerateTransformSet)
		}
		if !converged {
			log.Warn("flame: bounds did not converge, using last box",
				"rounds", total, "min", b.Min, "max", b.Max)
			return b, fmt.Errorf("bounds did not converge in %d rounds: %w", opts.MaxRounds, ErrDegenerateTransformSet)
		}
	}

	if !b.HasArea() {
		return b, fmt.Errorf("bounds %v-%v have zero area: %w", b.Min, b.Max, ErrDegenerateTransformSet)
	}
	log.Debug("flame: bounds computed", "rounds", total,
		"min", b.Min, "max", b.Max, "levels", opts.Levels)
	return b, nil
}

func transformUnion(b Rect, comps []Affine) Rect {
	out := b.Transform(comps[0])
	for _, m := range comps[1:] {
		out = out.Union(b.Transform(m))
	}
	return out
}
