package flame

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTransformSet is returned for a transform set without maps.
	ErrEmptyTransformSet = errors.New("flame: empty transform set")

	// ErrDegenerateTransformSet reports a transform set whose attractor
	// cannot be bounded: singular or non-finite maps, bounds that diverge,
	// fail to converge, or have zero area. Rendering is skipped.
	ErrDegenerateTransformSet = errors.New("flame: degenerate transform set")

	// ErrBudgetExceeded reports that a plan was clamped to fit resource
	// limits. It is never fatal: the frame is still produced.
	ErrBudgetExceeded = errors.New("flame: budget exceeded")

	// ErrNonFiniteDensity reports NaN or infinite accumulated densities.
	// It is logged and never returned from rendering.
	ErrNonFiniteDensity = errors.New("flame: non-finite density")

	// ErrDeviceLost reports loss of the graphics device. The host must
	// recreate the device and rebind the renderer.
	ErrDeviceLost = errors.New("flame: graphics device lost")

	// ErrSuperseded is returned by a render that was cancelled because its
	// parameters changed while it ran. Its output is discarded. Callers
	// should treat it like io.EOF: a signal, not a failure.
	ErrSuperseded = errors.New("flame: render superseded by parameter change")
)

// BudgetError describes one clamp applied to a plan.
type BudgetError struct {
	// Resource names the limited quantity, e.g. "depth" or "texture-bytes".
	Resource string

	// Requested is the amount the parameters asked for.
	Requested int64

	// Granted is the amount the plan uses instead.
	Granted int64

	// Limit is set when Granted still exceeds the budget because nothing
	// smaller can be planned.
	Limit int64
}

func (e *BudgetError) Error() string {
	if e.Limit > 0 && e.Granted > e.Limit {
		return fmt.Sprintf("flame: budget exceeded: %s requested %d over limit %d",
			e.Resource, e.Requested, e.Limit)
	}
	return fmt.Sprintf("flame: budget exceeded: %s requested %d, granted %d",
		e.Resource, e.Requested, e.Granted)
}

// Is makes errors.Is(err, ErrBudgetExceeded) match any *BudgetError.
func (e *BudgetError) Is(target error) bool {
	return target == ErrBudgetExceeded
}
