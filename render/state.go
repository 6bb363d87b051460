// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "fmt"

// State is the phase of the renderer's pipeline.
//
//	Idle -> ComputingBounds -> BuildingInstances -> RenderingPass(k) -> Done
//
// Any parameter change returns the renderer to Idle.
type State int32

const (
	// StateIdle means no frame is in progress or the last one was reset.
	StateIdle State = iota

	// StateComputingBounds means the attractor bounds are being computed.
	StateComputingBounds

	// StateBuildingInstances means the plan and per-pass geometry are
	// being built.
	StateBuildingInstances

	// StateRenderingPass means pass Renderer.Pass() is being accumulated.
	StateRenderingPass

	// StateDone means a frame was produced for the current parameters.
	StateDone
)

var stateNames = [...]string{"idle", "computing-bounds", "building-instances", "rendering-pass", "done"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
