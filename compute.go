package reel

import (
	"fmt"

	"github.com/reelengine/reel/frame"
)

// Compute is the Node contract's compute(frame_index, ctx): resolve this
// node's output Frame for frameIndex, consulting and populating the global
// frame cache along the way. Camera nodes produce no frame; their output
// is the view-projection matrix consumed by the owning composition's
// transform stage.
func (n *Node) Compute(frameIndex int64, ctx *ComputeContext) (frame.Frame, error) {
	if n.isDisposed() {
		return frame.Frame{}, nil
	}
	if n.Cache == nil {
		return frame.Frame{}, fmt.Errorf("reel: compute on %s node %s before AddNode installed its runtime handles", n.Kind, n.ID)
	}

	switch n.Kind {
	case KindFileSource:
		return n.computeFileSource(frameIndex, ctx), nil
	case KindComposition:
		return n.computeComposition(frameIndex, ctx)
	case KindText:
		return n.computeText(frameIndex, ctx)
	case KindCamera:
		return frame.Frame{}, nil
	default:
		return frame.Frame{}, fmt.Errorf("reel: compute on unknown node kind %d", n.Kind)
	}
}
