package reel

import (
	"encoding/json"
	"fmt"

	"github.com/reelengine/reel/event"
)

// scriptStep represents a single action in a playback script.
type scriptStep struct {
	Action string `json:"action"`
	Label  string `json:"label,omitempty"`
	Frame  int32  `json:"frame,omitempty"`
	Count  int32  `json:"count,omitempty"`
	Ticks  int    `json:"ticks,omitempty"`
}

// playbackScript is the top-level JSON structure for a script.
type playbackScript struct {
	Steps []scriptStep `json:"steps"`
}

// ScriptRunner sequences transport commands and screenshots across host
// ticks for automated playback testing. Attach to a Player and call Step
// once per Update.
type ScriptRunner struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	outDir    string
	done      bool
}

// LoadScript parses a JSON playback script. Supported actions: set_frame,
// play, pause, stop, step, to_start, to_end, prev_edge, next_edge,
// screenshot, wait.
func LoadScript(jsonData []byte) (*ScriptRunner, error) {
	var script playbackScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse playback script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse playback script: no steps")
	}
	return &ScriptRunner{steps: script.Steps, outDir: "screenshots"}, nil
}

// SetOutputDir overrides where screenshot steps write their PNGs.
func (r *ScriptRunner) SetOutputDir(dir string) { r.outDir = dir }

// Done reports whether all steps in the script have been executed.
func (r *ScriptRunner) Done() bool { return r.done }

// Step advances the script by one host tick, issuing at most one action
// through p's event bus or clock. Call after Player.Update.
func (r *ScriptRunner) Step(p *Player) {
	if r.done {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "set_frame":
		p.Bus().EmitImmediate(event.SetFrame{Frame: st.Frame})
	case "play":
		p.Bus().EmitImmediate(event.Play{})
	case "pause":
		p.Bus().EmitImmediate(event.Pause{})
	case "stop":
		p.Bus().EmitImmediate(event.Stop{})
	case "step":
		n := st.Count
		if n == 0 {
			n = 1
		}
		p.Clock().Step(n)
	case "to_start":
		p.Clock().ToStart()
	case "to_end":
		p.Clock().ToEnd()
	case "prev_edge":
		p.Clock().JumpPrevEdge()
	case "next_edge":
		p.Clock().JumpNextEdge()
	case "screenshot":
		if f, ok := p.CurrentFrame(); ok {
			if _, err := SaveFramePNG(f, r.outDir, st.Label); err != nil {
				p.log.WithError(err).Warn("script screenshot failed")
			}
		}
	case "wait":
		if st.Ticks > 0 {
			r.waitCount = st.Ticks - 1 // this tick counts as one
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 {
		r.done = true
	}
}
