// Package reel is the playback and compositing engine of an interactive
// image-sequence player: a node graph of file-source, composition, camera,
// and text nodes, a global frame cache bounded by a process-wide memory
// budget, a worker pool with epoch-based cancellation, and a playback
// clock that drives frame-accurate scrubbing and real-time playback.
//
// The root package holds the densest, most interrelated parts — the
// attribute bag, the node graph, the project container, and the Player
// facade hosts talk to. The narrow-boundary components live in
// subpackages:
//
//   - frame: decoded/composited pixel buffers with copy-on-write sharing
//   - cache: the bounded LRU over (node id, frame index)
//   - memmgr: the memory ceiling and the cancellation epoch counter
//   - workerpool: bounded parallel execution of decode/compose jobs
//   - preload: spiral/forward radius loading around the playhead
//   - compositor: CPU and GPU blend backends
//   - playback: the wall-clock frame advancement state machine
//   - event: the type-erased pub/sub bus tying the above together
//   - serialize: the project file format and engine configuration
//   - decode: the reference image decoder collaborators
//
// Hosts construct a Project, add nodes through Project.AddNode (the single
// entry point that installs cache and memory handles), wrap it in a
// Player, and then read frames via Player.CurrentFrame while writing
// through events.
package reel
