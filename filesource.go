package reel

import (
	"fmt"
	"strings"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/frame"
)

// computeFileSource implements the FileSource contract: map the requested
// parent-relative frame to a sequence number on disk, return a
// placeholder sized to the source's last-known bounds when it falls
// outside [file_start, file_end], serve a cache hit directly, or hand
// back an Unloaded Frame referencing the resolved path for the worker
// pool to actually decode.
func (n *Node) computeFileSource(frameIndex int64, ctx *ComputeContext) frame.Frame {
	key := cache.Key{Node: n.ID, Frame: frameIndex}
	if f, ok := n.Cache.Get(key); ok {
		return f
	}

	mask, _ := n.Bag.Get("file_mask")
	maskStr, _ := mask.String_()
	start, _ := n.Bag.Get("file_start")
	end, _ := n.Bag.Get("file_end")
	in, _ := n.Bag.Get("in")
	startI, _ := start.Int32()
	endI, _ := end.Int32()
	inI, _ := in.Int32()

	w, h := n.Bounds()
	seq := int64(startI) + (frameIndex - int64(inI))
	if seq < int64(startI) || seq > int64(endI) {
		return frame.NewUnloaded("", w, h)
	}

	path := resolveFileMask(maskStr, seq)
	if !ctx.Synchronous || ctx.Decoder == nil {
		return frame.NewUnloaded(path, w, h)
	}

	// Worker-side chain: decode the miss inline. At most one in-flight
	// load per key — a second worker observing Loading backs off with the
	// placeholder instead of decoding the same file twice.
	if n.Cache.Status(key) == cache.LoadingStatus {
		return frame.NewUnloaded(path, w, h)
	}
	n.Cache.MarkLoading(key, ctx.Epoch)
	decoded := ctx.Decoder.Decode(path)
	if decoded.IsLoaded() {
		n.setSourceBounds(decoded.Width(), decoded.Height())
	}
	n.Cache.Insert(key, decoded, ctx.Epoch)
	return decoded
}

// resolveFileMask substitutes seq for the first run of `#` characters in
// mask, zero-padded to that run's width (the image-sequence convention:
// `shot_####.exr` -> `shot_0042.exr`).
func resolveFileMask(mask string, seq int64) string {
	start := strings.IndexByte(mask, '#')
	if start < 0 {
		return mask
	}
	end := start
	for end < len(mask) && mask[end] == '#' {
		end++
	}
	width := end - start
	return fmt.Sprintf("%s%0*d%s", mask[:start], width, seq, mask[end:])
}

// rescanFileSource marks the node dirty after its sequence directory
// changed. It does not re-read file_start/file_end or list the directory.
// Player.WatchSequenceDirs follows it with an AttrsChanged event, whose
// invalidation clears the node's cached frames, Error-status entries from
// failed decodes included, so the next worker fetch decodes them again.
func (n *Node) rescanFileSource() {
	if n.Kind != KindFileSource {
		return
	}
	n.MarkDirty()
}
