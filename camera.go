package reel

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// cameraRuntime is the transient state behind a Camera node: the eased
// look-at point and zoom the viewport sees between attribute writes. It is
// never persisted and never participates in attribute hashing; the
// DAG-flagged look_at/zoom attributes always hold the destination values,
// so cached renders key off where the camera is going, not where the
// easing currently is.
type cameraRuntime struct {
	x, y, zoom float64

	tweenX    *gween.Tween
	tweenY    *gween.Tween
	tweenZoom *gween.Tween

	viewProj Mat4
	valid    bool
}

// ScrollTo eases the camera's look-at point and zoom toward (x, y, zoom)
// over duration seconds. The destination lands in the look_at/zoom
// attributes immediately; the tweens only smooth what UpdateCamera
// reports between now and then.
func (n *Node) ScrollTo(x, y, zoom float64, duration float32, fn ease.TweenFunc) {
	if n.Kind != KindCamera {
		return
	}
	if fn == nil {
		fn = ease.OutQuad
	}
	n.Bag.Set("look_at", Vec3Value(Vec3{X: x, Y: y}))
	n.Bag.Set("zoom", Float32Value(float32(zoom)))

	n.mu.Lock()
	n.camera.tweenX = gween.New(float32(n.camera.x), float32(x), duration, fn)
	n.camera.tweenY = gween.New(float32(n.camera.y), float32(y), duration, fn)
	n.camera.tweenZoom = gween.New(float32(n.camera.zoom), float32(zoom), duration, fn)
	n.camera.valid = false
	n.mu.Unlock()
}

// JumpTo moves the camera immediately, cancelling any active easing.
func (n *Node) JumpTo(x, y, zoom float64) {
	if n.Kind != KindCamera {
		return
	}
	n.Bag.Set("look_at", Vec3Value(Vec3{X: x, Y: y}))
	n.Bag.Set("zoom", Float32Value(float32(zoom)))

	n.mu.Lock()
	n.camera.tweenX, n.camera.tweenY, n.camera.tweenZoom = nil, nil, nil
	n.camera.x, n.camera.y, n.camera.zoom = x, y, zoom
	n.camera.valid = false
	n.mu.Unlock()
}

// UpdateCamera advances the camera's active tweens by dt seconds. Call
// once per UI tick. Returns true while easing is still in progress, so
// hosts know to keep refreshing the viewport.
func (n *Node) UpdateCamera(dt float32) bool {
	if n.Kind != KindCamera {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	active := false
	if n.camera.tweenX != nil {
		v, done := n.camera.tweenX.Update(dt)
		n.camera.x = float64(v)
		if done {
			n.camera.tweenX = nil
		} else {
			active = true
		}
	}
	if n.camera.tweenY != nil {
		v, done := n.camera.tweenY.Update(dt)
		n.camera.y = float64(v)
		if done {
			n.camera.tweenY = nil
		} else {
			active = true
		}
	}
	if n.camera.tweenZoom != nil {
		v, done := n.camera.tweenZoom.Update(dt)
		n.camera.zoom = float64(v)
		if done {
			n.camera.tweenZoom = nil
		} else {
			active = true
		}
	}
	if active {
		n.camera.valid = false
	}
	return active
}

// ViewProjection returns the camera's current 4x4 view-projection matrix
// for an owning composition of canvasW x canvasH. The matrix maps
// frame-space points (origin at canvas center, Y-up) through the camera's
// eased look-at, zoom, and rotation into clip space.
func (n *Node) ViewProjection(canvasW, canvasH int) Mat4 {
	if n.Kind != KindCamera {
		return mat4Identity
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.camera.valid {
		n.camera.viewProj = n.buildViewProjection(canvasW, canvasH)
		n.camera.valid = true
	}
	return n.camera.viewProj
}

func (n *Node) buildViewProjection(canvasW, canvasH int) Mat4 {
	rotV, _ := n.Bag.Get("rotation")
	rot, _ := rotV.Float32()

	zoom := n.camera.zoom
	if zoom == 0 {
		zoom = 1
	}
	view := mat4Mul(
		mat4RotateZ(float64(-rot)),
		mat4Mul(
			mat4Scale(zoom, zoom, 1),
			mat4Translate(-n.camera.x, -n.camera.y, 0),
		),
	)
	return mat4Mul(mat4Ortho(float64(canvasW), float64(canvasH)), view)
}

// cameraView returns the eased look-at and zoom a composition applies to
// its layers while blending under this camera.
func (n *Node) cameraView() (x, y, zoom float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	zoom = n.camera.zoom
	if zoom == 0 {
		zoom = 1
	}
	return n.camera.x, n.camera.y, zoom
}

// isActiveCamera reports whether this camera should drive its owning
// composition's view.
func (n *Node) isActiveCamera() bool {
	if n.Kind != KindCamera {
		return false
	}
	v, _ := n.Bag.Get("is_active")
	active, _ := v.Bool()
	return active
}
