package compositor

import "math"

// matrix2D is a 2D affine transform [a b c d tx ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
//
// Built from position, rotation, scale, and pivot, for use as the
// compositor's per-layer inverse-mapping sampler.
type matrix2D [6]float64

var identity2D = matrix2D{1, 0, 0, 1, 0, 0}

// forward builds the matrix that maps a layer's local space (origin at the
// layer's own center, Y-up) to canvas space (origin at canvas center, Y-up),
// applying Translate(-pivot) -> Scale -> Rotate -> Translate(position).
func forward(t Transform) matrix2D {
	sx, sy := t.ScaleX, t.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	sin, cos := math.Sincos(t.Rotation)

	// After Scale * Translate(-pivot):
	a, b, c, d := sx, 0.0, 0.0, sy
	preTx, preTy := -t.PivotX*sx, -t.PivotY*sy

	// After Rotate:
	ra := cos*a - sin*b
	rb := sin*a + cos*b
	rc := cos*c - sin*d
	rd := sin*c + cos*d
	rtx := cos*preTx - sin*preTy
	rty := sin*preTx + cos*preTy

	// After Translate(position), Y-up. No Y flip is stored: the CPU sampler
	// converts canvas pixel rows (Y-down) to Y-up before applying the
	// inverse.
	return matrix2D{ra, rb, rc, rd, rtx + t.X, rty + t.Y}
}

func (m matrix2D) invert() matrix2D {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identity2D
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return matrix2D{a, b, c, d, -(a*m[4] + c*m[5]), -(b*m[4] + d*m[5])}
}

func (m matrix2D) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}
