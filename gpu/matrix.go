package gpu

import (
	"fmt"
	"math"
)

// Matrix is a 3x3 row-major affine transformation matrix applied to
// column vectors (x, y, 1) in normalized device coordinates.
type Matrix [9]float64

func Identity() Matrix {
	return Matrix{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

func Scale(sx, sy float64) Matrix {
	return Matrix{
		sx, 0, 0,
		0, sy, 0,
		0, 0, 1,
	}
}

func Translate(tx, ty float64) Matrix {
	return Matrix{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	}
}

// Rotate rotates counter-clockwise by the given angle in degrees.
func Rotate(degrees float64) Matrix {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	sin, cos = snapToZero(sin), snapToZero(cos)
	return Matrix{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	}
}

func snapToZero(v float64) float64 {
	const eps = 1e-12
	if math.Abs(v) < eps {
		return 0
	}
	if math.Abs(v-1) < eps {
		return 1
	}
	if math.Abs(v+1) < eps {
		return -1
	}
	return v
}

// Multiply returns m*other: other is applied first.
func (m Matrix) Multiply(other Matrix) Matrix {
	var r Matrix
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[row*3+k] * other[k*3+col]
			}
			r[row*3+col] = sum
		}
	}
	return r
}

func (m Matrix) Determinant() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Invert returns the inverse matrix, or false if m is singular.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.Determinant()
	if det == 0 {
		return Matrix{}, false
	}
	inv := Matrix{
		m[4]*m[8] - m[5]*m[7], m[2]*m[7] - m[1]*m[8], m[1]*m[5] - m[2]*m[4],
		m[5]*m[6] - m[3]*m[8], m[0]*m[8] - m[2]*m[6], m[2]*m[3] - m[0]*m[5],
		m[3]*m[7] - m[4]*m[6], m[1]*m[6] - m[0]*m[7], m[0]*m[4] - m[1]*m[3],
	}
	for i := range inv {
		inv[i] /= det
	}
	return inv, true
}

func (m Matrix) TransformPoint(x, y float64) (float64, float64) {
	w := m[6]*x + m[7]*y + m[8]
	if w == 0 {
		w = 1
	}
	return (m[0]*x + m[1]*y + m[2]) / w, (m[3]*x + m[4]*y + m[5]) / w
}

func (m Matrix) Equal(other Matrix) bool {
	const eps = 1e-9
	for i := range m {
		if math.Abs(m[i]-other[i]) > eps {
			return false
		}
	}
	return true
}

func (m Matrix) IsIdentity() bool {
	return m.Equal(Identity())
}

func (m Matrix) String() string {
	return fmt.Sprintf("[%g %g %g; %g %g %g; %g %g %g]", m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
}
