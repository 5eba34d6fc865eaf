package detection

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewPoints is returned by FitEllipse when fewer than five points are given.
var ErrTooFewPoints = errors.New("ellipse fit requires at least 5 points")

// ErrDegenerateFit is returned by FitEllipse when the points do not determine
// a real ellipse (colinear points, a hyperbola or parabola, singular scatter).
var ErrDegenerateFit = errors.New("points do not determine an ellipse")

// Point is a position in continuous pixel space.
type Point struct {
	X float64 `json:"x"` // Horizontal position (0 = leftmost)
	Y float64 `json:"y"` // Vertical position (0 = topmost)
}

// Ellipse is a rotated ellipse in pixel coordinates.
type Ellipse struct {
	// Center is the ellipse centre.
	Center Point `json:"center"`

	// Major and Minor are the full axis lengths (diameters), Major >= Minor.
	Major float64 `json:"major"`
	Minor float64 `json:"minor"`

	// Angle is the direction of the major axis in degrees, measured from the
	// +X axis towards +Y (clockwise on screen), in [0, 180).
	Angle float64 `json:"angle"`
}

// Area returns π·(Major/2)·(Minor/2).
func (e Ellipse) Area() float64 {
	return math.Pi * (e.Major / 2) * (e.Minor / 2)
}

// Contains reports whether the point (x, y) lies inside or on the ellipse.
func (e Ellipse) Contains(x, y float64) bool {
	a, b := e.Major/2, e.Minor/2
	if a <= 0 || b <= 0 {
		return false
	}
	theta := e.Angle * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	dx, dy := x-e.Center.X, y-e.Center.Y
	u := (dx*cos + dy*sin) / a
	v := (-dx*sin + dy*cos) / b
	return u*u+v*v <= 1
}

// FitEllipse fits an ellipse to a set of points with the direct least-squares
// method of Fitzgibbon, Pilu and Fisher in the numerically stable form given by
// Halíř and Flusser.
//
// # Algorithm
//
//  1. Normalise points to zero mean and unit spread to condition the system.
//  2. Build the quadratic (x², xy, y²) and linear (x, y, 1) design matrices
//     and their scatter matrices S1, S2, S3.
//  3. Reduce the constrained problem to the 3x3 eigenproblem
//     C1⁻¹ (S1 - S2 S3⁻¹ S2ᵀ) a1 = λ a1 and pick the eigenvector satisfying
//     the ellipse constraint 4ac - b² > 0.
//  4. Recover the linear coefficients and convert the conic to centre, axes
//     and angle, then undo the normalisation.
//
// Returns ErrTooFewPoints for fewer than 5 points and ErrDegenerateFit when the
// points do not describe a real ellipse.
func FitEllipse(points []image.Point) (Ellipse, error) {
	n := len(points)
	if n < 5 {
		return Ellipse{}, ErrTooFewPoints
	}

	var mx, my float64
	for _, p := range points {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(n)
	my /= float64(n)

	var s float64
	for _, p := range points {
		s = math.Max(s, math.Abs(float64(p.X)-mx))
		s = math.Max(s, math.Abs(float64(p.Y)-my))
	}
	if s == 0 {
		return Ellipse{}, ErrDegenerateFit
	}

	d1 := mat.NewDense(n, 3, nil)
	d2 := mat.NewDense(n, 3, nil)
	for i, p := range points {
		x := (float64(p.X) - mx) / s
		y := (float64(p.Y) - my) / s
		d1.SetRow(i, []float64{x * x, x * y, y * y})
		d2.SetRow(i, []float64{x, y, 1})
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(d1.T(), d1)
	s2.Mul(d1.T(), d2)
	s3.Mul(d2.T(), d2)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return Ellipse{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}

	// T = -S3⁻¹ S2ᵀ maps quadratic coefficients to linear ones.
	var t mat.Dense
	t.Mul(&s3inv, s2.T())
	t.Scale(-1, &t)

	var reduced mat.Dense
	reduced.Mul(&s2, &t)
	reduced.Add(&s1, &reduced)

	// Multiply by C1⁻¹ = [[0 0 .5] [0 -1 0] [.5 0 0]].
	m := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		m.Set(0, j, reduced.At(2, j)/2)
		m.Set(1, j, -reduced.At(1, j))
		m.Set(2, j, reduced.At(0, j)/2)
	}

	var eig mat.Eigen
	if !eig.Factorize(m, mat.EigenRight) {
		return Ellipse{}, ErrDegenerateFit
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	var a1 [3]float64
	found := false
	best := 0.0
	for j := 0; j < 3; j++ {
		if math.Abs(imag(values[j])) > 1e-9*math.Max(1, cmplx.Abs(values[j])) {
			continue
		}
		v := [3]float64{real(vectors.At(0, j)), real(vectors.At(1, j)), real(vectors.At(2, j))}
		norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		if norm == 0 {
			continue
		}
		for i := range v {
			v[i] /= norm
		}
		cond := 4*v[0]*v[2] - v[1]*v[1]
		if cond > best {
			best = cond
			a1 = v
			found = true
		}
	}
	if !found {
		return Ellipse{}, ErrDegenerateFit
	}

	a2 := mat.NewVecDense(3, nil)
	a2.MulVec(&t, mat.NewVecDense(3, a1[:]))

	e, ok := conicToEllipse(a1[0], a1[1], a1[2], a2.AtVec(0), a2.AtVec(1), a2.AtVec(2))
	if !ok {
		return Ellipse{}, ErrDegenerateFit
	}

	e.Center.X = e.Center.X*s + mx
	e.Center.Y = e.Center.Y*s + my
	e.Major *= s
	e.Minor *= s
	return e, nil
}

// conicToEllipse converts the general conic A x² + B xy + C y² + D x + E y + F = 0
// into centre, full axis lengths and major axis angle.
func conicToEllipse(a, b, c, d, e, f float64) (Ellipse, bool) {
	if a+c < 0 {
		a, b, c, d, e, f = -a, -b, -c, -d, -e, -f
	}

	den := b*b - 4*a*c
	if den >= 0 {
		return Ellipse{}, false
	}

	x0 := (2*c*d - b*e) / den
	y0 := (2*a*e - b*d) / den

	num := 2 * (a*e*e + c*d*d - b*d*e + den*f)
	root := math.Sqrt((a-c)*(a-c) + b*b)
	semiA := -math.Sqrt(num*(a+c+root)) / den
	semiB := -math.Sqrt(num*(a+c-root)) / den
	if math.IsNaN(semiA) || math.IsNaN(semiB) || semiA <= 0 || semiB <= 0 {
		return Ellipse{}, false
	}

	var theta float64
	switch {
	case b != 0:
		theta = math.Atan((c - a - root) / b)
	case a < c:
		theta = 0
	default:
		theta = math.Pi / 2
	}

	// semiA is the semi-axis along theta; make it the major one.
	if semiB > semiA {
		semiA, semiB = semiB, semiA
		theta += math.Pi / 2
	}

	deg := math.Mod(theta*180/math.Pi, 180)
	if deg < 0 {
		deg += 180
	}

	return Ellipse{
		Center: Point{X: x0, Y: y0},
		Major:  2 * semiA,
		Minor:  2 * semiB,
		Angle:  deg,
	}, true
}
