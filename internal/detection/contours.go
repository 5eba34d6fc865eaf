package detection

import (
	"image"
	"math"
)

// Contour is the closed outer boundary of one connected edge region.
//
// Points run clockwise (in image coordinates, Y down) starting at the region's
// first pixel in raster order. Runs of colinear points are collapsed so that
// only the points where the boundary changes direction remain.
type Contour struct {
	Points []image.Point `json:"points"`
}

// Area returns the absolute polygon area enclosed by the contour (shoelace
// formula). Contours with fewer than three points have zero area.
func (c Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	var sum int
	for i := 0; i < n; i++ {
		p, q := c.Points[i], c.Points[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

// Bounds returns the axis-aligned bounding box of the contour points.
// Max is exclusive, so a single point at (x, y) has bounds (x,y)-(x+1,y+1).
func (c Contour) Bounds() image.Rectangle {
	if len(c.Points) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c.Points[0], Max: c.Points[0]}
	for _, p := range c.Points[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// mooreOffsets lists the 8 neighbours of a pixel clockwise starting at west.
var mooreOffsets = [8]image.Point{
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
}

// FindContours extracts the outer boundary of every outermost region of
// nonzero pixels in a binary edge map.
//
// # Algorithm
//
//  1. Labelling: 8-connected nonzero pixels are grouped into regions by an
//     iterative flood fill.
//  2. Outside region: background pixels 4-connected to the image frame are
//     marked as outside.
//  3. Selection: a region is outermost when it touches the frame or is
//     4-adjacent to an outside pixel. Regions enclosed by another region
//     (holes and anything inside them) are skipped.
//  4. Tracing: the boundary of each selected region is followed with Moore
//     neighbour tracing and Jacob's stopping criterion.
//  5. Simplification: colinear runs of boundary points are collapsed.
//
// Contours are returned in raster order of their first pixel, so the output is
// stable for a given input. An empty map yields no contours.
func FindContours(edges *image.Gray) []Contour {
	b := edges.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	fg := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fg[y*width+x] = edges.Pix[y*edges.Stride+x] != 0
		}
	}

	labels, starts := labelRegions(fg, width, height)
	if len(starts) == 0 {
		return nil
	}

	outside := markOutside(fg, width, height)

	outer := make([]bool, len(starts)+1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			l := labels[y*width+x]
			if l == 0 || outer[l] {
				continue
			}
			if x == 0 || y == 0 || x == width-1 || y == height-1 ||
				outside[y*width+x-1] || outside[y*width+x+1] ||
				outside[(y-1)*width+x] || outside[(y+1)*width+x] {
				outer[l] = true
			}
		}
	}

	contours := make([]Contour, 0)
	for i, start := range starts {
		label := int32(i + 1)
		if !outer[label] {
			continue
		}
		boundary := traceBoundary(labels, width, height, start, label)
		contours = append(contours, Contour{Points: simplifyContour(boundary)})
	}
	return contours
}

// labelRegions assigns a label (1-based) to every 8-connected region of
// foreground pixels. starts holds each region's first pixel in raster order.
func labelRegions(fg []bool, width, height int) ([]int32, []image.Point) {
	labels := make([]int32, width*height)
	var starts []image.Point

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if fg[y*width+x] && labels[y*width+x] == 0 {
				starts = append(starts, image.Pt(x, y))
				floodFill(fg, labels, x, y, width, height, int32(len(starts)))
			}
		}
	}
	return labels, starts
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large regions. Uses 8-connectivity (includes diagonal neighbors).
func floodFill(fg []bool, labels []int32, startX, startY, width, height int, label int32) {
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if labels[i] != 0 || !fg[i] {
			continue
		}
		labels[i] = label

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// markOutside flags every background pixel 4-connected to the image frame.
func markOutside(fg []bool, width, height int) []bool {
	outside := make([]bool, width*height)
	var queue []int

	push := func(x, y int) {
		i := y*width + x
		if !fg[i] && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		x, y := i%width, i/width
		if x > 0 {
			push(x-1, y)
		}
		if x < width-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < height-1 {
			push(x, y+1)
		}
	}
	return outside
}

// traceBoundary follows the outer boundary of the region with the given label,
// starting at its first raster pixel, whose west neighbour is never part of
// the region.
func traceBoundary(labels []int32, width, height int, start image.Point, label int32) []image.Point {
	inRegion := func(p image.Point) bool {
		return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height && labels[p.Y*width+p.X] == label
	}

	boundary := []image.Point{start}
	p := start
	back := 0 // direction from p to the last background pixel examined
	firstDir := -1
	limit := 4*len(labels) + 8

	for step := 0; step < limit; step++ {
		dir := -1
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if inRegion(p.Add(mooreOffsets[d])) {
				dir = d
				break
			}
		}
		if dir < 0 {
			// isolated pixel
			return boundary
		}

		if p == start {
			if firstDir < 0 {
				firstDir = dir
			} else if dir == firstDir {
				break
			}
		}

		q := p.Add(mooreOffsets[dir])
		prev := p.Add(mooreOffsets[(dir+7)%8])
		back = offsetIndex(prev.Sub(q))
		p = q

		if p == start {
			continue
		}
		boundary = append(boundary, p)
	}
	return boundary
}

// offsetIndex returns the index of a unit offset in mooreOffsets.
func offsetIndex(d image.Point) int {
	for i, o := range mooreOffsets {
		if o == d {
			return i
		}
	}
	return 0
}

// simplifyContour drops points lying in the middle of a straight run, keeping
// only points where the boundary direction changes.
func simplifyContour(points []image.Point) []image.Point {
	n := len(points)
	if n < 3 {
		return points
	}

	out := make([]image.Point, 0, n)
	for i, p := range points {
		prev := points[(i+n-1)%n]
		next := points[(i+1)%n]
		if p.Sub(prev) != next.Sub(p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return points
	}
	return out
}
