// Package aoi implements the area-of-interest hit test used to classify a
// smoothed gaze point as inside or outside the instrument panel.
package aoi

import "math"

// edgeEpsilon is how far from an edge a point may lie and still count as
// on it.
const edgeEpsilon = 1e-9

// Point is a polygon vertex in normalized [0,1] coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is an ordered list of vertices describing a simple polygon.
// Winding direction does not matter.
type Polygon []Point

// MinVertices is the smallest vertex count that forms a usable polygon.
const MinVertices = 3

// Valid reports whether the polygon has enough vertices to contain anything.
func (p Polygon) Valid() bool {
	return len(p) >= MinVertices
}

// Contains reports whether (x, y) lies inside the polygon.
func (p Polygon) Contains(x, y float64) bool {
	return Contains(x, y, p)
}

// FromPairs builds a polygon from [x, y] pairs as stored in calibration files.
func FromPairs(pairs [][2]float64) Polygon {
	poly := make(Polygon, len(pairs))
	for i, pr := range pairs {
		poly[i] = Point{X: pr[0], Y: pr[1]}
	}
	return poly
}

// Pairs returns the polygon as [x, y] pairs.
func (p Polygon) Pairs() [][2]float64 {
	pairs := make([][2]float64, len(p))
	for i, v := range p {
		pairs[i] = [2]float64{v.X, v.Y}
	}
	return pairs
}

// Contains reports whether (x, y) lies inside polygon. Points on an edge or a
// vertex count as inside. Polygons with fewer than three vertices contain nothing.
func Contains(x, y float64, polygon []Point) bool {
	n := len(polygon)
	if n < MinVertices {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := polygon[j], polygon[i]

		if onSegment(x, y, a, b) {
			return true
		}

		// Crossing test: the edge straddles the horizontal line through y
		// and the intersection lies to the right of x.
		if (b.Y > y) != (a.Y > y) {
			xCross := a.X + (y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if x < xCross {
				inside = !inside
			}
		}
	}

	return inside
}

// onSegment reports whether (x, y) lies on the closed segment a-b, allowing
// for float rounding on slanted edges.
func onSegment(x, y float64, a, b Point) bool {
	length := math.Hypot(b.X-a.X, b.Y-a.Y)
	cross := (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X)
	if math.Abs(cross) > edgeEpsilon*length {
		return false
	}
	return x >= min(a.X, b.X)-edgeEpsilon && x <= max(a.X, b.X)+edgeEpsilon &&
		y >= min(a.Y, b.Y)-edgeEpsilon && y <= max(a.Y, b.Y)+edgeEpsilon
}
