// Package simplify reduces an ordered polyline with effective-area
// (Visvalingam–Whyatt) simplification: the point forming the smallest
// triangle with its neighbors is dropped until every remaining interior
// point carries at least the tolerance area.
package simplify

import (
	"math"

	"github.com/paulmach/orb"
)

// VisvalingamWhyatt returns a strict subsequence of line in original
// order. Endpoints are always kept. Inputs of two or fewer points are
// returned as-is. Ties on minimal area keep the earliest point, so the
// result is deterministic for a fixed input and tolerance.
func VisvalingamWhyatt(line orb.LineString, tolerance float64) orb.LineString {
	if len(line) <= 2 {
		return line
	}
	pts := make(orb.LineString, len(line))
	copy(pts, line)

	for len(pts) > 2 {
		min := -1
		minArea := 0.0
		for i := 1; i < len(pts)-1; i++ {
			a := effectiveArea(pts[i-1], pts[i], pts[i+1])
			if min == -1 || a < minArea {
				min = i
				minArea = a
			}
		}
		if minArea >= tolerance {
			break
		}
		pts = append(pts[:min], pts[min+1:]...)
	}
	return pts
}

// effectiveArea is the area of the triangle (a, b, c) via the cross
// product, in squared coordinate units.
func effectiveArea(a, b, c orb.Point) float64 {
	return math.Abs((b[0]-a[0])*(c[1]-a[1])-(c[0]-a[0])*(b[1]-a[1])) / 2
}
