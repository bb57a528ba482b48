// Package types holds the plain records shared between packages.
package types

// FaceRegion is an axis-aligned face box reported by a detector.
// X and Y are the top-left corner in pixels, W and H the size.
type FaceRegion struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	W     int     `json:"w"`
	H     int     `json:"h"`
	Score float64 `json:"score"` // detector confidence in [0,1]
}

// Area returns the pixel area of the region
func (r FaceRegion) Area() int {
	return r.W * r.H
}

// ScoreLabelPair is one labeled observation fed to the metric evaluator.
// What Label=1 means (same identity, or attack) is decided by the caller.
type ScoreLabelPair struct {
	Score float64 `json:"score"`
	Label int     `json:"label"`
}
