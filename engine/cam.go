package engine

import "fmt"

// Cam describes the camshaft wheel signal.
//
// The camshaft turns at half engine speed; its edges disambiguate which
// half of the 720° cycle a crank gap belongs to. Edges are listed as
// angles from the crank gap reference, in 0.1° units, strictly
// ascending. A negative entry is a sentinel terminating the effective
// list, so fixed-size tables padded with -1 are accepted as well as
// naturally shorter slices.
type Cam struct {
	FirstLevel Level // level at angle 0, when the first crank gap is met
	Edges      []int // edge angles, at most MaxCamEdges used entries
}

// UsedEdges returns the effective edge list, cut at the first sentinel.
func (c Cam) UsedEdges() []int {
	for i, e := range c.Edges {
		if e < 0 {
			return c.Edges[:i]
		}
	}
	return c.Edges
}

// Validate checks the edge table.
func (c Cam) Validate() error {
	edges := c.UsedEdges()
	if len(edges) > MaxCamEdges {
		return fmt.Errorf("%w: %d edges", ErrTooManyCamEdges, len(edges))
	}
	for i, e := range edges {
		if e >= TrainLen {
			return fmt.Errorf("%w: edge %d at %d", ErrCamEdgeOutOfRange, i, e)
		}
		if i > 0 && e <= edges[i-1] {
			return fmt.Errorf("%w: edge %d at %d after %d", ErrCamEdgesNotAscending, i, e, edges[i-1])
		}
	}
	return nil
}
