package common

import "github.com/pkg/errors"

// TargetGroup is the ground truth for a single frame: a variable-length set
// of objects, each with a class label and a 2-D center point.
type TargetGroup struct {
	// Labels holds one class index in [0, classes) per object.
	Labels []int `json:"labels" yaml:"labels"`
	// CenterPoints holds one (x, y) pair per object, in the same coordinate
	// convention as the model's center-point predictions.
	CenterPoints [][2]float32 `json:"center_points" yaml:"center_points"`
}

// Len returns the number of ground-truth objects in the group.
func (g TargetGroup) Len() int { return len(g.Labels) }

// TotalObjects returns the ground-truth object count summed across a batch.
func TotalObjects(targets []TargetGroup) int {
	total := 0
	for _, g := range targets {
		total += g.Len()
	}
	return total
}

// ValidateTargets checks a batch of target groups against the model output
// dimensions: one group per frame, consistent label/point counts, labels
// inside [0, classes), and never more objects than query slots.
//
// Arguments:
// - targets: One group per frame.
// - batch, queries, classes: Dimensions reported by ModelOutput.Dims.
//
// Returns:
// - The first violation found, carrying the offending sample index.
func ValidateTargets(targets []TargetGroup, batch, queries, classes int) error {
	if len(targets) != batch {
		return errors.Errorf("got %d target groups for a batch of %d frames", len(targets), batch)
	}
	for b, g := range targets {
		if len(g.Labels) != len(g.CenterPoints) {
			return errors.Errorf("sample %d: %d labels but %d center points", b, len(g.Labels), len(g.CenterPoints))
		}
		if g.Len() > queries {
			return errors.Errorf("sample %d: %d objects exceed %d query slots, assignment is infeasible", b, g.Len(), queries)
		}
		for i, label := range g.Labels {
			if label < 0 || label >= classes {
				return errors.Errorf("sample %d: label %d at index %d outside [0, %d)", b, label, i, classes)
			}
		}
	}
	return nil
}
