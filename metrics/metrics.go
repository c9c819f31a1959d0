// Package metrics - Evaluation metrics over matched trajectories.
package metrics

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-trajectory/common"
	"github.com/nvr-ai/go-trajectory/ops"
)

// Displacement summarizes center-point error over matched pairs.
type Displacement struct {
	// ADE is the mean Euclidean displacement over every matched pair.
	ADE float64 `json:"ade"`
	// FDE is the mean Euclidean displacement over the last frame that has
	// matched pairs.
	FDE float64 `json:"fde"`
	// Matched is the number of matched pairs that entered ADE.
	Matched int `json:"matched"`
}

// DisplacementError computes average and final displacement error between
// predicted and ground-truth center points over the given assignments.
// Frames are batch elements in sequence order.
//
// Arguments:
// - outputs: Raw model predictions for the sequence.
// - targets: One ground-truth group per frame.
// - assignments: Per-frame assignments, typically from the matcher.
//
// Returns:
// - Displacement; ADE and FDE are zero when nothing is matched.
func DisplacementError(outputs common.ModelOutput, targets []common.TargetGroup, assignments []common.Assignment) (Displacement, error) {
	batch, queries, _, err := outputs.Dims()
	if err != nil {
		return Displacement{}, errors.Wrap(err, "metrics: invalid model output")
	}
	if len(targets) != batch || len(assignments) != batch {
		return Displacement{}, errors.Errorf("metrics: got %d target groups and %d assignments for a batch of %d frames",
			len(targets), len(assignments), batch)
	}

	centers := outputs.CenterPoints()
	var sum float64
	var count int
	var lastSum float64
	var lastCount int
	for b, a := range assignments {
		var frameSum float64
		frameCount := 0
		for k, q := range a.QueryIndices {
			slot := b*queries + q
			tp := targets[b].CenterPoints[a.TargetIndices[k]]
			dx := float64(centers[2*slot] - tp[0])
			dy := float64(centers[2*slot+1] - tp[1])
			frameSum += math.Hypot(dx, dy)
			frameCount++
		}
		if frameCount > 0 {
			sum += frameSum
			count += frameCount
			lastSum, lastCount = frameSum, frameCount
		}
	}

	out := Displacement{Matched: count}
	if count > 0 {
		out.ADE = sum / float64(count)
	}
	if lastCount > 0 {
		out.FDE = lastSum / float64(lastCount)
	}
	return out, nil
}

// ClassAccuracy returns the top-1 accuracy, in percent, of matched slots
// against their assigned ground-truth labels. Zero matches yield zero.
func ClassAccuracy(outputs common.ModelOutput, targets []common.TargetGroup, assignments []common.Assignment) (float64, error) {
	batch, queries, classes, err := outputs.Dims()
	if err != nil {
		return 0, errors.Wrap(err, "metrics: invalid model output")
	}
	if len(targets) != batch || len(assignments) != batch {
		return 0, errors.Errorf("metrics: got %d target groups and %d assignments for a batch of %d frames",
			len(targets), len(assignments), batch)
	}

	logits := outputs.Logits()
	matched, correct := 0, 0
	for b, a := range assignments {
		for k, q := range a.QueryIndices {
			matched++
			slot := b*queries + q
			row := logits[slot*classes : (slot+1)*classes]
			if ops.ArgMax(row) == targets[b].Labels[a.TargetIndices[k]] {
				correct++
			}
		}
	}
	if matched == 0 {
		return 0, nil
	}
	return 100 * float64(correct) / float64(matched), nil
}
