// Package matcher - Optimal assignment between predicted query slots and
// ground-truth objects.
//
// For efficiency the targets never include a "no object" entry, so there are
// generally more predictions than targets. The matcher pairs every target
// with its best distinct query slot; the remaining slots stay unmatched and
// are treated as background by the criterion.
package matcher

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-trajectory/common"
	"github.com/nvr-ai/go-trajectory/lap"
	"github.com/nvr-ai/go-trajectory/ops"
)

// Config fixes the matcher's cost weights and classification mode at
// construction time.
type Config struct {
	// FocalLoss selects the focal-style classification cost (independent
	// per-class sigmoid probabilities) instead of the softmax approximation.
	FocalLoss bool `json:"focal_loss" yaml:"focal_loss"`
	// CostClass is the relative weight of the classification cost.
	CostClass float64 `json:"cost_class" yaml:"cost_class"`
	// CostCenterPoint is the relative weight of the center-point L1 cost.
	CostCenterPoint float64 `json:"cost_center_point" yaml:"cost_center_point"`
	// FocalAlpha is the focal-loss balancing factor (focal mode only).
	FocalAlpha float32 `json:"focal_alpha" yaml:"focal_alpha"`
	// FocalGamma is the focal-loss focusing exponent (focal mode only).
	FocalGamma float32 `json:"focal_gamma" yaml:"focal_gamma"`
}

// DefaultConfig returns the reference configuration: focal classification
// cost weighted 2, center-point cost weighted 5.
func DefaultConfig() Config {
	return Config{
		FocalLoss:       true,
		CostClass:       2,
		CostCenterPoint: 5,
		FocalAlpha:      0.25,
		FocalGamma:      2.0,
	}
}

// HungarianMatcher computes a per-frame one-to-one assignment between query
// slots and ground-truth objects minimizing a weighted sum of classification
// and center-point costs. Safe for concurrent use: all fields are read-only
// after construction.
type HungarianMatcher struct {
	costClass       float64
	costCenterPoint float64
	classCost       classCost
}

// New creates a HungarianMatcher.
//
// Arguments:
// - cfg: Cost weights and classification mode.
//
// Returns:
// - The matcher, or an error if both cost weights are zero.
func New(cfg Config) (*HungarianMatcher, error) {
	if cfg.CostClass == 0 && cfg.CostCenterPoint == 0 {
		return nil, errors.New("at least one of cost_class and cost_center_point must be non-zero")
	}
	m := &HungarianMatcher{
		costClass:       cfg.CostClass,
		costCenterPoint: cfg.CostCenterPoint,
	}
	if cfg.FocalLoss {
		m.classCost = focalClassCost{alpha: float64(cfg.FocalAlpha), gamma: float64(cfg.FocalGamma)}
	} else {
		m.classCost = softmaxClassCost{}
	}
	return m, nil
}

// Match computes the per-frame assignment for a batch.
//
// Predictions are flattened to (batch·queries, ·) and costed against the
// targets of every frame concatenated together; each frame then solves its
// own (queries × objects) block of the matrix independently. No gradients
// are involved anywhere: the assignment is a combinatorial decision over
// plain values.
//
// Arguments:
// - outputs: Raw model predictions, validated against the targets.
// - targets: One ground-truth group per frame.
//
// Returns:
// - One Assignment per frame; frames without objects get an empty one.
// - error: The first contract violation found (shapes, label range, more
//   objects than query slots).
func (m *HungarianMatcher) Match(outputs common.ModelOutput, targets []common.TargetGroup) ([]common.Assignment, error) {
	batch, queries, classes, err := outputs.Dims()
	if err != nil {
		return nil, errors.Wrap(err, "matcher: invalid model output")
	}
	if err := common.ValidateTargets(targets, batch, queries, classes); err != nil {
		return nil, errors.Wrap(err, "matcher: invalid targets")
	}

	assignments := make([]common.Assignment, batch)
	total := common.TotalObjects(targets)
	if total == 0 {
		for b := range assignments {
			assignments[b] = common.Assignment{QueryIndices: []int{}, TargetIndices: []int{}}
		}
		return assignments, nil
	}

	// Concatenate the labels and center points of every frame's targets.
	labels := make([]int, 0, total)
	points := make([][2]float32, 0, total)
	for _, g := range targets {
		labels = append(labels, g.Labels...)
		points = append(points, g.CenterPoints...)
	}

	costs := mat.NewDense(batch*queries, total, nil)
	if m.costClass != 0 {
		m.classCost.fill(costs, m.costClass, outputs.Logits(), classes, labels)
	}
	if m.costCenterPoint != 0 {
		centers := outputs.CenterPoints()
		for q := 0; q < batch*queries; q++ {
			cp := [2]float32{centers[2*q], centers[2*q+1]}
			for t, tp := range points {
				costs.Set(q, t, costs.At(q, t)+m.costCenterPoint*float64(ops.L1(cp, tp)))
			}
		}
	}

	offset := 0
	for b, g := range targets {
		n := g.Len()
		if n == 0 {
			assignments[b] = common.Assignment{QueryIndices: []int{}, TargetIndices: []int{}}
			continue
		}
		block := costs.Slice(b*queries, (b+1)*queries, offset, offset+n)
		rows, cols := lap.Solve(block)
		assignments[b] = common.Assignment{QueryIndices: rows, TargetIndices: cols}
		offset += n
	}
	return assignments, nil
}
