// Package criterion - Training losses for set-prediction trajectory models:
// a focal classification loss over every query slot and an L1 center-point
// loss restricted to matched slots, normalized by the batch's object count.
package criterion

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-trajectory/common"
	"github.com/nvr-ai/go-trajectory/matcher"
	"github.com/nvr-ai/go-trajectory/ops"
)

// Loss map keys returned by ComputeLosses.
const (
	// LossCE is the focal classification loss over every query slot.
	LossCE = "loss_ce"
	// LossCenterPoint is the L1 center-point loss over matched slots.
	LossCenterPoint = "loss_center_point"
	// ClassError is the matched-slot top-1 error in percent. It is reported
	// for logging only and never enters the backpropagated total.
	ClassError = "class_error"
)

// Losses maps loss names to scalar values. Entries are addressed by the
// exported key constants.
type Losses map[string]float64

// WeightDict maps loss names to the weights the training loop applies when
// forming the backpropagated scalar.
type WeightDict map[string]float64

// DefaultWeights returns the reference loss weighting.
func DefaultWeights() WeightDict {
	return WeightDict{LossCE: 2, LossCenterPoint: 5}
}

// Total sums the weighted loss terms, skipping entries without a weight
// (such as the class-error diagnostic).
func (w WeightDict) Total(losses Losses) float64 {
	var total float64
	for name, weight := range w {
		if v, ok := losses[name]; ok {
			total += weight * v
		}
	}
	return total
}

// Config fixes the criterion's hyperparameters at construction time.
type Config struct {
	// NumClasses is the number of real object classes C. Logits carry one
	// score per real class; background is implicit (an all-zero one-hot row).
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// FocalAlpha is the focal-loss balancing factor.
	FocalAlpha float32 `json:"focal_alpha" yaml:"focal_alpha"`
	// FocalGamma is the focal-loss focusing exponent.
	FocalGamma float32 `json:"focal_gamma" yaml:"focal_gamma"`
	// ScaleByQueries preserves the inherited convention of multiplying the
	// classification loss by the query-slot count so its magnitude does not
	// shrink as slots are added. Nil means enabled.
	ScaleByQueries *bool `json:"scale_by_queries,omitempty" yaml:"scale_by_queries,omitempty"`
}

// DefaultConfig returns the reference hyperparameters for the given number
// of classes.
func DefaultConfig(numClasses int) Config {
	return Config{NumClasses: numClasses, FocalAlpha: 0.25, FocalGamma: 2.0}
}

// SetCriterion computes the training losses for a batch of set predictions.
// It matches first, then treats matched slots as positives for their
// assigned label and every other slot as background. Safe for concurrent
// use: all fields are read-only after construction.
type SetCriterion struct {
	numClasses     int
	matcher        *matcher.HungarianMatcher
	focalAlpha     float32
	focalGamma     float32
	scaleByQueries bool
}

// New creates a SetCriterion that resolves assignments with m before
// computing losses.
func New(cfg Config, m *matcher.HungarianMatcher) (*SetCriterion, error) {
	if cfg.NumClasses <= 0 {
		return nil, errors.Errorf("num_classes must be positive, got %d", cfg.NumClasses)
	}
	if m == nil {
		return nil, errors.New("criterion requires a matcher")
	}
	scale := true
	if cfg.ScaleByQueries != nil {
		scale = *cfg.ScaleByQueries
	}
	return &SetCriterion{
		numClasses:     cfg.NumClasses,
		matcher:        m,
		focalAlpha:     cfg.FocalAlpha,
		focalGamma:     cfg.FocalGamma,
		scaleByQueries: scale,
	}, nil
}

// ComputeLosses matches the batch and computes the per-term training losses.
//
// Arguments:
// - outputs: Raw model predictions for the batch.
// - targets: One ground-truth group per frame.
//
// Returns:
// - Losses keyed by LossCE, ClassError, and LossCenterPoint. Values are
//   unweighted; the training loop applies a WeightDict to form the
//   backpropagated total.
// - error: Contract violations (shapes, label range, infeasible assignment).
func (c *SetCriterion) ComputeLosses(outputs common.ModelOutput, targets []common.TargetGroup) (Losses, error) {
	batch, queries, classes, err := outputs.Dims()
	if err != nil {
		return nil, errors.Wrap(err, "criterion: invalid model output")
	}
	if classes != c.numClasses {
		return nil, errors.Errorf("criterion: model predicts %d classes but criterion is configured for %d", classes, c.numClasses)
	}

	assignments, err := c.matcher.Match(outputs, targets)
	if err != nil {
		return nil, err
	}

	// Normalization denominator, clamped to one so a batch without objects
	// yields finite losses instead of dividing by zero.
	numObjects := float64(common.TotalObjects(targets))
	if numObjects < 1 {
		numObjects = 1
	}

	losses := Losses{}
	c.lossLabels(losses, outputs, targets, assignments, batch, queries, numObjects)
	c.lossCenterPoints(losses, outputs, targets, assignments, queries, numObjects)
	return losses, nil
}

// lossLabels computes the focal classification loss over every slot plus the
// matched-slot top-1 error diagnostic.
func (c *SetCriterion) lossLabels(losses Losses, outputs common.ModelOutput, targets []common.TargetGroup, assignments []common.Assignment, batch, queries int, numObjects float64) {
	logits := outputs.Logits()

	// Per-slot target class: background everywhere, then the matched slots
	// take their assigned ground-truth label.
	slotClasses := make([]common.TargetClass, batch*queries)
	for i := range slotClasses {
		slotClasses[i] = common.Background
	}
	for b, a := range assignments {
		for k, q := range a.QueryIndices {
			slotClasses[b*queries+q] = common.RealClass(targets[b].Labels[a.TargetIndices[k]])
		}
	}

	// Focal loss against the one-hot layout with the background column
	// dropped: a background slot is negative for every real class. The sum
	// is averaged over the query dimension, normalized by the object count,
	// and optionally rescaled by the slot count.
	var total float64
	for slot, class := range slotClasses {
		row := logits[slot*c.numClasses : (slot+1)*c.numClasses]
		hot := class.OneHotIndex(c.numClasses)
		for cc, logit := range row {
			target := float32(0)
			if cc == hot {
				target = 1
			}
			total += float64(ops.FocalLoss(logit, target, c.focalAlpha, c.focalGamma))
		}
	}
	lossCE := total / float64(queries) / numObjects
	if c.scaleByQueries {
		lossCE *= float64(queries)
	}
	losses[LossCE] = lossCE

	// Diagnostic: 100 minus the top-1 accuracy of matched slots against
	// their assigned label. An empty match set reports zero accuracy.
	matched, correct := 0, 0
	for b, a := range assignments {
		for k, q := range a.QueryIndices {
			matched++
			slot := b*queries + q
			row := logits[slot*c.numClasses : (slot+1)*c.numClasses]
			if ops.ArgMax(row) == targets[b].Labels[a.TargetIndices[k]] {
				correct++
			}
		}
	}
	accuracy := 0.0
	if matched > 0 {
		accuracy = 100 * float64(correct) / float64(matched)
	}
	losses[ClassError] = 100 - accuracy
}

// lossCenterPoints computes the summed L1 distance over matched pairs
// divided by the object count. Pair k of a frame's assignment gathers the
// prediction at QueryIndices[k] and the target at TargetIndices[k].
func (c *SetCriterion) lossCenterPoints(losses Losses, outputs common.ModelOutput, targets []common.TargetGroup, assignments []common.Assignment, queries int, numObjects float64) {
	centers := outputs.CenterPoints()
	var total float64
	for b, a := range assignments {
		for k, q := range a.QueryIndices {
			slot := b*queries + q
			pred := [2]float32{centers[2*slot], centers[2*slot+1]}
			total += float64(ops.L1(pred, targets[b].CenterPoints[a.TargetIndices[k]]))
		}
	}
	losses[LossCenterPoint] = total / numObjects
}
