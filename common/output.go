// Package common - Tensor-shaped contracts shared by the matcher, criterion,
// post-processing, and evaluation stages.
package common

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ModelOutput carries the raw per-frame predictions of the upstream model.
//
// Slot order inside the query dimension is arbitrary: the model predicts an
// unordered set of objects, and the matcher resolves the permutation against
// the ground truth.
type ModelOutput struct {
	// PredLogits is the raw un-normalized class-score tensor, shape
	// (batch, queries, classes).
	PredLogits *tensor.Dense
	// PredCenterPoints is the raw center-point tensor, shape
	// (batch, queries, 2). Coordinates follow the upstream model's
	// convention and must match the target coordinate convention exactly.
	PredCenterPoints *tensor.Dense
}

// Dims validates the output tensors and returns their shared dimensions.
//
// Returns:
// - batch: Number of frames in the batch (B).
// - queries: Number of query slots per frame (Q).
// - classes: Number of real object classes (C).
// - err: The first rank, dtype, or shape mismatch found.
func (o ModelOutput) Dims() (batch, queries, classes int, err error) {
	if o.PredLogits == nil || o.PredCenterPoints == nil {
		return 0, 0, 0, errors.New("model output must carry both pred_logits and pred_center_points")
	}
	if o.PredLogits.Dtype() != tensor.Float32 || o.PredCenterPoints.Dtype() != tensor.Float32 {
		return 0, 0, 0, errors.Errorf("model output tensors must be float32, got %v and %v",
			o.PredLogits.Dtype(), o.PredCenterPoints.Dtype())
	}
	ls := o.PredLogits.Shape()
	ps := o.PredCenterPoints.Shape()
	if len(ls) != 3 {
		return 0, 0, 0, errors.Errorf("pred_logits must have shape (batch, queries, classes), got %v", ls)
	}
	if len(ps) != 3 || ps[2] != 2 {
		return 0, 0, 0, errors.Errorf("pred_center_points must have shape (batch, queries, 2), got %v", ps)
	}
	if ls[0] != ps[0] || ls[1] != ps[1] {
		return 0, 0, 0, errors.Errorf("pred_logits %v and pred_center_points %v disagree on (batch, queries)", ls, ps)
	}
	if ls[0] < 1 || ls[1] < 1 || ls[2] < 1 {
		return 0, 0, 0, errors.Errorf("pred_logits has a zero-sized dimension: %v", ls)
	}
	return ls[0], ls[1], ls[2], nil
}

// Logits returns the float32 backing of PredLogits, laid out row-major as
// (batch·queries, classes).
func (o ModelOutput) Logits() []float32 {
	return o.PredLogits.Data().([]float32)
}

// CenterPoints returns the float32 backing of PredCenterPoints, laid out
// row-major as (batch·queries, 2).
func (o ModelOutput) CenterPoints() []float32 {
	return o.PredCenterPoints.Data().([]float32)
}
