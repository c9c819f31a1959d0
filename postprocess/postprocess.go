// Package postprocess - Converts raw model outputs into per-frame object
// estimates for downstream trajectory consumers.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-trajectory/common"
	"github.com/nvr-ai/go-trajectory/ops"
)

// Result represents a single per-frame object estimate.
type Result struct {
	// The predicted class index of the result.
	Class int
	// The confidence score of the result.
	Score float32
	// The predicted center point of the result.
	CenterPoint [2]float32
}

// Config fixes the processor's behavior at construction time.
type Config struct {
	// ScoreThreshold drops query slots whose best-class probability falls
	// below it.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// FocalLoss selects per-class sigmoid probabilities instead of softmax,
	// consistent with the matcher's classification mode.
	FocalLoss bool `json:"focal_loss" yaml:"focal_loss"`
}

// TrajectoryProcessor turns raw predictions into thresholded per-frame
// results.
type TrajectoryProcessor struct {
	cfg Config
}

// New creates a TrajectoryProcessor.
func New(cfg Config) *TrajectoryProcessor {
	return &TrajectoryProcessor{cfg: cfg}
}

// Process returns, per frame, the slots whose best-class probability clears
// the score threshold, in query order.
//
// Arguments:
// - outputs: Raw model predictions for the batch.
//
// Returns:
// - One result slice per frame, or an error for malformed outputs.
func (p *TrajectoryProcessor) Process(outputs common.ModelOutput) ([][]Result, error) {
	batch, queries, classes, err := outputs.Dims()
	if err != nil {
		return nil, errors.Wrap(err, "postprocess: invalid model output")
	}
	logits := outputs.Logits()
	centers := outputs.CenterPoints()

	frames := make([][]Result, batch)
	probs := make([]float32, classes)
	for b := 0; b < batch; b++ {
		results := make([]Result, 0, queries)
		for q := 0; q < queries; q++ {
			slot := b*queries + q
			row := logits[slot*classes : (slot+1)*classes]
			if p.cfg.FocalLoss {
				for i, logit := range row {
					probs[i] = ops.Sigmoid(logit)
				}
			} else {
				ops.Softmax(probs, row)
			}
			best := ops.ArgMax(probs)
			if probs[best] < p.cfg.ScoreThreshold {
				continue
			}
			results = append(results, Result{
				Class:       best,
				Score:       probs[best],
				CenterPoint: [2]float32{centers[2*slot], centers[2*slot+1]},
			})
		}
		frames[b] = results
	}
	return frames, nil
}
