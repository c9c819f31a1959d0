package matcher

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-trajectory/ops"
)

// costEps keeps the log terms finite when a probability saturates at 0 or 1.
const costEps = 1e-8

// classCost adds the weighted classification cost of every (slot, target)
// pair into the cost matrix. The focal/softmax choice is made once at
// construction instead of branching on every call.
type classCost interface {
	fill(costs *mat.Dense, weight float64, logits []float32, classes int, labels []int)
}

// focalClassCost approximates the focal loss's contribution to the matching
// cost: cost = pos[label] - neg[label], where pos is the focal term for
// predicting the label and neg the term for not predicting it. Entries can
// be negative; only relative order matters to the assignment.
type focalClassCost struct {
	alpha, gamma float64
}

func (f focalClassCost) fill(costs *mat.Dense, weight float64, logits []float32, classes int, labels []int) {
	slots := len(logits) / classes
	pos := make([]float64, classes)
	neg := make([]float64, classes)
	for q := 0; q < slots; q++ {
		row := logits[q*classes : (q+1)*classes]
		for c, logit := range row {
			p := float64(ops.Sigmoid(logit))
			neg[c] = (1 - f.alpha) * math.Pow(p, f.gamma) * (-math.Log(1 - p + costEps))
			pos[c] = f.alpha * math.Pow(1-p, f.gamma) * (-math.Log(p + costEps))
		}
		for t, label := range labels {
			costs.Set(q, t, costs.At(q, t)+weight*(pos[label]-neg[label]))
		}
	}
}

// softmaxClassCost approximates the NLL by -prob[label]; the omitted "+1"
// constant does not change the argmin.
type softmaxClassCost struct{}

func (softmaxClassCost) fill(costs *mat.Dense, weight float64, logits []float32, classes int, labels []int) {
	slots := len(logits) / classes
	probs := make([]float32, classes)
	for q := 0; q < slots; q++ {
		ops.Softmax(probs, logits[q*classes:(q+1)*classes])
		for t, label := range labels {
			costs.Set(q, t, costs.At(q, t)-weight*float64(probs[label]))
		}
	}
}
