// Package ops - Scalar float32 kernels shared by the matcher, criterion, and
// post-processing stages: stable sigmoid and binary cross entropy, softmax,
// the sigmoid focal loss element, argmax, and L1 distance.
package ops

import "github.com/chewxy/math32"

// Sigmoid computes 1 / (1 + exp(-x)) without overflowing for large |x|.
func Sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	e := math32.Exp(x)
	return e / (1 + e)
}

// Softmax writes the softmax of src into dst. dst and src may alias but must
// have equal length.
func Softmax(dst, src []float32) {
	max := src[0]
	for _, v := range src[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range src {
		e := math32.Exp(v - max)
		dst[i] = e
		sum += e
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// BCEWithLogits computes the numerically stable binary cross entropy between
// a raw logit and a target in [0, 1]:
// max(x, 0) - x·t + log(1 + exp(-|x|)).
func BCEWithLogits(logit, target float32) float32 {
	loss := -logit * target
	if logit > 0 {
		loss += logit
	}
	return loss + math32.Log1p(math32.Exp(-math32.Abs(logit)))
}

// FocalLoss computes the sigmoid focal loss for a single logit/target pair:
// the binary cross entropy scaled by (1-p_t)^gamma to down-weight easy
// examples, with alpha balancing positives against negatives. Alpha < 0
// disables the balancing term.
func FocalLoss(logit, target, alpha, gamma float32) float32 {
	p := Sigmoid(logit)
	ce := BCEWithLogits(logit, target)
	pt := p*target + (1-p)*(1-target)
	loss := ce * math32.Pow(1-pt, gamma)
	if alpha >= 0 {
		at := alpha*target + (1-alpha)*(1-target)
		loss = at * loss
	}
	return loss
}

// ArgMax returns the index of the largest value in xs, or -1 for an empty
// slice. Ties resolve to the lowest index.
func ArgMax(xs []float32) int {
	if len(xs) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

// L1 returns the Manhattan distance between two 2-D points.
func L1(a, b [2]float32) float32 {
	return math32.Abs(a[0]-b[0]) + math32.Abs(a[1]-b[1])
}
