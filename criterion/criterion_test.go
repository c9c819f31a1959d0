package criterion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trajectory/common"
	"github.com/nvr-ai/go-trajectory/matcher"
)

func makeOutput(t testing.TB, batch, queries, classes int, logits, centers []float32) common.ModelOutput {
	t.Helper()
	require.Len(t, logits, batch*queries*classes)
	require.Len(t, centers, batch*queries*2)
	return common.ModelOutput{
		PredLogits:       tensor.New(tensor.WithShape(batch, queries, classes), tensor.WithBacking(logits)),
		PredCenterPoints: tensor.New(tensor.WithShape(batch, queries, 2), tensor.WithBacking(centers)),
	}
}

func makeCriterion(t testing.TB, cfg Config) *SetCriterion {
	t.Helper()
	m, err := matcher.New(matcher.DefaultConfig())
	require.NoError(t, err)
	c, err := New(cfg, m)
	require.NoError(t, err)
	return c
}

func pseudo(n int, seed uint32) []float32 {
	out := make([]float32, n)
	state := seed
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = float32(state%2000)/1000 - 1
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

// TestNewValidation covers the construction-time checks.
func TestNewValidation(t *testing.T) {
	m, err := matcher.New(matcher.DefaultConfig())
	require.NoError(t, err)

	_, err = New(DefaultConfig(0), m)
	assert.Error(t, err, "zero classes should be rejected")

	_, err = New(DefaultConfig(2), nil)
	assert.Error(t, err, "a nil matcher should be rejected")
}

// TestComputeLossesEndToEnd pins the full scenario: one frame, three query
// slots, a single target that only slot 0 is close to and confident about.
func TestComputeLossesEndToEnd(t *testing.T) {
	c := makeCriterion(t, DefaultConfig(2))

	outputs := makeOutput(t, 1, 3, 2,
		[]float32{
			-10, 10, // slot 0: strongly class 1
			-10, -10, // slot 1: background
			-10, -10, // slot 2: background
		},
		[]float32{0, 0, 5, 5, 10, 10})
	targets := []common.TargetGroup{
		{Labels: []int{1}, CenterPoints: [][2]float32{{0.1, 0.1}}},
	}

	losses, err := c.ComputeLosses(outputs, targets)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, losses[LossCenterPoint], 1e-5,
		"|0-0.1| + |0-0.1| summed over the single matched pair")
	assert.Equal(t, 0.0, losses[ClassError], "slot 0's top-1 class should be correct")
	assert.GreaterOrEqual(t, losses[LossCE], 0.0)
	assert.Less(t, losses[LossCE], 0.1, "confident, correct predictions should cost little")
}

// TestLossNonNegativity exercises an arbitrary batch and verifies both loss
// terms stay non-negative.
func TestLossNonNegativity(t *testing.T) {
	const (
		batch   = 3
		queries = 4
		classes = 5
	)
	c := makeCriterion(t, DefaultConfig(classes))

	outputs := makeOutput(t, batch, queries, classes,
		pseudo(batch*queries*classes, 29), pseudo(batch*queries*2, 31))
	targets := []common.TargetGroup{
		{Labels: []int{0, 4}, CenterPoints: [][2]float32{{0.2, 0.4}, {0.8, 0.1}}},
		{Labels: []int{2}, CenterPoints: [][2]float32{{0.5, 0.5}}},
		{Labels: []int{1, 3, 2}, CenterPoints: [][2]float32{{0.1, 0.9}, {0.3, 0.3}, {0.7, 0.6}}},
	}

	losses, err := c.ComputeLosses(outputs, targets)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, losses[LossCE], 0.0)
	assert.GreaterOrEqual(t, losses[LossCenterPoint], 0.0)
	assert.GreaterOrEqual(t, losses[ClassError], 0.0)
	assert.LessOrEqual(t, losses[ClassError], 100.0)
}

// TestPerfectMatchZeroCenterLoss verifies exact center-point predictions
// cost nothing.
func TestPerfectMatchZeroCenterLoss(t *testing.T) {
	c := makeCriterion(t, DefaultConfig(2))

	outputs := makeOutput(t, 1, 2, 2,
		[]float32{
			10, -10, // slot 0: class 0
			-10, 10, // slot 1: class 1
		},
		[]float32{0.25, 0.75, 0.5, 0.5})
	targets := []common.TargetGroup{
		{Labels: []int{0, 1}, CenterPoints: [][2]float32{{0.25, 0.75}, {0.5, 0.5}}},
	}

	losses, err := c.ComputeLosses(outputs, targets)
	require.NoError(t, err)
	assert.Equal(t, 0.0, losses[LossCenterPoint])
	assert.Equal(t, 0.0, losses[ClassError])
}

// TestBatchAggregation verifies normalization across a batch where one frame
// has no objects: the empty frame contributes background classification cost
// but no center-point cost.
func TestBatchAggregation(t *testing.T) {
	c := makeCriterion(t, DefaultConfig(2))

	outputs := makeOutput(t, 2, 2, 2,
		[]float32{
			10, -10, // frame 0 slot 0: class 0
			-10, 10, // frame 0 slot 1: class 1
			-10, -10, // frame 1 slot 0: background
			-10, -10, // frame 1 slot 1: background
		},
		[]float32{
			0.6, 0.6,
			0.2, 0.3,
			0, 0,
			0, 0,
		})
	targets := []common.TargetGroup{
		{Labels: []int{0, 1}, CenterPoints: [][2]float32{{0.5, 0.5}, {0.2, 0.2}}},
		{},
	}

	losses, err := c.ComputeLosses(outputs, targets)
	require.NoError(t, err)

	// num_objects = 2; matched L1 distances are 0.2 and 0.1.
	assert.InDelta(t, 0.15, losses[LossCenterPoint], 1e-5)
	assert.Equal(t, 0.0, losses[ClassError])
}

// TestZeroTargetBatch verifies the clamped denominator keeps an all-empty
// batch finite.
func TestZeroTargetBatch(t *testing.T) {
	c := makeCriterion(t, DefaultConfig(3))

	outputs := makeOutput(t, 2, 3, 3,
		pseudo(2*3*3, 37), pseudo(2*3*2, 41))
	targets := []common.TargetGroup{{}, {}}

	losses, err := c.ComputeLosses(outputs, targets)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(losses[LossCE]) || math.IsInf(losses[LossCE], 0))
	assert.Greater(t, losses[LossCE], 0.0, "background slots still incur classification cost")
	assert.Equal(t, 0.0, losses[LossCenterPoint])
	assert.Equal(t, 100.0, losses[ClassError], "no matched slots means zero accuracy")
}

// TestScaleByQueries pins the classification-loss normalization convention:
// with scaling enabled the loss grows linearly in the slot count for a fixed
// per-slot confidence pattern; with scaling disabled it stays flat.
func TestScaleByQueries(t *testing.T) {
	lossAt := func(queries int, scale *bool) float64 {
		cfg := DefaultConfig(2)
		cfg.ScaleByQueries = scale
		c := makeCriterion(t, cfg)

		outputs := makeOutput(t, 1, queries, 2,
			make([]float32, queries*2), make([]float32, queries*2))
		losses, err := c.ComputeLosses(outputs, []common.TargetGroup{{}})
		require.NoError(t, err)
		return losses[LossCE]
	}

	scaled4, scaled8 := lossAt(4, nil), lossAt(8, nil)
	assert.InDelta(t, 2.0, scaled8/scaled4, 1e-6,
		"scaled loss should double when the slot count doubles")

	flat4, flat8 := lossAt(4, boolPtr(false)), lossAt(8, boolPtr(false))
	assert.InDelta(t, 1.0, flat8/flat4, 1e-6,
		"unscaled loss should be independent of the slot count")
}

// TestClassCountMismatch verifies the criterion rejects outputs whose class
// dimension disagrees with its configuration.
func TestClassCountMismatch(t *testing.T) {
	c := makeCriterion(t, DefaultConfig(3))

	outputs := makeOutput(t, 1, 2, 2, make([]float32, 4), make([]float32, 4))
	_, err := c.ComputeLosses(outputs, []common.TargetGroup{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured for 3")
}

// TestWeightDictTotal verifies weighting skips the diagnostic entry.
func TestWeightDictTotal(t *testing.T) {
	losses := Losses{
		LossCE:          1.5,
		LossCenterPoint: 2.0,
		ClassError:      50.0,
	}

	total := DefaultWeights().Total(losses)
	assert.InDelta(t, 1.5*2+2.0*5, total, 1e-9)

	assert.Equal(t, 0.0, WeightDict{}.Total(losses), "no weights, no total")
}

func BenchmarkComputeLosses(b *testing.B) {
	m, err := matcher.New(matcher.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	c, err := New(DefaultConfig(8), m)
	if err != nil {
		b.Fatal(err)
	}

	const (
		batch   = 4
		queries = 16
	)
	outputs := makeOutput(b, batch, queries, 8,
		pseudo(batch*queries*8, 43), pseudo(batch*queries*2, 47))
	targets := make([]common.TargetGroup, batch)
	for i := range targets {
		targets[i] = common.TargetGroup{
			Labels:       []int{1, 2, 6},
			CenterPoints: [][2]float32{{0.2, 0.2}, {0.5, 0.7}, {0.8, 0.3}},
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.ComputeLosses(outputs, targets); err != nil {
			b.Fatal(err)
		}
	}
}
