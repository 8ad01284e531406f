package metrics

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeScores_MinMax(t *testing.T) {
	inputs := map[string]ScoreInputs{
		"alice": {"prs": 10, "cycle_time": 20},
		"bob":   {"prs": 0, "cycle_time": 40},
	}
	sizes := map[string]int{"alice": 1, "bob": 1}
	weights := map[string]float64{"prs": 0.5, "cycle_time": 0.5}

	scores := ComputeScores(inputs, sizes, weights)

	// Alice: max prs (1.0) and min cycle time (inverted 1.0).
	if !almostEqual(scores["alice"], 100) {
		t.Errorf("alice = %v, want 100", scores["alice"])
	}
	if !almostEqual(scores["bob"], 0) {
		t.Errorf("bob = %v, want 0", scores["bob"])
	}
}

func TestComputeScores_AllEqualGetsNeutral(t *testing.T) {
	inputs := map[string]ScoreInputs{
		"alpha": {"prs": 7},
		"beta":  {"prs": 7},
	}
	sizes := map[string]int{"alpha": 1, "beta": 1}
	scores := ComputeScores(inputs, sizes, map[string]float64{"prs": 1})

	if !almostEqual(scores["alpha"], 50) || !almostEqual(scores["beta"], 50) {
		t.Errorf("scores = %v, want 50 each", scores)
	}
}

func TestComputeScores_VolumeNormalizedByTeamSize(t *testing.T) {
	// Big team ships more PRs in absolute terms but fewer per head.
	inputs := map[string]ScoreInputs{
		"big":   {"prs": 40},
		"small": {"prs": 30},
	}
	sizes := map[string]int{"big": 10, "small": 3}
	scores := ComputeScores(inputs, sizes, map[string]float64{"prs": 1})

	if scores["small"] <= scores["big"] {
		t.Errorf("small team should win per head: %v", scores)
	}
	if !almostEqual(scores["small"], 100) || !almostEqual(scores["big"], 0) {
		t.Errorf("scores = %v", scores)
	}
}

func TestComputeScores_InvertedInputs(t *testing.T) {
	inputs := map[string]ScoreInputs{
		"fast": {"mttr": 2, "lead_time": 10, "change_failure_rate": 0.05},
		"slow": {"mttr": 50, "lead_time": 300, "change_failure_rate": 0.4},
	}
	sizes := map[string]int{"fast": 1, "slow": 1}
	weights := map[string]float64{"mttr": 0.4, "lead_time": 0.3, "change_failure_rate": 0.3}

	scores := ComputeScores(inputs, sizes, weights)
	if !almostEqual(scores["fast"], 100) || !almostEqual(scores["slow"], 0) {
		t.Errorf("scores = %v", scores)
	}
}

func TestComputeScores_WeightedMix(t *testing.T) {
	inputs := map[string]ScoreInputs{
		"a": {"prs": 10, "reviews": 0},
		"b": {"prs": 0, "reviews": 10},
	}
	sizes := map[string]int{"a": 1, "b": 1}
	weights := map[string]float64{"prs": 0.7, "reviews": 0.3}

	scores := ComputeScores(inputs, sizes, weights)
	if !almostEqual(scores["a"], 70) || !almostEqual(scores["b"], 30) {
		t.Errorf("scores = %v", scores)
	}
}

func TestMedianAndPercentile(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	if got := Median(values); got != 3 {
		t.Errorf("median = %v, want 3", got)
	}
	if got := Median([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("even median = %v, want 2.5", got)
	}
	if got := Percentile(values, 0.95); got != 5 {
		t.Errorf("p95 = %v, want 5", got)
	}
	if got := Median(nil); got != 0 {
		t.Errorf("empty median = %v", got)
	}
}
