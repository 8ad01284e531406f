package metrics

// Score inputs are keyed by the same names the performance_weights config
// block uses.
var (
	volumeInputs = map[string]bool{
		"prs":            true,
		"reviews":        true,
		"commits":        true,
		"jira_completed": true,
	}
	// Lower is better for these; normalization is flipped.
	invertedInputs = map[string]bool{
		"cycle_time":          true,
		"lead_time":           true,
		"change_failure_rate": true,
		"mttr":                true,
	}
)

// ScoreInputs holds one entity's raw metric values keyed by weight name.
type ScoreInputs map[string]float64

// ComputeScores min-max normalizes each input across the peer set and folds
// the normalized values into a 0-100 weighted composite per entity. Volume
// inputs are divided by the entity's team size first so large teams do not
// dominate. When all peers share a value everyone gets the neutral 50 for
// that input.
func ComputeScores(inputs map[string]ScoreInputs, teamSizes map[string]int, weights map[string]float64) map[string]float64 {
	scores := make(map[string]float64, len(inputs))
	if len(inputs) == 0 {
		return scores
	}

	adjusted := make(map[string]ScoreInputs, len(inputs))
	for entity, in := range inputs {
		adj := make(ScoreInputs, len(in))
		size := teamSizes[entity]
		if size < 1 {
			size = 1
		}
		for key, v := range in {
			if volumeInputs[key] {
				v /= float64(size)
			}
			adj[key] = v
		}
		adjusted[entity] = adj
	}

	for key, weight := range weights {
		if weight == 0 {
			continue
		}

		lo, hi := 0.0, 0.0
		first := true
		for _, adj := range adjusted {
			v := adj[key]
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}

		for entity, adj := range adjusted {
			var normalized float64
			if hi == lo {
				normalized = 0.5
			} else {
				normalized = (adj[key] - lo) / (hi - lo)
			}
			if invertedInputs[key] {
				normalized = 1 - normalized
			}
			scores[entity] += weight * 100 * normalized
		}
	}

	return scores
}
