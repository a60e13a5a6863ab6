package validation

import "github.com/signalnine/scriptgate/internal/result"

// Scores are the sub-test outcomes confidence is computed from.
type Scores struct {
	SyntaxValid bool
	Compliance  float64
	Functional  float64
}

type weight struct {
	name   string
	weight float64
	score  func(Scores) float64
}

// confidenceWeights sum to 1.
var confidenceWeights = []weight{
	{"syntax", 0.2, func(s Scores) float64 {
		if s.SyntaxValid {
			return 100
		}
		return 0
	}},
	{"compliance", 0.4, func(s Scores) float64 { return s.Compliance }},
	{"functional", 0.4, func(s Scores) float64 { return s.Functional }},
}

// Confidence is the weighted sum of the sub-scores, 0 when the syntax check
// failed, clamped to [0,100].
func Confidence(s Scores) float64 {
	if !s.SyntaxValid {
		return 0
	}
	var total float64
	for _, w := range confidenceWeights {
		total += result.Clamp(w.score(s)) * w.weight
	}
	return result.Clamp(total)
}
