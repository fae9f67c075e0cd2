package assembly

import (
	"math"

	"github.com/nugget/krish/internal/intent"
)

// ToolFloor is the tool score a message must exceed before tools are
// offered.
const ToolFloor = 0.4

// Budgets weights per-dimension token allowances by intent score.
type Budgets struct {
	Casual    int
	Tool      int
	Personal  int
	Knowledge int
	// Max caps the weighted sum.
	Max int
}

// Compute returns floor(Σ budget·score) capped at Max. The result is
// never negative.
func (b Budgets) Compute(s intent.Scores) int {
	raw := float64(b.Casual)*s.Casual +
		float64(b.Tool)*s.Tool +
		float64(b.Personal)*s.Personal +
		float64(b.Knowledge)*s.Knowledge

	n := int(math.Floor(raw))
	if n > b.Max {
		n = b.Max
	}
	if n < 0 {
		n = 0
	}
	return n
}

// ShouldUseTools reports whether the tool score is the unique maximum
// of the four dimensions and exceeds [ToolFloor].
func ShouldUseTools(s intent.Scores) bool {
	if s.Tool <= ToolFloor {
		return false
	}
	return s.Tool > s.Casual && s.Tool > s.Personal && s.Tool > s.Knowledge
}
