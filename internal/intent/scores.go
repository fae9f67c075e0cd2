// Package intent scores inbound messages across four independent
// behavioural dimensions.
package intent

import "fmt"

// Scores holds one message's intent scores. Each dimension lies in
// [0,1]; the dimensions are independent and need not sum to 1.
type Scores struct {
	Casual    float64 `json:"casual"`
	Tool      float64 `json:"tool"`
	Personal  float64 `json:"personal"`
	Knowledge float64 `json:"knowledge"`
}

// Fallback is returned when the model scorer cannot produce scores. It
// biases toward a reasoning answer with the richest context.
var Fallback = Scores{Knowledge: 1.0}

// Clamp returns s with every dimension forced into [0,1].
func (s Scores) Clamp() Scores {
	return Scores{
		Casual:    clamp01(s.Casual),
		Tool:      clamp01(s.Tool),
		Personal:  clamp01(s.Personal),
		Knowledge: clamp01(s.Knowledge),
	}
}

func (s Scores) String() string {
	return fmt.Sprintf("casual=%.2f tool=%.2f personal=%.2f knowledge=%.2f",
		s.Casual, s.Tool, s.Personal, s.Knowledge)
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
