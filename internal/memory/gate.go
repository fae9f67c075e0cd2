package memory

import (
	"regexp"

	"github.com/nugget/krish/internal/intent"
)

// durablePatterns detect messages likely to carry facts worth keeping
// even when they were mostly a tool request.
var durablePatterns = []*regexp.Regexp{
	// Capitalized multi-cap tokens: project and product names.
	regexp.MustCompile(`\b[A-Z][a-zA-Z]*[A-Z]\w*\b`),
	regexp.MustCompile(`(?i)\bmy (startup|project|company|app|product|repo|idea)\b`),
	regexp.MustCompile(`(?i)\b(deadline|due date|target date|launch date)\b`),
	regexp.MustCompile(`(?i)\bi (prefer|like|want|need|hate|love|use|always|never)\b`),
	regexp.MustCompile(`(?i)\bmy (name is|goal is|plan is|stack is)\b`),
}

// ContainsDurableInfo reports whether message matches any durable
// information pattern.
func ContainsDurableInfo(message string) bool {
	for _, re := range durablePatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// ShouldExtract decides whether an exchange is worth a fact extraction
// call. A casual message never is.
func ShouldExtract(message string, s intent.Scores) bool {
	switch {
	case s.Casual > 0.8:
		return false
	case s.Personal > 0.5:
		return true
	case s.Knowledge > 0.5:
		return true
	case s.Tool > 0.7 && ContainsDurableInfo(message):
		return true
	default:
		return false
	}
}
