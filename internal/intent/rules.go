package intent

import "strings"

// Triage sources reported alongside scores.
const (
	SourceCasualFiller = "casual_filler"
	SourceShortMessage = "short_message"
	SourceToolPhrase   = "tool_phrase"
	SourceMemoryPhrase = "memory_phrase"
	SourceModel        = "model"
	SourceFallback     = "fallback"
)

// casualFillers are matched exactly against the trimmed, lower-cased
// message.
var casualFillers = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank you": true,
	"ok": true, "okay": true, "k": true, "lol": true, "haha": true,
	"hehe": true, "bye": true, "goodbye": true, "good morning": true,
	"good night": true, "good evening": true, "sup": true, "yes": true,
	"no": true, "sure": true, "alright": true, "great": true, "cool": true,
	"nice": true, "got it": true, "noted": true, "hmm": true, "oh": true,
	"ah": true, "yep": true, "nope": true,
}

// toolPhrases mark lookups and actions that need an external service.
var toolPhrases = []string{
	"weather in", "weather at", "weather today", "weather tomorrow", "weather of",
	"temperature in", "forecast for",
	"news about", "latest news", "breaking news",
	"score of", "cricket score", "match score", "ipl score",
	"price of", "stock price", "current price",
	"what time is it", "what's the time", "current time",
	"what's today's date", "today's date", "current date",
	"search for", "look up",
	"remind me to", "remind me in", "remind me at", "set a reminder",
}

// memoryPhrases reference earlier conversation or ask about the user.
var memoryPhrases = []string{
	"you said", "we talked", "we discussed", "last time", "yesterday", "discussed", "talked about",
	"last week", "remember when", "you mentioned", "i told you",
	"do you remember", "what did we", "earlier you", "before you said",
	"remind me", "again like you did", "what do you know about me", "who am i", "what are my goals",
	"what is my name", "do you know me", "do you know my name",
	"what do you know", "tell me about me", "my background",
	"what have i told you", "what do you remember about me",
}

// rule is one triage step: when match reports true for the normalized
// message, the rule's scores are the verdict.
type rule struct {
	name   string
	match  func(msg string) bool
	scores Scores
}

// triageRules are evaluated in order; the first match wins.
var triageRules = []rule{
	{
		name:   SourceCasualFiller,
		match:  func(msg string) bool { return casualFillers[msg] },
		scores: Scores{Casual: 1.0},
	},
	{
		name: SourceShortMessage,
		match: func(msg string) bool {
			return len(strings.Fields(msg)) <= 2 && !strings.Contains(msg, "?")
		},
		scores: Scores{Casual: 0.9, Knowledge: 0.1},
	},
	{
		name:   SourceToolPhrase,
		match:  containsAny(toolPhrases),
		scores: Scores{Tool: 1.0},
	},
	{
		name:   SourceMemoryPhrase,
		match:  containsAny(memoryPhrases),
		scores: Scores{Personal: 0.8, Knowledge: 0.5},
	},
}

func containsAny(phrases []string) func(string) bool {
	return func(msg string) bool {
		for _, p := range phrases {
			if strings.Contains(msg, p) {
				return true
			}
		}
		return false
	}
}

// Triage runs the deterministic rules. ok is false when no rule matched
// and the model scorer must decide.
func Triage(message string) (scores Scores, source string, ok bool) {
	msg := strings.ToLower(strings.TrimSpace(message))
	for _, r := range triageRules {
		if r.match(msg) {
			return r.scores, r.name, true
		}
	}
	return Scores{}, "", false
}
