package prompts

import "fmt"

// intentScorerSystem instructs the classifier model to score a message on
// the four intent dimensions. The reply must be a bare JSON object.
const intentScorerSystem = `You are an intent scorer. Given a user message, return a JSON object with scores from 0.0 to 1.0 for each dimension. Scores can overlap.

Dimensions:
- casual: small talk, greetings, acknowledgments, no real information need
- tool: requires calling an external service or API - includes web search, setting reminders, saving to Notion, sending messages to Telegram groups or chats, GitHub operations, or any request to DO something in an external system. If the user wants an ACTION performed on an external system, score tool 0.9 or higher.
- personal: references past conversations, user's own life, memory, things said before
- knowledge: needs reasoning, explanation, general facts, analysis

Return ONLY valid JSON with exactly these four keys. No explanation, no markdown.
Example: {"casual": 0.1, "tool": 0.8, "personal": 0.2, "knowledge": 0.3}`

// IntentScorerSystem returns the system prompt for model-backed intent
// scoring.
func IntentScorerSystem() string {
	return intentScorerSystem
}

// IntentScorerUser returns the user turn carrying the message to score.
func IntentScorerUser(message string) string {
	return fmt.Sprintf("Score this message:\n%s", message)
}
