package prompts

import "fmt"

// NothingSentinel is the exact reply the extraction model gives when no
// durable fact is present.
const NothingSentinel = "NOTHING"

const memoryExtractionSystem = `You are a memory extraction assistant. Identify facts worth remembering long term in the conversation.
Worth remembering means: decisions made, preferences stated, commitments given, important personal facts.
NOT worth remembering means: casual chat, questions, greetings, generic responses, things already known from user profile like name or preferred name.

If something is worth remembering, respond with ONLY the fact to remember in one short sentence starting with a bullet point like:
- Decided to build the portfolio project using Go and SQLite

If nothing is worth remembering respond with exactly:
` + NothingSentinel

// MemoryExtractionSystem returns the system prompt for durable-fact
// extraction.
func MemoryExtractionSystem() string {
	return memoryExtractionSystem
}

// MemoryExtractionUser returns the user turn carrying one exchange.
func MemoryExtractionUser(userMsg, assistantResp string) string {
	return fmt.Sprintf("User said: %s\nAssistant responded: %s", userMsg, assistantResp)
}
