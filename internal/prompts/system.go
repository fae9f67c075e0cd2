package prompts

import "fmt"

// responseRules is appended to every system prompt regardless of the
// context budget.
const responseRules = `## Response Rules
- Keep responses SHORT and DIRECT. 2-3 sentences max unless depth is explicitly asked for.
- Never add unnecessary follow-up questions as a habit.
- Never repeat information already stated.
- Get to the point immediately.
- Only ask a follow-up question if genuinely needed.
- Do not address the user by name in every response.`

// ResponseRules returns the fixed behavioural-rules suffix.
func ResponseRules() string {
	return responseRules
}

// SystemPrompt wraps assembled context in the full system prompt for the
// assistant named name.
func SystemPrompt(name, context string) string {
	return fmt.Sprintf("You are %s, a personal AI assistant.\n%s\n\n%s\n", name, context, responseRules)
}
