// Package prompts contains all LLM prompt templates used internally by Krish.
//
// Prompt text is Go code rather than config files because it is program logic:
// templates use fmt.Sprintf interpolation, benefit from compile-time embedding,
// and can be validated by tests. User-facing text (persona, profile) lives in
// the workspace; this package holds the instructions we send to models for
// internal operations (intent scoring, fact extraction, reminder parsing).
//
// Convention: each prompt category gets its own file (intent.go,
// extraction.go, reminder.go) with an exported function that accepts the
// dynamic parts and returns the fully interpolated prompt string.
package prompts
