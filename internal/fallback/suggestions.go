package fallback

import "strings"

const maxSuggestions = 3

// SuggestionRule maps a matcher to follow-up search suggestions.
type SuggestionRule struct {
	Match       func(prompt string, words map[string]bool) bool
	Suggestions []string
}

var DefaultSuggestionRules = []SuggestionRule{
	{
		Match:       Contains("react"),
		Suggestions: []string{"React hooks explained", "React Fundamentals course", "State management in React"},
	},
	{
		Match:       Contains("python", "data science", "pandas"),
		Suggestions: []string{"Python for Data Science course", "pandas DataFrame basics", "Intro to machine learning"},
	},
	{
		Match:       either(Contains("javascript"), Words("js")),
		Suggestions: []string{"JavaScript Essentials course", "Async/await explained", "DOM manipulation basics"},
	},
	{
		Match:       Contains("database", "mongodb", "sql"),
		Suggestions: []string{"Databases with MongoDB", "SQL fundamentals", "Data modeling basics"},
	},
	{
		Match:       Contains("course", "learn", "recommend", "beginner"),
		Suggestions: []string{"Beginner learning paths", "Most popular courses", "Courses by difficulty"},
	},
}

var defaultSuggestions = []string{"Browse all courses", "Beginner learning paths", "Ask about a specific technology"}

// Suggestions collects suggestions from every matching rule, de-duplicated
// and capped at three.
func Suggestions(prompt string) []string {
	lower := strings.ToLower(prompt)
	words := wordSet(lower)

	var out []string
	seen := make(map[string]bool)
	for _, rule := range DefaultSuggestionRules {
		if !rule.Match(lower, words) {
			continue
		}
		for _, s := range rule.Suggestions {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) == maxSuggestions {
				return out
			}
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultSuggestions...)
	}
	return out
}
