// Package fallback produces deterministic answers and search suggestions
// without any network access. Rules are evaluated in table order and the
// first match wins.
package fallback

import (
	"strings"
	"unicode"
)

// Rule maps a prompt matcher to a canned answer.
type Rule struct {
	Name     string
	Match    func(prompt string, words map[string]bool) bool
	Response string
}

// Contains matches when the lower-cased prompt contains any of the phrases.
func Contains(phrases ...string) func(string, map[string]bool) bool {
	return func(prompt string, _ map[string]bool) bool {
		for _, p := range phrases {
			if strings.Contains(prompt, p) {
				return true
			}
		}
		return false
	}
}

// Words matches whole words only, so "hi" does not fire on "this".
func Words(words ...string) func(string, map[string]bool) bool {
	return func(_ string, set map[string]bool) bool {
		for _, w := range words {
			if set[w] {
				return true
			}
		}
		return false
	}
}

func either(a, b func(string, map[string]bool) bool) func(string, map[string]bool) bool {
	return func(p string, w map[string]bool) bool { return a(p, w) || b(p, w) }
}

const DefaultResponse = "I'm the learning assistant for this platform. I can explain programming " +
	"concepts, help you pick a course, suggest a study plan, and answer questions about React, " +
	"JavaScript, Python and data science. Our AI services are busy right now, so this is a short " +
	"answer; ask again in a minute for a more detailed one."

// DefaultRules is the rule table used by New.
var DefaultRules = []Rule{
	{
		Name:  "react",
		Match: Contains("react"),
		Response: "React is a JavaScript library for building user interfaces out of reusable " +
			"components. Components describe what the UI should look like for a given state, and " +
			"React efficiently updates the page when that state changes. Core ideas to learn are " +
			"JSX, props, state, hooks such as useState and useEffect, and component composition. " +
			"Our \"React Fundamentals\" course walks through all of these with hands-on projects.",
	},
	{
		Name:  "python",
		Match: Contains("python", "data science", "machine learning", "pandas"),
		Response: "Python is a readable, general-purpose language and the most common entry point " +
			"into data science. A typical path is Python basics, then NumPy and pandas for working " +
			"with data, Matplotlib for visualisation, and finally scikit-learn for machine learning. " +
			"Try our \"Python for Data Science\" course to cover that path step by step.",
	},
	{
		Name:  "javascript",
		Match: either(Contains("javascript", "typescript"), Words("js", "ts")),
		Response: "JavaScript is the language of the web. Start with variables, functions, arrays " +
			"and objects, then move on to the DOM, events, promises and async/await. Once those " +
			"feel comfortable, frameworks like React become much easier. The \"JavaScript " +
			"Essentials\" course is a good place to begin.",
	},
	{
		Name:  "courses",
		Match: Contains("course", "learn", "recommend", "study", "tutorial"),
		Response: "Here are some popular learning paths on the platform:\n" +
			"1. Web Development: JavaScript Essentials, then React Fundamentals\n" +
			"2. Data Science: Python for Data Science, then Machine Learning Basics\n" +
			"3. Backend: Node.js and Express, then Databases with MongoDB\n" +
			"Tell me your current level and interests and I can narrow it down.",
	},
	{
		Name:  "greeting",
		Match: either(Words("hello", "hi", "hey", "greetings", "hola"), Contains("good morning", "good afternoon", "good evening")),
		Response: "Hello! I'm your learning assistant. Ask me about a programming topic, or tell " +
			"me what you'd like to learn and I'll recommend a course.",
	},
}

type Responder struct {
	rules []Rule
}

// New returns a Responder over rules, or DefaultRules when none are given.
func New(rules ...Rule) *Responder {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Responder{rules: rules}
}

// Respond never returns an empty string.
func (r *Responder) Respond(prompt string) string {
	answer, _ := r.Match(prompt)
	return answer
}

// Match returns the answer and the name of the rule that produced it
// ("default" when none matched).
func (r *Responder) Match(prompt string) (string, string) {
	lower := strings.ToLower(prompt)
	words := wordSet(lower)
	for _, rule := range r.rules {
		if rule.Match != nil && rule.Match(lower, words) && rule.Response != "" {
			return rule.Response, rule.Name
		}
	}
	return DefaultResponse, "default"
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
	return set
}
