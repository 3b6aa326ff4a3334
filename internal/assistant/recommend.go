package assistant

import (
	"context"
	"fmt"
	"strings"
)

const recommendSystemPrompt = "You are a course advisor for an online learning platform. " +
	"Recommend concrete courses in a short numbered list with one sentence of reasoning each."

// Recommend asks for course recommendations for the given interests and
// level. It goes through Respond, so it shares caching and fallback.
func (s *Service) Recommend(ctx context.Context, interests []string, level string) (*Result, error) {
	var cleaned []string
	for _, i := range interests {
		if i = strings.TrimSpace(i); i != "" {
			cleaned = append(cleaned, i)
		}
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "beginner"
	}

	var prompt string
	if len(cleaned) == 0 {
		prompt = fmt.Sprintf("Recommend 3 courses for a %s learner who is not sure where to start.", level)
	} else {
		prompt = fmt.Sprintf("Recommend 3 courses for a %s learner interested in %s.", level, strings.Join(cleaned, ", "))
	}
	return s.Respond(ctx, prompt, recommendSystemPrompt, nil)
}
