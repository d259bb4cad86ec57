package suggest

import (
	"fmt"
	"strings"
)

const suggestSystemPrompt = "You are a movie expert specializing in action and fighting scenes. " +
	"Provide accurate movie suggestions based on keywords."

const analyzeSystemPrompt = "You are a movie expert. " +
	"Analyze movies for specific types of scenes based on keywords."

func buildSuggestPrompt(keywords []string) string {
	return fmt.Sprintf(`Based on these fighting scene keywords: %s

Please provide:
1. Enhanced keywords for better movie search
2. Specific movie titles that likely contain such scenes
3. Confidence score (0-1) for the analysis

Respond in JSON format:
{
  "enhancedKeywords": ["keyword1", "keyword2"],
  "movieSuggestions": ["Movie Title 1", "Movie Title 2"],
  "confidence": 0.85
}`, strings.Join(keywords, ", "))
}

func buildAnalyzePrompt(title string, keywords []string) string {
	return fmt.Sprintf(`Analyze the movie %q for scenes that match these keywords: %s

Determine if the movie contains relevant fighting/action scenes and provide:
1. Whether the movie has relevant scenes (true/false)
2. Brief descriptions of the scenes
3. Confidence score (0-1)

Respond in JSON format:
{
  "hasRelevantScenes": true,
  "sceneDescriptions": ["Scene 1 description", "Scene 2 description"],
  "confidence": 0.8
}`, title, strings.Join(keywords, ", "))
}
