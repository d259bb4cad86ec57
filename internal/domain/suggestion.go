package domain

// Suggestion is the AI service's per-request output: expanded search keywords,
// candidate movie titles, and the model's own confidence. It is never cached
// or persisted.
type Suggestion struct {
	EnhancedKeywords []string `json:"enhancedKeywords"`
	MovieSuggestions []string `json:"movieSuggestions"`
	Confidence       float64  `json:"confidence"`
}

// SceneAnalysis is the AI service's judgement of whether a specific movie
// contains scenes matching a keyword set.
type SceneAnalysis struct {
	HasRelevantScenes bool     `json:"hasRelevantScenes"`
	SceneDescriptions []string `json:"sceneDescriptions"`
	Confidence        float64  `json:"confidence"`
}
