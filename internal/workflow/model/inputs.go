package model

// ChapterExtractInput feeds a single chapter through extraction.
type ChapterExtractInput struct {
	Provider       string
	Model          string
	PromptVersion  string
	StoryTitle     string
	ChapterNumber  int
	ChapterTitle   string
	ChapterContent string
	Temperature    *float32
	MaxTokens      *int
}

// BibleSynthesizeInput merges ordered chapter extractions into the
// master story document.
type BibleSynthesizeInput struct {
	Provider      string
	Model         string
	PromptVersion string
	StoryTitle    string
	Extractions []ChapterExtraction
	Temperature *float32
	MaxTokens   *int
}

// DirectAnalyzeInput carries full chapter text for single-pass analysis.
type DirectAnalyzeInput struct {
	Provider          string
	Model             string
	PromptVersion     string
	StoryTitle        string
	LastChapterNumber int
	ChaptersText      string
	Temperature       *float32
	MaxTokens         *int
}
