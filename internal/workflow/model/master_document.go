package model

// MasterStoryDocument is the aggregate story bible synthesized from
// all chapter extractions of a run.
type MasterStoryDocument struct {
	StoryTitle        string            `json:"story_title,omitempty"`
	ChaptersAnalyzed  int               `json:"chapters_analyzed"`
	Characters        []Character       `json:"characters"`
	Relationships     []Relationship    `json:"relationships,omitempty"`
	WorldRules        []WorldRule       `json:"world_rules,omitempty"`
	Mysteries         []Mystery         `json:"mysteries,omitempty"`
	NarrativeLog      []NarrativeEntry  `json:"narrative_log"`
	EroticContentArcs []EroticArc       `json:"erotic_content_arcs,omitempty"`
	Themes            []string          `json:"themes,omitempty"`
	OpenQuestions     []string          `json:"open_questions,omitempty"`
}

// Mystery tracks an unresolved plot thread.
type Mystery struct {
	Question        string `json:"question"`
	FirstRaised     int    `json:"first_raised,omitempty"` // chapter number
	Status          string `json:"status,omitempty"`       // open, resolved, abandoned
	ResolvedChapter int    `json:"resolved_chapter,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// NarrativeEntry is one chapter's slot in the chronological log. The
// log is ordered by chapter number regardless of extraction order.
type NarrativeEntry struct {
	ChapterNumber int     `json:"chapter_number"`
	ChapterTitle  string  `json:"chapter_title,omitempty"`
	Summary       string  `json:"summary"`
	KeyEvents     []Event `json:"key_events,omitempty"`
}

// EroticArc traces how a sexual dynamic develops across chapters.
type EroticArc struct {
	Pairing     []string `json:"pairing"`
	Progression string   `json:"progression"`
	Chapters    []int    `json:"chapters,omitempty"`
}
