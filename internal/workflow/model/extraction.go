package model

// ChapterExtraction is the structured summary the model produces for a
// single chapter. Fields the model could not determine are left empty;
// estimated values are marked with an asterisk by prompt convention.
type ChapterExtraction struct {
	ChapterNumber int                 `json:"chapter_number"`
	ChapterTitle  string              `json:"chapter_title,omitempty"`
	Summary       string              `json:"summary"`
	Characters    []Character         `json:"characters"`
	Relationships []Relationship      `json:"relationships,omitempty"`
	WorldRules    []WorldRule         `json:"world_rules,omitempty"`
	Events        []Event             `json:"events,omitempty"`
	EroticContent *EroticContentNotes `json:"erotic_content,omitempty"`
}

// Character is one character as observed in a chapter or across the
// story.
type Character struct {
	Name                string               `json:"name"`
	Aliases             []string             `json:"aliases,omitempty"`
	Kind                string               `json:"kind,omitempty"` // main, major, minor
	Age                 string               `json:"age,omitempty"`
	Gender              string               `json:"gender,omitempty"`
	Role                string               `json:"role,omitempty"`
	Personality         string               `json:"personality,omitempty"`
	PhysicalDescription *PhysicalDescription `json:"physical_description,omitempty"`
	NotableActions      []string             `json:"notable_actions,omitempty"`
}

// PhysicalDescription holds stated or estimated physical attributes.
type PhysicalDescription struct {
	Height string `json:"height,omitempty"`
	Build  string `json:"build,omitempty"`
	Hair   string `json:"hair,omitempty"`
	Other  string `json:"other,omitempty"`
}

// Relationship captures the state of a pairwise relationship.
type Relationship struct {
	Between     []string `json:"between"`
	Nature      string   `json:"nature"`
	Status      string   `json:"status,omitempty"`
	Development string   `json:"development,omitempty"`
}

// WorldRule is a rule or concept of the story world.
type WorldRule struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// Event is one narrative event.
type Event struct {
	Time               string   `json:"time,omitempty"`
	Description        string   `json:"description"`
	CharactersInvolved []string `json:"characters_involved,omitempty"`
}

// EroticContentNotes tracks sexual content dynamics per chapter.
type EroticContentNotes struct {
	Present  bool     `json:"present"`
	Dynamics []string `json:"dynamics,omitempty"`
	Pairings []string `json:"pairings,omitempty"`
	Tone     string   `json:"tone,omitempty"`
}
