package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptChapterExtractV1 PromptID = "chapter_extract_v1"
	PromptBibleSynthV1     PromptID = "bible_synthesize_v1"
	PromptDirectAnalyzeV1  PromptID = "direct_analyze_v1"
)

// ForVersion maps a configured prompt version to the prompt IDs used by
// the extraction pipeline. Unknown versions fall back to v1.
func ForVersion(version string) (extract PromptID, synthesize PromptID, direct PromptID) {
	switch version {
	default:
		return PromptChapterExtractV1, PromptBibleSynthV1, PromptDirectAnalyzeV1
	}
}

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptChapterExtractV1:
		return "templates/chapter_extract_v1.system.txt", "templates/chapter_extract_v1.user.txt", nil
	case PromptBibleSynthV1:
		return "templates/bible_synthesize_v1.system.txt", "templates/bible_synthesize_v1.user.txt", nil
	case PromptDirectAnalyzeV1:
		return "templates/direct_analyze_v1.system.txt", "templates/direct_analyze_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
