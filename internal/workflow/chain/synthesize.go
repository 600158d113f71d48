package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	obsctx "storybible-api/internal/observability/eino"
	wfmodel "storybible-api/internal/workflow/model"
	"storybible-api/internal/workflow/node"
	workflowport "storybible-api/internal/workflow/port"
	workflowprompt "storybible-api/internal/workflow/prompt"
)

// BibleSynthesizeChain merges ordered chapter extractions into the
// master story document.
type BibleSynthesizeChain struct {
	factory workflowport.ChatModelFactory
}

func NewBibleSynthesizeChain(factory workflowport.ChatModelFactory) *BibleSynthesizeChain {
	return &BibleSynthesizeChain{factory: factory}
}

type BibleSynthesizeOutput struct {
	Document wfmodel.MasterStoryDocument
	Raw      string
	Usage    wfmodel.LLMUsageMeta
}

func (c *BibleSynthesizeChain) Invoke(ctx context.Context, in *wfmodel.BibleSynthesizeInput) (*BibleSynthesizeOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Provider) == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if len(in.Extractions) == 0 {
		return nil, fmt.Errorf("extractions are required")
	}

	provider := strings.TrimSpace(in.Provider)
	ctx = obsctx.WithWorkflow(ctx, "bible_synthesize")
	ctx = obsctx.WithProvider(ctx, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	msgs, err := formatSynthesizeMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(in.Temperature, in.MaxTokens, in.Model)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, fmt.Errorf("empty llm response")
	}

	out := &BibleSynthesizeOutput{
		Raw:   outMsg.Content,
		Usage: usageMeta(provider, in.Model, outMsg),
	}
	raw := node.ExtractJSONObject(outMsg.Content)
	if err := json.Unmarshal([]byte(raw), &out.Document); err != nil {
		return nil, &wfmodel.ParseError{Workflow: "bible_synthesize", Raw: outMsg.Content, Err: err}
	}
	if out.Document.StoryTitle == "" {
		out.Document.StoryTitle = strings.TrimSpace(in.StoryTitle)
	}
	out.Document.ChaptersAnalyzed = len(in.Extractions)
	return out, nil
}

var synthesizePromptRegistry = workflowprompt.NewRegistry()

func formatSynthesizeMessages(ctx context.Context, in *wfmodel.BibleSynthesizeInput) ([]*schema.Message, error) {
	_, id, _ := workflowprompt.ForVersion(in.PromptVersion)
	tpl, err := synthesizePromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	extractionsJSON, err := json.MarshalIndent(in.Extractions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal extractions: %w", err)
	}
	vars := map[string]any{
		"story_title":      strings.TrimSpace(in.StoryTitle),
		"chapter_count":    len(in.Extractions),
		"extractions_json": string(extractionsJSON),
	}
	return tpl.Format(ctx, vars)
}
