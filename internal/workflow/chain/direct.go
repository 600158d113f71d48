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

// DirectAnalyzeChain produces the master story document from the full
// chapter text in a single model call.
type DirectAnalyzeChain struct {
	factory workflowport.ChatModelFactory
}

func NewDirectAnalyzeChain(factory workflowport.ChatModelFactory) *DirectAnalyzeChain {
	return &DirectAnalyzeChain{factory: factory}
}

type DirectAnalyzeOutput struct {
	Document wfmodel.MasterStoryDocument
	Raw      string
	Usage    wfmodel.LLMUsageMeta
}

func (c *DirectAnalyzeChain) Invoke(ctx context.Context, in *wfmodel.DirectAnalyzeInput) (*DirectAnalyzeOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Provider) == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(in.ChaptersText) == "" {
		return nil, fmt.Errorf("chapters text is required")
	}
	if in.LastChapterNumber <= 0 {
		return nil, fmt.Errorf("last chapter number is required")
	}

	provider := strings.TrimSpace(in.Provider)
	ctx = obsctx.WithWorkflow(ctx, "direct_analyze")
	ctx = obsctx.WithProvider(ctx, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	msgs, err := formatDirectMessages(ctx, in)
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

	out := &DirectAnalyzeOutput{
		Raw:   outMsg.Content,
		Usage: usageMeta(provider, in.Model, outMsg),
	}
	raw := node.ExtractJSONObject(outMsg.Content)
	if err := json.Unmarshal([]byte(raw), &out.Document); err != nil {
		return nil, &wfmodel.ParseError{Workflow: "direct_analyze", Raw: outMsg.Content, Err: err}
	}
	if out.Document.StoryTitle == "" {
		out.Document.StoryTitle = strings.TrimSpace(in.StoryTitle)
	}
	return out, nil
}

var directPromptRegistry = workflowprompt.NewRegistry()

func formatDirectMessages(ctx context.Context, in *wfmodel.DirectAnalyzeInput) ([]*schema.Message, error) {
	_, _, id := workflowprompt.ForVersion(in.PromptVersion)
	tpl, err := directPromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"story_title":         strings.TrimSpace(in.StoryTitle),
		"last_chapter_number": in.LastChapterNumber,
		"chapters_text":       in.ChaptersText,
	}
	return tpl.Format(ctx, vars)
}
