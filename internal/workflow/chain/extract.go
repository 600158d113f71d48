package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	obsctx "storybible-api/internal/observability/eino"
	wfmodel "storybible-api/internal/workflow/model"
	"storybible-api/internal/workflow/node"
	workflowport "storybible-api/internal/workflow/port"
	workflowprompt "storybible-api/internal/workflow/prompt"
)

// ChapterExtractChain runs the per-chapter extraction prompt and
// decodes the structured result.
type ChapterExtractChain struct {
	factory workflowport.ChatModelFactory
}

func NewChapterExtractChain(factory workflowport.ChatModelFactory) *ChapterExtractChain {
	return &ChapterExtractChain{factory: factory}
}

type ChapterExtractOutput struct {
	Extraction wfmodel.ChapterExtraction
	Raw        string
	Usage      wfmodel.LLMUsageMeta
}

func (c *ChapterExtractChain) Invoke(ctx context.Context, in *wfmodel.ChapterExtractInput) (*ChapterExtractOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Provider) == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(in.ChapterContent) == "" {
		return nil, fmt.Errorf("chapter content is required")
	}
	if in.ChapterNumber <= 0 {
		return nil, fmt.Errorf("chapter number is required")
	}

	provider := strings.TrimSpace(in.Provider)
	ctx = obsctx.WithWorkflow(ctx, "chapter_extract")
	ctx = obsctx.WithProvider(ctx, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	msgs, err := formatExtractMessages(ctx, in)
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

	out := &ChapterExtractOutput{
		Raw:   outMsg.Content,
		Usage: usageMeta(provider, in.Model, outMsg),
	}
	raw := node.ExtractJSONObject(outMsg.Content)
	if err := json.Unmarshal([]byte(raw), &out.Extraction); err != nil {
		return nil, &wfmodel.ParseError{Workflow: "chapter_extract", Raw: outMsg.Content, Err: err}
	}
	// The model occasionally echoes a wrong number; the caller's value wins.
	out.Extraction.ChapterNumber = in.ChapterNumber
	return out, nil
}

var extractPromptRegistry = workflowprompt.NewRegistry()

func formatExtractMessages(ctx context.Context, in *wfmodel.ChapterExtractInput) ([]*schema.Message, error) {
	id, _, _ := workflowprompt.ForVersion(in.PromptVersion)
	tpl, err := extractPromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"story_title":     strings.TrimSpace(in.StoryTitle),
		"chapter_number":  in.ChapterNumber,
		"chapter_title":   strings.TrimSpace(in.ChapterTitle),
		"chapter_content": in.ChapterContent,
	}
	return tpl.Format(ctx, vars)
}

func buildModelOptions(temperature *float32, maxTokens *int, modelName string) []model.Option {
	opts := make([]model.Option, 0, 3)
	if temperature != nil {
		opts = append(opts, model.WithTemperature(*temperature))
	}
	if maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*maxTokens))
	}
	if strings.TrimSpace(modelName) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(modelName)))
	}
	return opts
}

func usageMeta(provider, modelName string, outMsg *schema.Message) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Provider:    provider,
		Model:       modelName,
		GeneratedAt: time.Now(),
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}
