// Package port declares the workflow layer's outward dependencies.
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory is the minimal LLM dependency of the workflow layer.
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}
