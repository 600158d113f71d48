// Package eino wires observability into eino model calls.
package eino

import "context"

type workflowKey struct{}
type providerKey struct{}

// WithWorkflow tags the context with the workflow issuing model calls,
// e.g. "chapter_extract" or "bible_synthesize".
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return context.WithValue(ctx, workflowKey{}, workflow)
}

// WorkflowFromContext returns the workflow tag, or "unknown".
func WorkflowFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(workflowKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// WithProvider tags the context with the LLM provider name.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext returns the provider tag, or "unknown".
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
