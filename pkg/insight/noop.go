package insight

import (
	"context"

	"github.com/cleanloop/binsight/pkg/events"
)

// NoopClient is the "not configured" backend. It contributes zero insights
// and the fixed fallback narrative, so callers need no special casing when
// no delegated scorer is deployed.
type NoopClient struct{}

func (n *NoopClient) Name() string { return "none" }

// Analyze returns no insights.
func (n *NoopClient) Analyze(ctx context.Context, batch []events.Event) ([]Insight, error) {
	return nil, nil
}

// Predict returns the fixed fallback narrative.
func (n *NoopClient) Predict(ctx context.Context, binID string, summary map[string]any) (Narrative, error) {
	return FallbackNarrative(), nil
}
