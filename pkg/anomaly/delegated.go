package anomaly

import (
	"context"

	"github.com/cleanloop/binsight/pkg/events"
)

// detectDelegated asks the external scorer for additional signals. The
// call is time-bounded and any failure degrades to zero anomalies; the
// delegated signal is optional and must never block or break the pipeline.
func (e *Engine) detectDelegated(ctx context.Context, group []events.Event) []Anomaly {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.InsightTimeout)
	defer cancel()

	insights, err := e.insight.Analyze(ctx, group)
	if err != nil {
		e.logger.Warn("delegated scorer unavailable, continuing without it",
			"backend", e.insight.Name(),
			"error", err,
		)
		return nil
	}

	var out []Anomaly
	for _, in := range insights {
		if !in.Anomalous {
			continue
		}
		typ := in.Type
		if typ == "" {
			typ = "delegated_insight"
		}
		a := Anomaly{
			EventID:    in.EventID,
			Type:       typ,
			Severity:   ParseSeverity(in.Severity),
			Confidence: ClampConfidence(in.Confidence),
			Source:     "delegated",
		}
		if in.Summary != "" {
			a.Details = map[string]any{"summary": in.Summary}
		}
		out = append(out, a)
	}
	return out
}
