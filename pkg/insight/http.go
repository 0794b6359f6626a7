package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/httpx"
	binsighttls "github.com/cleanloop/binsight/pkg/tls"
)

// HTTPConfig configures the generic HTTP scorer backend.
type HTTPConfig struct {
	// URL is the scorer endpoint (required).
	URL string

	// Model is an optional model identifier forwarded in every request,
	// letting one endpoint host several scoring models.
	Model string

	// Headers are extra HTTP headers, e.g. {"Authorization": "Bearer ..."}.
	Headers map[string]string

	// Timeout bounds each call. Defaults to 10s if <= 0. The delegated
	// call must never stall the analysis pipeline.
	Timeout time.Duration

	// InsightsPath is the gjson path to the insight array in analyze
	// responses. Defaults to "insights". Each element is read with the
	// relative paths eventId, anomalous, type, severity, confidence,
	// summary.
	InsightsPath string

	// PeakTimesPath, OptimizationPath and RiskPath are gjson paths into
	// predict responses. Defaults: "narrative.peakTimes",
	// "narrative.optimization", "narrative.risk".
	PeakTimesPath    string
	OptimizationPath string
	RiskPath         string

	// TLS enables mTLS towards the scorer.
	TLS binsighttls.Config
}

// HTTPClient calls a delegated scorer over HTTP with JSON requests and
// gjson path extraction, so any provider returning the fields somewhere
// in its response can be wired in without code changes.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClient validates cfg and builds the backend.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("insight http backend: URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InsightsPath == "" {
		cfg.InsightsPath = "insights"
	}
	if cfg.PeakTimesPath == "" {
		cfg.PeakTimesPath = "narrative.peakTimes"
	}
	if cfg.OptimizationPath == "" {
		cfg.OptimizationPath = "narrative.optimization"
	}
	if cfg.RiskPath == "" {
		cfg.RiskPath = "narrative.risk"
	}

	client, err := httpx.NewClient(cfg.TLS, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("insight http backend: %w", err)
	}

	return &HTTPClient{cfg: cfg, client: client}, nil
}

func (h *HTTPClient) Name() string { return "http" }

// Analyze posts the event window to the scorer and extracts per-event
// insights from the response.
func (h *HTTPClient) Analyze(ctx context.Context, batch []events.Event) ([]Insight, error) {
	body := map[string]any{
		"task":   "analyze",
		"model":  h.cfg.Model,
		"events": batch,
	}
	if len(batch) > 0 {
		body["binId"] = batch[0].BinID
	}

	respBody, err := h.post(ctx, body)
	if err != nil {
		return nil, err
	}

	arr := gjson.GetBytes(respBody, h.cfg.InsightsPath)
	if !arr.Exists() {
		// A response without the insight array is an empty signal, not
		// a protocol error.
		return nil, nil
	}

	var insights []Insight
	for _, el := range arr.Array() {
		insights = append(insights, Insight{
			EventID:    el.Get("eventId").String(),
			Anomalous:  el.Get("anomalous").Bool(),
			Type:       el.Get("type").String(),
			Severity:   el.Get("severity").String(),
			Confidence: el.Get("confidence").Float(),
			Summary:    el.Get("summary").String(),
		})
	}
	return insights, nil
}

// Predict requests narrative insight text for a bin.
func (h *HTTPClient) Predict(ctx context.Context, binID string, summary map[string]any) (Narrative, error) {
	body := map[string]any{
		"task":    "predict",
		"model":   h.cfg.Model,
		"binId":   binID,
		"summary": summary,
	}

	respBody, err := h.post(ctx, body)
	if err != nil {
		return Narrative{}, err
	}

	n := Narrative{
		PeakTimes:    gjson.GetBytes(respBody, h.cfg.PeakTimesPath).String(),
		Optimization: gjson.GetBytes(respBody, h.cfg.OptimizationPath).String(),
		Risk:         gjson.GetBytes(respBody, h.cfg.RiskPath).String(),
	}
	if n.PeakTimes == "" && n.Optimization == "" && n.Risk == "" {
		return Narrative{}, errors.New("insight http backend: response carried no narrative fields")
	}
	return n, nil
}

func (h *HTTPClient) post(ctx context.Context, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(snippet))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}
