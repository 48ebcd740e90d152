package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/humbleclay/humbleclay/server/metrics"
	"github.com/humbleclay/humbleclay/server/provider"
	"github.com/humbleclay/humbleclay/server/schema"
)

// Processor orchestrates prompt batches against the LLM provider.
//
// A batch run has three phases per window:
//  1. prepare (sequential): parse each item's response format into a
//     response shape; a prompt whose schema cannot be built fails here
//     and never reaches the provider.
//  2. gather (concurrent): fire every prompt in the window at once,
//     then wait for all of them. The window size is the concurrency
//     limit; windows never overlap.
//  3. reconcile (sequential): walk the window in slot order, turning
//     raw results into outcomes and updating run counters. Counters
//     are only touched here, so they need no locking.
//
// One prompt failing never affects its siblings, and the outcome list
// always matches the input order regardless of completion order.
type Processor struct {
	client     provider.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
	windowSize int
}

// DefaultWindowSize bounds provider fan-out when no window size is
// configured.
const DefaultWindowSize = 100

// NewProcessor creates a batch processor. windowSize <= 0 selects
// DefaultWindowSize.
func NewProcessor(client provider.Client, windowSize int, logger *zap.Logger, m *metrics.Metrics) *Processor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Processor{
		client:     client,
		logger:     logger,
		metrics:    m,
		windowSize: windowSize,
	}
}

// preparedPrompt is the outcome of the prepare phase for one item.
// shape is nil in plain-text mode; hasSchema records whether the
// caller asked for structured output at all, which gates extraction
// even when the schema object itself was absent.
type preparedPrompt struct {
	shape     *schema.ResponseShape
	hasSchema bool
}

// preparePrompt interprets an item's response format descriptor.
// Only type "json_schema" selects structured mode. A descriptor that
// names structured mode but carries no schema object stays in
// plain-text mode while still counting as hasSchema for extraction
// gating; a schema object of the wrong type is a prepare failure.
func preparePrompt(req PromptRequest) (preparedPrompt, error) {
	var pp preparedPrompt

	rf := req.ResponseFormat
	if rf == nil || rf["type"] != "json_schema" {
		return pp, nil
	}
	pp.hasSchema = true

	jsonSchema, ok := rf["json_schema"].(map[string]interface{})
	if !ok {
		if rf["json_schema"] == nil {
			return pp, nil
		}
		return pp, fmt.Errorf("response_format.json_schema must be an object")
	}

	rawSchema, exists := jsonSchema["schema"]
	if !exists {
		return pp, nil
	}
	schemaObj, ok := rawSchema.(map[string]interface{})
	if !ok {
		return pp, fmt.Errorf("json_schema.schema must be an object")
	}

	name := "DynamicSchema"
	if n, ok := jsonSchema["name"].(string); ok && n != "" {
		name = n
	}
	pp.shape = schema.BuildShape(name, schemaObj)

	return pp, nil
}

// invoke makes the provider call for one prepared item.
func (p *Processor) invoke(ctx context.Context, req PromptRequest, pp preparedPrompt) (interface{}, error) {
	if pp.shape != nil {
		return p.client.GenerateStructured(ctx, req.Prompt, pp.shape)
	}
	return p.client.Generate(ctx, req.Prompt)
}

// ProcessPrompt processes a single prompt end to end: prepare, one
// provider call, and response preparation with optional extraction.
func (p *Processor) ProcessPrompt(ctx context.Context, req PromptRequest) PromptResponse {
	pp, err := preparePrompt(req)
	if err != nil {
		p.metrics.PromptsTotal.WithLabelValues(StatusError).Inc()
		return NewErrorResponse(err.Error())
	}

	raw, err := p.invoke(ctx, req, pp)
	if err != nil {
		p.metrics.PromptsTotal.WithLabelValues(StatusError).Inc()
		p.logger.Warn("Prompt failed", zap.Error(err))
		return NewErrorResponse(err.Error())
	}

	outcome := PrepareResponse(raw, req.ExtractFieldPath, pp.hasSchema)
	p.metrics.PromptsTotal.WithLabelValues(outcome.Status).Inc()
	return outcome
}

// slotResult is what a gather goroutine leaves behind in its window
// slot. completedAt is captured inside the goroutine so the reconcile
// phase can date the first success accurately.
type slotResult struct {
	value       interface{}
	err         error
	completedAt time.Time
}

// ProcessMultiplePrompts runs a full batch and returns one outcome per
// input prompt, in input order, plus run totals.
func (p *Processor) ProcessMultiplePrompts(ctx context.Context, req *MultiplePromptsRequest) (*MultiplePromptsResponse, RunStats) {
	total := len(req.Prompts)
	start := time.Now()

	p.metrics.BatchesTotal.Inc()
	p.logger.Info("Batch processing started",
		zap.Int("total_prompts", total),
		zap.Int("window_size", p.windowSize),
	)

	outcomes := make([]PromptResponse, total)
	prepared := make([]preparedPrompt, total)
	failedPrep := make([]bool, total)

	for i, item := range req.Prompts {
		pp, err := preparePrompt(item)
		if err != nil {
			outcomes[i] = NewErrorResponse(err.Error())
			failedPrep[i] = true
			continue
		}
		prepared[i] = pp
	}

	stats := RunStats{Total: total}

	for lo := 0; lo < total; lo += p.windowSize {
		hi := lo + p.windowSize
		if hi > total {
			hi = total
		}
		windowStart := time.Now()

		results := make([]slotResult, hi-lo)

		// Gather: fire everything, then wait for everything. A failed
		// call parks its error in the slot; it cannot cancel siblings.
		var wg sync.WaitGroup
		for i := lo; i < hi; i++ {
			if failedPrep[i] {
				continue
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				value, err := p.invoke(ctx, req.Prompts[i], prepared[i])
				results[i-lo] = slotResult{value: value, err: err, completedAt: time.Now()}
			}(i)
		}
		wg.Wait()

		// Reconcile in slot order. This is the only place counters
		// and first-result bookkeeping are touched.
		for i := lo; i < hi; i++ {
			if !failedPrep[i] {
				res := results[i-lo]
				if res.err != nil {
					outcomes[i] = NewErrorResponse(res.err.Error())
				} else {
					outcomes[i] = PrepareResponse(res.value, req.Prompts[i].ExtractFieldPath, prepared[i].hasSchema)
				}
				if outcomes[i].Status == StatusSuccess {
					stats.Completed++
					if stats.Completed == 1 {
						stats.TimeToFirstResult = res.completedAt.Sub(start)
						p.metrics.TimeToFirstResult.Observe(stats.TimeToFirstResult.Seconds())
					}
				}
			}

			if outcomes[i].Status == StatusError {
				stats.Failed++
				category := "processing"
				if failedPrep[i] {
					category = "validation"
				}
				p.logger.Warn("Prompt failed",
					zap.Int("index", i),
					zap.String("category", category),
					zap.String("error", outcomes[i].Error),
				)
			}
			p.metrics.PromptsTotal.WithLabelValues(outcomes[i].Status).Inc()
		}

		windowDuration := time.Since(windowStart)
		p.metrics.WindowDuration.Observe(windowDuration.Seconds())
		p.logger.Info("Window completed",
			zap.Int("window_start", lo),
			zap.Int("window_end", hi),
			zap.Duration("duration", windowDuration),
			zap.Duration("avg_per_prompt", windowDuration/time.Duration(hi-lo)),
			zap.Int("completed", stats.Completed),
			zap.Int("failed", stats.Failed),
		)
	}

	stats.Duration = time.Since(start)
	p.metrics.BatchDuration.Observe(stats.Duration.Seconds())
	p.logger.Info("Batch processing finished",
		zap.Int("total_prompts", total),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
		zap.Duration("time_to_first_result", stats.TimeToFirstResult),
	)

	return &MultiplePromptsResponse{Responses: outcomes}, stats
}
