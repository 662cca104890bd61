package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
	"github.com/tenkdelta/tenkdelta/internal/service"
)

// Per-million-token pricing used for cost accounting. Keyed by model prefix;
// unknown models fall back to the sonnet rates.
var pricing = map[string]struct{ input, output decimal.Decimal }{
	"claude-sonnet": {decimal.NewFromInt(3), decimal.NewFromInt(15)},
	"claude-haiku":  {decimal.RequireFromString("0.8"), decimal.NewFromInt(4)},
	"claude-opus":   {decimal.NewFromInt(15), decimal.NewFromInt(75)},
}

var million = decimal.NewFromInt(1_000_000)

// Analyzer implements service.Summarizer over a raw LLM client.
type Analyzer struct {
	client  Client
	limiter *rateLimiter
	model   string
}

// NewAnalyzer creates a summarization analyzer.
func NewAnalyzer(client Client, cfg Config) *Analyzer {
	return &Analyzer{
		client:  client,
		limiter: newRateLimiter(cfg.RequestsPerMinute),
		model:   cfg.Model,
	}
}

// Close releases the rate limiter.
func (a *Analyzer) Close() {
	a.limiter.Close()
}

// Summarize produces one narrative per changed section, accumulating token
// usage and spend. Sections without material changes are summarized without
// an API call.
func (a *Analyzer) Summarize(ctx context.Context, req model.SummaryRequest) (model.SummaryResult, error) {
	result := model.SummaryResult{
		Summaries: make(map[string]string, len(req.Diff.Sections)),
		TotalCost: decimal.Zero,
	}

	for _, section := range sortedDiffSections(req.Diff) {
		diff := req.Diff.Sections[section]

		if !diff.HasChanges {
			result.Summaries[section] = "No material changes were identified in this section compared to the prior filing."
			continue
		}

		completion, err := a.summarizeSection(ctx, req, section, diff)
		if err != nil {
			return model.SummaryResult{}, fmt.Errorf("failed to summarize %s: %w", section, err)
		}

		result.Summaries[section] = completion.Text
		result.TotalTokens += completion.InputTokens + completion.OutputTokens
		result.TotalCost = result.TotalCost.Add(a.cost(completion))

		slog.Debug("Section summarized",
			"ticker", req.Ticker,
			"section", section,
			"input_tokens", completion.InputTokens,
			"output_tokens", completion.OutputTokens)
	}

	return result, nil
}

func (a *Analyzer) summarizeSection(ctx context.Context, req model.SummaryRequest, section string, diff model.SectionDiff) (Completion, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return Completion{}, err
	}

	prompt := buildPrompt(req, section, diff)

	var completion Completion
	err := common.WithRetry(ctx, func() error {
		var callErr error
		completion, callErr = a.client.Complete(ctx, prompt)
		return callErr
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return Completion{}, err
	}

	return completion, nil
}

// cost prices a completion against the model's per-million-token rates.
func (a *Analyzer) cost(completion Completion) decimal.Decimal {
	rates, ok := pricing[modelFamily(a.model)]
	if !ok {
		rates = pricing["claude-sonnet"]
	}

	input := decimal.NewFromInt(int64(completion.InputTokens)).Mul(rates.input).Div(million)
	output := decimal.NewFromInt(int64(completion.OutputTokens)).Mul(rates.output).Div(million)
	return input.Add(output)
}

func modelFamily(model string) string {
	for family := range pricing {
		if len(model) >= len(family) && model[:len(family)] == family {
			return family
		}
	}
	return "claude-sonnet"
}

func sortedDiffSections(diff model.DiffResult) []string {
	sections := make([]string, 0, len(diff.Sections))
	for name := range diff.Sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)
	return sections
}
