// Package gateway is the single entry point for model inference. It routes a
// task to the right backend and tier, enforces the hourly call budget,
// classifies transport failures into the taxonomy in errors.go, and drives the
// validate-repair loop until the output conforms or the attempts are spent.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripforge/placescout/internal/config"
	"github.com/tripforge/placescout/internal/prompt"
	"github.com/tripforge/placescout/internal/resilience"
	"github.com/tripforge/placescout/internal/store"
	"github.com/tripforge/placescout/internal/task"
	"github.com/tripforge/placescout/internal/validate"
	"github.com/tripforge/placescout/pkg/anthropic"
	"github.com/tripforge/placescout/pkg/genai"
)

// Caller is the inference surface the orchestration layers depend on.
type Caller interface {
	Call(ctx context.Context, d *task.Descriptor, promptText string) (*validate.Result, error)
}

// Gateway implements Caller over the configured backends.
type Gateway struct {
	genai     genai.Client
	anthropic anthropic.Client
	budget    *budget
	cfg       *config.Config
}

// New creates a gateway. anthropicClient may be nil when no deep-tier
// alternate backend is configured.
func New(genaiClient genai.Client, anthropicClient anthropic.Client, s store.Store, cfg *config.Config) *Gateway {
	return &Gateway{
		genai:     genaiClient,
		anthropic: anthropicClient,
		budget:    newBudget(s, cfg.Gateway.HourlyBudgetFast, cfg.Gateway.HourlyBudgetDeep),
		cfg:       cfg,
	}
}

// Call runs one inference for the task and validates the output against the
// task's schema. Invalid output is fed back to the model with the validation
// error, up to the configured repair attempts; transport failures deemed
// retryable get a single retry. Every attempt that reaches the provider
// counts against the tier's budget.
func (g *Gateway) Call(ctx context.Context, d *task.Descriptor, promptText string) (*validate.Result, error) {
	spec := validate.Spec{
		Schema:            d.Schema,
		DefaultListFields: d.DefaultListFields,
		Schedule:          d.Kind == task.KindSchedule,
	}
	tier := string(d.Tier)

	current := promptText
	var lastErr error
	for attempt := 0; attempt <= g.cfg.Gateway.RepairAttempts; attempt++ {
		raw, err := g.generate(ctx, tier, current)
		if err != nil {
			return nil, err
		}

		res, err := validate.Validate(raw, spec)
		if err == nil {
			if len(res.Repairs) > 0 {
				zap.L().Info("auto-repaired model output",
					zap.String("task", d.Key),
					zap.Strings("repairs", res.Repairs))
			}
			if res.Warning != "" {
				zap.L().Warn("model output warning",
					zap.String("task", d.Key),
					zap.String("warning", res.Warning))
			}
			return res, nil
		}
		lastErr = err

		if attempt < g.cfg.Gateway.RepairAttempts {
			zap.L().Warn("model output failed validation, requesting repair",
				zap.String("task", d.Key),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			current = prompt.BuildRepair(raw, err)
		}
	}

	return nil, &ValidationFailedError{
		TaskKey:  d.Key,
		Attempts: g.cfg.Gateway.RepairAttempts,
		Err:      lastErr,
	}
}

// generate performs one budget-checked transport call with a retry on
// retryable failures, honoring any server-suggested delay.
func (g *Gateway) generate(ctx context.Context, tier, promptText string) (string, error) {
	if err := g.budget.check(ctx, tier); err != nil {
		return "", err
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = g.cfg.Gateway.TransportRetries + 1
	retryCfg.SuggestedDelay = suggestedDelay
	retryCfg.OnRetry = resilience.RetryLogger("gateway", "generate")

	start := time.Now()
	text, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return g.generateOnce(ctx, tier, promptText)
	})
	if err != nil {
		return "", err
	}

	if recErr := g.budget.record(ctx, tier); recErr != nil {
		zap.L().Warn("failed to record budget entry", zap.Error(recErr))
	}

	zap.L().Info("inference call completed",
		zap.String("tier", tier),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_chars", len(promptText)))
	return text, nil
}

func (g *Gateway) generateOnce(ctx context.Context, tier, promptText string) (string, error) {
	if tier == string(task.TierDeep) && g.cfg.Anthropic.UseForDeep {
		return g.generateAnthropic(ctx, promptText)
	}
	return g.generateGenAI(ctx, tier, promptText)
}

func (g *Gateway) generateGenAI(ctx context.Context, tier, promptText string) (string, error) {
	if g.cfg.GenAI.Key == "" {
		return "", &AuthMissingError{Backend: "genai"}
	}

	model := g.cfg.GenAI.FastModel
	if tier == string(task.TierDeep) {
		model = g.cfg.GenAI.DeepModel
	}

	resp, err := g.genai.Generate(ctx, genai.GenerateRequest{
		Model: model,
		Contents: []genai.Content{
			{Role: "user", Parts: []genai.Part{{Text: promptText}}},
		},
		GenerationConfig: &genai.GenerationConfig{
			Temperature:     g.cfg.GenAI.Temperature,
			MaxOutputTokens: g.cfg.GenAI.MaxTokens,
		},
	})
	if err != nil {
		var se *genai.StatusError
		if errors.As(err, &se) {
			return "", classifyStatus(se, model)
		}
		return "", eris.Wrap(err, "gateway: generation transport")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &SafetyBlockedError{Reason: resp.PromptFeedback.BlockReason}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &EmptyResponseError{FinishReason: resp.FinishReason()}
	}

	if resp.UsageMetadata != nil {
		zap.L().Debug("token usage",
			zap.String("model", model),
			zap.Int("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", resp.UsageMetadata.CandidatesTokenCount),
			zap.Int("total_tokens", resp.UsageMetadata.TotalTokenCount))
	}
	return text, nil
}

func (g *Gateway) generateAnthropic(ctx context.Context, promptText string) (string, error) {
	if g.anthropic == nil || g.cfg.Anthropic.Key == "" {
		return "", &AuthMissingError{Backend: "anthropic"}
	}

	resp, err := g.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.cfg.Anthropic.Model,
		MaxTokens: int64(g.cfg.Anthropic.MaxTokens),
		Prompt:    promptText,
	})
	if err != nil {
		return "", eris.Wrap(err, "gateway: anthropic transport")
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", &EmptyResponseError{FinishReason: resp.StopReason}
	}

	zap.L().Debug("token usage",
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens))
	return resp.Text, nil
}

// classifyStatus maps a provider HTTP status into the failure taxonomy.
func classifyStatus(se *genai.StatusError, model string) error {
	switch {
	case se.Code == 404:
		return &ModelNotFoundError{Model: model}
	case se.Code == 429:
		if isQuotaBody(se.Body) {
			return &QuotaExceededError{Detail: truncate(se.Body, 200)}
		}
		return &RateLimitedError{RetryAfter: retryDelayFrom(se.Body)}
	case se.Code == 503:
		return &OverloadedError{Cooldown: 30 * time.Second}
	case se.Code >= 500:
		return &ServerError{Code: se.Code}
	default:
		return &ClientError{Code: se.Code, Body: truncate(se.Body, 200)}
	}
}

// isQuotaBody distinguishes a hard quota exhaustion from a transient rate
// limit: both arrive as 429, but quota bodies name the exceeded quota.
func isQuotaBody(body string) bool {
	return strings.Contains(strings.ToLower(body), "quota")
}

// retryDelayFrom extracts a provider-suggested retry delay like
// "retryDelay": "12s" from an error body, zero when absent.
func retryDelayFrom(body string) time.Duration {
	const marker = `"retryDelay"`
	idx := strings.Index(body, marker)
	if idx < 0 {
		return 0
	}
	rest := body[idx+len(marker):]
	start := strings.Index(rest, `"`)
	if start < 0 {
		return 0
	}
	end := strings.Index(rest[start+1:], `"`)
	if end < 0 {
		return 0
	}
	d, err := time.ParseDuration(rest[start+1 : start+1+end])
	if err != nil {
		return 0
	}
	return d
}

func suggestedDelay(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	var ov *OverloadedError
	if errors.As(err, &ov) {
		return ov.Cooldown
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
