package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"z-docgen-ai-api/internal/config"
	apperrors "z-docgen-ai-api/pkg/errors"
	"z-docgen-ai-api/pkg/logger"
	"z-docgen-ai-api/pkg/metrics"
)

// Fragment 生成输出的一个片段，Index 从 0 起单调递增
type Fragment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// CallResult LLM 调用的终态汇总
type CallResult struct {
	Content          string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// CallOptions 单次调用的覆盖参数
type CallOptions struct {
	Provider    string
	Temperature *float32
	MaxTokens   *int
}

// ProviderAdapter 把流式与原子两类 LLM 调用统一为片段序列。
// 原子调用表现为单个片段后立即终态。
type ProviderAdapter interface {
	// Stream 发起生成并通过 emit 依序送出片段，结束后返回终态汇总。
	// 首个片段送出之前允许重试与降级；之后的错误直接终止。
	Stream(ctx context.Context, msgs []*schema.Message, opts CallOptions, emit func(Fragment)) (*CallResult, error)

	// Generate 原子调用，内部同样走重试与降级
	Generate(ctx context.Context, msgs []*schema.Message, opts CallOptions) (*CallResult, error)
}

// ModelFactory 提供 ChatModel 实例与 Provider 链
type ModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
	ModelName(name string) string
	Chain(preferred string) []string
}

// EinoAdapter 基于 Eino ChatModel 的适配器实现
type EinoAdapter struct {
	factory ModelFactory
	llmCfg  *config.LLMConfig
	genCfg  *config.GenerationConfig
}

// NewEinoAdapter 创建 Eino 适配器
func NewEinoAdapter(factory ModelFactory, cfg *config.Config) *EinoAdapter {
	return &EinoAdapter{
		factory: factory,
		llmCfg:  &cfg.LLM,
		genCfg:  &cfg.Generation,
	}
}

func (a *EinoAdapter) Stream(ctx context.Context, msgs []*schema.Message, opts CallOptions, emit func(Fragment)) (*CallResult, error) {
	return a.callChain(ctx, msgs, opts, emit)
}

func (a *EinoAdapter) Generate(ctx context.Context, msgs []*schema.Message, opts CallOptions) (*CallResult, error) {
	return a.callChain(ctx, msgs, opts, nil)
}

// callChain 按 Provider 链依次尝试，每个 Provider 内部做瞬时错误重试。
// emit 为 nil 时走原子调用。
func (a *EinoAdapter) callChain(ctx context.Context, msgs []*schema.Message, opts CallOptions, emit func(Fragment)) (*CallResult, error) {
	chain := a.factory.Chain(opts.Provider)

	var lastErr error
	for i, name := range chain {
		if i > 0 {
			logger.Warn(ctx, "falling back to next llm provider",
				"provider", name, "previous_error", lastErr)
			metrics.LLMCallTotal.WithLabelValues(name, a.factory.ModelName(name), "fallback").Inc()
		}

		result, emitted, err := a.callWithRetry(ctx, name, msgs, opts, emit)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// 已向调用方送出片段后不可再切换 Provider，否则输出会重复
		if emitted {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if errors.Is(lastErr, context.Canceled) {
		return nil, apperrors.ErrGenerationCanceled.WithError(lastErr)
	}
	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, apperrors.ErrGenerationTimeout.WithError(lastErr)
	}
	return nil, apperrors.ErrLLMProviderError.WithError(lastErr)
}

func (a *EinoAdapter) callWithRetry(ctx context.Context, provider string, msgs []*schema.Message, opts CallOptions, emit func(Fragment)) (*CallResult, bool, error) {
	modelName := a.factory.ModelName(provider)
	backoff := a.genCfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= a.genCfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.LLMCallTotal.WithLabelValues(provider, modelName, "retry").Inc()
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		result, emitted, err := a.callOnce(ctx, provider, msgs, opts, emit)
		metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.LLMCallTotal.WithLabelValues(provider, modelName, "ok").Inc()
			metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(result.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(result.CompletionTokens))
			return result, true, nil
		}

		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		lastErr = err

		if emitted || ctx.Err() != nil || !isTransientError(err) {
			return nil, emitted, err
		}

		logger.Warn(ctx, "transient llm error, retrying",
			"provider", provider, "attempt", attempt+1, "error", err)
	}
	return nil, false, lastErr
}

// callOnce 单次调用。返回的 emitted 表示是否已向调用方送出片段。
func (a *EinoAdapter) callOnce(ctx context.Context, provider string, msgs []*schema.Message, opts CallOptions, emit func(Fragment)) (*CallResult, bool, error) {
	chatModel, err := a.factory.Get(ctx, provider)
	if err != nil {
		return nil, false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.llmCfg.ProviderTimeout(provider))
	defer cancel()

	callOpts := buildModelOptions(opts)

	if emit == nil {
		outMsg, err := chatModel.Generate(callCtx, msgs, callOpts...)
		if err != nil {
			return nil, false, err
		}
		if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
			return nil, false, fmt.Errorf("empty llm response")
		}
		result := newCallResult(provider, a.factory.ModelName(provider), strings.TrimSpace(outMsg.Content))
		fillUsage(result, outMsg)
		return result, false, nil
	}

	reader, err := chatModel.Stream(callCtx, msgs, callOpts...)
	if err != nil {
		return nil, false, err
	}
	defer reader.Close()

	var content strings.Builder
	result := newCallResult(provider, a.factory.ModelName(provider), "")
	emitted := false
	index := 0

	for {
		msg, err := reader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, emitted, err
		}
		if msg == nil {
			continue
		}

		// 流尾可能出现 Content 为空但携带 Usage 的消息
		fillUsage(result, msg)
		if msg.Content == "" {
			continue
		}

		content.WriteString(msg.Content)
		emit(Fragment{Index: index, Text: msg.Content})
		metrics.GenerationFragments.WithLabelValues(provider).Inc()
		emitted = true
		index++
	}

	final := strings.TrimSpace(content.String())
	if final == "" {
		return nil, emitted, fmt.Errorf("empty llm response")
	}
	result.Content = final
	return result, emitted, nil
}

func newCallResult(provider, modelName, content string) *CallResult {
	return &CallResult{
		Content:  content,
		Provider: provider,
		Model:    modelName,
	}
}

func fillUsage(result *CallResult, msg *schema.Message) {
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		result.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
}

func buildModelOptions(opts CallOptions) []model.Option {
	out := make([]model.Option, 0, 2)
	if opts.Temperature != nil {
		out = append(out, model.WithTemperature(*opts.Temperature))
	}
	if opts.MaxTokens != nil {
		out = append(out, model.WithMaxTokens(*opts.MaxTokens))
	}
	return out
}

// isTransientError 判断是否为值得重试的瞬时错误
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"):
		return true
	case strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return true
	case strings.Contains(msg, "overloaded"), strings.Contains(msg, "server error"):
		return true
	default:
		return false
	}
}
