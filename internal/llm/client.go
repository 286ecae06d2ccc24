package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/pkg/circuitbreaker"
	"github.com/nicetoya86/ticket/pkg/config"
	"github.com/nicetoya86/ticket/pkg/logger"
	"github.com/nicetoya86/ticket/pkg/retry"
)

// ErrNoJSON is returned when a completion carries no JSON object.
var ErrNoJSON = errors.New("completion contains no JSON object")

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Theme is one recurring issue with short quotes backing it.
type Theme struct {
	Title    string   `json:"title"`
	Evidence []string `json:"evidence"`
}

// UnmarshalJSON accepts evidence given as a single string as well.
func (t *Theme) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title    string          `json:"title"`
		Evidence json.RawMessage `json:"evidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Title = raw.Title
	t.Evidence = []string{}
	if len(raw.Evidence) == 0 || string(raw.Evidence) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw.Evidence, &one); err == nil {
		if one != "" {
			t.Evidence = append(t.Evidence, one)
		}
		return nil
	}
	return json.Unmarshal(raw.Evidence, &t.Evidence)
}

type Analysis struct {
	Summary string   `json:"summary"`
	Themes  []Theme  `json:"themes"`
	Actions []string `json:"actions"`
}

func NewClient(cfg config.LLMConfig) *Client {
	ocfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		ocfg.BaseURL = cfg.BaseURL
	}

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.Info("LLM client initialized", zap.String("model", cfg.Model))

	return &Client{
		client:      openai.NewClientWithConfig(ocfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// WithRetry replaces the retry policy; tests use it to shorten delays.
func (c *Client) WithRetry(cfg retry.Config) *Client {
	c.retryConfig = cfg
	return c
}

func (c *Client) request(req CompletionRequest) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.UserPrompt,
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, c.request(req))
			if err != nil {
				return classify(fmt.Errorf("failed to create completion: %w", err))
			}
			if len(resp.Choices) == 0 {
				return retry.Permanent(errors.New("completion returned no choices"))
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)
			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CompleteStream sends each content delta to onChunk as it arrives and
// returns the assembled completion. Streams are not retried.
func (c *Client) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string)) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sb strings.Builder
	err := c.cb.Execute(ctx, func() error {
		stream, err := c.client.CreateChatCompletionStream(ctx, c.request(req))
		if err != nil {
			return fmt.Errorf("failed to open completion stream: %w", err)
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("completion stream failed: %w", err)
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			sb.WriteString(delta)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{Content: sb.String()}, nil
}

// 4xx other than 429 will not improve on retry.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
			return retry.Permanent(err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != 429 {
			return retry.Permanent(err)
		}
	}
	return err
}

const summarySystemPrompt = `너는 한국어 CS 분석가야. 고객 문의 원문을 읽고 반복되는 불편과 요청을 정리해.
반드시 아래 JSON 형식으로만 답해.
{"summary": "3~5문장 요약", "themes": [{"title": "주제", "evidence": ["원문 인용", "원문 인용"]}], "actions": ["개선 제안"]}
- themes는 최대 5개, 빈도가 높은 순서로.
- evidence는 원문에서 짧게 그대로 인용해.
- 개인정보(이름, 전화번호, 이메일)는 절대 포함하지 마.`

func summaryRequest(inquiryType, text string) CompletionRequest {
	if inquiryType == "" {
		inquiryType = "전체"
	}
	return CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   fmt.Sprintf("문의유형: %s\n\n고객 문의 원문:\n%s", inquiryType, text),
		Temperature:  0.2,
	}
}

// SummarizeInquiries asks the model for a structured analysis of a customer
// corpus.
func (c *Client) SummarizeInquiries(ctx context.Context, inquiryType, text string) (*Analysis, error) {
	resp, err := c.Complete(ctx, summaryRequest(inquiryType, text))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize inquiries: %w", err)
	}

	analysis, err := ParseAnalysis(resp.Content)
	if err != nil {
		return nil, err
	}

	logger.Info("Inquiries summarized",
		zap.String("inquiry_type", inquiryType),
		zap.Int("themes", len(analysis.Themes)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return analysis, nil
}

// SummarizeInquiriesStream is SummarizeInquiries with the raw completion
// streamed to onChunk.
func (c *Client) SummarizeInquiriesStream(ctx context.Context, inquiryType, text string, onChunk func(string)) (*Analysis, error) {
	resp, err := c.CompleteStream(ctx, summaryRequest(inquiryType, text), onChunk)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize inquiries: %w", err)
	}
	return ParseAnalysis(resp.Content)
}

// ParseAnalysis extracts the outermost JSON object from a completion, which
// may be wrapped in prose or a code fence.
func ParseAnalysis(content string) (*Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	var a Analysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if strings.TrimSpace(a.Summary) == "" && len(a.Themes) == 0 {
		return nil, fmt.Errorf("analysis is empty: %w", ErrNoJSON)
	}
	if a.Themes == nil {
		a.Themes = []Theme{}
	}
	if a.Actions == nil {
		a.Actions = []string{}
	}
	return &a, nil
}
