package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"

	"assistant/internal/apperr"
	appLog "assistant/internal/log"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-1.5-flash"

	op = "llm.interpret"
)

const systemPrompt = `You parse commands for an executive assistant.
Return a JSON object with two keys:
- "intent": one of "schedule", "email" or "remind"
- "details": the entities you found, using the keys person, email, date, time, duration, subject, content
"person" lists every attendee name, comma separated. "date" is "today", "tomorrow", a weekday or "next <weekday>".
"time" is a clock time such as "10 AM" or "14:30". "duration" is a number of minutes.
Example:
"Schedule a meeting with John next Tuesday at 10 AM" ->
{"intent": "schedule", "details": {"person": "John", "date": "next Tuesday", "time": "10 AM"}}`

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI interprets commands through any OpenAI-compatible chat API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI constructs a new OpenAI interpreter, filling in defaults.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Interpret asks the model for a JSON reading of raw. Transport failures are
// collaborator failures; output that cannot be read as JSON is a parse
// failure.
func (o *OpenAI) Interpret(ctx context.Context, raw string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Parse this command: %q", raw)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		appLog.Error("llm request failed", err, "model", o.model, "latency_ms", time.Since(start).Milliseconds())
		return Result{}, apperr.Collaborator(op, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, apperr.Collaborator(op, errors.New("empty response from model"))
	}

	content := resp.Choices[0].Message.Content
	res, err := parseResult(content)
	if err != nil {
		appLog.Warn("llm output is not JSON", "content", content, "error", err)
		return Result{}, apperr.ParseFailure(op, "model output is not a JSON object")
	}

	appLog.Debug("llm interpreted command",
		"intent", res.Intent,
		"latency_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens)
	return res, nil
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// parseResult strips a markdown fence if present, then decodes the object,
// repairing near-JSON (trailing commas, single quotes) once before giving up.
func parseResult(content string) (Result, error) {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	var res Result
	err := json.Unmarshal([]byte(content), &res)
	if err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return Result{}, err
		}
		res = Result{}
		if err := json.Unmarshal([]byte(fixed), &res); err != nil {
			return Result{}, err
		}
	}
	if res.Intent == "" {
		return Result{}, errors.New("missing intent")
	}
	return res, nil
}
