package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mudler/xlog"
	"github.com/sashabaranov/go-openai"
)

// SystemPrompt is prepended to every completion request.
const SystemPrompt = "You are OGSenpai, a helpful and knowledgeable AI assistant."

// FailureReason discriminates why a completion call failed.
type FailureReason string

const (
	ReasonRequestFailed    FailureReason = "request failed"
	ReasonTimeout          FailureReason = "timeout"
	ReasonEmptyResponse    FailureReason = "empty response"
	ReasonNoChoices        FailureReason = "no choices"
	ReasonMalformedMessage FailureReason = "malformed message"
)

// CompletionError is returned for any failed or malformed completion call.
type CompletionError struct {
	Reason FailureReason
	Model  string
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("completion failed (%s)", e.Reason)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a completion timeout.
func IsTimeout(err error) bool {
	var ce *CompletionError
	return errors.As(err, &ce) && ce.Reason == ReasonTimeout
}

// Request is a single completion call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the generated text plus accounting.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
	Model string `json:"model,omitempty"`
}

// Complete performs one chat completion round trip and validates the
// payload. The three malformed-payload shapes are reported as distinct
// reasons so callers can decide on fallback behavior.
func Complete(ctx context.Context, client Client, req Request) (Response, error) {
	xlog.Debug("Generating completion", "model", req.Model)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		reason := ReasonRequestFailed
		if isTimeoutErr(ctx, err) {
			reason = ReasonTimeout
		}
		return Response{}, &CompletionError{Reason: reason, Model: req.Model, Err: err}
	}

	if resp.ID == "" && len(resp.Choices) == 0 {
		return Response{}, &CompletionError{Reason: ReasonEmptyResponse, Model: req.Model}
	}
	if len(resp.Choices) == 0 {
		return Response{}, &CompletionError{Reason: ReasonNoChoices, Model: req.Model}
	}
	msg := resp.Choices[0].Message
	if msg.Content == "" {
		return Response{}, &CompletionError{Reason: ReasonMalformedMessage, Model: req.Model}
	}

	return Response{
		Text: msg.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model: resp.Model,
	}, nil
}

func isTimeoutErr(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
