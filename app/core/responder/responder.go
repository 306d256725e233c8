// Package responder phrases structured command results conversationally
// through a hosted language model. It sits outside the interpreter's
// request path guarantees: any failure here degrades to the structured
// text, never to an error the user sees.
package responder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"todochat/app/pkg/logger"
)

type Config struct {
	BaseURL    string
	Model      string
	APIKey     string
	TimeoutSec int
	Enabled    bool
}

type Client struct {
	cfg     Config
	service openai.ChatCompletionService
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	return &Client{
		cfg:     cfg,
		service: openai.NewChatCompletionService(opts...),
	}
}

// Enabled reports whether the model call is configured. When false,
// Phrase returns the structured text untouched.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Phrase asks the model to word the structured result as a short
// conversational reply. The structured text is always the fallback: a
// timeout, transport error or empty completion leaves the user with the
// plain version.
func (c *Client) Phrase(ctx context.Context, userText, structured string) string {
	if !c.Enabled() {
		return structured
	}
	timeout := time.Duration(c.cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completion, err := c.service.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(userText, structured)),
		},
	})
	if err != nil {
		logger.Error("Responder call failed, using structured reply: %v", err)
		return structured
	}
	if len(completion.Choices) == 0 {
		return structured
	}
	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return structured
	}
	return reply
}

const systemPrompt = "You are a friendly todo-list assistant. " +
	"Rephrase the given operation result as one or two short conversational sentences. " +
	"Keep every task number, date and count exactly as given. Do not invent tasks or details."

func buildPrompt(userText, structured string) string {
	var b strings.Builder
	b.WriteString("The user said:\n")
	b.WriteString(userText)
	b.WriteString("\n\nThe system performed this operation:\n")
	b.WriteString(structured)
	b.WriteString("\n\nReply to the user.")
	return b.String()
}

func (c *Client) String() string {
	return fmt.Sprintf("responder(model=%s, enabled=%t)", c.cfg.Model, c.Enabled())
}
