// Package oracle generates astrological reply drafts. It is an opaque
// text-generation collaborator: when it fails, the astrologer writes the
// reply by hand, and the conversation is never blocked on it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are AstroBot, a wise and empathetic astrologer with a deep " +
	"understanding of cosmic energies and human nature. Your tone is mystical, " +
	"reassuring, and insightful."

// ChatCompleter is the subset of the OpenAI client the oracle uses; it
// keeps tests free of the real client.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ReplyRequest carries the question context the reading is based on.
type ReplyRequest struct {
	QuestionText  string
	UserName      string
	SpecialNumber int
}

// Client drafts replies through a chat-completion model.
type Client struct {
	completer ChatCompleter
	model     string
}

// NewClient builds an oracle over an OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{completer: openai.NewClientWithConfig(cfg), model: model}
}

// NewClientWith wires a custom completer; used by tests.
func NewClientWith(completer ChatCompleter, model string) *Client {
	return &Client{completer: completer, model: model}
}

// GenerateReply asks the model for a reading. The error is returned to
// the caller so it can fall back to manual reply entry.
func (c *Client) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	prompt := fmt.Sprintf(
		"A user named %s has come to you seeking guidance. Their special cosmic "+
			"number for this query is %d.\n\nThey have asked the following question:\n%q\n\n"+
			"Based on their question and their cosmic number, provide a thoughtful, kind, "+
			"and slightly mysterious astrological reading. Weave their name and cosmic "+
			"number into the response to make it feel personal. Keep the response to 2-3 paragraphs.",
		req.UserName, req.SpecialNumber, req.QuestionText,
	)

	resp, err := c.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("oracle: generate reply: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("oracle: model returned no reply")
	}
	return resp.Choices[0].Message.Content, nil
}
