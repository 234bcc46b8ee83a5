// ABOUTME: Reply generation for chat turns received by the development backend
// ABOUTME: Echo replies for offline work, OpenAI chat completions when a key is set

package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Upload describes a file that arrived with a turn.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
}

// Turn is one inbound chat request.
type Turn struct {
	TenantKey string
	Message   string
	Upload    *Upload
}

// Replier produces the system reply for a turn.
type Replier interface {
	Reply(ctx context.Context, turn Turn) (string, error)
}

// EchoReplier repeats the user's message back.
type EchoReplier struct{}

// Reply implements Replier.
func (EchoReplier) Reply(_ context.Context, turn Turn) (string, error) {
	var b strings.Builder
	if turn.Message != "" {
		b.WriteString("You said: ")
		b.WriteString(turn.Message)
	}
	if turn.Upload != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Received **%s** (%s, %d bytes).", turn.Upload.Name, turn.Upload.MimeType, turn.Upload.Size)
	}
	return b.String(), nil
}

// OpenAIReplier answers turns with a chat completion.
type OpenAIReplier struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

// NewOpenAIReplier creates a replier. An empty baseURL uses the OpenAI API.
func NewOpenAIReplier(apiKey, baseURL, model, systemPrompt string) *OpenAIReplier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIReplier{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

// Reply implements Replier.
func (r *OpenAIReplier) Reply(ctx context.Context, turn Turn) (string, error) {
	var messages []openai.ChatCompletionMessage
	if r.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.systemPrompt,
		})
	}

	content := turn.Message
	if turn.Upload != nil {
		content += fmt.Sprintf("\n\n[The visitor attached %s (%s, %d bytes).]", turn.Upload.Name, turn.Upload.MimeType, turn.Upload.Size)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: strings.TrimSpace(content),
	})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
		User:     turn.TenantKey,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
