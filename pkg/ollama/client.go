// Package ollama locates faces through a local Ollama vision model
package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/portrait-crop/pkg/client"
	"github.com/menta2k/portrait-crop/pkg/types"
)

// CPU inference on large vision models is slow
const requestTimeout = 300 * time.Second

// ErrEmptyResponse is returned when the model streams no text at all
var ErrEmptyResponse = errors.New("empty response from ollama")

// Client locates faces through the Ollama chat API
type Client struct {
	api *api.Client
}

// NewClient creates a client for the Ollama server at ollamaURL. Any path on
// the URL, such as /api/chat, is ignored.
func NewClient(ollamaURL string) (*Client, error) {
	parsed, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs a scheme and host", ollamaURL)
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{api: api.NewClient(base, http.DefaultClient)}, nil
}

// LocateFaces sends the decoded image to the model and parses the boxes in the reply
func (c *Client) LocateFaces(ctx context.Context, req client.FaceRequest) (*types.FaceAnalysis, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	chat, err := newChatRequest(req)
	if err != nil {
		return nil, err
	}

	var reply strings.Builder
	err = c.api.Chat(ctx, chat, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if reply.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	return client.ParseFaceAnalysis(reply.String())
}

// newChatRequest builds a non-streaming chat request. Ollama takes raw image
// bytes and sniffs the format itself, so req.Format is not forwarded.
func newChatRequest(req client.FaceRequest) (*api.ChatRequest, error) {
	msg := api.Message{Role: "user", Content: req.Prompt}
	if req.Image != "" {
		raw, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
		msg.Images = []api.ImageData{api.ImageData(raw)}
	}

	stream := false
	return &api.ChatRequest{
		Model:    req.Model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Options:  chatOptions(req.Model),
	}, nil
}

func chatOptions(model string) map[string]any {
	options := map[string]any{"temperature": 0.1}

	// MiniCPM-V 4 truncates image tokens with the default context
	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		options["num_ctx"] = 4096
	}
	return options
}
