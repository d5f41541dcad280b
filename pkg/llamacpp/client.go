// Package llamacpp talks to a llama.cpp server through its OpenAI compatible
// chat completions endpoint
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/portrait-crop/pkg/client"
	"github.com/menta2k/portrait-crop/pkg/types"
)

const (
	// DefaultURL is used when no server URL is configured
	DefaultURL = "http://localhost:8080"

	completionsPath = "/v1/chat/completions"
	requestTimeout  = 300 * time.Second
)

// ErrEmptyResponse is returned when the server answers without any text
var ErrEmptyResponse = errors.New("empty response from llama.cpp server")

// Client locates faces through a llama.cpp server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Message is a chat message. Content is a string or a list of ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message Message `json:"message"`
}

// NewClient creates a client for the server at serverURL
func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}

	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// LocateFaces sends the image with the face prompt and parses the boxes in the reply
func (c *Client) LocateFaces(ctx context.Context, req client.FaceRequest) (*types.FaceAnalysis, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	respBody, err := c.post(ctx, completionsPath, newCompletionRequest(req))
	if err != nil {
		return nil, fmt.Errorf("llama.cpp request: %w", err)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	text := messageText(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	return client.ParseFaceAnalysis(text)
}

func newCompletionRequest(req client.FaceRequest) ChatCompletionRequest {
	parts := []ContentPart{{Type: "text", Text: req.Prompt}}
	if req.Image != "" {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: req.DataURI()},
		})
	}

	return ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []Message{{Role: "user", Content: parts}},
		Temperature: 0.1,
		MaxTokens:   1024,
		TopP:        0.8,
	}
}

// messageText returns the first non-empty text of a reply whose content
// arrived either as a plain string or as a list of parts
func messageText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		for _, item := range v {
			part, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
