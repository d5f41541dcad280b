package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/menta2k/portrait-crop/pkg/client"
)

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("localhost"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func chatServer(t *testing.T, content string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["model"] != "llava" {
			t.Errorf("expected model llava, got %v", req["model"])
		}
		if inspect != nil {
			inspect(req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "llava",
			"message": map[string]any{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
}

func TestLocateFaces(t *testing.T) {
	srv := chatServer(t, "```json\n{\"faces\":[{\"box\":{\"x\":0.4,\"y\":0.2,\"w\":0.1,\"h\":0.15},\"confidence\":0.8}]}\n```", func(req map[string]any) {
		msgs, _ := req["messages"].([]any)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(msgs))
		}
		images, _ := msgs[0].(map[string]any)["images"].([]any)
		if len(images) != 1 || images[0] != "aGVsbG8=" {
			t.Errorf("expected the image to be forwarded, got %v", images)
		}
	})
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	req := client.FaceRequest{Model: "llava", Prompt: "find faces", Image: "aGVsbG8=", Format: "png"}
	res, err := c.LocateFaces(context.Background(), req)
	if err != nil {
		t.Fatalf("LocateFaces failed: %v", err)
	}
	if len(res.Faces) != 1 || res.Faces[0].Box.W != 0.1 {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestLocateFacesEmptyReply(t *testing.T) {
	srv := chatServer(t, "", nil)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.LocateFaces(context.Background(), client.FaceRequest{Model: "llava", Image: "aGVsbG8="})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestLocateFacesBadBase64(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.LocateFaces(context.Background(), client.FaceRequest{Model: "llava", Image: "%%%"}); err == nil {
		t.Error("Expected error for invalid base64 payload")
	}
}

func TestChatOptions(t *testing.T) {
	if _, ok := chatOptions("llava:13b")["num_ctx"]; ok {
		t.Error("Expected default context for llava")
	}
	if got := chatOptions("MiniCPM-V4:latest")["num_ctx"]; got != 4096 {
		t.Errorf("Expected num_ctx 4096 for minicpm-v4, got %v", got)
	}
}
