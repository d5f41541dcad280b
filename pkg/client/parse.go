package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// FacePrompt asks a vision model for every visible human face
const FacePrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "confidence": 0.0}
  ]
}

HARD RULES
- One entry per visible human face. Include partially visible faces.
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box covers forehead to chin and ear to ear, not hair or shoulders.
- If there is no face, return {"faces": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ErrNoJSON is returned when a model response holds no JSON object
var ErrNoJSON = errors.New("no json object in model response")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseFaceAnalysis parses the JSON document returned by a vision model
func ParseFaceAnalysis(raw string) (*types.FaceAnalysis, error) {
	raw = SanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, ErrNoJSON
	}

	var result types.FaceAnalysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return &result, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
