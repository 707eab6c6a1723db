package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider calls the Gemini generateContent endpoint.
type GoogleProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Client  *http.Client
}

func NewGoogle(apiKey, model string, timeout time.Duration) *GoogleProvider {
	return &GoogleProvider{BaseURL: googleBaseURL, APIKey: apiKey, Model: model, Timeout: timeout, Client: http.DefaultClient}
}

func (g *GoogleProvider) Name() string { return Google }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiConfig    `json:"generationConfig"`
}

func (g *GoogleProvider) Generate(ctx context.Context, req Request) (string, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	maxTokens := 400
	if req.Thread {
		maxTokens = 1500
	}
	body, err := json.Marshal(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: SystemPrompt(req)}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig:  geminiConfig{MaxOutputTokens: maxTokens, Temperature: 0.7},
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.BaseURL, "/"), g.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: HTTP request error: %w", Google, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: error reading response body: %w", Google, err)
	}

	if resp.StatusCode != http.StatusOK {
		// Gemini answers an invalid key with 400 rather than 401.
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(gjson.GetBytes(respBody, "error.message").String()), "api key") {
			return "", classifyHTTP(Google, http.StatusUnauthorized, resp.Header, respBody)
		}
		return "", classifyHTTP(Google, resp.StatusCode, resp.Header, respBody)
	}

	if reason := gjson.GetBytes(respBody, "promptFeedback.blockReason").String(); reason != "" {
		return "", fmt.Errorf("%s: prompt blocked: %s", Google, reason)
	}

	var b strings.Builder
	for _, part := range gjson.GetBytes(respBody, "candidates.0.content.parts.#.text").Array() {
		b.WriteString(part.String())
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%s: empty completion", Google)
	}
	return b.String(), nil
}
