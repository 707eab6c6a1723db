package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/tidwall/gjson"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

// ChatProvider talks to an OpenAI-compatible chat completions endpoint.
// OpenAI and Perplexity share the wire format.
type ChatProvider struct {
	ProviderName string
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	Client       *http.Client
}

func NewOpenAI(apiKey, model string, timeout time.Duration) *ChatProvider {
	return &ChatProvider{ProviderName: OpenAI, BaseURL: openAIBaseURL, APIKey: apiKey, Model: model, Timeout: timeout, Client: http.DefaultClient}
}

func NewPerplexity(apiKey, model string, timeout time.Duration) *ChatProvider {
	return &ChatProvider{ProviderName: Perplexity, BaseURL: perplexityBaseURL, APIKey: apiKey, Model: model, Timeout: timeout, Client: http.DefaultClient}
}

func (p *ChatProvider) Name() string { return p.ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (p *ChatProvider) Generate(ctx context.Context, req Request) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	maxTokens := 400
	if req.Thread {
		maxTokens = 1500
	}
	body, err := json.Marshal(chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(req)},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: HTTP request error: %w", p.ProviderName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: error reading response body: %w", p.ProviderName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTP(p.ProviderName, resp.StatusCode, resp.Header, respBody)
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: empty completion", p.ProviderName)
	}
	return content, nil
}

func classifyHTTP(name string, status int, header http.Header, body []byte) error {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	cause := fmt.Errorf("status %d: %s", status, msg)

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &apperr.ProviderAuthError{Provider: name, Err: cause}
	case http.StatusTooManyRequests:
		return &apperr.ProviderQuotaError{Provider: name, RetryAfter: parseRetryAfter(header.Get("Retry-After")), Err: cause}
	}
	return fmt.Errorf("%s: %w", name, cause)
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsAuth reports whether err is an authorization-class provider failure.
func IsAuth(err error) bool {
	var authErr *apperr.ProviderAuthError
	return errors.As(err, &authErr)
}

func IsQuota(err error) bool {
	var quotaErr *apperr.ProviderQuotaError
	return errors.As(err, &quotaErr)
}
