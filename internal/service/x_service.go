package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// XClient is the posting surface the publisher needs from X.
type XClient interface {
	// VerifyCredentials is a live identity probe for accessToken.
	VerifyCredentials(ctx context.Context, accessToken string) error
	Me(ctx context.Context, accessToken string) (*XUser, error)
	// PostTweet posts text, as a reply when replyTo is set, and returns the
	// new post id.
	PostTweet(ctx context.Context, accessToken, text, replyTo string, mediaIDs []string) (string, error)
	// UploadMedia fetches mediaURL and uploads it, returning the media id.
	UploadMedia(ctx context.Context, accessToken, mediaURL string) (string, error)
}

type xClient struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewXClient(baseURL string, client *http.Client) XClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &xClient{baseURL: strings.TrimRight(baseURL, "/"), client: client, now: time.Now}
}

type XUser struct {
	ID       string
	Name     string
	Username string
}

func (x *xClient) VerifyCredentials(ctx context.Context, accessToken string) error {
	_, err := x.Me(ctx, accessToken)
	return err
}

func (x *xClient) Me(ctx context.Context, accessToken string) (*XUser, error) {
	resp, err := x.do(ctx, accessToken, http.MethodGet, "/2/users/me", "", nil)
	if err != nil {
		return nil, err
	}
	user := &XUser{
		ID:       gjson.GetBytes(resp, "data.id").String(),
		Name:     gjson.GetBytes(resp, "data.name").String(),
		Username: gjson.GetBytes(resp, "data.username").String(),
	}
	if user.ID == "" {
		return nil, &apperr.PostingError{Err: fmt.Errorf("users/me returned no id")}
	}
	return user, nil
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
	Media *tweetMedia `json:"media,omitempty"`
}

func (x *xClient) PostTweet(ctx context.Context, accessToken, text, replyTo string, mediaIDs []string) (string, error) {
	payload := tweetRequest{Text: text}
	if replyTo != "" {
		payload.Reply = &tweetReply{InReplyToTweetID: replyTo}
	}
	if len(mediaIDs) > 0 {
		payload.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	resp, err := x.do(ctx, accessToken, http.MethodPost, "/2/tweets", "application/json", body)
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(resp, "data.id").String()
	if id == "" {
		return "", &apperr.PostingError{Err: fmt.Errorf("response carried no post id")}
	}
	return id, nil
}

func (x *xClient) UploadMedia(ctx context.Context, accessToken, mediaURL string) (string, error) {
	content, err := x.fetch(ctx, mediaURL)
	if err != nil {
		return "", &apperr.PostingError{Err: err}
	}

	kind, err := SniffMedia(content)
	if err != nil {
		return "", &apperr.PostingError{Err: err}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("media_category", mediaCategory(kind.MIME.Type, kind.Extension)); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("media", "upload."+kind.Extension)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	resp, err := x.do(ctx, accessToken, http.MethodPost, "/2/media/upload", w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(resp, "data.id").String()
	if id == "" {
		id = gjson.GetBytes(resp, "media_id_string").String()
	}
	if id == "" {
		return "", &apperr.PostingError{Err: fmt.Errorf("media upload returned no id")}
	}
	return id, nil
}

func mediaCategory(mimeType, ext string) string {
	switch {
	case ext == "gif":
		return "tweet_gif"
	case mimeType == "video":
		return "tweet_video"
	default:
		return "tweet_image"
	}
}

func (x *xClient) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating media request: %w", err)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (x *xClient) do(ctx context.Context, accessToken, method, path, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, &apperr.PostingError{Err: fmt.Errorf("HTTP request error: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.PostingError{Err: fmt.Errorf("error reading response body: %w", err)}
	}

	if resp.StatusCode >= 300 {
		err := classifyXError(resp.StatusCode, resp.Header, respBody, x.now())
		zap.L().Warn("x request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, err
	}
	return respBody, nil
}

func classifyXError(status int, header http.Header, body []byte, now time.Time) error {
	detail := gjson.GetBytes(body, "detail").String()
	if detail == "" {
		detail = gjson.GetBytes(body, "errors.0.message").String()
	}
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	cause := fmt.Errorf("status %d: %s", status, detail)

	switch status {
	case http.StatusUnauthorized:
		return &apperr.ReconnectRequiredError{Err: cause}
	case http.StatusForbidden:
		lower := strings.ToLower(detail)
		if strings.Contains(lower, "duplicate") || strings.Contains(lower, "policy") {
			return &apperr.DuplicateContentError{Err: cause}
		}
		return &apperr.ReconnectRequiredError{Err: cause}
	case http.StatusTooManyRequests:
		return &apperr.RateLimitedError{RetryAfter: rateLimitReset(header, now), Err: cause}
	}
	return &apperr.PostingError{Err: cause}
}

// rateLimitReset reads x-rate-limit-reset, an epoch second.
func rateLimitReset(header http.Header, now time.Time) time.Duration {
	reset, err := strconv.ParseInt(header.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return 0
	}
	d := time.Unix(reset, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
