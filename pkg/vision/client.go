package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// defaultBaseURL is the OpenAI-compatible chat completions endpoint.
const defaultBaseURL = "https://api.openai.com/v1"

// ErrAnalysis is returned when the endpoint rejects a request or returns a
// response the client cannot interpret.
var ErrAnalysis = errors.New("analysis failed")

// Client performs image analysis through an OpenAI-compatible chat
// completions API. All calls are synchronous and blocking; concurrency, if
// any, belongs to the caller.
type Client struct {
	baseURL string
	http    *http.Client
	secrets SecretSource
	logger  *zap.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient substitutes the HTTP transport, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient builds an analysis client over the given secret source.
func NewClient(secrets SecretSource, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		secrets: secrets,
		logger:  logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chatRequest is the subset of the chat completions request the client
// sends.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze submits a base64 JPEG and a prompt to the model and returns the
// parsed JSON document from the response. The model is expected to answer
// with a JSON object, optionally inside a ```JSON fence.
func (c *Client) Analyze(ctx context.Context, imageBase64, prompt, modelID string) (map[string]interface{}, error) {
	if modelID == "" {
		modelID = DefaultModel
	}

	key, err := c.secrets.APIKey(ctx, ProviderFor(modelID))
	if err != nil {
		return nil, err
	}

	payload := chatRequest{
		Model: modelID,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/jpeg;base64," + imageBase64,
				}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	c.logger.Debug("submitting analysis request", zap.String("model", modelID))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling analysis endpoint")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrapf(ErrAnalysis, "invalid response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, errors.Wrap(ErrAnalysis, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.Wrap(ErrAnalysis, "response has no choices")
	}

	content := stripJSONFence(parsed.Choices[0].Message.Content)

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, errors.Wrapf(ErrAnalysis, "response is not a JSON object: %v", err)
	}
	return doc, nil
}

// stripJSONFence removes a surrounding ```JSON code fence if present: the
// text after the first opening fence and before the last closing one.
func stripJSONFence(s string) string {
	if i := strings.Index(s, "```JSON"); i >= 0 {
		s = s[i+len("```JSON"):]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
