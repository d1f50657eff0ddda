package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apierrors "github.com/diogo/localchat/internal/errors"
	"github.com/diogo/localchat/internal/models"
)

// maxLineSize bounds one NDJSON line from Ollama
const maxLineSize = 1 << 20

// errorBodyLimit bounds the body read from a failed upstream response
const errorBodyLimit = 4096

// ErrUpstreamChunk is returned when an NDJSON line cannot be interpreted
var ErrUpstreamChunk = errors.New("invalid upstream chunk")

type ollamaChatRequest struct {
	Model    string           `json:"model"`
	Messages []models.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Upstream talks to an Ollama server
type Upstream struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewUpstream creates an Upstream for the Ollama server at baseURL
func NewUpstream(baseURL string, httpClient *http.Client, logger *zap.Logger) *Upstream {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upstream{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the Ollama base URL
func (u *Upstream) BaseURL() string {
	return u.baseURL
}

// StreamChat asks Ollama for a streamed chat completion and calls emit with
// every non-empty message.content fragment, in order. It returns the number
// of fragments emitted. An error from emit stops the stream.
func (u *Upstream) StreamChat(ctx context.Context, model string, messages []models.Message, emit func(string) error) (int, error) {
	resp, err := u.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	fragments := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return fragments, fmt.Errorf("%w: %.80q", ErrUpstreamChunk, line)
		}

		chunk := gjson.ParseBytes(line)
		if msg := chunk.Get("error"); msg.Exists() {
			return fragments, fmt.Errorf("ollama: %s", msg.String())
		}
		if content := chunk.Get("message.content").String(); content != "" {
			if err := emit(content); err != nil {
				return fragments, err
			}
			fragments++
		}
		if chunk.Get("done").Bool() {
			return fragments, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fragments, fmt.Errorf("stream reading error: %w", err)
	}

	u.logger.Debug("upstream stream ended without done marker", zap.Int("fragments", fragments))
	return fragments, nil
}

// Generate asks Ollama for a single non-streamed completion of prompt
func (u *Upstream) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := u.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint("ollama generate", u.baseURL, err)
	}
	if !gjson.ValidBytes(data) {
		return "", apierrors.NewParseError("upstream body is not JSON", "")
	}
	result := gjson.GetBytes(data, "response")
	if result.Type != gjson.String {
		return "", apierrors.NewParseError("missing string field", "response")
	}
	return result.String(), nil
}

func (u *Upstream) post(ctx context.Context, path string, body any) (*http.Response, error) {
	endpoint := u.baseURL + path

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(models.HeaderContentType, models.ContentTypeJSON)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("ollama request", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		message := http.StatusText(resp.StatusCode)
		if detail := gjson.GetBytes(data, "error"); detail.Exists() {
			message = detail.String()
		}
		return nil, apierrors.NewAPIErrorWithBody(resp.StatusCode, endpoint, message, string(data))
	}

	return resp, nil
}
