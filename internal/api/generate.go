package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apierrors "github.com/diogo/localchat/internal/errors"
	"github.com/diogo/localchat/internal/models"
)

// maxPayloadSize bounds a whole-payload reply
const maxPayloadSize = 8 << 20

// errorBodyLimit bounds the body read from a failed response
const errorBodyLimit = 4096

// GeneratePrompt sends {prompt, model} and returns the "response" field of the reply
func (c *ChatClient) GeneratePrompt(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	body := models.PromptRequest{Prompt: prompt, Model: c.Model()}
	return c.generate(ctx, "generate", body)
}

// GenerateHistory sends {messages, model} and returns the "response" field of the reply
func (c *ChatClient) GenerateHistory(ctx context.Context, messages []models.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}
	body := models.HistoryRequest{Messages: messages, Model: c.Model()}
	return c.generate(ctx, "chat", body)
}

func (c *ChatClient) generate(ctx context.Context, operation string, body any) (string, error) {
	resp, err := c.post(ctx, operation, body, models.ContentTypeJSON)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint(operation, c.endpoint, err)
	}

	return parseResponse(data)
}

// parseResponse extracts the reply text from a whole-payload body
func parseResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", apierrors.NewParseError("body is not valid JSON", "")
	}

	result := gjson.GetBytes(body, PathResponse)
	if !result.Exists() {
		return "", apierrors.NewParseError("missing response field", PathResponse)
	}
	if result.Type != gjson.String {
		return "", apierrors.NewParseError(fmt.Sprintf("response field is %s, not a string", result.Type), PathResponse)
	}

	return result.String(), nil
}

// post sends body as JSON and returns the response once its status is 2xx.
// The caller owns resp.Body.
func (c *ChatClient) post(ctx context.Context, operation string, body any, accept string) (*http.Response, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set(models.HeaderAccept, accept)
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set(models.HeaderRequestID, id)
	}

	c.logger.Debug("sending request",
		zap.String("operation", operation),
		zap.String("endpoint", c.endpoint),
		zap.String("request_id", RequestIDFromContext(ctx)),
		zap.Int("bytes", len(payload)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint(operation, c.endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		_ = resp.Body.Close()

		message := fmt.Sprintf("%s failed", operation)
		if detail := gjson.GetBytes(errorBody, PathError); detail.Exists() {
			message = fmt.Sprintf("%s failed: %s", operation, detail.String())
		}
		return nil, apierrors.NewAPIErrorWithBody(resp.StatusCode, c.endpoint, message, string(errorBody))
	}

	return resp, nil
}
