package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	apierrors "github.com/diogo/localchat/internal/errors"
	"github.com/diogo/localchat/internal/models"
)

// OpenStream sends {messages, model} and returns the reply body for
// incremental reading. The caller must close it.
//
// A 2xx reply without a body yields apierrors.ErrNoBody.
func (c *ChatClient) OpenStream(ctx context.Context, messages []models.Message) (io.ReadCloser, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	body := models.HistoryRequest{Messages: messages, Model: c.Model()}
	resp, err := c.post(ctx, "stream", body, models.ContentTypeText)
	if err != nil {
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody || resp.StatusCode == http.StatusNoContent {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("stream at %s: %w", c.endpoint, apierrors.ErrNoBody)
	}

	return resp.Body, nil
}
