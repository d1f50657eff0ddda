package api

import (
	"context"
	"io"

	"github.com/diogo/localchat/internal/models"
)

// ChatClientInterface is the surface the controller needs from a chat endpoint
type ChatClientInterface interface {
	GeneratePrompt(ctx context.Context, prompt string) (string, error)
	GenerateHistory(ctx context.Context, messages []models.Message) (string, error)
	OpenStream(ctx context.Context, messages []models.Message) (io.ReadCloser, error)
	Endpoint() string
	Model() string
	SetModel(model string)
	Close()
}

// Ensure ChatClient implements ChatClientInterface
var _ ChatClientInterface = (*ChatClient)(nil)
