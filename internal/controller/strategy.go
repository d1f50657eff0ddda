package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/diogo/localchat/internal/api"
	"github.com/diogo/localchat/internal/conversation"
	apierrors "github.com/diogo/localchat/internal/errors"
	"github.com/diogo/localchat/internal/models"
	"github.com/diogo/localchat/internal/stream"
)

// Responder obtains the assistant reply for the conversation in store and
// writes it there. history is the conversation as sent, ending with the
// newest user message. It returns the number of chunks consumed.
type Responder interface {
	Respond(ctx context.Context, store *conversation.Store, history []models.Message, phase func(Phase)) (int, error)
}

// NewResponder returns the responder for mode. A nil logger discards output.
func NewResponder(mode models.Mode, client api.ChatClientInterface, logger *zap.Logger) (Responder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch mode {
	case models.ModePrompt, models.ModeHistory:
		return &payloadResponder{client: client, sendHistory: mode.SendsHistory()}, nil
	case models.ModeStream:
		return &streamResponder{client: client, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// payloadResponder waits for one JSON reply and appends it in a single update
type payloadResponder struct {
	client      api.ChatClientInterface
	sendHistory bool
}

func (r *payloadResponder) Respond(ctx context.Context, store *conversation.Store, history []models.Message, phase func(Phase)) (int, error) {
	var (
		text string
		err  error
	)
	if r.sendHistory {
		text, err = r.client.GenerateHistory(ctx, history)
	} else {
		text, err = r.client.GeneratePrompt(ctx, history[len(history)-1].Content)
	}
	if err != nil {
		return 0, err
	}

	store.Append(models.AssistantMessage(text))
	phase(PhaseComplete)
	return 1, nil
}

// streamResponder appends an empty assistant message as soon as the body is
// available and rewrites it after every decoded chunk
type streamResponder struct {
	client api.ChatClientInterface
	logger *zap.Logger
}

func (r *streamResponder) Respond(ctx context.Context, store *conversation.Store, history []models.Message, phase func(Phase)) (int, error) {
	body, err := r.client.OpenStream(ctx, history)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = body.Close()
	}()

	store.Append(models.AssistantMessage(""))
	phase(PhaseAwaitingFirstChunk)

	first := true
	_, chunks, err := stream.Consume(ctx, body, func(text string) {
		if first {
			phase(PhaseAccumulating)
			first = false
		}
		// the placeholder is the trailing message for the whole exchange
		if err := store.ReplaceLast(text); err != nil {
			r.logger.Debug("stream update dropped", zap.Int("bytes", len(text)), zap.Error(err))
		}
	})
	if err != nil {
		return chunks, apierrors.NewStreamError(r.client.Endpoint(), chunks, err)
	}

	phase(PhaseComplete)
	return chunks, nil
}
