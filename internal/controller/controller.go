// Package controller mediates one exchange at a time between the user and
// the chat endpoint.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diogo/localchat/internal/api"
	"github.com/diogo/localchat/internal/conversation"
	"github.com/diogo/localchat/internal/models"
)

// ErrEmptyInput is returned by Submit for blank input
var ErrEmptyInput = errors.New("input is empty")

// ErrBusy is returned by Submit while another exchange is in flight
var ErrBusy = conversation.ErrBusy

// Phase is the position of the controller in the submit cycle
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseAwaitingFirstChunk
	PhaseAccumulating
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseAwaitingFirstChunk:
		return "awaiting first chunk"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller owns the conversation and the request-in-flight flag
type Controller struct {
	store     *conversation.Store
	client    api.ChatClientInterface
	responder Responder
	mode      models.Mode
	logger    *zap.Logger

	mu    sync.RWMutex
	phase Phase
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for exchange tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStore makes the controller use an existing store
func WithStore(store *conversation.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// New creates a Controller that talks to client in the given mode
func New(client api.ChatClientInterface, mode models.Mode, opts ...Option) (*Controller, error) {
	c := &Controller{
		store:  conversation.NewStore(),
		client: client,
		mode:   mode,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	responder, err := NewResponder(mode, client, c.logger)
	if err != nil {
		return nil, err
	}
	c.responder = responder
	return c, nil
}

// Store returns the observable conversation
func (c *Controller) Store() *conversation.Store {
	return c.store
}

// Mode returns the configured response mode
func (c *Controller) Mode() models.Mode {
	return c.mode
}

// Phase returns the current phase of the submit cycle
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Submit runs one exchange for text.
//
// Blank input returns ErrEmptyInput and an exchange already in flight
// returns ErrBusy; neither touches the conversation. Otherwise the user
// message is appended, the reply is obtained according to the mode, and the
// busy flag is cleared on return. Any failure appends the assistant message
// models.ErrorReply; the underlying error is also returned for logging.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	if err := c.store.TryBegin(); err != nil {
		return err
	}
	defer func() {
		c.store.End()
		c.setPhase(PhaseIdle)
	}()

	id := uuid.NewString()
	ctx = api.WithRequestID(ctx, id)
	log := c.logger.With(
		zap.String("request_id", id),
		zap.String("mode", string(c.mode)),
		zap.String("model", c.client.Model()),
	)

	c.setPhase(PhaseSending)
	c.store.Append(models.UserMessage(text))
	history := c.store.Messages()

	log.Debug("exchange started", zap.Int("history", len(history)))
	start := time.Now()

	chunks, err := c.responder.Respond(ctx, c.store, history, c.setPhase)
	if err != nil {
		c.setPhase(PhaseFailed)
		c.store.Append(models.ErrorMessage())
		log.Warn("exchange failed",
			zap.Error(err),
			zap.Int("chunks", chunks),
			zap.Duration("elapsed", time.Since(start)),
		)
		return err
	}

	log.Debug("exchange finished",
		zap.Int("chunks", chunks),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Reset clears the conversation. It returns ErrBusy while an exchange is in flight.
func (c *Controller) Reset() error {
	return c.store.Clear()
}
