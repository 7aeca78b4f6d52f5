package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm_client.go -package=mocks nim-chat/internal/service LLMClient
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService nim-chat/internal/service ChatService

import (
	"context"
	"errors"
	"strings"
	"time"

	"nim-chat/internal/contextutil"
	"nim-chat/internal/llm"
	"nim-chat/internal/metrics"
	"nim-chat/internal/sampling"
	"nim-chat/internal/session"
)

// LLMClient is an interface for interacting with an LLM API.
// This interface is defined from the service layer's perspective (consumer-first).
type LLMClient interface {
	// Complete sends one request and returns the reply.
	Complete(ctx context.Context, req llm.Request) (string, error)
	// Stream sends one request and streams the reply via callback.
	Stream(ctx context.Context, req llm.Request, callback func(chunk string) error) error
}

// ChatRequest represents a chat request in the domain layer.
type ChatRequest struct {
	Message string
}

// ChatResponse represents a chat response in the domain layer.
type ChatResponse struct {
	Reply string
	// History is the conversation after the exchange was recorded.
	History []session.Turn
}

// ChatService provides chat functionality scoped to one session.
type ChatService interface {
	// ProcessChat sends a message and records the exchange once the reply arrives.
	ProcessChat(ctx context.Context, sess *session.Session, req ChatRequest) (ChatResponse, error)
	// StreamChat sends a message and streams the reply via callback. The exchange
	// is recorded only after the stream completes.
	StreamChat(ctx context.Context, sess *session.Session, req ChatRequest, callback func(chunk string) error) (ChatResponse, error)
	// ResetChat clears the session's conversation.
	ResetChat(ctx context.Context, sess *session.Session)
	// UpdateSettings applies a control change to the session's sampling config.
	UpdateSettings(ctx context.Context, sess *session.Session, update sampling.Update) (sampling.Config, error)
	// Controls returns the model list and slider ranges.
	Controls() sampling.Controls
}

// Options tunes a chat service.
type Options struct {
	// SendHistory sends prior turns as context with each prompt.
	SendHistory bool
	// Metrics records turn outcomes. It may be nil.
	Metrics *metrics.Metrics
}

// chatService implements ChatService.
type chatService struct {
	llmClient    LLMClient
	configurator *sampling.Configurator
	controls     sampling.Controls
	opts         Options
}

// NewChatService creates a new ChatService.
func NewChatService(llmClient LLMClient, configurator *sampling.Configurator, controls sampling.Controls, opts Options) ChatService {
	return &chatService{
		llmClient:    llmClient,
		configurator: configurator,
		controls:     controls,
		opts:         opts,
	}
}

// Controls returns the control definitions.
func (s *chatService) Controls() sampling.Controls {
	return s.controls
}

// ProcessChat processes a chat request.
func (s *chatService) ProcessChat(ctx context.Context, sess *session.Session, req ChatRequest) (ChatResponse, error) {
	logger := contextutil.LoggerFromContext(ctx).With("session_id", sess.ID)

	end := sess.BeginTurn()
	defer end()

	llmReq, err := s.prepare(ctx, sess, req)
	if err != nil {
		return ChatResponse{}, err
	}

	start := time.Now()
	reply, err := s.llmClient.Complete(ctx, llmReq)
	s.opts.Metrics.ObserveUpstream(llmReq.Model, time.Since(start))
	if err != nil {
		s.opts.Metrics.ObserveTurn(metrics.OutcomeUpstreamError)
		logger.ErrorContext(ctx, "failed to get LLM response", "model", llmReq.Model, "error", err)
		return ChatResponse{}, externalError(err, "failed to get LLM response")
	}

	sess.RecordExchange(req.Message, reply)
	s.opts.Metrics.ObserveTurn(metrics.OutcomeOK)

	logger.InfoContext(ctx, "chat request processed successfully",
		"model", llmReq.Model, "message_length", len(req.Message), "reply_length", len(reply))
	return ChatResponse{
		Reply:   reply,
		History: sess.Turns(),
	}, nil
}

// StreamChat processes a chat request and streams the response.
func (s *chatService) StreamChat(ctx context.Context, sess *session.Session, req ChatRequest, callback func(chunk string) error) (ChatResponse, error) {
	logger := contextutil.LoggerFromContext(ctx).With("session_id", sess.ID)

	end := sess.BeginTurn()
	defer end()

	llmReq, err := s.prepare(ctx, sess, req)
	if err != nil {
		return ChatResponse{}, err
	}

	var reply strings.Builder
	start := time.Now()
	err = s.llmClient.Stream(ctx, llmReq, func(chunk string) error {
		reply.WriteString(chunk)
		return callback(chunk)
	})
	s.opts.Metrics.ObserveUpstream(llmReq.Model, time.Since(start))
	if err != nil {
		s.opts.Metrics.ObserveTurn(metrics.OutcomeUpstreamError)
		logger.ErrorContext(ctx, "failed to stream LLM response", "model", llmReq.Model, "error", err)
		return ChatResponse{}, externalError(err, "failed to stream LLM response")
	}

	sess.RecordExchange(req.Message, reply.String())
	s.opts.Metrics.ObserveTurn(metrics.OutcomeOK)

	logger.InfoContext(ctx, "streaming chat request processed successfully",
		"model", llmReq.Model, "message_length", len(req.Message), "reply_length", reply.Len())
	return ChatResponse{
		Reply:   reply.String(),
		History: sess.Turns(),
	}, nil
}

// prepare validates the message and builds the outbound request from the
// session's current config and history.
func (s *chatService) prepare(ctx context.Context, sess *session.Session, req ChatRequest) (llm.Request, error) {
	logger := contextutil.LoggerFromContext(ctx)

	// Business validation
	if strings.TrimSpace(req.Message) == "" {
		s.opts.Metrics.ObserveTurn(metrics.OutcomeInvalid)
		logger.WarnContext(ctx, "empty message in chat request")
		return llm.Request{}, &ValidationError{
			Field:   "message",
			Message: "cannot be empty",
		}
	}

	var history []llm.Message
	if s.opts.SendHistory {
		turns := sess.Turns()
		history = make([]llm.Message, 0, len(turns))
		for _, turn := range turns {
			history = append(history, llm.Message{Role: string(turn.Role), Content: turn.Content})
		}
	}

	llmReq, err := s.configurator.Build(sess.Config(), req.Message, history)
	if err != nil {
		if errors.Is(err, sampling.ErrMissingCredential) {
			s.opts.Metrics.ObserveTurn(metrics.OutcomeMissingCredential)
			logger.ErrorContext(ctx, "cannot send message without an API credential")
		}
		return llm.Request{}, err
	}
	return llmReq, nil
}

// ResetChat clears the conversation.
func (s *chatService) ResetChat(ctx context.Context, sess *session.Session) {
	end := sess.BeginTurn()
	defer end()

	sess.Reset()
	s.opts.Metrics.IncReset()
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "chat reset", "session_id", sess.ID)
}

// UpdateSettings applies update to the session's sampling configuration.
func (s *chatService) UpdateSettings(ctx context.Context, sess *session.Session, update sampling.Update) (sampling.Config, error) {
	logger := contextutil.LoggerFromContext(ctx)

	next, err := s.controls.Apply(sess.Config(), update)
	if err != nil {
		var unknown *sampling.UnknownModelError
		if errors.As(err, &unknown) {
			logger.WarnContext(ctx, "unknown model selected", "model", unknown.Model)
			return sess.Config(), &ValidationError{Field: "model", Message: err.Error()}
		}
		return sess.Config(), WrapError(err, "failed to apply settings")
	}

	sess.SetConfig(next)
	s.opts.Metrics.IncSettingsChange()
	logger.DebugContext(ctx, "sampling settings updated", "session_id", sess.ID, "model", next.Model,
		"temperature", next.Temperature, "top_p", next.TopP, "top_k", next.TopK,
		"repetition_penalty", next.RepetitionPenalty, "max_output_tokens", next.MaxOutputTokens)
	return next, nil
}
