package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"booking-agent/internal/domain"
)

const (
	defaultMaxContext    = 20
	defaultMaxMessage    = 500
	maxConversationTurns = 10
	maxToolRounds        = 5
	statusComplete       = "complete"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	ChatTools(ctx context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatResult, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type StateReadWriter interface {
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error)
	SaveCompletedTurn(ctx context.Context, conversationID, userText, reply string, turns int) error
}

// Scheduler is the booking operation surface the agent's tools dispatch to.
// *scheduling.Service satisfies it.
type Scheduler interface {
	CreateBooking(ctx context.Context, req domain.BookingRequest) (string, error)
	ListBookings(ctx context.Context, email string) (string, error)
	CancelBooking(ctx context.Context, email, date, clock, reason string) (string, error)
	RescheduleBooking(ctx context.Context, req domain.RescheduleRequest) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService runs one conversational turn: validate, moderate, assemble the
// prompt from persisted history, drive the tool-calling loop against the LLM,
// persist the completed turn.
type ChatService struct {
	params          ParamGetter
	llm             LLMClient
	state           StateReadWriter
	tools           *toolSet
	paramPrefix     string
	maxContextItems int
	maxMessageLen   int

	cacheMu     sync.RWMutex
	cacheLoaded bool
	openaiModel string
}

type ChatInput struct {
	Message        string
	ConversationID string
}

type ChatOutput struct {
	Reply          string
	ConversationID string
}

func NewChatService(p ParamGetter, llm LLMClient, s StateReadWriter, sched Scheduler, paramPrefix string, maxContextItems, maxMessageLen int) (*ChatService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	if sched == nil {
		return nil, errors.New("usecase: scheduler must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if maxContextItems <= 0 {
		maxContextItems = defaultMaxContext
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	tools, err := newToolSet(sched)
	if err != nil {
		return nil, err
	}
	return &ChatService{
		params:          p,
		llm:             llm,
		state:           s,
		tools:           tools,
		paramPrefix:     paramPrefix,
		maxContextItems: maxContextItems,
		maxMessageLen:   maxMessageLen,
	}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	existingTurns := 0
	if strings.TrimSpace(in.ConversationID) != "" {
		turnCount, err := s.state.GetConversationTurnCount(ctx, convID)
		if err != nil {
			return ChatOutput{}, newError(ErrorInternal, "dynamodb_turn_count_error", err)
		}
		existingTurns = turnCount
		if existingTurns >= maxConversationTurns {
			return ChatOutput{}, newError(ErrorInvalidInput, "conversation_turn_limit", nil)
		}
	}

	flagged, err := s.llm.Moderate(ctx, message)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ChatOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
		}
		return ChatOutput{}, newError(ErrorUpstream, "moderation_error", err)
	}
	if flagged {
		return ChatOutput{}, newError(ErrorFlaggedContent, "moderation_flagged", nil)
	}

	history, err := s.state.GetHistory(ctx, convID, s.maxContextItems)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
	}

	reply, err := s.runAgent(ctx, buildPromptMessages(history, message))
	if err != nil {
		return ChatOutput{}, err
	}

	if err := s.state.SaveCompletedTurn(ctx, convID, message, reply, existingTurns+1); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	return ChatOutput{
		Reply:          reply,
		ConversationID: convID,
	}, nil
}

// runAgent drives the bounded tool-calling loop. Each round either yields the
// final assistant text or a batch of tool calls; every tool call is answered
// with a tool message before the next round. Tool failures come back as text
// for the model to relay, never as loop errors.
func (s *ChatService) runAgent(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	for round := 0; round < maxToolRounds; round++ {
		result, err := s.llm.ChatTools(ctx, s.model(), messages, s.tools.definitions())
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return "", newError(ErrorRateLimited, "openai_rate_limited", err)
			}
			return "", newError(ErrorUpstream, "openai_error", err)
		}

		if len(result.ToolCalls) == 0 {
			reply := strings.TrimSpace(result.Content)
			if reply == "" {
				return "", newError(ErrorUpstream, "openai_empty_reply", nil)
			}
			return reply, nil
		}

		messages = append(messages, domain.ChatMessage{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			messages = append(messages, domain.ChatMessage{
				Role:       "tool",
				Content:    s.tools.dispatch(ctx, call),
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
	return "", newError(ErrorUpstream, "tool_loop_exhausted", fmt.Errorf("usecase: no final reply after %d tool rounds", maxToolRounds))
}

func (s *ChatService) model() string {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.openaiModel
}

func (s *ChatService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		return errors.New("usecase: openai model parameter is empty")
	}

	s.openaiModel = strings.TrimSpace(model)
	s.cacheLoaded = true
	return nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
