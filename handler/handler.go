package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"booking-agent/internal/markdown"
	"booking-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// ChatUseCase is the conversational surface the handler fronts.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type Handler struct {
	uc ChatUseCase
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(uc ChatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle processes one chat request. The agent's markdown reply is rendered
// to HTML before it leaves, so the widget can inject it directly.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)

	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		slog.Warn("invalid request body", "correlationId", correlationID, "err", err)
		return errorEnvelope(http.StatusBadRequest, usecase.ErrorInvalidInput, correlationID), nil
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		status, code := mapError(err)
		slog.Error("chat turn failed", "correlationId", correlationID, "code", code, "err", err)
		return errorEnvelope(status, code, correlationID), nil
	}

	rendered, err := markdown.Render(out.Reply)
	if err != nil {
		slog.Error("reply rendering failed", "correlationId", correlationID, "err", err)
		return errorEnvelope(http.StatusInternalServerError, usecase.ErrorInternal, correlationID), nil
	}

	return jsonEnvelope(http.StatusOK, chatResponse{
		Response:       rendered,
		ConversationID: out.ConversationID,
	}, correlationID), nil
}

func mapError(err error) (int, usecase.ErrorCode) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorFlaggedContent:
		return http.StatusBadRequest, ucErr.Code
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, ucErr.Code
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, ucErr.Code
	default:
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
}

func correlationIDFrom(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return newCorrelationID()
}

func jsonEnvelope(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		// marshalling a flat response struct cannot realistically fail;
		// degrade to a bare error envelope if it ever does
		slog.Error("response marshal failed", "correlationId", correlationID, "err", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    responseHeaders(correlationID),
			Body:       `{"error":"INTERNAL_ERROR"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    responseHeaders(correlationID),
		Body:       string(payload),
	}
}

func errorEnvelope(status int, code usecase.ErrorCode, correlationID string) events.APIGatewayProxyResponse {
	return jsonEnvelope(status, errorResponse{Error: string(code)}, correlationID)
}

func responseHeaders(correlationID string) map[string]string {
	return map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: correlationID,
	}
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
