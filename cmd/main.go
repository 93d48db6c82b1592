package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"booking-agent/handler"
	"booking-agent/internal/integrations/calcom"
	"booking-agent/internal/integrations/openai"
	"booking-agent/internal/integrations/paramstore"
	"booking-agent/internal/repository"
	"booking-agent/internal/scheduling"
	"booking-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// Local runs only; the Lambda environment carries real variables.
	_ = godotenv.Load()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	eventTypeID := mustEnvInt("EVENT_TYPE_ID")
	timezone := mustEnv("DEFAULT_TIMEZONE")
	language := envStr("DEFAULT_LANGUAGE", "en")
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 20)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 500)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	dynamoClient := awsdynamodb.NewFromConfig(cfg)
	stateClient, err := repository.New(dynamoClient, stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	calcomClient, err := calcom.NewClient(ssmClient, paramPrefix, eventTypeID)
	if err != nil {
		slog.Error("failed to create booking client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	schedService, err := scheduling.NewService(calcomClient, timezone, language)
	if err != nil {
		slog.Error("failed to create scheduling service", "err", err)
		os.Exit(1)
	}
	chatService, err := usecase.NewChatService(ssmClient, openaiClient, stateClient, schedService, paramPrefix, maxContextItems, maxMessageLen)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func mustEnvInt(key string) int64 {
	v := mustEnv(key)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Error("environment variable is not a number", "key", key, "value", v)
		os.Exit(1)
	}
	return n
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
