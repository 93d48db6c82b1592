package usecase

import (
	"fmt"
	"strings"
	"time"

	"booking-agent/internal/domain"
)

// buildPromptMessages assembles the system prompt, the completed prior turns,
// and the current user message in conversation order.
func buildPromptMessages(history []domain.Turn, message string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: "system", Content: buildSystemPrompt()},
	}

	for _, turn := range history {
		messages = append(messages, turnToPromptMessages(turn)...)
	}

	messages = append(messages, domain.ChatMessage{
		Role:    "user",
		Content: message,
	})
	return messages
}

// buildSystemPrompt anchors the model to today's date so relative dates like
// "tomorrow" resolve correctly, and pins the behavioural guidelines.
func buildSystemPrompt() string {
	return fmt.Sprintf(strings.Join([]string{
		"You are a helpful assistant scheduling bookings. Today's date is %s. Follow these guidelines:",
		"1. Always ask for email if not provided.",
		"2. For booking: Inform user of success or suggest alternatives if failed.",
		"3. For getting bookings: Summarize found bookings or offer to schedule if none.",
		"4. For cancelling: Confirm details, inform of success or explain failure.",
		"5. For rescheduling: Confirm current and new details, can't reschedule to past.",
		"6. Use the appropriate booking tool for each action.",
	}, "\n"), todayDate())
}

func turnToPromptMessages(turn domain.Turn) []domain.ChatMessage {
	if turn.Status != statusComplete {
		return nil
	}
	userText := strings.TrimSpace(turn.UserText)
	reply := strings.TrimSpace(turn.Reply)
	if userText == "" || reply == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: "user", Content: userText},
		{Role: "assistant", Content: reply},
	}
}

var todayDate = func() string {
	return time.Now().Format("2006-01-02")
}
