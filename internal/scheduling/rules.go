package scheduling

import (
	"errors"
	"fmt"
	"strings"
)

// User-facing message templates. Wording is part of the conversational
// contract: the agent relays these verbatim.
const (
	msgInvalidTimeFormat = "Invalid date or time format. Please use YYYY-MM-DD for date and HH:MM for time."
	msgPastBooking       = "Cannot book a meeting in the past. Please choose a future date and time."
	msgPastReschedule    = "Cannot reschedule a meeting to a past date and time. Please choose a future date and time."
	msgInvalidDuration   = "Error: The requested duration (%d minutes) is not valid. The closest valid duration (%d minutes) will be used instead."
	msgMissingFields     = "Error: Missing required information. Please provide: %s."
	msgInvalidInput      = "Error: Invalid input. Please check all provided information and try again."
	msgNoNewValues       = "No new values provided for rescheduling. Please provide a new date, time, or duration."
	msgRateLimited       = "The scheduling service is rate limiting requests right now. Please try again in a moment."
	msgFetchGeneric      = "Error fetching user bookings: %v"
)

func msgCreateGeneric(detail string) string {
	return fmt.Sprintf("Error creating booking: %s", detail)
}

type ruleKind int

const (
	ruleGeneric ruleKind = iota
	ruleInvalidDuration
	rulePastTime
	ruleMissingFields
)

type messageRule struct {
	substring string
	kind      ruleKind
}

// serviceMessageRules maps known substrings of the external service's error
// messages to classified kinds. Evaluated top to bottom; first match wins,
// anything unmatched is generic.
var serviceMessageRules = []messageRule{
	{substring: "Invalid event length", kind: ruleInvalidDuration},
	{substring: "Attempting to book a meeting in the past", kind: rulePastTime},
	{substring: "invalid_type", kind: ruleMissingFields},
}

func classifyServiceMessage(msg string) ruleKind {
	for _, rule := range serviceMessageRules {
		if strings.Contains(msg, rule.substring) {
			return rule.kind
		}
	}
	return ruleGeneric
}

// httpStatusCoder matches errors that carry an upstream HTTP status.
// *calcom.HTTPStatusError implements it.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// serviceMessager matches errors that expose the external service's error
// message field.
type serviceMessager interface {
	Message() string
}

// externalErrorParts extracts the HTTP status and service message from an
// external call failure. ok is false for transport-level errors that never
// produced a status.
func externalErrorParts(err error) (status int, msg string, ok bool) {
	var coder httpStatusCoder
	if !errors.As(err, &coder) {
		return 0, "", false
	}
	msg = "Unknown error"
	var messager serviceMessager
	if errors.As(err, &messager) {
		msg = messager.Message()
	}
	return coder.HTTPStatusCode(), msg, true
}

// externalMessage renders an error through the service's message field when
// available, falling back to the plain error text.
func externalMessage(err error) string {
	var messager serviceMessager
	if errors.As(err, &messager) {
		return messager.Message()
	}
	return err.Error()
}
