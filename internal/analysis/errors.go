package analysis

import (
	"context"
	"errors"
	"strings"

	"videosafety-worker/internal/retry"
)

// Messages stored in error_message when a job fails. Internal detail never reaches users.
const (
	MsgUnavailable = "This video is age-restricted or unavailable. Please try a different video."
	MsgTimeout     = "Analysis timed out. Please try again - longer videos may take more time."
	MsgTechnical   = "Video analysis encountered a technical issue. Please try again."
)

// UserMessage maps a job failure to the sanitized text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return MsgTechnical
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return MsgTechnical
	}
	switch {
	case isInputError(err):
		return MsgUnavailable
	case isTimeout(err):
		return MsgTimeout
	default:
		return MsgTechnical
	}
}

func isInputError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "age-restricted") || strings.Contains(msg, "unavailable")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded")
}

// fatal reports whether a model error must fail the job instead of degrading to SafeDefault.
func fatal(err error) bool {
	var exhausted *retry.ExhaustedError
	return errors.As(err, &exhausted) ||
		retry.IsRetryable(err) ||
		errors.Is(err, context.Canceled) ||
		isInputError(err) ||
		isTimeout(err)
}
