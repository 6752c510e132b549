package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/inkbridge/inkbridge/internal/constants"
)

// ErrSubmissionFailed matches every *SubmissionError via errors.Is.
var ErrSubmissionFailed = errors.New("submission failed")

// SubmissionError is the single normalized failure of one translation call.
// Message is safe to show to the user; Err keeps the underlying cause.
type SubmissionError struct {
	FileName   string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.FileName, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.FileName, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

// DisplayMessage returns the user-facing text for err. Submission errors
// carry their own message; anything else gets the generic fallback.
func DisplayMessage(err error) string {
	var se *SubmissionError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return constants.FallbackErrorMessage
}

// extractMessage pulls the "message" field out of a JSON error body.
// Returns the fallback when the body is not JSON or has no message.
func extractMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return constants.FallbackErrorMessage
	}

	var text string
	if err := json.Unmarshal(payload.Message, &text); err != nil {
		// Non-string message, e.g. a validation array; show it raw
		text = string(payload.Message)
	}
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return constants.FallbackErrorMessage
	}
	return text
}
