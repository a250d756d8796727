// Package push delivers data notifications to a single device through a
// push provider.
package push

import (
	"context"
	"time"
)

// Error codes reported in Outcome.Error.Code.
const (
	ErrCodeTokenNotRegistered = "messaging/registration-token-not-registered"
	ErrCodeInvalidArgument    = "messaging/invalid-argument"
	ErrCodeMismatchedSender   = "messaging/mismatched-credential"
	ErrCodeRateExceeded       = "messaging/message-rate-exceeded"
	ErrCodeUnavailable        = "messaging/server-unavailable"
	ErrCodeInternal           = "messaging/internal-error"
	ErrCodeThirdPartyAuth     = "messaging/third-party-auth-error"
	ErrCodeUnknown            = "unknown-error"
)

// DeliveryOptions apply to every message sent.
type DeliveryOptions struct {
	Priority string
	TTL      time.Duration
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Outcome is the per-message delivery report.
type Outcome struct {
	MessageID string `json:"messageId,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

type Result struct {
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	Results      []Outcome `json:"results"`
}

// FirstErrorCode returns the code of the first reported error, or
// ErrCodeUnknown when the provider gave none.
func (r *Result) FirstErrorCode() string {
	if r == nil || len(r.Results) == 0 {
		return ErrCodeUnknown
	}
	if e := r.Results[0].Error; e != nil && e.Code != "" {
		return e.Code
	}
	return ErrCodeUnknown
}

// Sender delivers a data payload to one device identifier. A non-nil error
// means the provider could not be reached; per-device failures are
// reported through Result.
type Sender interface {
	Send(ctx context.Context, identifier string, data map[string]string, opts DeliveryOptions) (*Result, error)
}
