package push

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/config"
	"google.golang.org/api/option"
)

// MessagingClient is the subset of *messaging.Client the sender uses.
type MessagingClient interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// FCMSender sends call notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client MessagingClient
	codeOf func(error) string
	logger *slog.Logger
}

// NewFCMSender initialises Firebase from a service account file. It
// returns nil when no credentials are configured.
func NewFCMSender(ctx context.Context, cfg config.FirebaseConfig, logger *slog.Logger) (*FCMSender, error) {
	if cfg.CredentialsFile == "" {
		logger.Warn("⚠️ Firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID},
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.Info("✅ Firebase FCM initialized", "project_id", cfg.ProjectID)
	return NewSender(client, logger), nil
}

// NewSender wraps an existing messaging client.
func NewSender(client MessagingClient, logger *slog.Logger) *FCMSender {
	return &FCMSender{
		client: client,
		codeOf: errorCode,
		logger: logger.With("component", "FCMSender"),
	}
}

// Send delivers data to a single registration token.
func (s *FCMSender) Send(ctx context.Context, identifier string, data map[string]string, opts DeliveryOptions) (*Result, error) {
	msg := buildMessage(identifier, data, opts)

	br, err := s.client.SendEach(ctx, []*messaging.Message{msg})
	if err != nil {
		return nil, fmt.Errorf("fcm transport failed: %w", err)
	}

	result := &Result{
		SuccessCount: br.SuccessCount,
		FailureCount: br.FailureCount,
		Results:      make([]Outcome, 0, len(br.Responses)),
	}
	for _, resp := range br.Responses {
		if resp.Success {
			result.Results = append(result.Results, Outcome{MessageID: resp.MessageID})
			continue
		}
		code := s.codeOf(resp.Error)
		s.logger.Warn("⚠️ FCM delivery failed", "identifier", identifier, "code", code, "error", resp.Error)
		outcome := Outcome{Error: &Error{Code: code}}
		if resp.Error != nil {
			outcome.Error.Message = resp.Error.Error()
		}
		result.Results = append(result.Results, outcome)
	}
	return result, nil
}

func buildMessage(identifier string, data map[string]string, opts DeliveryOptions) *messaging.Message {
	ttl := opts.TTL
	msg := &messaging.Message{
		Token: identifier,
		Data:  data,
		Android: &messaging.AndroidConfig{
			Priority: opts.Priority,
			TTL:      &ttl,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": apnsPriority(opts.Priority),
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{ContentAvailable: true},
			},
		},
	}
	if ttl > 0 {
		msg.APNS.Headers["apns-expiration"] = strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	}
	return msg
}

func apnsPriority(priority string) string {
	if priority == "high" {
		return "10"
	}
	return "5"
}

// errorCode maps an FCM SDK error onto the provider's string error codes.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ErrCodeUnknown
	case messaging.IsRegistrationTokenNotRegistered(err):
		return ErrCodeTokenNotRegistered
	case messaging.IsInvalidArgument(err):
		return ErrCodeInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return ErrCodeMismatchedSender
	case messaging.IsQuotaExceeded(err):
		return ErrCodeRateExceeded
	case messaging.IsUnavailable(err):
		return ErrCodeUnavailable
	case messaging.IsInternal(err):
		return ErrCodeInternal
	case messaging.IsThirdPartyAuthError(err):
		return ErrCodeThirdPartyAuth
	}
	return ErrCodeUnknown
}
