package service

import (
	"context"
	"log/slog"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
)

const telephonyService = "cloudonix"

// Dialer creates outbound call sessions on the telephony platform.
type Dialer interface {
	CreateOutgoingCall(ctx context.Context, domain, msisdn, destination string) (string, error)
}

// CallService originates calls on behalf of device owners
type CallService struct {
	dialer Dialer
	domain string
	logger *slog.Logger
}

func NewCallService(dialer Dialer, domain string, logger *slog.Logger) *CallService {
	return &CallService{
		dialer: dialer,
		domain: domain,
		logger: logger.With("component", "CallService"),
	}
}

// Originate dials destination from msisdn and returns the session token.
// Every telephony failure is reported as an upstream error.
func (s *CallService) Originate(ctx context.Context, req model.DialRequest) (*model.DialResponse, error) {
	if req.Msisdn == "" {
		return nil, apperror.Validation("Missing 'msisdn'")
	}
	if req.Destination == "" {
		return nil, apperror.Validation("Missing 'destination'")
	}
	if s.domain == "" {
		return nil, &apperror.UpstreamError{Service: telephonyService, Message: "Telephony domain is not configured"}
	}

	token, err := s.dialer.CreateOutgoingCall(ctx, s.domain, req.Msisdn, req.Destination)
	if err != nil {
		s.logger.Error("failed to originate call", "msisdn", req.Msisdn, "destination", req.Destination, "error", err)
		return nil, &apperror.UpstreamError{Service: telephonyService, Message: "Failed to create outgoing call", Err: err}
	}

	s.logger.Info("outgoing call created", "msisdn", req.Msisdn, "destination", req.Destination, "session", token)
	return &model.DialResponse{Session: token}, nil
}
