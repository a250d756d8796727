package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/push"
)

const (
	pushService    = "push"
	cleanupTimeout = 5 * time.Second
)

// NotificationService wakes registered devices for incoming calls.
type NotificationService struct {
	devices     *DeviceService
	sender      push.Sender
	opts        push.DeliveryOptions
	sendTimeout time.Duration
	cleanups    sync.WaitGroup
	logger      *slog.Logger
}

// NewNotificationService builds the dispatcher. sender may be nil, in which
// case every notification fails as an upstream error.
func NewNotificationService(devices *DeviceService, sender push.Sender, opts push.DeliveryOptions, sendTimeout time.Duration, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		devices:     devices,
		sender:      sender,
		opts:        opts,
		sendTimeout: sendTimeout,
		logger:      logger.With("component", "NotificationService"),
	}
}

// BuildRingingURL returns the URL the device calls back to join the session.
func BuildRingingURL(req model.IncomingCallRequest) string {
	return fmt.Sprintf("%s/calls/%s/ringing/%s/%s", req.Endpoint, req.Domain, req.Subscriber.Msisdn, req.Session)
}

// NotifyIncoming pushes a call notification to the device subscribed under
// the dialled number. A token the provider reports as no longer registered
// is removed in the background; the call still fails.
func (s *NotificationService) NotifyIncoming(ctx context.Context, req model.IncomingCallRequest) error {
	if req.Session == "" {
		return apperror.Validation("Not a valid Cloudonix registration-free message!")
	}

	device, err := s.devices.Lookup(ctx, req.Dnid)
	if err != nil {
		return err
	}

	notification := model.CallNotification{
		Session:    req.Session,
		CallerID:   req.CallerID,
		RingingURL: BuildRingingURL(req),
	}
	s.logger.Info("sending push notification",
		"device_id", device.ID,
		"identifier", device.Identifier,
		"session", notification.Session,
		"caller_id", notification.CallerID,
		"ringing_url", notification.RingingURL,
	)

	if s.sender == nil {
		return &apperror.UpstreamError{Service: pushService, Message: "Push notifications are not configured"}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	result, err := s.sender.Send(sendCtx, device.Identifier, notification.Data(), s.opts)
	if err != nil {
		return &apperror.UpstreamError{Service: pushService, Message: "Failed to send push notification", Err: err}
	}
	s.logger.Info("push result", "success_count", result.SuccessCount, "failure_count", result.FailureCount)

	if result.FailureCount > 0 {
		code := result.FirstErrorCode()
		if code == push.ErrCodeTokenNotRegistered {
			s.removeStale(device.Identifier)
		}
		return &apperror.UpstreamError{
			Service: pushService,
			Message: fmt.Sprintf("Failed to send push notification due to %s", code),
		}
	}
	return nil
}

// removeStale deletes a dead device without holding up the response.
func (s *NotificationService) removeStale(identifier string) {
	s.cleanups.Add(1)
	go func() {
		defer s.cleanups.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.devices.Deregister(ctx, identifier); err != nil {
			s.logger.Error("failed to remove unregistered device", "identifier", identifier, "error", err)
		}
	}()
}

// Wait blocks until background device cleanups have finished.
func (s *NotificationService) Wait() {
	s.cleanups.Wait()
}
