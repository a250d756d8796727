// Package telephony calls the Cloudonix REST API to originate calls.
package telephony

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const outgoingCallPath = "/calls/{domain}/outgoing/{msisdn}"

type outgoingCallRequest struct {
	CallerID    string `json:"callerId"`
	Destination string `json:"destination"`
}

type outgoingCallResponse struct {
	Token string `json:"token"`
}

// Client originates outbound calls. 5xx responses and transport failures
// count towards the circuit breaker; 4xx responses do not.
type Client struct {
	http   *resty.Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

func NewClient(cfg config.TelephonyConfig, logger *slog.Logger) *Client {
	logger = logger.With("component", "TelephonyClient")

	httpClient := resty.New().
		SetBaseURL(baseURL(cfg.APIHost)).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")

	failures := uint32(1)
	if cfg.BreakerFailures > 1 {
		failures = uint32(cfg.BreakerFailures)
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cloudonix-api",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "cb_name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{http: httpClient, cb: cb, logger: logger}
}

// baseURL accepts a bare host (https is implied) or a full URL.
func baseURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// CreateOutgoingCall asks the platform to call destination on behalf of
// msisdn and returns the new session token.
func (c *Client) CreateOutgoingCall(ctx context.Context, domain, msisdn, destination string) (string, error) {
	start := time.Now()

	result, err := c.cb.Execute(func() (any, error) {
		var out outgoingCallResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"domain": domain, "msisdn": msisdn}).
			SetBody(outgoingCallRequest{CallerID: msisdn, Destination: destination}).
			SetResult(&out).
			Post(outgoingCallPath)
		if err != nil {
			return nil, &ConnectionError{Cause: err}
		}

		if resp.IsError() {
			apiErr := &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
			c.logger.Error("telephony api error",
				"http_status", apiErr.StatusCode,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			if apiErr.IsServerError() {
				return nil, apiErr
			}
			// Client errors are returned as a value so they do not trip the breaker.
			return apiErr, nil
		}

		c.logger.Debug("outgoing call created", "msisdn", msisdn, "latency_ms", time.Since(start).Milliseconds())
		return &out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}

	switch v := result.(type) {
	case *APIError:
		return "", v
	case *outgoingCallResponse:
		if v.Token == "" {
			return "", ErrEmptyToken
		}
		return v.Token, nil
	}
	return "", ErrEmptyToken
}
