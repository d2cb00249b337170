// Package camunda starts review process instances on a Zeebe broker.
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grant-intake/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client is a Zeebe gateway connection that retries transient failures.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the exponential backoff between attempts.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// delay is the wait before retry number attempt+1.
func (r *RetryConfig) delay(attempt int) time.Duration {
	d := r.BaseDelay * time.Duration(1<<attempt)
	if d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// NewClient connects to a local plaintext gateway with default timeouts.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
	})
}

// NewClientWithConfig dials the gateway and fails unless a topology request
// succeeds within ConnectionTimeout.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}
	if err := c.Ping(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// StartProcess creates an instance of the latest deployed version of
// processID and returns its instance key.
func (c *Client) StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	var key int64
	err := c.withRetry(ctx, "create-instance", func(ctx context.Context) error {
		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromMap(variables)
		if err != nil {
			return fmt.Errorf("invalid process variables: %w", err)
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
		resp, err := cmd.Send(reqCtx)
		if err != nil {
			return err
		}
		key = resp.GetProcessInstanceKey()
		return nil
	})
	return key, err
}

// withRetry runs op until it succeeds, fails permanently, exhausts
// MaxRetries or ctx is done. Failures come back as StandardErrors.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt >= policy.MaxRetries {
			return mapZeebeError(err, op, attempt+1)
		}

		select {
		case <-time.After(policy.delay(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("zeebe %s cancelled after %d attempts: %w", op, attempt+1, ctx.Err())
		}
	}
}

var retryableCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
}

// isRetryableZeebeError classifies gRPC status codes, falling back to the
// message for transport errors that carry no status.
func isRetryableZeebeError(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return retryableCodes[s.Code()]
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"deadline exceeded",
		"timeout",
		"unavailable",
		"unreachable",
		"broken pipe",
		"resource_exhausted",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, op string, attempts int) error {
	prefix := fmt.Sprintf("zeebe %s failed", op)
	if attempts > 1 {
		prefix += fmt.Sprintf(" after %d attempts", attempts)
	}

	code := status.Code(err)
	lower := strings.ToLower(err.Error())
	switch {
	case code == codes.NotFound || strings.Contains(lower, "not found") || strings.Contains(lower, "notfound"):
		se := errors.NewExternalServiceError("zeebe", fmt.Errorf("%s: process not deployed: %w", prefix, err))
		se.Retryable = false
		return se
	case code == codes.PermissionDenied || code == codes.Unauthenticated || code == codes.InvalidArgument ||
		strings.Contains(lower, "invalid process variables"):
		se := errors.NewExternalServiceError("zeebe", fmt.Errorf("%s: %w", prefix, err))
		se.Retryable = false
		return se
	default:
		return errors.NewExternalServiceError("zeebe", fmt.Errorf("%s: %w", prefix, err))
	}
}

// Ping sends a topology request.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology request failed: %w", err)
	}
	return nil
}
