package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type errClass int

const (
	errPermanent errClass = iota
	// errThrottled requests were rejected before being applied.
	errThrottled
	// errTransient requests may or may not have been applied.
	errTransient
)

var throttleCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ThrottlingException":                    true,
	"TooManyRequestsException":               true,
}

var transientCodes = map[string]bool{
	"InternalServerError": true,
	"ServiceUnavailable":  true,
	"RequestTimeout":      true,
}

func classify(err error) errClass {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errThrottled
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errPermanent
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case throttleCodes[apiErr.ErrorCode()]:
			return errThrottled
		case transientCodes[apiErr.ErrorCode()]:
			return errTransient
		case apiErr.ErrorFault() == smithy.FaultServer:
			return errTransient
		}
		return errPermanent
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errTransient
	}
	return errPermanent
}

// call runs fn through the breaker, retrying throttled calls always and
// transient failures only when the call is idempotent.
func (c *Client) call(ctx context.Context, op string, idempotent bool, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := c.execute(ctx, fn)
		if err == nil {
			return nil
		}
		class := classify(err)
		retryable := class == errThrottled || (class == errTransient && idempotent)
		if !retryable {
			if class == errTransient {
				return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
			}
			return translate(op, err)
		}
		if attempt >= c.opts.maxAttempts {
			c.opts.log.Warn("retry budget exhausted",
				zap.String("op", op),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return fmt.Errorf("%w: %s after %d attempts: %v", store.ErrUnavailable, op, attempt, err)
		}
		c.opts.log.Debug("retrying dynamodb call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if err := store.Sleep(ctx, c.opts.backoff(attempt)); err != nil {
			return err
		}
	}
}

func (c *Client) execute(ctx context.Context, fn func(context.Context) error) error {
	if c.cb == nil {
		return fn(ctx)
	}
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

func translate(op string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrConditionFailed
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
		return fmt.Errorf("%w: %s: %s", store.ErrInvalidArgument, op, apiErr.ErrorMessage())
	}
	return fmt.Errorf("%s: %w", op, err)
}
