package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/observability"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

// Policy bounds the retry loop around one logical upstream call.
type Policy struct {
	Service     string
	MaxRetries  int
	BaseBackoff time.Duration
	MaxSleep    time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = time.Second
	}
	if p.MaxSleep <= 0 {
		p.MaxSleep = 10 * time.Second
	}
	return p
}

// AttemptFunc performs a single request. It returns the raw response (may be nil on transport
// errors) so Retry-After can be honored.
type AttemptFunc func(ctx context.Context) (*http.Response, error)

// Do runs fn until it succeeds, returns a non-retryable error, or retries are exhausted.
// Exhausted retries are reported as ErrUpstreamUnavailable.
func Do(ctx context.Context, log *logger.Logger, p Policy, fn AttemptFunc) error {
	p = p.withDefaults()
	backoff := p.BaseBackoff

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		resp, err := fn(ctx)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		observability.Current().ObserveUpstream(p.Service, status, time.Since(start))

		if err == nil {
			return nil
		}
		if !httpx.IsRetryableError(err) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == p.MaxRetries {
			return fmt.Errorf("%s: %w: %w", p.Service, apperrors.ErrUpstreamUnavailable, err)
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, p.MaxSleep)
		sleepFor = httpx.JitterSleep(sleepFor)

		if log != nil {
			log.Warn("upstream request retrying",
				"service", p.Service,
				"attempt", attempt+1,
				"max_retries", p.MaxRetries,
				"sleep", sleepFor.String(),
				"error", err.Error(),
			)
		}
		observability.Current().IncUpstreamRetry(p.Service)

		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// ReadResponse drains and closes resp.Body, returning a *httpx.StatusError for non-2xx codes.
func ReadResponse(service string, resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()
	if limit <= 0 {
		limit = 32 << 20
	}
	raw, err := readAllLimit(resp, limit)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, httpx.NewStatusError(service, resp, raw)
	}
	return raw, nil
}
