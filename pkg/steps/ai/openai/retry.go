package openai

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-go-golems/persona/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RetryTransport retries requests on connection failures, rate limiting and
// server errors, with exponential backoff and jitter.
//
// Requests aborted by their context or by a timeout are never retried.
// When retries are exhausted on a retryable status, the last response is
// returned as is so the caller can inspect it.
type RetryTransport struct {
	Base     http.RoundTripper
	Settings *settings.RetrySettings

	random func() float64
}

type RetryTransportOption func(*RetryTransport)

// WithRandom replaces the jitter source, which defaults to math/rand.
func WithRandom(f func() float64) RetryTransportOption {
	return func(t *RetryTransport) {
		t.random = f
	}
}

func NewRetryTransport(base http.RoundTripper, s *settings.RetrySettings, options ...RetryTransportOption) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if s == nil {
		s = settings.NewRetrySettings()
	}
	ret := &RetryTransport{
		Base:     base,
		Settings: s,
		random:   rand.Float64,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for retries := 0; ; retries++ {
		attempt := req
		if retries > 0 {
			var err error
			attempt, err = rewindRequest(req)
			if err != nil {
				return nil, err
			}
		}

		resp, err := t.Base.RoundTrip(attempt)
		if !shouldRetry(ctx, resp, err) || !t.Settings.Allows(retries) {
			return resp, err
		}

		delay := t.Settings.Delay(retries+1, t.random())
		ev := log.Debug().Int("retry", retries+1).Dur("delay", delay).Str("url", req.URL.String())
		if err != nil {
			ev = ev.Err(err)
		} else {
			ev = ev.Int("status", resp.StatusCode)
			drainAndClose(resp.Body)
		}
		ev.Msg("retrying request")

		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// shouldRetry retries network failures and retryable statuses. A request
// whose own context is done is never retried; http.Client.Timeout is
// enforced through that context, so client-side timeouts end here too.
// Dial and handshake timeouts of the transport are network failures and
// are retried.
func shouldRetry(ctx context.Context, resp *http.Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	return IsRetryableStatus(resp.StatusCode)
}

func rewindRequest(req *http.Request) (*http.Request, error) {
	ret := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return ret, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("cannot retry request with a non-replayable body")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, errors.Wrap(err, "could not rewind request body")
	}
	ret.Body = body
	return ret, nil
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBodySize))
	_ = body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
