package eodhd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// retryTransport retries network errors, 429 and 5xx with exponential backoff.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries uint64
	initial    time.Duration
}

func newRetryTransport(base http.RoundTripper, maxRetries uint64, initial time.Duration) *retryTransport {
	return &retryTransport{base: base, maxRetries: maxRetries, initial: initial}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempt := 0
	op := func() error {
		attempt++
		r, err := t.base.RoundTrip(req)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
			r.Body.Close()
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, r.Status)
		}
		resp = r
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.initial
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, t.maxRetries), req.Context())

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		log.Warn().
			Str("path", req.URL.Path).
			Int("attempt", attempt).
			Dur("wait", wait).
			Err(err).
			Msg("provider request failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
