// Package embedding holds helpers shared by the embedding provider
// adapters: response shape validation and retrying JSON requests.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DefaultMaxRetries is the number of retries after a 429 or 5xx response.
const DefaultMaxRetries = 2

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 512

// CheckShape verifies a provider returned exactly want vectors, each of
// dim elements. Any violation wraps domain.ErrEmbeddingFailed.
func CheckShape(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d inputs", domain.ErrEmbeddingFailed, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d is empty", domain.ErrEmbeddingFailed, i)
		}
		if dim > 0 && len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", domain.ErrEmbeddingFailed, i, len(v), dim)
		}
	}
	return nil
}

// ToFloat32 converts a JSON-decoded vector.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// RetryDelay returns the exponential backoff for an attempt, capped at 5s.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// PostJSON sends body as JSON and returns the response payload. 429 and
// 5xx responses and transport errors are retried up to maxRetries times,
// honouring Retry-After seconds. Other non-2xx responses return a
// *StatusError immediately.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, maxRetries int) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	var last *retryable
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if last != nil {
			if err := sleep(ctx, last.wait(attempt-1)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		payload, err := do(client, req)
		if err == nil {
			return payload, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.As(err, &last) {
			return nil, err
		}
	}
	return nil, last.err
}

// retryable marks an error worth another attempt.
type retryable struct {
	err        error
	retryAfter time.Duration
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &retryable{err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryable{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return payload, nil
	}

	se := &StatusError{Status: resp.StatusCode, Body: truncate(payload)}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		var after time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			after = time.Duration(secs) * time.Second
		}
		return nil, &retryable{err: se, retryAfter: after}
	}
	return nil, se
}

func (r *retryable) wait(attempt int) time.Duration {
	if r.retryAfter > 0 {
		return r.retryAfter
	}
	return RetryDelay(attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
