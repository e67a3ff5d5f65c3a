// Package fetch transfers remote bytes for the mirror engine.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"coursesync/internal/config"
	"coursesync/internal/mirror"
	"coursesync/internal/progress"
)

const (
	chunkSize      = 4096
	defaultBackoff = time.Second
	maxPrealloc    = 8 << 20
)

var errEmptyRef = errors.New("empty download reference")

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPFetcher downloads documents over HTTP. Transfers are registered with
// a progress registry, throttled to a byte rate and retried with a linear
// backoff.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	retries   int
	backoff   time.Duration
	timeout   time.Duration
	userAgent string
	progress  *progress.Registry
	idgen     mirror.IDGenerator
	logger    mirror.Logger
}

var _ mirror.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher from the network settings. registry
// may be nil.
func NewHTTPFetcher(cfg config.NetworkConfig, registry *progress.Registry, idgen mirror.IDGenerator, logger mirror.Logger) *HTTPFetcher {
	if logger == nil {
		logger = mirror.NewNopLogger()
	}
	f := &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		retries:   cfg.Retries,
		backoff:   defaultBackoff,
		timeout:   cfg.RequestTimeout(),
		userAgent: cfg.UserAgent,
		progress:  registry,
		idgen:     idgen,
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < chunkSize {
			burst = chunkSize
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return f
}

// Fetch downloads ref. A cancelled ctx is returned as ctx.Err().
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errEmptyRef
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * f.backoff
			f.logger.Debug("retrying fetch", "url", ref, "attempt", attempt, "wait", wait, "error", lastErr)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		data, err := f.fetchOnce(ctx, ref)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetching %s: giving up after %d attempts: %w", ref, f.retries+1, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, ref string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, &permanentError{fmt.Errorf("building request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, chunkSize))
		return nil, &StatusError{URL: ref, StatusCode: resp.StatusCode}
	}

	key, err := f.register(ref, resp.ContentLength)
	if err != nil {
		return nil, &permanentError{err}
	}
	return f.readBody(ctx, key, resp.Body, resp.ContentLength)
}

func (f *HTTPFetcher) readBody(ctx context.Context, key string, body io.Reader, total int64) ([]byte, error) {
	var out bytes.Buffer
	// Content-Length is only a hint; larger bodies grow the buffer as they arrive.
	if total > 0 && total <= maxPrealloc {
		out.Grow(int(total))
	}
	buf := make([]byte, chunkSize)
	var done int64

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				if err := f.limiter.WaitN(ctx, n); err != nil {
					f.report(key, done, true)
					return nil, err
				}
			}
			out.Write(buf[:n])
			done += int64(n)
			f.report(key, done, false)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.report(key, done, true)
			return nil, fmt.Errorf("reading body: %w", readErr)
		}
	}

	f.report(key, done, true)
	return out.Bytes(), nil
}

// register tracks the transfer under its URL, or under a generated key
// named after the URL when the same URL is already in flight.
func (f *HTTPFetcher) register(ref string, total int64) (string, error) {
	if f.progress == nil {
		return "", nil
	}
	key, err := f.progress.Register(ref, total, "")
	if errors.Is(err, progress.ErrDuplicateKey) && f.idgen != nil {
		key, err = f.progress.RegisterNamed(f.idgen.New(), ref, total)
	}
	if err != nil {
		return "", fmt.Errorf("registering transfer: %w", err)
	}
	return key, nil
}

func (f *HTTPFetcher) report(key string, done int64, complete bool) {
	if f.progress == nil || key == "" {
		return
	}
	// Reaching the registered total already removes the item.
	if err := f.progress.Report(key, done, complete); err != nil && !errors.Is(err, progress.ErrUnknownKey) {
		f.logger.Warn("progress report failed", "key", key, "error", err)
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
