package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"

	"gareport/internal/config"
	"gareport/internal/logger"
)

// Transport sends JSON requests to Google REST APIs. Calls are throttled by
// a token bucket and "rate limit exceeded" responses are retried with
// exponential backoff; every other failure is classified once, here
type Transport struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewTransport wraps an authorized HTTP client
func NewTransport(client *http.Client, cfg config.RateLimitConfig) *Transport {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Transport{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		sleep:      sleepContext,
	}
}

// HTTPClient returns the underlying authorized client
func (t *Transport) HTTPClient() *http.Client {
	return t.client
}

func (t *Transport) get(ctx context.Context, api, url string, out interface{}) error {
	return t.do(ctx, api, http.MethodGet, url, nil, out)
}

func (t *Transport) post(ctx context.Context, api, url string, in, out interface{}) error {
	return t.do(ctx, api, http.MethodPost, url, in, out)
}

func (t *Transport) do(ctx context.Context, api, method, url string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		err := t.roundTrip(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}

		if IsRateLimited(err) && attempt < t.maxRetries {
			delay := backoff(attempt)
			logger.Warn().Str("api", api).Int("attempt", attempt+1).Dur("delay", delay).Msg("Rate limit exceeded, retrying")
			if serr := t.sleep(ctx, delay); serr != nil {
				return serr
			}
			continue
		}
		return Classify(api, err)
	}
}

func (t *Transport) roundTrip(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// backoff returns 2^attempt seconds plus up to one second of jitter
func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt)*time.Second + time.Duration(rand.Int63n(int64(time.Second)))
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
