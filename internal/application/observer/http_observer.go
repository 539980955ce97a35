package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPCallbackObserver sends an HTTP callback for every notebook
// lifecycle event, with exponential-backoff retry.
type HTTPCallbackObserver struct {
	name         string
	url          string
	method       string
	headers      map[string]string
	filter       EventFilter
	client       *http.Client
	maxRetries   int
	retryDelay   time.Duration
	retryBackoff float64
}

type HTTPObserverOption func(*HTTPCallbackObserver)

func WithHTTPMethod(method string) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) { o.method = method }
}

func WithHTTPHeaders(headers map[string]string) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) { o.headers = headers }
}

func WithHTTPFilter(filter EventFilter) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) { o.filter = filter }
}

func WithHTTPTimeout(timeout time.Duration) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) { o.client.Timeout = timeout }
}

func WithHTTPRetry(maxRetries int, delay time.Duration, backoff float64) HTTPObserverOption {
	return func(o *HTTPCallbackObserver) {
		o.maxRetries = maxRetries
		o.retryDelay = delay
		o.retryBackoff = backoff
	}
}

func NewHTTPCallbackObserver(url string, opts ...HTTPObserverOption) *HTTPCallbackObserver {
	obs := &HTTPCallbackObserver{
		name:         "http_callback",
		url:          url,
		method:       "POST",
		headers:      make(map[string]string),
		client:       &http.Client{Timeout: 10 * time.Second},
		maxRetries:   3,
		retryDelay:   time.Second,
		retryBackoff: 2.0,
	}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

func (o *HTTPCallbackObserver) Name() string { return o.name }

func (o *HTTPCallbackObserver) Filter() EventFilter { return o.filter }

func (o *HTTPCallbackObserver) OnEvent(ctx context.Context, event Event) error {
	return o.sendWithRetry(ctx, o.buildPayload(event))
}

func (o *HTTPCallbackObserver) buildPayload(event Event) map[string]any {
	payload := map[string]any{
		"event_type":  string(event.Type),
		"notebook_id": event.NotebookID,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
		"status":      event.Status,
	}
	if event.CellID != nil {
		payload["cell_id"] = *event.CellID
	}
	if event.CellType != nil {
		payload["cell_type"] = *event.CellType
	}
	if event.CascadeIndex != nil {
		payload["cascade_index"] = *event.CascadeIndex
	}
	if event.CascadeTotal != nil {
		payload["cascade_total"] = *event.CascadeTotal
	}
	if event.Error != nil {
		payload["error"] = event.Error.Error()
	}
	if len(event.Reads) > 0 {
		payload["reads"] = event.Reads
	}
	if len(event.Writes) > 0 {
		payload["writes"] = event.Writes
	}
	return payload
}

func (o *HTTPCallbackObserver) sendWithRetry(ctx context.Context, payload map[string]any) error {
	var lastErr error
	delay := o.retryDelay

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * o.retryBackoff)
		}
		if err := o.send(ctx, payload); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("http callback failed after %d attempts: %w", o.maxRetries+1, lastErr)
}

func (o *HTTPCallbackObserver) send(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, o.method, o.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range o.headers {
		req.Header.Set(key, value)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http callback returned status %d", resp.StatusCode)
	}
	return nil
}
