package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a provider response is read into memory.
const maxResponseBytes = 8 << 20

// JSONPoster sends one JSON request to a provider endpoint.
type JSONPoster struct {
	Client   *http.Client
	Provider string
	Logger   *slog.Logger
}

// Post marshals body, sends it to url and returns the raw response body. Transport failures and
// non-2xx statuses come back as *GatewayError; the body is still returned for non-2xx replies.
func (p JSONPoster) Post(ctx context.Context, reqID, url string, headers map[string]string, body any) ([]byte, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", p.Provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", p.Provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Warn("llm.http.transport_error", "req_id", reqID, "provider", p.Provider,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &GatewayError{Provider: p.Provider, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	log.Debug("llm.http.exchange",
		"req_id", reqID,
		"provider", p.Provider,
		"sent_bytes", len(payload),
		"status", resp.StatusCode,
		"received_bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	switch {
	case readErr != nil:
		return nil, &GatewayError{Provider: p.Provider, StatusCode: resp.StatusCode, Message: "read body: " + readErr.Error(), Err: readErr}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return raw, &GatewayError{Provider: p.Provider, StatusCode: resp.StatusCode, Message: ProviderErrorText(raw)}
	}
	return raw, nil
}
