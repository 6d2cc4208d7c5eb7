package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/errors"
)

// snippetLen caps how much of an upstream body goes into logs and errors.
const snippetLen = 800

// maxBody bounds how much of a response is read.
const maxBody = 64 << 20

func snippet(b []byte) string {
	if len(b) > snippetLen {
		return string(b[:snippetLen]) + "..."
	}
	return string(b)
}

// postJSON sends body as JSON and returns the raw response body. Non-2xx
// responses are logged with a body snippet and returned as ErrUpstream.
func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, body any, log zerolog.Logger) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "read %s: %v", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("response", snippet(data)).
			Msg("upstream returned an error")
		return nil, errors.Wrapf(errors.ErrUpstream, "HTTP %d: %s", resp.StatusCode, apiMessage(data))
	}
	return data, nil
}

// apiMessage pulls error.message out of a Google error body, falling back
// to a snippet of the body.
func apiMessage(data []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		if e.Error.Status != "" {
			return e.Error.Status + ": " + e.Error.Message
		}
		return e.Error.Message
	}
	if len(data) == 0 {
		return "(empty body)"
	}
	return snippet(data)
}
