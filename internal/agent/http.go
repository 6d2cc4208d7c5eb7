package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/imkarma/logiri/internal/errors"
)

const maxErrorBody = 800

// postJSON sends body and decodes a 2xx response into out. Transport
// failures and non-2xx responses become ErrAssistant.
func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrAssistant, "API call failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(errors.ErrAssistant, "read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrAssistant, "API returned status %d: %s", resp.StatusCode, errorMessage(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(errors.ErrAssistant, "parse response: %v", err)
	}
	return nil
}

// errorMessage extracts error.message, which both Anthropic and OpenAI use.
func errorMessage(data []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if len(data) > maxErrorBody {
		return string(data[:maxErrorBody]) + "..."
	}
	return string(data)
}
