package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/weaveai/weave/internal/models"
)

// HTTPSink posts each entry to a log service at {baseURL}/enquiries as
// {"id": ..., "timestamp": ..., <data fields>}.
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSink returns a sink for the log service at baseURL.
func NewHTTPSink(baseURL string, client *http.Client) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSink{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Append posts entry. Non-2xx responses are a *models.ProviderError.
func (s *HTTPSink) Append(ctx context.Context, entry models.AuditEntry) error {
	payload := make(map[string]interface{}, len(entry.Data)+2)
	for k, v := range entry.Data {
		payload[k] = v
	}
	payload["id"] = entry.EnquiryID
	payload["timestamp"] = entry.Timestamp.UTC()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/enquiries", bytes.NewReader(body))
	if err != nil {
		return models.NewProviderError("audit", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return models.NewProviderError("audit", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.NewProviderError("audit", fmt.Errorf("log service returned %d", resp.StatusCode))
	}
	return nil
}

// Close is a no-op.
func (s *HTTPSink) Close() error { return nil }
