package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/pkg/utils"
)

// HTTPIndex is a Retriever backed by a remote index service.
//
// Request:  POST {base}/search {"query": "...", "top_k": 3, "return_content": false}
// Response: {"results": [{"ref_id": "...", "hash": "...", "chunk_idx": 0, "metadata": {...}}]}
type HTTPIndex struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// HTTPOption configures an HTTPIndex.
type HTTPOption func(*HTTPIndex)

// WithHTTPClient sets the client used for search calls.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPIndex) { h.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) HTTPOption {
	return func(h *HTTPIndex) { h.logger = l }
}

// NewHTTPIndex returns a Retriever calling the index service at baseURL.
func NewHTTPIndex(baseURL string, opts ...HTTPOption) *HTTPIndex {
	h := &HTTPIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = utils.OrNop(h.logger)
	return h
}

type searchRequest struct {
	Query         string `json:"query"`
	TopK          int    `json:"top_k"`
	ReturnContent bool   `json:"return_content"`
}

// searchHit deliberately has no content field: anything else in the payload is dropped by the decoder.
type searchHit struct {
	RefID    string                   `json:"ref_id"`
	ID       string                   `json:"id"`
	Hash     string                   `json:"hash"`
	ChunkIdx int                      `json:"chunk_idx"`
	Metadata models.ReferenceMetadata `json:"metadata"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

// RetrieveReferences calls the remote search endpoint. Non-2xx responses and transport
// failures are returned as *models.ProviderError.
func (h *HTTPIndex) RetrieveReferences(ctx context.Context, query string, topK int) (*models.RetrievalResult, error) {
	result := &models.RetrievalResult{
		References: []models.DocumentReference{},
		Query:      query,
		Timestamp:  time.Now().UTC(),
	}
	if topK <= 0 {
		return result, nil
	}

	body, err := json.Marshal(searchRequest{Query: query, TopK: topK, ReturnContent: false})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, models.NewProviderError("retrieval", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, models.NewProviderError("retrieval", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, models.NewProviderError("retrieval",
			fmt.Errorf("index returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, models.NewProviderError("retrieval", fmt.Errorf("decode response: %w", err))
	}

	for _, hit := range payload.Results {
		if len(result.References) == topK {
			break
		}
		id := hit.RefID
		if id == "" {
			id = hit.ID
		}
		if hit.Hash == "" {
			h.logger.Warn("Dropping reference without content hash", zap.String("ref_id", id))
			continue
		}
		result.References = append(result.References, models.DocumentReference{
			RefID:       id,
			ContentHash: hit.Hash,
			ChunkIndex:  hit.ChunkIdx,
			Metadata:    hit.Metadata,
		})
	}
	return result, nil
}
