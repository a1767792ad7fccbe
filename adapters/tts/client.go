package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
)

// maxErrorBody bounds how much of a failed response is logged
const maxErrorBody = 4096

// synthesisRequest is one JSON POST against a speech provider
type synthesisRequest struct {
	provider string
	url      string
	headers  map[string]string
	body     interface{}
}

// post sends the request and returns the raw response body. Every failure is
// wrapped with domain.ErrSynthesis.
func post(ctx context.Context, client *http.Client, logger *zap.Logger, req synthesisRequest) ([]byte, error) {
	payload, err := json.Marshal(req.body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal %s request: %w", domain.ErrSynthesis, req.provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create HTTP request: %w", domain.ErrSynthesis, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request failed: %w", domain.ErrSynthesis, req.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Error("Speech provider returned error",
			zap.String("provider", req.provider),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("%w: %s returned status %d", domain.ErrSynthesis, req.provider, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading %s response: %w", domain.ErrSynthesis, req.provider, err)
	}
	return data, nil
}

func requireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text cannot be empty", domain.ErrSynthesis)
	}
	return nil
}
