package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
)

// HTTPCallbackSender posts terminal job notifications as JSON. One attempt,
// short timeout: the receiver treats callbacks as informational, so chasing
// delivery is not worth holding a goroutine for.
type HTTPCallbackSender struct {
	httpClient *http.Client
}

// NewHTTPCallbackSender creates a callback sender.
func NewHTTPCallbackSender() *HTTPCallbackSender {
	return &HTTPCallbackSender{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one callback.
func (s *HTTPCallbackSender) Send(ctx context.Context, callbackURL string, payload model.CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrCallbackDelivery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d from %s", common.ErrCallbackDelivery, resp.StatusCode, callbackURL)
	}
	return nil
}
