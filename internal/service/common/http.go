//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
)

// presencePath is the multiplexed device endpoint.
const presencePath = "/api/presence"

// maxResponseBytes caps a decoded response body.
const maxResponseBytes = 1 << 20

// HTTPClient talks to the alarm server's JSON API.
type HTTPClient struct {
	// baseURL is the server root, without a trailing slash.
	baseURL string
	// http performs the requests.
	http *http.Client
	// options holds the call timeout.
	options *options
}

// NewHTTPClient creates a client for the server rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errAddressRequired
	}

	return &HTTPClient{
		baseURL: baseURL,
		http:    new(http.Client),
		options: newOptions(opts),
	}, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()

	return nil
}

// Do runs one presence action.
func (c *HTTPClient) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Action, err)
	}

	response := new(protocol.Response)
	if err = c.roundTrip(ctx, http.MethodPost, body, response); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Action, err)
	}

	return response, nil
}

// GlobalStatus reads the dashboard view.
func (c *HTTPClient) GlobalStatus(ctx context.Context) (*protocol.GlobalStatusResponse, error) {
	response := new(protocol.GlobalStatusResponse)
	if err := c.roundTrip(ctx, http.MethodGet, nil, response); err != nil {
		return nil, fmt.Errorf("global status: %w", err)
	}

	return response, nil
}

// roundTrip sends one request to the presence endpoint and decodes the answer into out.
func (c *HTTPClient) roundTrip(ctx context.Context, method string, body []byte, out any) error {
	callCtx, cancel := c.options.callContext(ctx)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+presencePath, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err = json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%s: %w", errorMessage(payload, resp.Status), domain.ErrInvalidRequest)
	default:
		return fmt.Errorf("%s: %w", errorMessage(payload, resp.Status), ErrServerFailure)
	}
}

// errorMessage extracts the server's error text, falling back to the HTTP status.
func errorMessage(payload []byte, fallback string) string {
	var failure protocol.ErrorResponse
	if err := json.Unmarshal(payload, &failure); err != nil || failure.Error == "" {
		return fallback
	}

	if failure.Details != "" {
		return failure.Error + ": " + failure.Details
	}

	return failure.Error
}
